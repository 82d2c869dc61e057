package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/zip-mapper/internal/db"
	"github.com/sells-group/zip-mapper/internal/model"
)

// PostgresCache is a Cache stored in a Postgres table, shared by every
// process pointed at the same database.
type PostgresCache struct {
	pool  db.Pool
	table string
}

// NewPostgresCache creates a cache backed by table (default public.geocode_cache).
func NewPostgresCache(pool db.Pool, table string) *PostgresCache {
	if table == "" {
		table = "public.geocode_cache"
	}
	return &PostgresCache{pool: pool, table: db.SanitizeTable(table)}
}

// Migrate creates the cache table if it does not exist.
func (c *PostgresCache) Migrate(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			cache_key TEXT PRIMARY KEY,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			not_found BOOLEAN NOT NULL DEFAULT false,
			cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, c.table))
	if err != nil {
		return eris.Wrap(err, "postgres cache: migrate")
	}
	return nil
}

// Get implements Cache.
func (c *PostgresCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	var lat, lon *float64
	var notFound bool
	var cachedAt time.Time

	query := fmt.Sprintf("SELECT latitude, longitude, not_found, cached_at FROM %s WHERE cache_key = $1", c.table)
	err := c.pool.QueryRow(ctx, query, key).Scan(&lat, &lon, &notFound, &cachedAt)
	if eris.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, eris.Wrap(err, "postgres cache: get")
	}

	e := Entry{NotFound: notFound, CachedAt: cachedAt}
	if !notFound && lat != nil && lon != nil {
		e.Coordinate = model.Coordinate{Lat: *lat, Lon: *lon}
	}
	return e, true, nil
}

// Put implements Cache.
func (c *PostgresCache) Put(ctx context.Context, key string, e Entry) error {
	lat, lon := nullCoords(e)
	query := fmt.Sprintf(`
		INSERT INTO %s (cache_key, latitude, longitude, not_found, cached_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cache_key) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			not_found = EXCLUDED.not_found,
			cached_at = EXCLUDED.cached_at`, c.table)

	if _, err := c.pool.Exec(ctx, query, key, lat, lon, e.NotFound, cachedAtOrNow(e)); err != nil {
		return eris.Wrap(err, "postgres cache: put")
	}
	return nil
}
