package geocode

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/zip-mapper/internal/model"
)

const sqliteCacheMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	cache_key TEXT PRIMARY KEY,
	latitude  REAL,
	longitude REAL,
	not_found INTEGER NOT NULL DEFAULT 0,
	cached_at INTEGER NOT NULL
);
`

// SQLiteCache is a Cache persisted to a SQLite file, so answers survive
// process restarts.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (and migrates) a SQLite cache at dsn.
func NewSQLiteCache(ctx context.Context, dsn string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite cache: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteCacheMigration); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite cache: migrate")
	}
	return &SQLiteCache{db: db}, nil
}

// Close releases the database handle.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Get implements Cache.
func (c *SQLiteCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	var lat, lon sql.NullFloat64
	var notFound bool
	var cachedAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, not_found, cached_at FROM geocode_cache WHERE cache_key = ?`,
		key,
	).Scan(&lat, &lon, &notFound, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, eris.Wrap(err, "sqlite cache: get")
	}

	e := Entry{NotFound: notFound, CachedAt: time.Unix(cachedAt, 0).UTC()}
	if !notFound {
		e.Coordinate = model.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
	}
	return e, true, nil
}

// Put implements Cache.
func (c *SQLiteCache) Put(ctx context.Context, key string, e Entry) error {
	lat, lon := nullCoords(e)
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (cache_key, latitude, longitude, not_found, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			not_found = excluded.not_found,
			cached_at = excluded.cached_at`,
		key, lat, lon, e.NotFound, cachedAtOrNow(e).Unix(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite cache: put")
	}
	return nil
}

// nullCoords returns NULLs for negative entries.
func nullCoords(e Entry) (any, any) {
	if e.NotFound {
		return nil, nil
	}
	return e.Coordinate.Lat, e.Coordinate.Lon
}

func cachedAtOrNow(e Entry) time.Time {
	if e.CachedAt.IsZero() {
		return time.Now().UTC()
	}
	return e.CachedAt.UTC()
}
