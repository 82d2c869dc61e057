package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zip-mapper/internal/boundary"
	"github.com/sells-group/zip-mapper/internal/config"
	"github.com/sells-group/zip-mapper/internal/db"
	"github.com/sells-group/zip-mapper/internal/pipeline"
	"github.com/sells-group/zip-mapper/internal/resilience"
	"github.com/sells-group/zip-mapper/internal/spatial"
	"github.com/sells-group/zip-mapper/internal/viewport"
	"github.com/sells-group/zip-mapper/pkg/geocode"
)

// mapEnv holds the process-lifetime collaborators shared by every pipeline
// run: one cache, one limiter and one boundary store.
type mapEnv struct {
	Geocoder *geocode.Geocoder
	Store    *boundary.Store
	Pipeline *pipeline.Pipeline

	closers []func()
}

// Close releases resources held by the environment.
func (e *mapEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// initEnv builds the cache, provider, geocoder, boundary store and pipeline
// from config. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string) (*mapEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	env := &mapEnv{}

	cache, err := initCache(ctx, c, env)
	if err != nil {
		env.Close()
		return nil, err
	}

	provider, err := initProvider(c)
	if err != nil {
		env.Close()
		return nil, err
	}

	breakerCfg := resilience.FromCircuitConfig(c.Geocode.CircuitThreshold, c.Geocode.CircuitReset)
	breakerCfg.OnStateChange = resilience.CircuitLogger(provider.Name())

	env.Geocoder = geocode.New(provider,
		geocode.WithCache(cache),
		geocode.WithRateLimiter(geocode.NewIntervalLimiter(c.Geocode.MinInterval)),
		geocode.WithRetry(resilience.FromRetryConfig(c.Geocode.MaxAttempts, 0)),
		geocode.WithCircuitBreaker(resilience.NewCircuitBreaker(breakerCfg)),
		geocode.WithNegativeTTL(c.Geocode.NegativeTTL),
		geocode.WithDefaultCountry(c.Geocode.Country),
	)

	env.Store = initStore(c)
	env.Pipeline = pipeline.New(
		env.Geocoder,
		env.Store,
		spatial.NewMatcher(),
		viewport.NewPlanner(
			viewport.WithRegions(env.Store.Table()),
			viewport.WithAutoZoom(c.Viewport.AutoZoom),
			viewport.WithFitZoom(c.Viewport.FitZoom),
		),
	)

	zap.L().Debug("environment ready",
		zap.String("provider", provider.Name()),
		zap.String("cache", c.Cache.Driver),
		zap.Duration("min_interval", c.Geocode.MinInterval),
	)
	return env, nil
}

// initCache opens the configured cache backend and registers its cleanup.
func initCache(ctx context.Context, c *config.Config, env *mapEnv) (geocode.Cache, error) {
	switch strings.ToLower(c.Cache.Driver) {
	case "sqlite":
		sc, err := geocode.NewSQLiteCache(ctx, c.Cache.DSN)
		if err != nil {
			return nil, eris.Wrap(err, "init sqlite cache")
		}
		env.closers = append(env.closers, func() { _ = sc.Close() })
		return sc, nil
	case "postgres":
		pool, err := db.Connect(ctx, c.Cache.DSN)
		if err != nil {
			return nil, eris.Wrap(err, "init postgres cache")
		}
		env.closers = append(env.closers, pool.Close)
		pc := geocode.NewPostgresCache(pool, c.Cache.Table)
		if err := pc.Migrate(ctx); err != nil {
			return nil, eris.Wrap(err, "migrate postgres cache")
		}
		return pc, nil
	default:
		return geocode.NewMemoryCache(), nil
	}
}

// initProvider selects the geocoding provider.
func initProvider(c *config.Config) (geocode.Provider, error) {
	opts := []geocode.ProviderOption{
		geocode.WithBaseURL(c.Geocode.BaseURL),
		geocode.WithTimeout(c.Geocode.Timeout),
		geocode.WithUserAgent(c.Geocode.UserAgent),
	}
	switch strings.ToLower(c.Geocode.Provider) {
	case "google":
		return geocode.NewGoogleProvider(c.Geocode.GoogleAPIKey, opts...), nil
	case "nominatim", "":
		return geocode.NewNominatimProvider(opts...), nil
	default:
		return nil, eris.Errorf("unknown geocode provider %q", c.Geocode.Provider)
	}
}

// initStore builds the boundary store over the default table plus config
// overrides.
func initStore(c *config.Config) *boundary.Store {
	return boundary.NewStore(
		boundary.NewTable(c.Boundary.Regions...),
		boundary.WithTempDir(c.Boundary.TempDir),
		boundary.WithHTTPClient(&http.Client{Timeout: c.Boundary.Timeout}),
		boundary.WithRetry(resilience.FromRetryConfig(c.Boundary.MaxAttempts, 2*time.Second)),
	)
}
