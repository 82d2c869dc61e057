// Package geocode resolves postal codes to coordinates through an external
// provider, with a shared cache in front and a shared rate limiter behind.
package geocode

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zip-mapper/internal/model"
	"github.com/sells-group/zip-mapper/internal/resilience"
)

// DefaultCountry restricts lookups when the caller gives no hint.
const DefaultCountry = "US"

// Option configures the Geocoder.
type Option func(*Geocoder)

// WithCache sets the cache backend. Defaults to a fresh MemoryCache.
func WithCache(c Cache) Option {
	return func(g *Geocoder) {
		if c != nil {
			g.cache = c
		}
	}
}

// WithRateLimiter sets the limiter shared by every provider call.
func WithRateLimiter(l RateLimiter) Option {
	return func(g *Geocoder) {
		if l != nil {
			g.limiter = l
		}
	}
}

// WithRetry sets the retry policy for transient provider failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(g *Geocoder) {
		g.retry = cfg
	}
}

// WithCircuitBreaker sets the breaker guarding the provider.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(g *Geocoder) {
		if cb != nil {
			g.breaker = cb
		}
	}
}

// WithNegativeTTL makes cached NotFound answers expire after d. Zero keeps
// them for the cache lifetime.
func WithNegativeTTL(d time.Duration) Option {
	return func(g *Geocoder) {
		g.negativeTTL = d
	}
}

// WithDefaultCountry sets the country used when Resolve gets an empty hint.
func WithDefaultCountry(country string) Option {
	return func(g *Geocoder) {
		if country != "" {
			g.country = strings.ToUpper(country)
		}
	}
}

// Stats counts Geocoder activity since construction.
type Stats struct {
	CacheHits     int64  `json:"cache_hits"`
	ProviderCalls int64  `json:"provider_calls"`
	NotFound      int64  `json:"not_found"`
	Failures      int64  `json:"failures"`
	Circuit       string `json:"circuit"`
}

// Geocoder resolves postal codes. It is safe for concurrent use; all
// callers share one cache and one limiter.
type Geocoder struct {
	provider    Provider
	cache       Cache
	limiter     RateLimiter
	breaker     *resilience.CircuitBreaker
	retry       resilience.RetryConfig
	negativeTTL time.Duration
	country     string
	nowFunc     func() time.Time

	cacheHits     atomic.Int64
	providerCalls atomic.Int64
	notFound      atomic.Int64
	failures      atomic.Int64
}

// New creates a Geocoder backed by provider.
func New(provider Provider, opts ...Option) *Geocoder {
	g := &Geocoder{
		provider: provider,
		cache:    NewMemoryCache(),
		limiter:  NewIntervalLimiter(DefaultMinInterval),
		breaker:  resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:    resilience.DefaultRetryConfig(),
		country:  DefaultCountry,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.retry.OnRetry == nil {
		g.retry.OnRetry = resilience.RetryLogger(provider.Name(), "lookup")
	}
	return g
}

// Resolve converts one postal code into a GeocodeResult. A cache hit returns
// without touching the limiter. Provider misses are cached as NotFound;
// lookup failures are not cached so a later call retries.
func (g *Geocoder) Resolve(ctx context.Context, code, countryHint string) model.GeocodeResult {
	code = model.NormalizePostalCode(code)
	country := strings.ToUpper(strings.TrimSpace(countryHint))
	if country == "" {
		country = g.country
	}
	key := cacheKey(country, code)

	log := zap.L().With(
		zap.String("component", "geocode"),
		zap.String("postal_code", code),
		zap.String("country", country),
	)

	if e, ok := g.lookupCache(ctx, key, log); ok {
		g.cacheHits.Add(1)
		var r model.GeocodeResult
		if e.NotFound {
			r = model.NewNotFound(code)
		} else {
			r = model.NewResolved(code, e.Coordinate)
		}
		r.Cached = true
		return r
	}

	coord, err := g.query(ctx, code, country)
	if err != nil {
		g.failures.Add(1)
		log.Warn("geocode: lookup failed", zap.String("provider", g.provider.Name()), zap.Error(err))
		return model.NewLookupFailed(code, err)
	}

	if coord == nil {
		g.notFound.Add(1)
		g.store(ctx, key, Entry{NotFound: true, CachedAt: g.nowFunc()}, log)
		log.Info("geocode: no result for postal code")
		return model.NewNotFound(code)
	}

	g.store(ctx, key, Entry{Coordinate: *coord, CachedAt: g.nowFunc()}, log)
	return model.NewResolved(code, *coord)
}

// Stats returns activity counters.
func (g *Geocoder) Stats() Stats {
	return Stats{
		CacheHits:     g.cacheHits.Load(),
		ProviderCalls: g.providerCalls.Load(),
		NotFound:      g.notFound.Load(),
		Failures:      g.failures.Load(),
		Circuit:       g.breaker.State().String(),
	}
}

// query performs the provider lookup. Each attempt, retries included, goes
// through the breaker and then the limiter.
func (g *Geocoder) query(ctx context.Context, code, country string) (*model.Coordinate, error) {
	coord, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*model.Coordinate, error) {
		return resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (*model.Coordinate, error) {
			if err := g.limiter.Acquire(ctx); err != nil {
				return nil, err
			}
			g.providerCalls.Add(1)
			return g.provider.Lookup(ctx, code, country)
		})
	})
	if err != nil {
		return nil, err
	}
	if coord != nil && !coord.Valid() {
		return nil, eris.Errorf("geocode: %s returned out-of-range coordinate %s", g.provider.Name(), coord)
	}
	return coord, nil
}

func (g *Geocoder) lookupCache(ctx context.Context, key string, log *zap.Logger) (Entry, bool) {
	e, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		log.Warn("geocode: cache read failed, treating as miss", zap.Error(err))
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}
	if e.NotFound && g.negativeTTL > 0 && g.nowFunc().Sub(e.CachedAt) > g.negativeTTL {
		log.Debug("geocode: cached negative expired")
		return Entry{}, false
	}
	log.Debug("geocode cache hit", zap.Bool("not_found", e.NotFound))
	return e, true
}

func (g *Geocoder) store(ctx context.Context, key string, e Entry, log *zap.Logger) {
	if err := g.cache.Put(ctx, key, e); err != nil {
		log.Warn("geocode: cache write failed", zap.Error(err))
	}
}
