package geocode

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/zip-mapper/internal/model"
)

// Entry is a cached provider answer: a coordinate, or a stable NotFound.
type Entry struct {
	Coordinate model.Coordinate
	NotFound   bool
	CachedAt   time.Time
}

// Cache maps a normalized postal code key to its provider answer. Entries
// never expire on their own; expiry of negatives is decided by the Geocoder.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, e Entry) error
}

// cacheKey builds the lookup key. The country is part of the key so the same
// code in two countries does not collide.
func cacheKey(country, code string) string {
	return strings.ToUpper(strings.TrimSpace(country)) + "|" + model.NormalizePostalCode(code)
}

// MemoryCache is a process-lifetime Cache safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, ok, nil
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, key string, e Entry) error {
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached keys.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns hit/miss counters.
func (c *MemoryCache) Stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return CacheStats{Entries: c.Len(), Hits: hits, Misses: misses, HitRate: hitRate}
}
