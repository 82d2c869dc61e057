package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zip-mapper/internal/config"
	"github.com/sells-group/zip-mapper/pkg/geocode"
)

func validConfig() *config.Config {
	return &config.Config{
		Geocode: config.GeocodeConfig{
			Provider:         "nominatim",
			UserAgent:        "zip-mapper-test/1.0",
			Country:          "US",
			Timeout:          5 * time.Second,
			MaxAttempts:      1,
			CircuitThreshold: 5,
			CircuitReset:     time.Second,
		},
		Cache:    config.CacheConfig{Driver: "memory"},
		Boundary: config.BoundaryConfig{Timeout: time.Minute, TempDir: ""},
		Viewport: config.ViewportConfig{AutoZoom: 6},
		Server:   config.ServerConfig{Port: 8080},
	}
}

func TestInitProvider(t *testing.T) {
	c := validConfig()
	p, err := initProvider(c)
	require.NoError(t, err)
	assert.Equal(t, "nominatim", p.Name())

	c.Geocode.Provider = "Google"
	c.Geocode.GoogleAPIKey = "k"
	p, err = initProvider(c)
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())

	c.Geocode.Provider = "bing"
	_, err = initProvider(c)
	assert.Error(t, err)
}

func TestInitCache_Memory(t *testing.T) {
	env := &mapEnv{}
	cache, err := initCache(context.Background(), validConfig(), env)
	require.NoError(t, err)
	assert.IsType(t, &geocode.MemoryCache{}, cache)
	assert.Empty(t, env.closers)
}

func TestInitCache_SQLite(t *testing.T) {
	c := validConfig()
	c.Cache.Driver = "sqlite"
	c.Cache.DSN = filepath.Join(t.TempDir(), "cache.db")

	env := &mapEnv{}
	cache, err := initCache(context.Background(), c, env)
	require.NoError(t, err)
	defer env.Close()

	assert.IsType(t, &geocode.SQLiteCache{}, cache)
	assert.Len(t, env.closers, 1)
}

func TestInitCache_PostgresBadDSN(t *testing.T) {
	c := validConfig()
	c.Cache.Driver = "postgres"
	c.Cache.DSN = "not a dsn ::"

	_, err := initCache(context.Background(), c, &mapEnv{})
	assert.Error(t, err)
}

func TestInitEnv(t *testing.T) {
	env, err := initEnv(context.Background(), validConfig(), "map")
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Geocoder)
	assert.NotNil(t, env.Pipeline)
	assert.NotEmpty(t, env.Store.Regions())
}

func TestInitEnv_InvalidConfig(t *testing.T) {
	c := validConfig()
	c.Geocode.UserAgent = ""

	_, err := initEnv(context.Background(), c, "map")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_agent")
}

func TestMapEnv_CloseOrder(t *testing.T) {
	var order []int
	env := &mapEnv{closers: []func(){
		func() { order = append(order, 1) },
		func() { order = append(order, 2) },
	}}
	env.Close()
	assert.Equal(t, []int{2, 1}, order)
}
