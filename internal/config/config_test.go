package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/zip-mapper/internal/boundary"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "nominatim", cfg.Geocode.Provider)
	assert.Equal(t, "US", cfg.Geocode.Country)
	assert.Equal(t, time.Second, cfg.Geocode.MinInterval)
	assert.Equal(t, 10*time.Second, cfg.Geocode.Timeout)
	assert.Equal(t, 2, cfg.Geocode.MaxAttempts)
	assert.Equal(t, time.Duration(0), cfg.Geocode.NegativeTTL)
	assert.Equal(t, 5, cfg.Geocode.CircuitThreshold)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Boundary.Timeout)
	assert.Equal(t, 2, cfg.Boundary.MaxAttempts)
	assert.Equal(t, 6, cfg.Viewport.AutoZoom)
	assert.False(t, cfg.Viewport.FitZoom)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
geocode:
  provider: google
  google_api_key: test-key
  min_interval: 250ms
  negative_ttl: 24h
cache:
  driver: sqlite
  dsn: /var/lib/zipmap/cache.db
viewport:
  fit_zoom: true
boundary:
  regions:
    - id: ct
      url: https://example.test/ct.geojson
      zoom: 9
      center:
        lat: 41.5
        lon: -72.7
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "google", cfg.Geocode.Provider)
	assert.Equal(t, 250*time.Millisecond, cfg.Geocode.MinInterval)
	assert.Equal(t, 24*time.Hour, cfg.Geocode.NegativeTTL)
	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.True(t, cfg.Viewport.FitZoom)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 2, cfg.Geocode.MaxAttempts)

	require.Len(t, cfg.Boundary.Regions, 1)
	r := cfg.Boundary.Regions[0]
	assert.Equal(t, "ct", r.ID)
	assert.Equal(t, 9, r.Zoom)
	assert.InDelta(t, 41.5, r.Center.Lat, 1e-9)

	ct, ok := boundary.NewTable(cfg.Boundary.Regions...).Lookup("CT")
	require.True(t, ok)
	assert.Equal(t, boundary.FormatGeoJSON, ct.Format)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("ZIPMAP_CACHE_DRIVER", "postgres")
	t.Setenv("ZIPMAP_LOG_LEVEL", "warn")
	t.Setenv("ZIPMAP_GEOCODE_MIN_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Cache.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 2*time.Second, cfg.Geocode.MinInterval)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("geocode: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Geocode.Provider = "nominatim"
	cfg.Geocode.UserAgent = "zip-mapper/1.0"
	cfg.Geocode.MinInterval = time.Second
	cfg.Geocode.MaxAttempts = 2
	cfg.Cache.Driver = "memory"
	cfg.Viewport.AutoZoom = 6
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("map"))
	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("boundary"))
}

func TestValidate_GoogleNeedsKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Geocode.Provider = "google"

	err := cfg.Validate("map")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.google_api_key is required")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Geocode.Provider = "bing"
	cfg.Geocode.MaxAttempts = 0
	cfg.Cache.Driver = "postgres"
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.provider must be nominatim or google")
	assert.Contains(t, err.Error(), "geocode.max_attempts must be >= 1")
	assert.Contains(t, err.Error(), "cache.dsn is required for postgres")
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_BoundaryModeSkipsGeocode(t *testing.T) {
	cfg := validDefaults()
	cfg.Geocode.Provider = "bing"
	assert.NoError(t, cfg.Validate("boundary"))
}

func TestValidate_AutoZoomRange(t *testing.T) {
	cfg := validDefaults()
	cfg.Viewport.AutoZoom = 19
	err := cfg.Validate("map")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "viewport.auto_zoom")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_BoundaryAttempts(t *testing.T) {
	cfg := validDefaults()
	cfg.Boundary.MaxAttempts = -1
	err := cfg.Validate("boundary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boundary.max_attempts")
}
