package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the settings a command mode depends on. All problems are
// reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "map", "serve":
		errs = append(errs, c.validateGeocode()...)
		errs = append(errs, c.validateCache()...)
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "boundary":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Boundary.MaxAttempts < 0 {
		errs = append(errs, "boundary.max_attempts must be >= 0")
	}
	if c.Viewport.AutoZoom < 0 || c.Viewport.AutoZoom > 18 {
		errs = append(errs, "viewport.auto_zoom must be between 0 and 18")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateGeocode() []string {
	var errs []string
	switch strings.ToLower(c.Geocode.Provider) {
	case "nominatim", "":
		if c.Geocode.UserAgent == "" {
			errs = append(errs, "geocode.user_agent is required for nominatim")
		}
	case "google":
		if c.Geocode.GoogleAPIKey == "" {
			errs = append(errs, "geocode.google_api_key is required for google")
		}
	default:
		errs = append(errs, "geocode.provider must be nominatim or google")
	}
	if c.Geocode.MinInterval < 0 {
		errs = append(errs, "geocode.min_interval must be >= 0")
	}
	if c.Geocode.MaxAttempts < 1 {
		errs = append(errs, "geocode.max_attempts must be >= 1")
	}
	if c.Geocode.NegativeTTL < 0 {
		errs = append(errs, "geocode.negative_ttl must be >= 0")
	}
	return errs
}

func (c *Config) validateCache() []string {
	switch strings.ToLower(c.Cache.Driver) {
	case "memory", "":
		return nil
	case "sqlite", "postgres":
		if c.Cache.DSN == "" {
			return []string{"cache.dsn is required for " + c.Cache.Driver}
		}
		return nil
	default:
		return []string{"cache.driver must be memory, sqlite or postgres"}
	}
}
