package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/zip-mapper/internal/boundary"
)

// Config holds the full application configuration.
type Config struct {
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Boundary BoundaryConfig `yaml:"boundary" mapstructure:"boundary"`
	Viewport ViewportConfig `yaml:"viewport" mapstructure:"viewport"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// GeocodeConfig configures the postal code provider and its call discipline.
type GeocodeConfig struct {
	Provider     string        `yaml:"provider" mapstructure:"provider"`
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	GoogleAPIKey string        `yaml:"google_api_key" mapstructure:"google_api_key"`
	Country      string        `yaml:"country" mapstructure:"country"`
	MinInterval  time.Duration `yaml:"min_interval" mapstructure:"min_interval"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	// NegativeTTL expires cached NotFound answers; zero keeps them forever.
	NegativeTTL      time.Duration `yaml:"negative_ttl" mapstructure:"negative_ttl"`
	CircuitThreshold int           `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitReset     time.Duration `yaml:"circuit_reset" mapstructure:"circuit_reset"`
}

// CacheConfig selects the geocode cache backend.
type CacheConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
	Table  string `yaml:"table" mapstructure:"table"`
}

// BoundaryConfig configures region dataset downloads.
type BoundaryConfig struct {
	Timeout     time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	TempDir     string            `yaml:"temp_dir" mapstructure:"temp_dir"`
	MaxAttempts int               `yaml:"max_attempts" mapstructure:"max_attempts"`
	Regions     []boundary.Region `yaml:"regions" mapstructure:"regions"`
}

// ViewportConfig configures the AutoBounds strategy.
type ViewportConfig struct {
	AutoZoom int  `yaml:"auto_zoom" mapstructure:"auto_zoom"`
	FitZoom  bool `yaml:"fit_zoom" mapstructure:"fit_zoom"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ZIPMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("geocode.provider", "nominatim")
	v.SetDefault("geocode.user_agent", "zip-mapper/1.0")
	v.SetDefault("geocode.country", "US")
	v.SetDefault("geocode.min_interval", "1s")
	v.SetDefault("geocode.timeout", "10s")
	v.SetDefault("geocode.max_attempts", 2)
	v.SetDefault("geocode.negative_ttl", "0s")
	v.SetDefault("geocode.circuit_threshold", 5)
	v.SetDefault("geocode.circuit_reset", "30s")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.table", "public.geocode_cache")
	v.SetDefault("boundary.timeout", "5m")
	v.SetDefault("boundary.temp_dir", "/tmp/zipmap")
	v.SetDefault("boundary.max_attempts", 2)
	v.SetDefault("viewport.auto_zoom", 6)
	v.SetDefault("viewport.fit_zoom", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
