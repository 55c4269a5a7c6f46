package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/collections-lab/georef-cli/internal/resolver"
)

// Config holds the full application configuration.
type Config struct {
	Gazetteer GazetteerConfig `yaml:"gazetteer" mapstructure:"gazetteer"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	PLSS      PLSSConfig      `yaml:"plss" mapstructure:"plss"`
	Resolver  ResolverConfig  `yaml:"resolver" mapstructure:"resolver"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// GazetteerConfig configures the place-name backend.
type GazetteerConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// DSN returns the connection string for the configured driver.
func (c GazetteerConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.DatabaseURL
	}
	return c.SQLitePath
}

// CacheConfig configures the locality parse cache.
type CacheConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`
	MaxEntries int    `yaml:"max_entries" mapstructure:"max_entries"`
}

// PLSSConfig configures the BLM PLSS webservice client.
type PLSSConfig struct {
	Enabled bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// ResolverConfig exposes the evaluator tuning knobs. Zero values fall
// back to the built-in defaults.
type ResolverConfig struct {
	MaxDistKm    float64 `yaml:"max_dist_km" mapstructure:"max_dist_km"`
	MaxSites     int     `yaml:"max_sites" mapstructure:"max_sites"`
	AdminRelaxKm float64 `yaml:"admin_relax_km" mapstructure:"admin_relax_km"`
	ShelfWidthKm float64 `yaml:"shelf_width_km" mapstructure:"shelf_width_km"`
}

// Evaluator merges the configured overrides into the default tuning.
func (c ResolverConfig) Evaluator() resolver.Config {
	cfg := resolver.DefaultConfig()
	if c.MaxDistKm > 0 {
		cfg.MaxDistKm = c.MaxDistKm
	}
	if c.MaxSites > 0 {
		cfg.MaxSites = c.MaxSites
	}
	if c.AdminRelaxKm > 0 {
		cfg.AdminRelaxKm = c.AdminRelaxKm
	}
	if c.ShelfWidthKm > 0 {
		cfg.ShelfWidthKm = c.ShelfWidthKm
	}
	return cfg
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	Limit       int `yaml:"limit" mapstructure:"limit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the configuration needed by the given command mode.
// Modes: resolve, batch, serve, load.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Gazetteer.Driver {
	case "sqlite":
		if c.Gazetteer.SQLitePath == "" {
			problems = append(problems, "gazetteer.sqlite_path is required")
		}
	case "postgres":
		if c.Gazetteer.DatabaseURL == "" {
			problems = append(problems, "gazetteer.database_url is required")
		}
	default:
		problems = append(problems,
			"gazetteer.driver must be sqlite or postgres")
	}

	switch mode {
	case "resolve", "load":
	case "batch":
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 64 {
			problems = append(problems,
				"batch.concurrency must be between 1 and 64")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOREF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("gazetteer.driver", "sqlite")
	v.SetDefault("gazetteer.sqlite_path", "gazetteer.db")
	v.SetDefault("cache.path", "parse-cache.db")
	v.SetDefault("cache.max_entries", 200000)
	v.SetDefault("plss.enabled", true)
	v.SetDefault("plss.rps", 5.0)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("server.port", 8080)
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
