// Package config loads application configuration from pantry.yaml, the
// environment, and defaults, and initializes the global logger.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`
	ListAPI   ListAPIConfig   `yaml:"listapi" mapstructure:"listapi"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DirectoryConfig carries the region defaults applied during ingestion.
type DirectoryConfig struct {
	DefaultState          string `yaml:"default_state" mapstructure:"default_state"`
	MaxItemizedRejections int    `yaml:"max_itemized_rejections" mapstructure:"max_itemized_rejections"`
}

// ListAPIConfig tunes the remote list API client.
type ListAPIConfig struct {
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP surface for the directory UI.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from pantry.yaml (working directory or
// $HOME/.pantry), PANTRY_* environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("pantry")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.pantry")

	v.SetEnvPrefix("PANTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pantry.db")
	v.SetDefault("directory.default_state", "PA")
	v.SetDefault("directory.max_itemized_rejections", 25)
	v.SetDefault("listapi.rate_limit", 4.0)
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

// Validate checks the fields the given command mode requires. Mode is
// "ingest" for the import/sync/search commands and "serve" for the HTTP
// server.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "", "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported (sqlite or postgres)", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}
	if c.Directory.MaxItemizedRejections < 0 {
		problems = append(problems, "directory.max_itemized_rejections must be >= 0")
	}
	if c.ListAPI.RateLimit < 0 {
		problems = append(problems, "listapi.rate_limit must be >= 0")
	}

	switch mode {
	case "ingest":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
