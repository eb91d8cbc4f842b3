package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Docgen   DocgenConfig   `mapstructure:"docgen"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`            // "sqlite" or "postgres"
	DSN             string `mapstructure:"dsn"`               // Connection string
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`    // Maximum idle connections (Postgres)
	MaxOpenConns    int    `mapstructure:"max_open_conns"`    // Maximum open connections (Postgres)
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // Connection max lifetime in minutes (Postgres)
	LogSQL          bool   `mapstructure:"log_sql"`           // Log every statement (development)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
}

// DocgenConfig holds document generation settings
type DocgenConfig struct {
	MaxRetries int    `mapstructure:"max_retries"` // Attempts for conflicting version/usage writes
	Timezone   string `mapstructure:"timezone"`    // IANA zone for system placeholders; empty keeps the clock's zone
	DateLayout string `mapstructure:"date_layout"` // Go layout for {{current_date}}
	TimeLayout string `mapstructure:"time_layout"` // Go layout for {{current_time}}
}

// Location resolves Timezone. An empty zone yields nil.
func (c DocgenConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// AuditConfig selects where activity records go
type AuditConfig struct {
	Sink       string `mapstructure:"sink"`        // "db", "valkey", "both" or "none"
	ValkeyAddr string `mapstructure:"valkey_addr"` // e.g. "localhost:6379"
	Channel    string `mapstructure:"channel"`     // Valkey pub/sub channel
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // Listen address for /metrics
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "./crm.db",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: 60,
		},
		Log: LogConfig{Format: "text", Level: "info"},
		Docgen: DocgenConfig{
			MaxRetries: 5,
			DateLayout: "02.01.2006",
			TimeLayout: "15:04:05",
		},
		Audit: AuditConfig{
			Sink:       "db",
			ValkeyAddr: "localhost:6379",
			Channel:    "crm:activity",
		},
		Metrics: MetricsConfig{Addr: ":9464"},
	}
}

// Load reads configuration from .env, config file and environment variables.
// configFile may be empty to search the default locations.
func Load(configFile string) (*Config, error) {
	// .env is optional; real environment variables take precedence over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	d := Defaults()
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime) // minutes
	v.SetDefault("database.log_sql", false)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("docgen.max_retries", d.Docgen.MaxRetries)
	v.SetDefault("docgen.timezone", d.Docgen.Timezone)
	v.SetDefault("docgen.date_layout", d.Docgen.DateLayout)
	v.SetDefault("docgen.time_layout", d.Docgen.TimeLayout)
	v.SetDefault("audit.sink", d.Audit.Sink)
	v.SetDefault("audit.valkey_addr", d.Audit.ValkeyAddr)
	v.SetDefault("audit.channel", d.Audit.Channel)
	v.SetDefault("metrics.addr", d.Metrics.Addr)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/crm/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, using defaults
	}

	// Environment variables override
	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the application cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Audit.Sink {
	case "db", "valkey", "both", "none":
	default:
		return fmt.Errorf("unsupported audit sink: %s", c.Audit.Sink)
	}
	if c.Docgen.MaxRetries < 1 {
		return fmt.Errorf("docgen.max_retries must be at least 1, got %d", c.Docgen.MaxRetries)
	}
	if _, err := c.Docgen.Location(); err != nil {
		return err
	}
	return nil
}
