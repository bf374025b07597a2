// Package config loads cqlgate configuration: built-in defaults, then an
// optional YAML file, then CQLGATE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CQLGATE_"

// Store drivers.
const (
	DriverSQLite    = "sqlite"
	DriverCassandra = "cassandra"
)

// Config is the complete configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store"  envPrefix:"STORE_"`
	Schema SchemaConfig `yaml:"schema" envPrefix:"SCHEMA_"`
	Query  QueryConfig  `yaml:"query"  envPrefix:"QUERY_"`
	Log    LogConfig    `yaml:"log"    envPrefix:"LOG_"`
}

// StoreConfig selects and configures the backend.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"` // sqlite, cassandra

	// Path is the SQLite database file.
	Path string `yaml:"path" env:"PATH"`

	Hosts       []string      `yaml:"hosts"       env:"HOSTS" envSeparator:","`
	Port        int           `yaml:"port"        env:"PORT"`
	Keyspace    string        `yaml:"keyspace"    env:"KEYSPACE"`
	Username    string        `yaml:"username"    env:"USERNAME"`
	Password    string        `yaml:"password"    env:"PASSWORD"`
	Consistency string        `yaml:"consistency" env:"CONSISTENCY"`
	Timeout     time.Duration `yaml:"timeout"     env:"TIMEOUT"`
}

// SchemaConfig says where table definitions come from.
type SchemaConfig struct {
	// Dir holds CUE table definitions. When empty the Cassandra driver
	// introspects system_schema instead.
	Dir string `yaml:"dir" env:"DIR"`
}

// QueryConfig bounds request handling.
type QueryConfig struct {
	MaxRecords  int  `yaml:"max_records"  env:"MAX_RECORDS"`
	AllowUpsert bool `yaml:"allow_upsert" env:"ALLOW_UPSERT"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LEVEL"`  // debug, info, warn, error
	Format string `yaml:"format" env:"FORMAT"` // text, json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:      DriverSQLite,
			Path:        "cqlgate.db",
			Port:        9042,
			Consistency: "QUORUM",
			Timeout:     10 * time.Second,
		},
		Query: QueryConfig{MaxRecords: 1000},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. path may be empty; a named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Store.Driver) {
	case DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	case DriverCassandra:
		if len(c.Store.Hosts) == 0 {
			errs = append(errs, errors.New("store.hosts is required for the cassandra driver"))
		}
		if c.Store.Keyspace == "" {
			errs = append(errs, errors.New("store.keyspace is required for the cassandra driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid store driver %q (must be sqlite or cassandra)", c.Store.Driver))
	}

	if c.Query.MaxRecords <= 0 {
		errs = append(errs, fmt.Errorf("query.max_records must be positive, got %d", c.Query.MaxRecords))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q (must be text or json)", c.Log.Format))
	}

	return errors.Join(errs...)
}
