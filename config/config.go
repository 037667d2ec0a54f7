// Package config loads the application configuration from a TOML or YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/on-the-ground/effect_ive_todo/effects/fault"
	"github.com/on-the-ground/effect_ive_todo/effects/validation"
)

const (
	DriverMemDB  = "memdb"
	DriverSQLite = "sqlite"
)

// ErrUnknownFormat is returned for files that are neither TOML nor YAML.
var ErrUnknownFormat = errors.New("unknown config format")

type Log struct {
	Level      string `toml:"level" yaml:"level"`
	Format     string `toml:"format" yaml:"format"`
	BufferSize int    `toml:"buffer_size" yaml:"buffer_size"`
	Workers    int    `toml:"workers" yaml:"workers"`
}

type Store struct {
	Driver string `toml:"driver" yaml:"driver"`
	// Path is the sqlite database file. Ignored by memdb.
	Path      string `toml:"path" yaml:"path"`
	CacheSize int64  `toml:"cache_size" yaml:"cache_size"`
}

type Service struct {
	BulkConcurrency int `toml:"bulk_concurrency" yaml:"bulk_concurrency"`
}

type Config struct {
	Log     Log     `toml:"log" yaml:"log"`
	Store   Store   `toml:"store" yaml:"store"`
	Service Service `toml:"service" yaml:"service"`
}

func Default() Config {
	return Config{
		Log:     Log{Level: "info", Format: "json", BufferSize: 256, Workers: 4},
		Store:   Store{Driver: DriverMemDB, CacheSize: 1024},
		Service: Service{BulkConcurrency: 8},
	}
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := unmarshal(path, data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func unmarshal(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Ext(path))
	}
}

type check = validation.Validator[fault.FieldError, Config]

func rule(field, reason string, ok func(Config) bool) check {
	return validation.Check(ok, fault.FieldError{Field: field, Reason: reason})
}

// Validate reports every problem at once as a fault.ValidationFailed.
func (c Config) Validate() error {
	v := validation.Validate(c,
		rule("log.level", "must be debug, info, warn or error", func(c Config) bool {
			return oneOf(c.Log.Level, "debug", "info", "warn", "error")
		}),
		rule("log.format", "must be json or console", func(c Config) bool {
			return oneOf(c.Log.Format, "json", "console")
		}),
		rule("log.buffer_size", "must be positive", func(c Config) bool { return c.Log.BufferSize > 0 }),
		rule("log.workers", "must be positive", func(c Config) bool { return c.Log.Workers > 0 }),
		rule("store.driver", "must be memdb or sqlite", func(c Config) bool {
			return oneOf(c.Store.Driver, DriverMemDB, DriverSQLite)
		}),
		rule("store.path", "is required for sqlite", func(c Config) bool {
			return c.Store.Driver != DriverSQLite || c.Store.Path != ""
		}),
		rule("store.cache_size", "must not be negative", func(c Config) bool { return c.Store.CacheSize >= 0 }),
		rule("service.bulk_concurrency", "must be positive", func(c Config) bool {
			return c.Service.BulkConcurrency > 0
		}),
	)
	return validation.ToResult(v, func(failures []fault.FieldError) error {
		return fault.NewValidationFailed(failures)
	}).Error()
}

func oneOf(s string, allowed ...string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
