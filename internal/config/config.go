// Package config loads chatcache settings.
package config

import (
	"errors"
	"fmt"
	"time"
)

// DefaultRetention is how long cached messages are kept before pruning.
const DefaultRetention = 30 * 24 * time.Hour

// DefaultPageSize is the page size used by incremental message queries.
const DefaultPageSize = 50

// Config holds all chatcache settings.
type Config struct {
	DataDir string      `koanf:"data_dir"`
	Cache   CacheConfig `koanf:"cache"`
	Log     LogConfig   `koanf:"log"`
}

// CacheConfig tunes the local cache.
type CacheConfig struct {
	Retention Duration `koanf:"retention"`
	PageSize  int      `koanf:"page_size"`
}

// LogConfig selects logger level and output format.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Retention: Duration(DefaultRetention),
			PageSize:  DefaultPageSize,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate rejects settings the cache cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.Cache.Retention <= 0 {
		return errors.New("cache.retention must be positive")
	}
	if c.Cache.PageSize <= 0 {
		return fmt.Errorf("cache.page_size must be positive, got %d", c.Cache.PageSize)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// Duration wraps time.Duration for text unmarshaling from YAML and env vars.
type Duration time.Duration

// UnmarshalText accepts Go durations and the d/w suffixes.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
