// Package config loads gateway configuration from the environment, with
// an optional config.yaml overlay for the fields of Config (auth freshness
// window, cache fail-open policy, addresses). Rate limits and debounce gaps
// are not read from here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration. SERVER_URL and
// DATABASE_URL are required; everything else has a default.
type Config struct {
	ServerURL                  string `yaml:"server_url"`
	BindAddr                   string `yaml:"bind_addr"`
	DatabaseURL                string `yaml:"database_url"`
	AuthTimestampWindowSeconds int    `yaml:"auth_timestamp_window_seconds"`

	// CacheFailOpen keeps the read-through paths available when the local
	// store errors: a failed cache query falls through to the hub instead
	// of failing the request. Operators who prefer fail-closed reads set
	// CACHE_FAIL_OPEN=false.
	CacheFailOpen bool `yaml:"cache_fail_open"`
}

// AuthTimestampWindow is the resolved freshness window as a time.Duration.
func (c Config) AuthTimestampWindow() time.Duration {
	return time.Duration(c.AuthTimestampWindowSeconds) * time.Second
}

// Load builds a Config from the environment, optionally overlaid with a
// config.yaml whose keys are read first (env always wins on conflict).
// overlayPath may be empty, in which case only the environment is read.
func Load(overlayPath string) (*Config, error) {
	cfg := Config{
		BindAddr:                   "127.0.0.1:8000",
		AuthTimestampWindowSeconds: 120,
		CacheFailOpen:              true,
	}

	if overlayPath != "" {
		data, err := os.ReadFile(overlayPath)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", overlayPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", overlayPath, err)
		}
	}

	if v := os.Getenv("SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("BIND_ADDR"); v != "" {
		cfg.BindAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("AUTH_TIMESTAMP_WINDOW_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: bad AUTH_TIMESTAMP_WINDOW_SECONDS: %w", err)
		}
		cfg.AuthTimestampWindowSeconds = n
	}
	if v := os.Getenv("CACHE_FAIL_OPEN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: bad CACHE_FAIL_OPEN: %w", err)
		}
		cfg.CacheFailOpen = b
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("config: SERVER_URL is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}

	return &cfg, nil
}
