// Package config loads module-wide tuning from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all tunable settings.
type Config struct {
	Server  ServerConfig
	Cache   CacheConfig
	Watch   WatchConfig
	Remote  RemoteConfig
	Logging LogConfig
}

// ServerConfig holds WebDAV server settings.
type ServerConfig struct {
	Addr string `envconfig:"ANYFS_ADDR" default:":8080"`
	Root string `envconfig:"ANYFS_ROOT" default:""`
}

// CacheConfig holds caching overlay settings.
type CacheConfig struct {
	// Timeout bounds metadata cache entry lifetime; zero disables expiry.
	Timeout time.Duration `envconfig:"ANYFS_CACHE_TIMEOUT" default:"1s"`
}

// WatchConfig holds polling watcher settings.
type WatchConfig struct {
	PollInterval time.Duration `envconfig:"ANYFS_POLL_INTERVAL" default:"5m"`
	// PollRate bounds directory scans per second during a polling pass.
	PollRate float64 `envconfig:"ANYFS_POLL_RATE" default:"100"`
}

// RemoteConfig holds remote backend settings.
type RemoteConfig struct {
	DialTimeout time.Duration `envconfig:"ANYFS_DIAL_TIMEOUT" default:"30s"`
	RetryMax    int           `envconfig:"ANYFS_RETRY_MAX" default:"3"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string `envconfig:"ANYFS_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"ANYFS_LOG_DEV" default:"false"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":8080"},
		Cache:   CacheConfig{Timeout: time.Second},
		Watch:   WatchConfig{PollInterval: 5 * time.Minute, PollRate: 100},
		Remote:  RemoteConfig{DialTimeout: 30 * time.Second, RetryMax: 3},
		Logging: LogConfig{Level: "info"},
	}
}

// LoadOrDefault loads from the environment, falling back to defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}
