// Package config assembles the service configuration from defaults, an
// optional YAML file, THREADVIEW_ environment variables and flags.
package config

import (
	"time"

	"Threadview/internal/core/mediacache"
	"Threadview/internal/core/resolver"
	"Threadview/internal/core/viewer"
	"Threadview/internal/db"
)

type Config struct {
	Server     ServerConfig      `koanf:"server"`
	Log        LogConfig         `koanf:"log"`
	Database   db.Config         `koanf:"database"`
	Cache      mediacache.Config `koanf:"cache"`
	Resolver   resolver.Config   `koanf:"resolver"`
	Viewer     viewer.Config     `koanf:"viewer"`
	ObjectURLs ObjectURLConfig   `koanf:"object_urls"`
}

type ServerConfig struct {
	Host            string          `koanf:"host"`
	Port            int             `koanf:"port"`
	AllowedOrigins  []string        `koanf:"allowed_origins"`
	ShutdownTimeout time.Duration   `koanf:"shutdown_timeout"`
	RateLimit       RateLimitConfig `koanf:"rate_limit"`
}

// RateLimitConfig allows Burst requests at once and Rate per second
// sustained, per client address.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	Rate    float64 `koanf:"rate"`
	Burst   int     `koanf:"burst"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObjectURLConfig controls the in-memory blob handles served under Prefix.
// Handles the client never releases expire after TTL.
type ObjectURLConfig struct {
	Prefix string        `koanf:"prefix"`
	TTL    time.Duration `koanf:"ttl"`
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8787,
			AllowedOrigins:  []string{"https://boards.4chan.org"},
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				Rate:    20,
				Burst:   60,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Database:   db.DefaultConfig(),
		Cache:      mediacache.DefaultConfig(),
		Resolver:   resolver.DefaultConfig(),
		Viewer:     viewer.DefaultConfig(),
		ObjectURLs: ObjectURLConfig{Prefix: "/blob/", TTL: 30 * time.Minute},
	}
}
