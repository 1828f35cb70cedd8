package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535"))
	}
	for i, origin := range cfg.Server.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.allowed_origins[%d] %q is not a valid URL with scheme", i, origin))
		}
	}
	if cfg.Server.RateLimit.Enabled && (cfg.Server.RateLimit.Rate <= 0 || cfg.Server.RateLimit.Burst < 1) {
		errs = append(errs, fmt.Errorf("server.rate_limit.rate and burst must be positive when enabled"))
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn, or error"))
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json"))
	}

	if !strings.HasPrefix(cfg.ObjectURLs.Prefix, "/") || !strings.HasSuffix(cfg.ObjectURLs.Prefix, "/") {
		errs = append(errs, fmt.Errorf("object_urls.prefix must start and end with /"))
	}
	if cfg.ObjectURLs.TTL <= 0 {
		errs = append(errs, fmt.Errorf("object_urls.ttl must be positive"))
	}

	if err := cfg.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if err := cfg.Cache.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cache: %w", err))
	}
	if err := cfg.Resolver.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("resolver: %w", err))
	}
	if err := cfg.Viewer.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("viewer: %w", err))
	}

	return errors.Join(errs...)
}
