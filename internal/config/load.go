package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "THREADVIEW_"

func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(defaultsProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// 2. Config file, if present
	paths := []string{"threadview.yaml", "threadview.yml"}
	if configPath != "" {
		paths = []string{configPath}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		break
	}

	// 3. Environment. Names are matched against known keys so leaf keys
	// keep their underscores: THREADVIEW_CACHE_MAX_BYTES -> cache.max_bytes.
	known := make(map[string]string)
	for _, key := range k.Keys() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return known[strings.ToLower(strings.TrimPrefix(s, envPrefix))]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

type defaultsProviderStruct struct {
	defaults *Config
}

func defaultsProvider(defaults *Config) *defaultsProviderStruct {
	return &defaultsProviderStruct{defaults: defaults}
}

func (d *defaultsProviderStruct) ReadBytes() ([]byte, error) {
	return nil, nil
}

func (d *defaultsProviderStruct) Read() (map[string]interface{}, error) {
	c := d.defaults
	return map[string]interface{}{
		"server": map[string]interface{}{
			"host":             c.Server.Host,
			"port":             c.Server.Port,
			"allowed_origins":  c.Server.AllowedOrigins,
			"shutdown_timeout": c.Server.ShutdownTimeout.String(),
			"rate_limit": map[string]interface{}{
				"enabled": c.Server.RateLimit.Enabled,
				"rate":    c.Server.RateLimit.Rate,
				"burst":   c.Server.RateLimit.Burst,
			},
		},
		"log": map[string]interface{}{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
		"database": map[string]interface{}{
			"driver":         c.Database.Driver,
			"dsn":            c.Database.DSN,
			"max_open_conns": c.Database.MaxOpenConns,
			"open_timeout":   c.Database.OpenTimeout.String(),
			"busy_timeout":   c.Database.BusyTimeout.String(),
		},
		"cache": map[string]interface{}{
			"max_bytes":          c.Cache.MaxBytes,
			"evict_target_ratio": c.Cache.EvictTargetRatio,
			"evict_batch_size":   c.Cache.EvictBatchSize,
			"ttl":                c.Cache.TTL.String(),
			"cleanup_interval":   c.Cache.CleanupInterval.String(),
		},
		"resolver": map[string]interface{}{
			"streamable_media_base": c.Resolver.StreamableMediaBase,
			"streamable_embed_base": c.Resolver.StreamableEmbedBase,
			"tweet_api_base":        c.Resolver.TweetAPIBase,
			"attachment_base":       c.Resolver.AttachmentBase,
			"board":                 c.Resolver.Board,
			"twitch_parent":         c.Resolver.TwitchParent,
			"fetch_timeout":         c.Resolver.FetchTimeout.String(),
			"max_fetch_bytes":       c.Resolver.MaxFetchBytes,
			"tweet_cache_ttl":       c.Resolver.TweetCacheTTL.String(),
			"allow_private_hosts":   c.Resolver.AllowPrivateHosts,
		},
		"viewer": map[string]interface{}{
			"timezone":        c.Viewer.TimeZone,
			"scroll_attempts": c.Viewer.ScrollAttempts,
			"scroll_delay":    c.Viewer.ScrollDelay.String(),
			"lifecycle": map[string]interface{}{
				"root_margin":          c.Viewer.Lifecycle.RootMargin,
				"max_concurrent_loads": c.Viewer.Lifecycle.MaxConcurrentLoads,
			},
		},
		"object_urls": map[string]interface{}{
			"prefix": c.ObjectURLs.Prefix,
			"ttl":    c.ObjectURLs.TTL.String(),
		},
	}, nil
}

func SetupFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("threadview", pflag.ContinueOnError)
	flags.String("config", "", "Path to config file")
	flags.String("server.host", "", "Listen host")
	flags.Int("server.port", 0, "Listen port")
	flags.StringSlice("server.allowed_origins", nil, "Allowed CORS origins")
	flags.String("log.level", "", "Log level: debug, info, warn, error")
	flags.String("log.format", "", "Log format: text or json")
	flags.String("database.driver", "", "Database driver: sqlite or postgres")
	flags.String("database.dsn", "", "Database file path or connection URL")
	flags.Int64("cache.max_bytes", 0, "Media cache budget in bytes")
	flags.Duration("cache.ttl", 0, "Remove cached media not accessed for this long")
	flags.String("resolver.board", "", "Board used for attachment URLs")
	flags.String("viewer.timezone", "", "Time zone for message headers")
	return flags
}
