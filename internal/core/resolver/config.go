package resolver

import (
	"errors"
	"fmt"
	"time"
)

// Config validation errors
var (
	ErrMissingEndpoint     = errors.New("endpoint base URL is required")
	ErrInvalidFetchTimeout = errors.New("FetchTimeout must be positive")
	ErrInvalidMaxFetchSize = errors.New("MaxFetchBytes must be positive")
)

// Config holds provider endpoints and fetch limits.
type Config struct {
	// StreamableMediaBase is the prefix of guessed direct mp4 URLs; the
	// video id and ".mp4" are appended.
	StreamableMediaBase string `koanf:"streamable_media_base"`

	// StreamableEmbedBase is the prefix of the fallback player URL.
	StreamableEmbedBase string `koanf:"streamable_embed_base"`

	// TweetAPIBase is the vxtwitter-compatible unfurl API.
	TweetAPIBase string `koanf:"tweet_api_base"`

	// AttachmentBase and Board locate thread attachments.
	AttachmentBase string `koanf:"attachment_base"`
	Board          string `koanf:"board"`

	// TwitchParent is the parent host the Twitch player requires.
	TwitchParent string `koanf:"twitch_parent"`

	FetchTimeout  time.Duration `koanf:"fetch_timeout"`
	MaxFetchBytes int64         `koanf:"max_fetch_bytes"`

	// TweetCacheTTL is how long successful tweet cards are memoized.
	TweetCacheTTL time.Duration `koanf:"tweet_cache_ttl"`

	// AllowPrivateHosts disables the private address guard. Development
	// and tests only.
	AllowPrivateHosts bool `koanf:"allow_private_hosts"`
}

// DefaultConfig returns the public endpoints and conservative limits.
func DefaultConfig() Config {
	return Config{
		StreamableMediaBase: "https://cf-files.streamable.com/temp/",
		StreamableEmbedBase: "https://streamable.com/e/",
		TweetAPIBase:        "https://api.vxtwitter.com",
		AttachmentBase:      "https://i.4cdn.org",
		Board:               "b",
		TwitchParent:        "boards.4chan.org",
		FetchTimeout:        15 * time.Second,
		MaxFetchBytes:       100 * 1024 * 1024,
		TweetCacheTTL:       30 * time.Minute,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	for name, v := range map[string]string{
		"streamable_media_base": c.StreamableMediaBase,
		"streamable_embed_base": c.StreamableEmbedBase,
		"tweet_api_base":        c.TweetAPIBase,
		"attachment_base":       c.AttachmentBase,
		"twitch_parent":         c.TwitchParent,
	} {
		if v == "" {
			return fmt.Errorf("%w: %s", ErrMissingEndpoint, name)
		}
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidFetchTimeout, c.FetchTimeout)
	}
	if c.MaxFetchBytes <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxFetchSize, c.MaxFetchBytes)
	}
	return nil
}
