package viewer

import (
	"errors"
	"fmt"
	"time"

	"Threadview/internal/core/lifecycle"
	"Threadview/internal/core/threads"
)

// Config validation errors
var (
	ErrInvalidScrollAttempts = errors.New("ScrollAttempts must be positive")
	ErrInvalidTimeZone       = errors.New("TimeZone is not a known location")
)

// Config holds session settings.
type Config struct {
	// TimeZone formats message headers, e.g. "UTC" or "America/New_York".
	TimeZone string `koanf:"timezone"`

	ScrollAttempts int           `koanf:"scroll_attempts"`
	ScrollDelay    time.Duration `koanf:"scroll_delay"`

	Lifecycle lifecycle.Config `koanf:"lifecycle"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	policy := threads.DefaultRetryPolicy()
	return Config{
		TimeZone:       "UTC",
		ScrollAttempts: policy.Attempts,
		ScrollDelay:    policy.Delay,
		Lifecycle:      lifecycle.DefaultConfig(),
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.ScrollAttempts <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidScrollAttempts, c.ScrollAttempts)
	}
	if _, err := c.location(); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimeZone, c.TimeZone)
	}
	return c.Lifecycle.Validate()
}

func (c Config) location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.TimeZone)
}

func (c Config) retryPolicy() threads.RetryPolicy {
	return threads.RetryPolicy{Attempts: c.ScrollAttempts, Delay: c.ScrollDelay}
}
