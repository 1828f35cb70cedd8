package lifecycle

import (
	"errors"
	"fmt"
)

// Config validation errors
var (
	ErrInvalidRootMargin = errors.New("RootMargin cannot be negative")
	ErrInvalidLoadLimit  = errors.New("MaxConcurrentLoads must be positive")
)

// Config controls visibility and load fan-out.
type Config struct {
	// RootMargin grows the viewport on both edges so loading starts before
	// a placeholder scrolls into view.
	RootMargin float64 `koanf:"root_margin"`

	// MaxConcurrentLoads bounds resolutions started by one batch of
	// intersection entries.
	MaxConcurrentLoads int `koanf:"max_concurrent_loads"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		RootMargin:         700,
		MaxConcurrentLoads: 4,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.RootMargin < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidRootMargin, c.RootMargin)
	}
	if c.MaxConcurrentLoads <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLoadLimit, c.MaxConcurrentLoads)
	}
	return nil
}
