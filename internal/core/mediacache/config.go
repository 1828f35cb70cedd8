package mediacache

import (
	"errors"
	"fmt"
	"time"
)

// Config validation errors
var (
	// ErrInvalidMaxBytes is returned when MaxBytes is not positive
	ErrInvalidMaxBytes = errors.New("MaxBytes must be positive")
	// ErrInvalidEvictTarget is returned when EvictTargetRatio is outside (0, 1]
	ErrInvalidEvictTarget = errors.New("EvictTargetRatio must be in (0, 1]")
	// ErrInvalidTTL is returned when TTL is negative
	ErrInvalidTTL = errors.New("TTL cannot be negative")
)

// Config holds the cache budget and cleanup settings.
type Config struct {
	// MaxBytes is the total payload budget. A write that would exceed it is
	// treated as quota-exceeded and triggers eviction.
	MaxBytes int64 `koanf:"max_bytes"`

	// EvictTargetRatio is the fraction of MaxBytes eviction shrinks the
	// cache down to, leaving headroom for the write that triggered it.
	EvictTargetRatio float64 `koanf:"evict_target_ratio"`

	// EvictBatchSize is how many of the oldest entries are read per
	// eviction round.
	EvictBatchSize int `koanf:"evict_batch_size"`

	// TTL removes records not accessed for this long. 0 disables it.
	TTL time.Duration `koanf:"ttl"`

	// CleanupInterval is how often the background job runs. 0 disables it.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxBytes:         512 * 1024 * 1024,
		EvictTargetRatio: 0.8,
		EvictBatchSize:   50,
		TTL:              0,
		CleanupInterval:  1 * time.Hour,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.MaxBytes <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxBytes, c.MaxBytes)
	}
	if c.EvictTargetRatio <= 0 || c.EvictTargetRatio > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidEvictTarget, c.EvictTargetRatio)
	}
	if c.TTL < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidTTL, c.TTL)
	}
	return nil
}

func (c Config) batchSize() int {
	if c.EvictBatchSize <= 0 {
		return 50
	}
	return c.EvictBatchSize
}
