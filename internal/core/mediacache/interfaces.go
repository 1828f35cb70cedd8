package mediacache

import (
	"context"
	"time"
)

// Repository persists cache records. Implementations translate driver
// failures into ErrQuotaExceeded or ErrStoreUnavailable.
type Repository interface {
	// Get returns the record for url, or nil, nil when absent.
	Get(ctx context.Context, url string) (*Record, error)

	// Upsert inserts rec or replaces the existing record with the same URL.
	Upsert(ctx context.Context, rec *Record) error

	// Touch sets the access timestamp of url. Absent URLs are ignored.
	Touch(ctx context.Context, url string, at time.Time) error

	// Usage returns the record count and total payload bytes.
	Usage(ctx context.Context) (Usage, error)

	// Oldest returns up to limit entries ordered by timestamp ascending.
	Oldest(ctx context.Context, limit int) ([]Entry, error)

	// Delete removes the given URLs and returns how many existed.
	Delete(ctx context.Context, urls ...string) (int, error)

	// DeleteOlderThan removes records last accessed before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Cache is the access layer consumed by the resolution pipeline.
type Cache interface {
	// Get returns the cached record for url. Any failure reads as a miss.
	Get(ctx context.Context, url string) (*Record, bool)

	// Put stores blob under url, replacing any existing record.
	Put(ctx context.Context, url string, blob Blob, filename, ext string) error
}
