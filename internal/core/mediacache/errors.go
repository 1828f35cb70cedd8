package mediacache

import "errors"

var (
	// ErrEmptyPayload is returned by Put for nil or zero-length blobs.
	ErrEmptyPayload = errors.New("empty payload")

	// ErrEmptyURL is returned when a record key is empty.
	ErrEmptyURL = errors.New("cache key URL is empty")

	// ErrQuotaExceeded is returned when a write does not fit in the store,
	// either because the database is full or the configured budget is spent.
	ErrQuotaExceeded = errors.New("media cache quota exceeded")

	// ErrStoreUnavailable is returned for transient store failures. Callers
	// may retry.
	ErrStoreUnavailable = errors.New("media cache store unavailable")

	// ErrNilDependency is returned when a required dependency is nil.
	ErrNilDependency = errors.New("required dependency is nil")
)
