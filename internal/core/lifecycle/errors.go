package lifecycle

import "errors"

var (
	// ErrUnknownPlaceholder is returned when an id is not in the index.
	ErrUnknownPlaceholder = errors.New("unknown placeholder")

	// ErrUnsupportedKey is returned when a keyboard activation uses a key
	// other than Enter or Space.
	ErrUnsupportedKey = errors.New("key does not activate placeholders")

	// ErrNilDependency is returned when a required dependency is nil.
	ErrNilDependency = errors.New("required dependency is nil")
)
