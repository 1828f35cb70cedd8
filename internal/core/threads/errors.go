package threads

import "errors"

var (
	// ErrMessageNotFound is returned when a referenced message is neither
	// in the snapshot nor rendered.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNilDependency is returned when a required dependency is nil.
	ErrNilDependency = errors.New("required dependency is nil")
)
