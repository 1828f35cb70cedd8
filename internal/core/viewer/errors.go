package viewer

import "errors"

var (
	// ErrUnknownSignal is returned for signal names the session does not
	// handle.
	ErrUnknownSignal = errors.New("unknown signal")

	// ErrNilDependency is returned when a required dependency is nil.
	ErrNilDependency = errors.New("required dependency is nil")
)
