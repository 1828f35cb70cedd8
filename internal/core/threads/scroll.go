package threads

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds the search for a message that may not be rendered yet.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy matches the renderer's typical settle time.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, Delay: 750 * time.Millisecond}
}

// WaitForMessage polls rendered until it reports id present. It returns
// ErrMessageNotFound after the last attempt, or ctx's error if ctx ends
// first.
func WaitForMessage(ctx context.Context, id string, rendered func(id string) bool, policy RetryPolicy) error {
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if rendered(id) {
			slog.Debug("[THREADS] message located", "id", id, "attempt", attempt)
			return nil
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(policy.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	slog.Info("[THREADS] message not rendered, skipping scroll",
		"id", id,
		"attempts", attempts,
	)
	return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
}
