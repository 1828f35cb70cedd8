package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// circuitState represents the state of a circuit breaker
type circuitState int

const (
	stateClosed   circuitState = iota // Normal operation
	stateOpen                         // Provider failing, requests skipped
	stateHalfOpen                     // One probe allowed through
)

func (s circuitState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// circuitBreaker tracks consecutive failures per provider and stops
// calling a provider that keeps failing.
type circuitBreaker struct {
	failures         map[string]int
	lastFailure      map[string]time.Time
	state            map[string]circuitState
	now              func() time.Time
	failureThreshold int
	openDuration     time.Duration
	mu               sync.Mutex
}

func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{
		failureThreshold: 3,
		openDuration:     5 * time.Minute,
		failures:         make(map[string]int),
		lastFailure:      make(map[string]time.Time),
		state:            make(map[string]circuitState),
		now:              time.Now,
	}
}

// canAttempt reports whether provider may be called. An open circuit whose
// open period has elapsed moves to half-open and lets one probe through.
func (cb *circuitBreaker) canAttempt(provider string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.getState(provider) {
	case stateOpen:
		lastFail := cb.lastFailure[provider]
		if cb.now().Sub(lastFail) > cb.openDuration {
			cb.state[provider] = stateHalfOpen
			slog.Info("[RESOLVER-CIRCUIT] circuit half-open, probing provider", "provider", provider)
			return nil
		}
		return fmt.Errorf("%w: provider %q (failures: %d, next retry: %s)",
			ErrCircuitOpen,
			provider,
			cb.failures[provider],
			lastFail.Add(cb.openDuration).Format("15:04:05"),
		)
	case stateHalfOpen:
		// A probe is already in flight.
		return fmt.Errorf("%w: provider %q is being probed", ErrCircuitOpen, provider)
	default:
		return nil
	}
}

func (cb *circuitBreaker) recordSuccess(provider string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.getState(provider) != stateClosed {
		slog.Info("[RESOLVER-CIRCUIT] circuit closed, provider recovered", "provider", provider)
	}
	delete(cb.failures, provider)
	delete(cb.lastFailure, provider)
	cb.state[provider] = stateClosed
}

func (cb *circuitBreaker) recordFailure(provider string, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures[provider]++
	cb.lastFailure[provider] = cb.now()
	failCount := cb.failures[provider]

	old := cb.getState(provider)
	if failCount >= cb.failureThreshold || old == stateHalfOpen {
		cb.state[provider] = stateOpen
		if old != stateOpen {
			slog.Warn("[RESOLVER-CIRCUIT] opening circuit",
				"provider", provider,
				"consecutive_failures", failCount,
				"error", err,
			)
		}
		return
	}

	slog.Debug("[RESOLVER-CIRCUIT] provider failure",
		"provider", provider,
		"failures", failCount,
		"threshold", cb.failureThreshold,
		"error", err,
	)
}

// providerFault reports whether err means the provider itself is in
// trouble. Transport errors, timeouts, 429 and 5xx count; a 4xx only says
// the resource is gone, and an oversized or non-video body is still an
// answer.
func providerFault(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 429 || statusErr.StatusCode >= 500
	}
	if errors.Is(err, ErrTooLarge) || errors.Is(err, ErrNotVideo) {
		return false
	}
	return true
}

// getState returns the current state (must be called with lock held)
func (cb *circuitBreaker) getState(provider string) circuitState {
	if state, exists := cb.state[provider]; exists {
		return state
	}
	return stateClosed
}

// ProviderStats is a snapshot of one provider's breaker.
type ProviderStats struct {
	LastFailure time.Time `json:"last_failure,omitempty"`
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
}

func (cb *circuitBreaker) getStats() map[string]ProviderStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	stats := make(map[string]ProviderStats, len(cb.state))
	for provider := range cb.state {
		stats[provider] = ProviderStats{
			State:       cb.getState(provider).String(),
			Failures:    cb.failures[provider],
			LastFailure: cb.lastFailure[provider],
		}
	}
	for provider := range cb.failures {
		if _, ok := stats[provider]; ok {
			continue
		}
		stats[provider] = ProviderStats{
			State:       stateClosed.String(),
			Failures:    cb.failures[provider],
			LastFailure: cb.lastFailure[provider],
		}
	}
	return stats
}
