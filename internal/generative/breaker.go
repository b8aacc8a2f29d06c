package generative

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker stops provider calls after consecutive failures. Once the cool-down has
// passed a single probe call is let through; its outcome closes or reopens the circuit.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     breakerState
	failures  int64
	openedAt  time.Time
	probing   bool
	threshold int64
	coolDown  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewCircuitBreaker opens after threshold consecutive failures and probes again after coolDown.
func NewCircuitBreaker(threshold int64, coolDown time.Duration, logger zerolog.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		coolDown:  coolDown,
		logger:    logger,
		now:       time.Now,
	}
}

// Allow reports whether a provider call may proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		return true
	case stateOpen:
		if cb.now().Sub(cb.openedAt) < cb.coolDown {
			return false
		}
		cb.state = stateHalfOpen
		cb.probing = true
		return true
	default:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
}

// RecordSuccess closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != stateClosed {
		cb.logger.Info().Msg("Provider recovered, circuit closed")
	}
	cb.state = stateClosed
	cb.failures = 0
	cb.probing = false
}

// RecordFailure counts a failure. A failed probe reopens the circuit immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.probing = false
	if cb.state == stateHalfOpen || (cb.state == stateClosed && cb.failures >= cb.threshold) {
		if cb.state == stateClosed {
			cb.logger.Warn().Int64("failures", cb.failures).Dur("cool_down", cb.coolDown).
				Msg("Circuit breaker opened, provider calls paused")
		}
		cb.state = stateOpen
		cb.openedAt = cb.now()
	}
}

// Abandon gives up a probe slot when the call ended without a provider verdict.
func (cb *CircuitBreaker) Abandon() {
	cb.mu.Lock()
	cb.probing = false
	cb.mu.Unlock()
}

// State returns "closed", "open" or "half-open".
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state.String()
}
