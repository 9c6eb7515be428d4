package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// Circuit states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

// DefaultFailureThreshold opens the circuit after this many consecutive failures
const DefaultFailureThreshold = 5

// DefaultRecoveryTimeout is how long an open circuit waits before probing
const DefaultRecoveryTimeout = 60 * time.Second

// OpenError is returned when the breaker rejects a call without running it.
// RetryAfter hints when the next probe will be allowed.
type OpenError struct {
	Source     string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit open for %s, retry after %s", e.Source, e.RetryAfter.Round(time.Second))
}

// IsOpen reports whether err is a circuit-open rejection
func IsOpen(err error) bool {
	var openErr *OpenError
	return errors.As(err, &openErr)
}

// CircuitBreaker gates outbound calls for a single source. After
// failureThreshold consecutive failures the circuit opens; once
// recoveryTimeout has elapsed since the last failure a single probe is let
// through, and its outcome decides whether the circuit closes or re-opens.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	logger           arbor.ILogger

	mu            sync.Mutex
	state         string
	failureCount  int
	lastFailureAt time.Time
	probeInFlight bool
}

// New creates a closed circuit breaker for the named source. A
// non-positive threshold falls back to the default; a zero recovery timeout
// is valid and re-arms the probe immediately.
func New(name string, failureThreshold int, recoveryTimeout time.Duration, logger arbor.ILogger) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if recoveryTimeout < 0 {
		recoveryTimeout = DefaultRecoveryTimeout
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		logger:           logger,
		state:            StateClosed,
	}
}

// Call runs op through the breaker. If the circuit is open the op is not
// invoked and an *OpenError is returned; otherwise the op's outcome is
// recorded and its error passed through.
func (b *CircuitBreaker) Call(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.acquire(); err != nil {
		return err
	}

	err := op(ctx)
	b.settle(err == nil)
	return err
}

// acquire decides whether a call may proceed, moving OPEN to HALF_OPEN when
// the recovery timeout has elapsed.
func (b *CircuitBreaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		elapsed := time.Since(b.lastFailureAt)
		if elapsed < b.recoveryTimeout {
			return &OpenError{Source: b.name, RetryAfter: b.recoveryTimeout - elapsed}
		}
		b.state = StateHalfOpen
		b.probeInFlight = false
		b.logger.Info().
			Str("source", b.name).
			Msg("Circuit breaker half-open, allowing probe")
	}

	if b.state == StateHalfOpen {
		// Only one probe may be in flight
		if b.probeInFlight {
			return &OpenError{Source: b.name, RetryAfter: b.recoveryTimeout}
		}
		b.probeInFlight = true
	}

	return nil
}

// settle records the outcome of a call admitted by acquire.
func (b *CircuitBreaker) settle(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probeInFlight = false

	if success {
		wasOpen := b.state != StateClosed
		b.state = StateClosed
		b.failureCount = 0
		if wasOpen {
			b.logger.Info().
				Str("source", b.name).
				Msg("Circuit breaker closed after successful probe")
		}
		return
	}

	b.lastFailureAt = time.Now()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.logger.Warn().
			Str("source", b.name).
			Msg("Circuit breaker probe failed, re-opening")
		return
	}

	b.failureCount++
	if b.state == StateClosed && b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		b.logger.Warn().
			Str("source", b.name).
			Int("failures", b.failureCount).
			Dur("recovery_timeout", b.recoveryTimeout).
			Msg("Circuit breaker opened")
	}
}

// State returns the current circuit state name.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Report the automatic OPEN -> HALF_OPEN transition without mutating
	if b.state == StateOpen && time.Since(b.lastFailureAt) >= b.recoveryTimeout {
		return StateHalfOpen
	}
	return b.state
}

// FailureCount returns the current consecutive failure count.
func (b *CircuitBreaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
