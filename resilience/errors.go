package resilience

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned when an operation does not finish in time.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrRateLimited is returned when no token is available.
	ErrRateLimited = errors.New("resilience: rate limit exceeded")

	// ErrCircuitOpen is returned while the circuit breaker rejects calls.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRetriesExhausted wraps the last error once every attempt failed.
	ErrRetriesExhausted = errors.New("resilience: retries exhausted")
)

// TimeoutError reports the deadline that was exceeded.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("resilience: operation timed out after %s", e.After)
}

// Is makes errors.Is(err, ErrTimeout) true.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
