package resilience

import (
	"context"
	"time"
)

// Executor composes the patterns of this package around an operation.
type Executor struct {
	limiter *RateLimiter
	breaker *CircuitBreaker
	retry   *Retry
	timeout *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor returns an Executor. Without options it calls op directly.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRateLimiter limits calls per key.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.limiter = rl }
}

// WithCircuitBreaker guards calls with cb.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.breaker = cb }
}

// WithRetry retries failed calls. Each attempt gets its own timeout.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(d) }
}

// Timeout returns the per-attempt timeout, or zero when none is set.
func (e *Executor) Timeout() time.Duration {
	if e.timeout == nil {
		return 0
	}
	return e.timeout.Duration()
}

// Execute runs op for key. From the outside in: rate limiter, circuit
// breaker, retry, timeout.
func (e *Executor) Execute(ctx context.Context, key string, op func(context.Context) error) error {
	run := op

	if e.timeout != nil {
		inner := run
		run = func(ctx context.Context) error { return e.timeout.Execute(ctx, inner) }
	}
	if e.retry != nil {
		inner := run
		run = func(ctx context.Context) error { return e.retry.Execute(ctx, inner) }
	}
	if e.breaker != nil {
		inner := run
		run = func(ctx context.Context) error { return e.breaker.Execute(ctx, inner) }
	}
	if e.limiter != nil {
		inner := run
		run = func(ctx context.Context) error { return e.limiter.Execute(ctx, key, inner) }
	}

	return run(ctx)
}
