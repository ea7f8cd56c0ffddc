package resilience

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout applies when a Timeout is built with a non-positive duration.
const DefaultTimeout = 10 * time.Second

// Timeout bounds the duration of a call.
type Timeout struct {
	after time.Duration
}

// NewTimeout returns a Timeout of d, or DefaultTimeout when d <= 0.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &Timeout{after: d}
}

// Duration returns the configured deadline.
func (t *Timeout) Duration() time.Duration {
	return t.after
}

// Execute runs op with a derived deadline. The call returns a *TimeoutError
// when the deadline passes first, even if op is still running; op keeps its
// cancelled context and is expected to return soon after. Cancellation of
// the parent context is returned unchanged.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	expired := &TimeoutError{After: t.after}
	ctx, cancel := context.WithTimeoutCause(ctx, t.after, expired)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(context.Cause(ctx), expired) && errors.Is(err, context.DeadlineExceeded) {
			return expired
		}
		return err
	case <-ctx.Done():
		if cause := context.Cause(ctx); errors.Is(cause, expired) {
			return expired
		}
		return ctx.Err()
	}
}

// ExecuteWithTimeout runs op under a one-off Timeout.
func ExecuteWithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	return NewTimeout(d).Execute(ctx, op)
}
