package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff selects how the delay grows between attempts.
type Backoff int

const (
	// BackoffExponential multiplies the delay by Multiplier each attempt.
	BackoffExponential Backoff = iota
	// BackoffLinear grows the delay by Delay each attempt.
	BackoffLinear
	// BackoffConstant waits Delay between every attempt.
	BackoffConstant
)

// RetryConfig configures a Retry.
type RetryConfig struct {
	// Attempts is the total number of calls, including the first.
	// Default: 3
	Attempts int

	// Delay before the second attempt.
	// Default: 200ms
	Delay time.Duration

	// MaxDelay caps a single wait.
	// Default: 10s
	MaxDelay time.Duration

	// Multiplier for BackoffExponential.
	// Default: 2
	Multiplier float64

	Backoff Backoff

	// Jitter adds up to 25% random delay.
	Jitter bool

	// RetryIf decides whether err is worth another attempt.
	// Default: every non-nil error.
	RetryIf func(err error) bool

	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Retry re-executes a failing operation with backoff.
type Retry struct {
	cfg RetryConfig
}

// NewRetry applies defaults to cfg.
func NewRetry(cfg RetryConfig) *Retry {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 200 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = func(err error) bool { return err != nil }
	}
	return &Retry{cfg: cfg}
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.cfg
}

// Execute calls op until it succeeds, returns a non-retryable error, the
// context ends, or the attempts run out. In the last case the returned error
// matches both ErrRetriesExhausted and the last failure.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !r.cfg.RetryIf(err) {
			return err
		}
		if attempt >= r.cfg.Attempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}

		wait := r.wait(attempt)
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Retry) wait(attempt int) time.Duration {
	var d time.Duration
	switch r.cfg.Backoff {
	case BackoffConstant:
		d = r.cfg.Delay
	case BackoffLinear:
		d = r.cfg.Delay * time.Duration(attempt)
	default:
		d = time.Duration(float64(r.cfg.Delay) * math.Pow(r.cfg.Multiplier, float64(attempt-1)))
	}
	if d > r.cfg.MaxDelay || d < 0 {
		d = r.cfg.MaxDelay
	}
	if r.cfg.Jitter && d >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		d += time.Duration(rand.Int64N(int64(d / 4)))
	}
	return d
}
