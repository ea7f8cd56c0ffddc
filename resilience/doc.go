// Package resilience bounds and shapes calls to external services: secret
// stores, webhooks and spreadsheet APIs.
//
//   - Timeout: gives a blocking call a deadline and reports ErrTimeout when
//     the call does not return in time, even if it ignores its context.
//   - RateLimiter: token buckets (golang.org/x/time/rate), one per key, so
//     each webhook space or spreadsheet gets its own budget.
//   - CircuitBreaker: stops calling a backend that keeps failing
//     (github.com/sony/gobreaker).
//   - Retry: opt-in re-execution with backoff. Nothing in this module
//     retries unless the caller configures it.
//
// An Executor composes them:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
//	        Rate: 1, Burst: 5, WaitOnLimit: true,
//	    })),
//	    resilience.WithTimeout(10*time.Second),
//	)
//
//	err := exec.Execute(ctx, "ops-space", func(ctx context.Context) error {
//	    return post(ctx, payload)
//	})
package resilience
