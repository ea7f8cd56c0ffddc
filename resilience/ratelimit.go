package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	// Rate is the sustained number of calls per second per key.
	// Default: 1
	Rate float64

	// Burst is the bucket size per key.
	// Default: 5
	Burst int

	// WaitOnLimit blocks for a token instead of failing with ErrRateLimited.
	WaitOnLimit bool

	// MaxWait bounds a blocking wait.
	// Default: 30s
	MaxWait time.Duration
}

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	cfg RateLimiterConfig

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewRateLimiter applies defaults to cfg.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 30 * time.Second
	}
	return &RateLimiter{cfg: cfg, buckets: make(map[string]*rate.Limiter)}
}

// Config returns the effective configuration.
func (rl *RateLimiter) Config() RateLimiterConfig {
	return rl.cfg
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(rl.cfg.Rate), rl.cfg.Burst)
		rl.buckets[key] = b
	}
	return b
}

// Allow takes a token for key without waiting.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.bucket(key).Allow()
}

// Wait blocks until key has a token, MaxWait passes or ctx ends. Waits that
// cannot finish within MaxWait fail immediately with ErrRateLimited.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	waitCtx, cancel := context.WithTimeout(ctx, rl.cfg.MaxWait)
	defer cancel()
	if err := rl.bucket(key).Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRateLimited
	}
	return nil
}

// Execute runs op once key has a token.
func (rl *RateLimiter) Execute(ctx context.Context, key string, op func(context.Context) error) error {
	if rl.cfg.WaitOnLimit {
		if err := rl.Wait(ctx, key); err != nil {
			return err
		}
	} else if !rl.Allow(key) {
		return ErrRateLimited
	}
	return op(ctx)
}

// Tokens reports the tokens currently available for key.
func (rl *RateLimiter) Tokens(key string) float64 {
	return rl.bucket(key).Tokens()
}
