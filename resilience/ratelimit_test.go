package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_Defaults(t *testing.T) {
	cfg := NewRateLimiter(RateLimiterConfig{}).Config()
	if cfg.Rate != 1 || cfg.Burst != 5 || cfg.MaxWait != 30*time.Second {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestRateLimiter_BurstPerKey(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		if !rl.Allow("ops") {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if rl.Allow("ops") {
		t.Error("third call should be limited")
	}
	if !rl.Allow("dev") {
		t.Error("another key should have its own bucket")
	}
}

func TestRateLimiter_ExecuteWithoutWait(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	op := func(ctx context.Context) error { return nil }

	if err := rl.Execute(context.Background(), "k", op); err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	if err := rl.Execute(context.Background(), "k", op); !errors.Is(err, ErrRateLimited) {
		t.Errorf("second Execute() error = %v, want ErrRateLimited", err)
	}
}

func TestRateLimiter_WaitForToken(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 100, Burst: 1, WaitOnLimit: true})
	op := func(ctx context.Context) error { return nil }

	for i := 0; i < 3; i++ {
		if err := rl.Execute(context.Background(), "k", op); err != nil {
			t.Fatalf("Execute() #%d error = %v", i+1, err)
		}
	}
}

func TestRateLimiter_WaitBeyondMaxWait(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.01, Burst: 1, WaitOnLimit: true, MaxWait: 10 * time.Millisecond})
	rl.Allow("k")

	if err := rl.Wait(context.Background(), "k"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Wait() error = %v, want ErrRateLimited", err)
	}
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.01, Burst: 1})
	rl.Allow("k")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.Wait(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}
