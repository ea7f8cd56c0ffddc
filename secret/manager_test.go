package secret

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shimarch/smrkit/cache"
	"github.com/shimarch/smrkit/health"
	"github.com/shimarch/smrkit/logging"
	"github.com/shimarch/smrkit/resilience"
)

// stubBackend answers Get from fn and counts calls.
type stubBackend struct {
	calls atomic.Int32
	fn    func(ctx context.Context, key string) (string, error)
}

func (s *stubBackend) Name() string { return "stub" }
func (s *stubBackend) Close() error { return nil }
func (s *stubBackend) Get(ctx context.Context, key string) (string, error) {
	s.calls.Add(1)
	return s.fn(ctx, key)
}

func newManager(t *testing.T, b Backend, opts ...ManagerOption) *Manager {
	t.Helper()
	m, err := NewManager(b, opts...)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestNewManager_NilBackend(t *testing.T) {
	if _, err := NewManager(nil); err == nil {
		t.Fatal("NewManager(nil) should fail")
	}
}

func TestManager_GetClassification(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, NewMemory(map[string]string{"A": "secret1"}))

	v, err := m.Get(ctx, "A")
	if err != nil || v != "secret1" {
		t.Fatalf("Get(A) = %q, %v; want secret1", v, err)
	}

	_, err = m.Get(ctx, "B")
	if !IsNotFound(err) {
		t.Fatalf("Get(B) error = %v, want ErrNotFound", err)
	}
	if IsUnavailable(err) {
		t.Fatalf("Get(B) error = %v must not match ErrUnavailable", err)
	}

	_, err = m.Get(ctx, "")
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Get(\"\") error = %v, want ErrInvalidKey", err)
	}
}

func TestManager_ClosedBackendIsUnavailable(t *testing.T) {
	ctx := context.Background()
	b := NewMemory(map[string]string{"A": "secret1"})
	m := newManager(t, b)
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	_, err := m.Get(ctx, "A")
	if !IsUnavailable(err) {
		t.Fatalf("Get after close error = %v, want ErrUnavailable", err)
	}
	if IsNotFound(err) {
		t.Fatalf("Get after close error = %v must not match ErrNotFound", err)
	}
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Get after close error = %v should keep ErrClosed in the chain", err)
	}
}

func TestManager_TimeoutIsUnavailable(t *testing.T) {
	slow := &stubBackend{fn: func(ctx context.Context, key string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	m := newManager(t, slow, WithTimeout(20*time.Millisecond))

	_, err := m.Get(context.Background(), "A")
	if !IsUnavailable(err) || IsNotFound(err) {
		t.Fatalf("Get() error = %v, want only ErrUnavailable", err)
	}
	if !errors.Is(err, resilience.ErrTimeout) {
		t.Errorf("Get() error = %v, want ErrTimeout in the chain", err)
	}
}

func TestManager_UnknownErrorsAreUnavailable(t *testing.T) {
	boom := errors.New("connection reset")
	b := &stubBackend{fn: func(context.Context, string) (string, error) { return "", boom }}
	m := newManager(t, b)

	_, err := m.Get(context.Background(), "A")
	if !IsUnavailable(err) || !errors.Is(err, boom) {
		t.Fatalf("Get() error = %v, want ErrUnavailable wrapping cause", err)
	}
	var be *BackendError
	if !errors.As(err, &be) || be.Backend != "stub" || be.Key != "A" {
		t.Fatalf("Get() error = %#v, want BackendError for stub/A", err)
	}
}

func TestManager_Require(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, NewMemory(map[string]string{"A": "x", "EMPTY": ""}))

	if v, err := m.Require(ctx, "A"); err != nil || v != "x" {
		t.Fatalf("Require(A) = %q, %v", v, err)
	}
	if _, err := m.Require(ctx, "EMPTY"); !IsNotFound(err) {
		t.Fatalf("Require(EMPTY) error = %v, want ErrNotFound", err)
	}
	if _, err := m.Require(ctx, "MISSING"); !IsNotFound(err) {
		t.Fatalf("Require(MISSING) error = %v, want ErrNotFound", err)
	}
}

func TestManager_Has(t *testing.T) {
	ctx := context.Background()
	b := NewMemory(map[string]string{"A": "x"})
	m := newManager(t, b)

	if ok, err := m.Has(ctx, "A"); !ok || err != nil {
		t.Fatalf("Has(A) = %v, %v", ok, err)
	}
	if ok, err := m.Has(ctx, "B"); ok || err != nil {
		t.Fatalf("Has(B) = %v, %v", ok, err)
	}
	_ = b.Close()
	if _, err := m.Has(ctx, "A"); !IsUnavailable(err) {
		t.Fatalf("Has on closed backend error = %v, want ErrUnavailable", err)
	}
}

func TestManager_SetOverwriteGuard(t *testing.T) {
	ctx := context.Background()
	b := NewMemory(map[string]string{"LOCKED": "old", "TOKEN": "old"})
	m := newManager(t, b, WithAllowOverwrite("TOKEN"))

	if err := m.Set(ctx, "NEW", "v"); err != nil {
		t.Fatalf("Set(NEW) error = %v", err)
	}
	if err := m.Set(ctx, "LOCKED", "old"); err != nil {
		t.Fatalf("Set with identical value error = %v", err)
	}
	if err := m.Set(ctx, "LOCKED", "new"); !errors.Is(err, ErrOverwriteDenied) {
		t.Fatalf("Set(LOCKED) error = %v, want ErrOverwriteDenied", err)
	}
	if err := m.Set(ctx, "TOKEN", "new"); err != nil {
		t.Fatalf("Set(TOKEN) error = %v", err)
	}

	want := map[string]string{"LOCKED": "old", "TOKEN": "new", "NEW": "v"}
	for k, w := range want {
		if got, _ := m.Get(ctx, k); got != w {
			t.Errorf("Get(%s) = %q, want %q", k, got, w)
		}
	}
}

func TestManager_SetReadOnly(t *testing.T) {
	b := &stubBackend{fn: func(context.Context, string) (string, error) { return "", nil }}
	m := newManager(t, b)
	if err := m.Set(context.Background(), "A", "v"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Set() error = %v, want ErrReadOnly", err)
	}
	if _, err := m.All(context.Background()); !errors.Is(err, ErrNotListable) {
		t.Fatalf("All() error = %v, want ErrNotListable", err)
	}
}

func TestManager_All(t *testing.T) {
	seed := map[string]string{"A": "1", "B": "2"}
	m := newManager(t, NewMemory(seed))
	got, err := m.All(context.Background())
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(got) != 2 || got["A"] != "1" || got["B"] != "2" {
		t.Fatalf("All() = %v, want %v", got, seed)
	}
}

func TestManager_CacheSharesLookups(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	b := &stubBackend{fn: func(context.Context, string) (string, error) {
		<-release
		return "v", nil
	}}
	c := cache.NewMemoryCache(cache.DefaultPolicy())
	m := newManager(t, b, WithCache(c, time.Minute))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := m.Get(ctx, "A"); err != nil || v != "v" {
				t.Errorf("Get() = %q, %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if _, err := m.Get(ctx, "A"); err != nil {
		t.Fatalf("cached Get() error = %v", err)
	}
	if n := b.calls.Load(); n != 1 {
		t.Fatalf("backend calls = %d, want 1", n)
	}
	if _, ok := c.Get(ctx, "A"); ok {
		t.Fatal("cache must not be keyed by the raw secret name")
	}
}

func TestManager_CacheCallerCancelLeavesOthers(t *testing.T) {
	release := make(chan struct{})
	b := &stubBackend{fn: func(ctx context.Context, _ string) (string, error) {
		select {
		case <-release:
			return "v", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}}
	m := newManager(t, b, WithCache(cache.NewMemoryCache(cache.DefaultPolicy()), time.Minute))

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.Get(first, "A")
		firstErr <- err
	}()
	for b.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	type result struct {
		v   string
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := m.Get(context.Background(), "A")
		second <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !IsUnavailable(err) || !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled caller error = %v, want ErrUnavailable wrapping context.Canceled", err)
	}
	close(release)

	got := <-second
	if got.err != nil || got.v != "v" {
		t.Fatalf("second caller Get() = %q, %v; want v", got.v, got.err)
	}
	if n := b.calls.Load(); n != 1 {
		t.Fatalf("backend calls = %d, want 1", n)
	}
}

func TestManager_CacheDefaultTTL(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		policy    cache.Policy
		wantCalls int32
	}{
		{name: "policy default applies", policy: cache.DefaultPolicy(), wantCalls: 1},
		{name: "policy without default disables caching", policy: cache.NoCachePolicy(), wantCalls: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &stubBackend{fn: func(context.Context, string) (string, error) { return "v", nil }}
			m := newManager(t, b, WithCache(cache.NewMemoryCache(tt.policy), 0))
			for range 3 {
				if v, err := m.Get(ctx, "A"); err != nil || v != "v" {
					t.Fatalf("Get() = %q, %v", v, err)
				}
			}
			if n := b.calls.Load(); n != tt.wantCalls {
				t.Fatalf("backend calls = %d, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestManager_CacheSkipsErrors(t *testing.T) {
	ctx := context.Background()
	b := &stubBackend{fn: func(context.Context, string) (string, error) { return "", NotFound("stub", "A") }}
	m := newManager(t, b, WithCache(cache.NewMemoryCache(cache.DefaultPolicy()), time.Minute))

	for range 2 {
		if _, err := m.Get(ctx, "A"); !IsNotFound(err) {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if n := b.calls.Load(); n != 2 {
		t.Fatalf("backend calls = %d, want 2", n)
	}
}

func TestManager_SetInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, NewMemory(map[string]string{"A": "old"}),
		WithCache(cache.NewMemoryCache(cache.DefaultPolicy()), time.Minute),
		WithAllowOverwrite("A"))

	if v, _ := m.Get(ctx, "A"); v != "old" {
		t.Fatalf("Get() = %q", v)
	}
	if err := m.Set(ctx, "A", "new"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, _ := m.Get(ctx, "A"); v != "new" {
		t.Fatalf("Get() after Set = %q, want new", v)
	}
}

func TestManager_CircuitBreaker(t *testing.T) {
	ctx := context.Background()
	down := true
	b := &stubBackend{fn: func(_ context.Context, key string) (string, error) {
		if key == "missing" {
			return "", NotFound("stub", key)
		}
		if down {
			return "", errors.New("dial tcp: refused")
		}
		return "v", nil
	}}
	m := newManager(t, b, WithCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures: 2,
		OpenTimeout: time.Hour,
	}))

	for range 3 {
		if _, err := m.Get(ctx, "missing"); !IsNotFound(err) {
			t.Fatalf("Get(missing) error = %v", err)
		}
	}
	for range 2 {
		if _, err := m.Get(ctx, "A"); !IsUnavailable(err) {
			t.Fatalf("Get(A) error = %v", err)
		}
	}

	down = false
	calls := b.calls.Load()
	_, err := m.Get(ctx, "A")
	if !IsUnavailable(err) || !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("Get() on open circuit error = %v", err)
	}
	if b.calls.Load() != calls {
		t.Fatal("open circuit must not reach the backend")
	}

	r := m.HealthChecker("secrets").Check(ctx)
	if r.Status != health.StatusDegraded {
		t.Fatalf("health status = %v, want degraded", r.Status)
	}
}

func TestManager_HealthChecker(t *testing.T) {
	ctx := context.Background()
	b := NewMemory(nil)
	m := newManager(t, b)
	hc := m.HealthChecker("secrets")
	if hc.Name() != "secrets" {
		t.Fatalf("Name() = %q", hc.Name())
	}
	if r := hc.Check(ctx); r.Status != health.StatusHealthy {
		t.Fatalf("status = %v, want healthy", r.Status)
	}
	_ = b.Close()
	r := hc.Check(ctx)
	if r.Status != health.StatusUnhealthy || !IsUnavailable(r.Err) {
		t.Fatalf("closed backend result = %+v", r)
	}

	stub := &stubBackend{fn: func(context.Context, string) (string, error) { return "", nil }}
	if r := newManager(t, stub).HealthChecker("stub").Check(ctx); r.Status != health.StatusHealthy {
		t.Fatalf("backend without Ping status = %v", r.Status)
	}
}

func TestManager_LogsKeysNotValues(t *testing.T) {
	logger, logs := logging.NewObserved(logging.LevelDebug)
	m := newManager(t, NewMemory(map[string]string{"API_KEY": "hunter2"}), WithLogger(logger))

	if _, err := m.Get(context.Background(), "API_KEY"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	entries := logs.All()
	if len(entries) == 0 {
		t.Fatal("expected a debug entry")
	}
	for _, e := range entries {
		for k, v := range e.ContextMap() {
			if s, ok := v.(string); ok && s == "hunter2" {
				t.Fatalf("field %q leaked the secret value", k)
			}
		}
	}
}
