package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(policy Policy) (*MemoryCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(policy)
	c.now = clock.Now
	return c, clock
}

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c, _ := newTestCache(DefaultPolicy())
	ctx := context.Background()

	if v, ok := c.Get(ctx, "missing"); ok || v != nil {
		t.Fatalf("Get(missing) = %q, %v", v, ok)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, ok := c.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("Get(k) = %q, %v", v, ok)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Get after Delete should miss")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c, clock := newTestCache(DefaultPolicy())
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	clock.Advance(59 * time.Second)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("entry should still be valid")
	}
	clock.Advance(time.Second)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("entry should have expired")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, expired entry should be dropped", c.Len())
	}
}

func TestMemoryCache_MaxTTLClamp(t *testing.T) {
	c, clock := newTestCache(Policy{DefaultTTL: time.Minute, MaxTTL: 2 * time.Minute})
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Hour)
	clock.Advance(2 * time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("TTL should be clamped to MaxTTL")
	}
}

func TestMemoryCache_ZeroTTLUsesDefault(t *testing.T) {
	c, clock := newTestCache(DefaultPolicy())
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), 0)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("entry stored with zero TTL should use DefaultTTL")
	}
	clock.Advance(DefaultPolicy().DefaultTTL)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("entry should expire after DefaultTTL")
	}
}

func TestMemoryCache_NoCachePolicyStoresNothing(t *testing.T) {
	c, _ := newTestCache(NoCachePolicy())
	_ = c.Set(context.Background(), "k", []byte("v"), 0)
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	c, _ := newTestCache(DefaultPolicy())
	ctx := context.Background()

	in := []byte("secret")
	_ = c.Set(ctx, "k", in, time.Minute)
	in[0] = 'X'

	out, _ := c.Get(ctx, "k")
	if string(out) != "secret" {
		t.Fatalf("Get() = %q, stored value was aliased", out)
	}
	out[0] = 'Y'
	again, _ := c.Get(ctx, "k")
	if string(again) != "secret" {
		t.Errorf("Get() = %q, returned value was aliased", again)
	}
}

func TestMemoryCache_MaxEntriesEvictsOldest(t *testing.T) {
	c, clock := newTestCache(Policy{DefaultTTL: time.Minute, MaxEntries: 2})
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	clock.Advance(time.Second)
	_ = c.Set(ctx, "b", []byte("2"), time.Minute)
	clock.Advance(time.Second)
	_ = c.Set(ctx, "c", []byte("3"), time.Minute)

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	for _, k := range []string{"b", "c"} {
		if _, ok := c.Get(ctx, k); !ok {
			t.Errorf("entry %q should be present", k)
		}
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	c, _ := newTestCache(DefaultPolicy())
	ctx := context.Background()
	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "b", []byte("2"), time.Minute)

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestMemoryCache_InvalidKey(t *testing.T) {
	c, _ := newTestCache(DefaultPolicy())
	ctx := context.Background()

	if err := c.Set(ctx, " ", []byte("v"), time.Minute); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Set(blank) error = %v, want ErrInvalidKey", err)
	}
	if err := c.Set(ctx, strings.Repeat("k", MaxKeyLength+1), []byte("v"), time.Minute); !errors.Is(err, ErrKeyTooLong) {
		t.Errorf("Set(long) error = %v, want ErrKeyTooLong", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache(DefaultPolicy())
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.Set(ctx, "k", []byte("v"), time.Minute)
		}()
		go func() {
			defer wg.Done()
			c.Get(ctx, "k")
		}()
	}
	wg.Wait()
}
