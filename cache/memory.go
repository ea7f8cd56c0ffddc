package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	policy Policy
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	value     []byte
	expiresAt time.Time
	storedAt  time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache returns an empty cache governed by policy.
func NewMemoryCache(policy Policy) *MemoryCache {
	return &MemoryCache{
		policy:  policy,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Policy returns the policy of the cache.
func (c *MemoryCache) Policy() Policy {
	return c.policy
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		wipe(e.value)
		delete(c.entries, key)
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

// Set stores a copy of value. A non-positive ttl takes the policy's
// DefaultTTL; every TTL is clamped to MaxTTL.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	ttl = c.policy.EffectiveTTL(ttl)
	if ttl <= 0 {
		return nil
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		wipe(old.value)
	} else if c.policy.MaxEntries > 0 && len(c.entries) >= c.policy.MaxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = entry{
		value:     append([]byte(nil), value...),
		expiresAt: now.Add(ttl),
		storedAt:  now,
	}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		wipe(e.value)
		delete(c.entries, key)
	}
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		wipe(e.value)
		delete(c.entries, k)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops expired entries, or the oldest one when none expired.
func (c *MemoryCache) evictLocked(now time.Time) {
	var (
		oldestKey string
		oldest    time.Time
		removed   bool
	)
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			wipe(e.value)
			delete(c.entries, k)
			removed = true
			continue
		}
		if oldestKey == "" || e.storedAt.Before(oldest) {
			oldestKey, oldest = k, e.storedAt
		}
	}
	if !removed && oldestKey != "" {
		wipe(c.entries[oldestKey].value)
		delete(c.entries, oldestKey)
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
