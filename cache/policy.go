package cache

import "time"

// Policy bounds what a MemoryCache keeps.
type Policy struct {
	// DefaultTTL applies when Set is called with a non-positive TTL.
	// Zero means such calls store nothing.
	DefaultTTL time.Duration

	// MaxTTL clamps every TTL. Zero means no maximum.
	MaxTTL time.Duration

	// MaxEntries bounds the number of entries. Zero means unbounded.
	MaxEntries int
}

// DefaultPolicy caches for one minute, at most 15 minutes, 256 entries.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: time.Minute,
		MaxTTL:     15 * time.Minute,
		MaxEntries: 256,
	}
}

// NoCachePolicy disables caching.
func NoCachePolicy() Policy {
	return Policy{}
}

// Enabled reports whether the policy caches anything by default.
func (p Policy) Enabled() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL returns override, or DefaultTTL when override <= 0, clamped
// to MaxTTL.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
