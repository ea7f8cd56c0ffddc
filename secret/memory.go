package secret

import (
	"context"
	"maps"
	"sync"
)

// MemoryBackend keeps secrets in a map. It is meant for tests and for
// values injected at startup.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

var (
	_ Writer = (*MemoryBackend)(nil)
	_ Lister = (*MemoryBackend)(nil)
	_ Pinger = (*MemoryBackend)(nil)
)

// NewMemory returns a backend holding a copy of seed.
func NewMemory(seed map[string]string) *MemoryBackend {
	values := make(map[string]string, len(seed))
	maps.Copy(values, seed)
	return &MemoryBackend{values: values}
}

func (b *MemoryBackend) Name() string { return KindMemory }

func (b *MemoryBackend) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return "", Unavailable(b.Name(), "get", key, ErrClosed)
	}
	v, ok := b.values[key]
	if !ok {
		return "", NotFound(b.Name(), key)
	}
	return v, nil
}

func (b *MemoryBackend) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Unavailable(b.Name(), "set", key, ErrClosed)
	}
	b.values[key] = value
	return nil
}

func (b *MemoryBackend) All(_ context.Context) (map[string]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, Unavailable(b.Name(), "list", "", ErrClosed)
	}
	return maps.Clone(b.values), nil
}

func (b *MemoryBackend) Ping(_ context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return Unavailable(b.Name(), "ping", "", ErrClosed)
	}
	return nil
}

// Close drops the stored values. Later calls report ErrUnavailable.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	clear(b.values)
	return nil
}
