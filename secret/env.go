package secret

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
)

// EnvBackend reads secrets from the process environment. Key "TOKEN" with
// prefix "APP_" reads APP_TOKEN.
type EnvBackend struct {
	prefix string
	closed atomic.Bool
}

var (
	_ Writer = (*EnvBackend)(nil)
	_ Lister = (*EnvBackend)(nil)
)

// NewEnv returns an environment backend.
func NewEnv(prefix string) *EnvBackend {
	return &EnvBackend{prefix: prefix}
}

func (b *EnvBackend) Name() string { return KindEnv }

func (b *EnvBackend) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	if b.closed.Load() {
		return "", Unavailable(b.Name(), "get", key, ErrClosed)
	}
	v, ok := os.LookupEnv(b.prefix + key)
	if !ok {
		return "", NotFound(b.Name(), key)
	}
	return v, nil
}

// Set changes the variable for the current process only.
func (b *EnvBackend) Set(_ context.Context, key, value string) error {
	if key == "" || strings.ContainsAny(key, "=\x00") {
		return ErrInvalidKey
	}
	if b.closed.Load() {
		return Unavailable(b.Name(), "set", key, ErrClosed)
	}
	if err := os.Setenv(b.prefix+key, value); err != nil {
		return Unavailable(b.Name(), "set", key, err)
	}
	return nil
}

// All returns every variable carrying the prefix, keyed without it.
func (b *EnvBackend) All(_ context.Context) (map[string]string, error) {
	if b.closed.Load() {
		return nil, Unavailable(b.Name(), "list", "", ErrClosed)
	}
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, b.prefix) || k == b.prefix {
			continue
		}
		out[strings.TrimPrefix(k, b.prefix)] = v
	}
	return out, nil
}

func (b *EnvBackend) Close() error {
	b.closed.Store(true)
	return nil
}
