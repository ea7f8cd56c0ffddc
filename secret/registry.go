package secret

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a Backend from configuration options.
type Factory func(cfg map[string]any) (Backend, error)

// Registry maps backend kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry returns a registry with the env, dotenv, file and
// memory backends.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(KindEnv, envFactory)
	_ = r.Register(KindDotenv, dotenvFactory)
	_ = r.Register(KindFile, fileFactory)
	_ = r.Register(KindMemory, memoryFactory)
	return r
}

// DefaultRegistry holds the built-in backends. Remote backends add
// themselves with their package's Register function.
var DefaultRegistry = NewDefaultRegistry()

// Register adds a factory for kind.
func (r *Registry) Register(kind string, f Factory) error {
	kind = strings.TrimSpace(kind)
	if kind == "" || f == nil {
		return errors.New("secret: invalid backend registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("secret: backend %q already registered", kind)
	}
	r.factories[kind] = f
	return nil
}

// Create builds a backend of the given kind.
func (r *Registry) Create(kind string, cfg map[string]any) (Backend, error) {
	kind = strings.TrimSpace(kind)
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
	return f(cfg)
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func envFactory(cfg map[string]any) (Backend, error) {
	prefix, err := StringOption(cfg, "prefix")
	if err != nil {
		return nil, err
	}
	return NewEnv(prefix), nil
}

func dotenvFactory(cfg map[string]any) (Backend, error) {
	path, err := StringOption(cfg, "path")
	if err != nil {
		return nil, err
	}
	fallback, err := BoolOption(cfg, "fallback_to_env")
	if err != nil {
		return nil, err
	}
	return NewDotenv(path, DotenvOptions{FallbackToEnv: fallback})
}

func fileFactory(cfg map[string]any) (Backend, error) {
	dir, err := StringOption(cfg, "dir")
	if err != nil {
		return nil, err
	}
	return NewFile(dir)
}

func memoryFactory(cfg map[string]any) (Backend, error) {
	raw, ok := cfg["values"]
	if !ok || raw == nil {
		return NewMemory(nil), nil
	}
	seed := make(map[string]string)
	switch v := raw.(type) {
	case map[string]string:
		seed = v
	case map[string]any:
		for k, val := range v {
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("%w: memory value %q must be a string", ErrInvalidConfig, k)
			}
			seed[k] = s
		}
	default:
		return nil, fmt.Errorf("%w: memory values must be a map", ErrInvalidConfig)
	}
	return NewMemory(seed), nil
}

// StringOption reads an optional string option.
func StringOption(cfg map[string]any, key string) (string, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: option %q must be a string", ErrInvalidConfig, key)
	}
	return s, nil
}

// BoolOption reads an optional boolean option. Strings "true" and "false"
// are accepted for values coming from the environment.
func BoolOption(cfg map[string]any, key string) (bool, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(b) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no", "":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: option %q must be a boolean", ErrInvalidConfig, key)
}
