package secret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// RefPrefix marks a value that refers to a secret:
//
//	secretref:<source>:<key>
const RefPrefix = "secretref:"

// Getter is anything that can look up a secret; both Backend and *Manager
// qualify.
type Getter interface {
	Get(ctx context.Context, key string) (string, error)
}

// Resolver replaces secret references in configuration values.
type Resolver struct {
	sources map[string]Getter
	strict  bool
}

// NewResolver returns a resolver without sources. With strict set, a
// reference that resolves to "" is an error.
func NewResolver(strict bool) *Resolver {
	return &Resolver{sources: make(map[string]Getter), strict: strict}
}

// Register makes g available as source name.
func (r *Resolver) Register(name string, g Getter) {
	if g == nil || strings.TrimSpace(name) == "" {
		return
	}
	r.sources[name] = g
}

// ResolveValue expands ${VAR} references, then resolves a value that is a
// whole reference or contains inline references.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	if source, key, ok := ParseRef(expanded); ok {
		return r.resolve(ctx, source, key)
	}

	matches := inlineRef.FindAllStringSubmatchIndex(expanded, -1)
	if len(matches) == 0 {
		return expanded, nil
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		v, err := r.resolve(ctx, expanded[m[2]:m[3]], expanded[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		b.WriteString(expanded[last:m[0]])
		b.WriteString(v)
		last = m[1]
	}
	b.WriteString(expanded[last:])
	return b.String(), nil
}

// ResolveMap resolves every value of input.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// ParseRef splits a full reference into its source and key.
func ParseRef(value string) (source, key string, ok bool) {
	rest, found := strings.CutPrefix(value, RefPrefix)
	if !found {
		return "", "", false
	}
	source, key, found = strings.Cut(rest, ":")
	if !found || source == "" || key == "" || strings.ContainsAny(rest, " \t\n") {
		return "", "", false
	}
	return source, key, true
}

var inlineRef = regexp.MustCompile(`secretref:([A-Za-z0-9_.-]+):([A-Za-z0-9_./-]+)`)

func (r *Resolver) resolve(ctx context.Context, source, key string) (string, error) {
	g, ok := r.sources[source]
	if !ok {
		return "", fmt.Errorf("%w: secret source %q", ErrUnknownBackend, source)
	}
	v, err := g.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if r.strict && v == "" {
		return "", errors.Join(fmt.Errorf("secret: source %q returned an empty value", source), NotFound(source, key))
	}
	return v, nil
}
