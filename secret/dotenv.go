package secret

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/joho/godotenv"
)

// DefaultDotenvPath is used when no path is configured.
const DefaultDotenvPath = ".env"

// DotenvOptions configures a DotenvBackend.
type DotenvOptions struct {
	// FallbackToEnv answers lookups for keys missing from the file from the
	// process environment.
	FallbackToEnv bool
}

// DotenvBackend stores secrets in a .env file. The file is read on every
// lookup, so edits made by other processes are seen immediately.
type DotenvBackend struct {
	path string
	opts DotenvOptions

	mu     sync.RWMutex
	closed atomic.Bool
}

var (
	_ Writer = (*DotenvBackend)(nil)
	_ Lister = (*DotenvBackend)(nil)
	_ Pinger = (*DotenvBackend)(nil)
)

// NewDotenv opens the .env file at path, creating it with mode 0600 when it
// does not exist.
func NewDotenv(path string, opts DotenvOptions) (*DotenvBackend, error) {
	if path == "" {
		path = DefaultDotenvPath
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	switch {
	case err == nil:
		if err := f.Close(); err != nil {
			return nil, Unavailable(KindDotenv, "create", "", err)
		}
	case errors.Is(err, fs.ErrExist):
	default:
		return nil, Unavailable(KindDotenv, "create", "", err)
	}
	return &DotenvBackend{path: path, opts: opts}, nil
}

func (b *DotenvBackend) Name() string { return KindDotenv }

// Path returns the file location.
func (b *DotenvBackend) Path() string { return b.path }

// read returns the file contents. A file removed after construction reads
// as empty. Callers hold b.mu.
func (b *DotenvBackend) read() (map[string]string, error) {
	values, err := godotenv.Read(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	return values, nil
}

func (b *DotenvBackend) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	if b.closed.Load() {
		return "", Unavailable(b.Name(), "get", key, ErrClosed)
	}

	b.mu.RLock()
	values, err := b.read()
	b.mu.RUnlock()
	if err != nil {
		return "", Unavailable(b.Name(), "get", key, err)
	}
	if v, ok := values[key]; ok {
		return v, nil
	}
	if b.opts.FallbackToEnv {
		if v, ok := os.LookupEnv(key); ok {
			return v, nil
		}
	}
	return "", NotFound(b.Name(), key)
}

// Set rewrites the file with key set to value. The new contents are parsed
// back before they replace the file; a value that would not read back
// unchanged is rejected with ErrInvalidValue and the file is left as it was.
func (b *DotenvBackend) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if b.closed.Load() {
		return Unavailable(b.Name(), "set", key, ErrClosed)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	values, err := b.read()
	if err != nil {
		return Unavailable(b.Name(), "set", key, err)
	}
	values[key] = value

	content, err := renderDotenv(values)
	if err != nil {
		return &BackendError{Backend: b.Name(), Op: "set", Key: key, Err: err}
	}
	if err := b.replace(content); err != nil {
		return Unavailable(b.Name(), "set", key, err)
	}
	return nil
}

// renderDotenv encodes values one per line, sorted by key. Values are
// single quoted, which godotenv reads literally. Values holding a single
// quote or a line break, or ending in a backslash, go through godotenv's
// double-quote escaping. The result is checked by parsing it again.
func renderDotenv(values map[string]string) (string, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		v := values[k]
		if !strings.ContainsAny(v, "'\n\r") && !strings.HasSuffix(v, "\\") {
			sb.WriteString(k + "='" + v + "'\n")
			continue
		}
		line, err := godotenv.Marshal(map[string]string{k: v})
		if err != nil {
			return "", err
		}
		sb.WriteString(line + "\n")
	}
	content := sb.String()

	parsed, err := godotenv.Unmarshal(content)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	for _, k := range keys {
		if got, ok := parsed[k]; !ok || got != values[k] {
			return "", fmt.Errorf("%w: value of %s does not survive the .env encoding", ErrInvalidValue, k)
		}
	}
	if len(parsed) != len(values) {
		return "", fmt.Errorf("%w: .env encoding produced %d keys, want %d", ErrInvalidValue, len(parsed), len(values))
	}
	return content, nil
}

// replace writes content to a temporary file next to the target and
// renames it into place. Callers hold b.mu.
func (b *DotenvBackend) replace(content string) error {
	f, err := os.CreateTemp(filepath.Dir(b.path), ".env-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, b.path)
}

// All returns the file contents, without environment fallback.
func (b *DotenvBackend) All(_ context.Context) (map[string]string, error) {
	if b.closed.Load() {
		return nil, Unavailable(b.Name(), "list", "", ErrClosed)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	values, err := b.read()
	if err != nil {
		return nil, Unavailable(b.Name(), "list", "", err)
	}
	return values, nil
}

// Ping checks that the file can be opened.
func (b *DotenvBackend) Ping(_ context.Context) error {
	if b.closed.Load() {
		return Unavailable(b.Name(), "ping", "", ErrClosed)
	}
	f, err := os.Open(b.path)
	if err != nil {
		return Unavailable(b.Name(), "ping", "", err)
	}
	return f.Close()
}

func (b *DotenvBackend) Close() error {
	b.closed.Store(true)
	return nil
}
