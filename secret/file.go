package secret

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// FileBackend reads one secret per file from a directory, as mounted by
// Docker and Kubernetes. A single trailing newline is removed.
type FileBackend struct {
	dir    string
	closed atomic.Bool
}

var (
	_ Writer = (*FileBackend)(nil)
	_ Lister = (*FileBackend)(nil)
	_ Pinger = (*FileBackend)(nil)
)

// NewFile returns a backend rooted at dir. The directory is not required to
// exist yet; lookups report ErrUnavailable until it does.
func NewFile(dir string) (*FileBackend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: file backend needs a directory", ErrInvalidConfig)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) Name() string { return KindFile }

// Dir returns the root directory.
func (b *FileBackend) Dir() string { return b.dir }

func (b *FileBackend) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return "", ErrInvalidKey
	}
	return filepath.Join(b.dir, key), nil
}

func (b *FileBackend) Get(_ context.Context, key string) (string, error) {
	p, err := b.path(key)
	if err != nil {
		return "", err
	}
	if b.closed.Load() {
		return "", Unavailable(b.Name(), "get", key, ErrClosed)
	}

	data, err := os.ReadFile(p)
	if err == nil {
		return trimNewline(string(data)), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		if dirErr := b.Ping(context.Background()); dirErr != nil {
			return "", Unavailable(b.Name(), "get", key, dirErr)
		}
		return "", NotFound(b.Name(), key)
	}
	return "", Unavailable(b.Name(), "get", key, err)
}

// Set writes value to a new file and renames it into place.
func (b *FileBackend) Set(_ context.Context, key, value string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if b.closed.Load() {
		return Unavailable(b.Name(), "set", key, ErrClosed)
	}

	tmp, err := os.CreateTemp(b.dir, "."+key+".*")
	if err != nil {
		return Unavailable(b.Name(), "set", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return Unavailable(b.Name(), "set", key, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return Unavailable(b.Name(), "set", key, err)
	}
	if err := tmp.Close(); err != nil {
		return Unavailable(b.Name(), "set", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return Unavailable(b.Name(), "set", key, err)
	}
	return nil
}

// All reads every regular, non-hidden file in the directory.
func (b *FileBackend) All(ctx context.Context) (map[string]string, error) {
	if b.closed.Load() {
		return nil, Unavailable(b.Name(), "list", "", ErrClosed)
	}
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, Unavailable(b.Name(), "list", "", err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || e.IsDir() {
			continue
		}
		v, err := b.Get(ctx, e.Name())
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out[e.Name()] = v
	}
	return out, nil
}

// Ping checks that the directory exists and is readable.
func (b *FileBackend) Ping(_ context.Context) error {
	info, err := os.Stat(b.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", b.dir)
	}
	f, err := os.Open(b.dir)
	if err != nil {
		return err
	}
	return f.Close()
}

func (b *FileBackend) Close() error {
	b.closed.Store(true)
	return nil
}

func trimNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
