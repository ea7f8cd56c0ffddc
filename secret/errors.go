package secret

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the backend was read and has no value for the key.
	ErrNotFound = errors.New("secret: not found")

	// ErrUnavailable means the backend could not be read: unreachable,
	// unreadable, closed or too slow.
	ErrUnavailable = errors.New("secret: backend unavailable")

	// ErrInvalidKey rejects empty keys and keys a backend cannot address.
	ErrInvalidKey = errors.New("secret: invalid key")

	// ErrInvalidValue rejects values a backend cannot store faithfully.
	ErrInvalidValue = errors.New("secret: value cannot be stored")

	// ErrReadOnly is returned by Manager.Set when the backend cannot write.
	ErrReadOnly = errors.New("secret: backend is read-only")

	// ErrNotListable is returned by Manager.All when the backend cannot
	// enumerate its keys.
	ErrNotListable = errors.New("secret: backend cannot list keys")

	// ErrOverwriteDenied is returned by Manager.Set when the key already
	// has a value and is not in the allowed overwrite list.
	ErrOverwriteDenied = errors.New("secret: overwrite not allowed")

	// ErrClosed is wrapped by ErrUnavailable after Close.
	ErrClosed = errors.New("secret: backend closed")

	// ErrUnknownBackend is returned by Registry.Create for unregistered kinds.
	ErrUnknownBackend = errors.New("secret: unknown backend")

	// ErrInvalidConfig reports unusable backend configuration.
	ErrInvalidConfig = errors.New("secret: invalid backend configuration")
)

// BackendError describes a failed backend operation. It never contains the
// secret value.
type BackendError struct {
	Backend string
	Op      string
	Key     string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("secret: %s via %s: %v", e.Op, e.Backend, e.Err)
	}
	return fmt.Sprintf("secret: %s %q via %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NotFound returns the error a backend reports for an absent key.
func NotFound(backend, key string) error {
	return &BackendError{Backend: backend, Op: "get", Key: key, Err: ErrNotFound}
}

// Unavailable returns the error a backend reports when its store cannot be
// read. The cause stays in the chain.
func Unavailable(backend, op, key string, cause error) error {
	err := ErrUnavailable
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrUnavailable, cause)
	}
	return &BackendError{Backend: backend, Op: op, Key: key, Err: err}
}

// IsNotFound reports whether err means the key is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable reports whether err means the backend could not be read.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
