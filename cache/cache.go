package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Cache stores byte values with a TTL.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Get never errors; it returns (nil, false) on a miss or an expired entry.
//   - Values are copied in and out; callers may modify them afterwards.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value for ttl. A non-positive ttl asks for the
	// implementation's default, which may be to store nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error
}

// ValidateKey checks that key is usable.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// Key derives a cache key for name within namespace:
//
//	<namespace>:<first 16 hex chars of SHA-256(name)>
func Key(namespace, name string) string {
	sum := sha256.Sum256([]byte(name))
	return namespace + ":" + hex.EncodeToString(sum[:8])
}
