package secret

import "context"

// Backend kinds known to the default registry.
const (
	KindEnv    = "env"
	KindDotenv = "dotenv"
	KindFile   = "file"
	KindMemory = "memory"
)

// Backend reads secrets from one store.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Get returns an error matching exactly one of ErrNotFound or
//     ErrUnavailable on failure (or ErrInvalidKey for unaddressable keys).
//   - For a fixed external state, Get is deterministic.
//   - Implementations must not log secret values.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) (string, error)
	Close() error
}

// Writer is a Backend that can store values.
type Writer interface {
	Backend
	Set(ctx context.Context, key, value string) error
}

// Lister is a Backend that can enumerate its secrets.
type Lister interface {
	Backend
	All(ctx context.Context) (map[string]string, error)
}

// Pinger is implemented by backends that can check reachability without
// reading a secret.
type Pinger interface {
	Ping(ctx context.Context) error
}
