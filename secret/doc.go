// Package secret reads and writes credentials through a pluggable backend.
//
// A Backend answers Get for one storage medium: process environment, a
// .env file, a directory of secret files, memory, or a remote store
// (see the vault and awssm subpackages). Every failed lookup is either
// ErrNotFound (the store was read and the key is absent) or ErrUnavailable
// (the store could not be read), never both.
//
// A Manager is the facade applications use. It is bound to exactly one
// backend at construction and adds optional behaviour on top of plain
// delegation: timeouts, a circuit breaker, a TTL cache, an overwrite guard
// for Set, and telemetry.
//
//	b, err := secret.NewDotenv(".env", secret.DotenvOptions{})
//	if err != nil {
//	    return err
//	}
//	m, err := secret.NewManager(b, secret.WithTimeout(2*time.Second))
//	if err != nil {
//	    return err
//	}
//	token, err := m.Get(ctx, "API_TOKEN")
//	switch {
//	case secret.IsNotFound(err):
//	    // ask the user
//	case err != nil:
//	    return err
//	}
//
// Configuration values may reference secrets as "secretref:<name>:<key>",
// resolved by a Resolver (see ExpandEnvStrict for ${VAR} expansion).
//
// Nothing in this package logs or returns secret values in errors.
package secret
