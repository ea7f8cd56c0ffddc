// Package vault provides a secret.Backend over a HashiCorp Vault KV v2
// secret. The backend addresses one secret (mount + path); keys are the
// fields of its data map.
package vault

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/shimarch/smrkit/secret"
)

// Kind is the registry name of this backend.
const Kind = "vault"

// DefaultMount is the KV v2 mount used when none is configured.
const DefaultMount = "secret"

// Config configures a Backend. Empty Address and Token fall back to
// VAULT_ADDR and VAULT_TOKEN.
type Config struct {
	Address    string `koanf:"address"`
	Token      string `koanf:"token"`
	Namespace  string `koanf:"namespace"`
	Mount      string `koanf:"mount"`
	Path       string `koanf:"path"`
	MaxRetries int    `koanf:"max_retries"`
}

// Backend reads and writes fields of one KV v2 secret.
type Backend struct {
	client *vaultapi.Client
	kv     *vaultapi.KVv2
	mount  string
	path   string

	mu     sync.Mutex // serialises read-modify-write in Set
	closed atomic.Bool
}

var (
	_ secret.Writer = (*Backend)(nil)
	_ secret.Lister = (*Backend)(nil)
	_ secret.Pinger = (*Backend)(nil)
)

// New connects a client for cfg. No request is made until first use.
func New(cfg Config) (*Backend, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("%w: vault backend needs a secret path", secret.ErrInvalidConfig)
	}
	vc := vaultapi.DefaultConfig()
	if vc.Error != nil {
		return nil, fmt.Errorf("%w: %w", secret.ErrInvalidConfig, vc.Error)
	}
	if cfg.Address != "" {
		vc.Address = cfg.Address
	}
	vc.MaxRetries = cfg.MaxRetries

	client, err := vaultapi.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", secret.ErrInvalidConfig, err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	return NewWithClient(client, cfg.Mount, cfg.Path), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *vaultapi.Client, mount, path string) *Backend {
	if mount == "" {
		mount = DefaultMount
	}
	return &Backend{
		client: client,
		kv:     client.KVv2(mount),
		mount:  mount,
		path:   strings.Trim(path, "/"),
	}
}

func (b *Backend) Name() string { return Kind }

// Location returns "mount/path".
func (b *Backend) Location() string { return b.mount + "/" + b.path }

func (b *Backend) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", secret.ErrInvalidKey
	}
	data, err := b.read(ctx, "get", key)
	if err != nil {
		return "", err
	}
	v, ok := data[key]
	if !ok || v == nil {
		return "", secret.NotFound(Kind, key)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

// Set writes a new version of the secret with key set to value. Other
// fields are carried over.
func (b *Backend) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return secret.ErrInvalidKey
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.read(ctx, "set", key)
	if err != nil && !secret.IsNotFound(err) {
		return err
	}
	next := make(map[string]any, len(data)+1)
	maps.Copy(next, data)
	next[key] = value

	if _, err := b.kv.Put(ctx, b.path, next); err != nil {
		return secret.Unavailable(Kind, "set", key, err)
	}
	return nil
}

// All returns every field of the secret. A secret that does not exist yet
// lists as empty.
func (b *Backend) All(ctx context.Context) (map[string]string, error) {
	data, err := b.read(ctx, "list", "")
	if secret.IsNotFound(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			out[k] = s
		} else if v != nil {
			out[k] = fmt.Sprint(v)
		}
	}
	return out, nil
}

// Ping reports an error unless the server is initialized and unsealed.
func (b *Backend) Ping(ctx context.Context) error {
	if b.closed.Load() {
		return secret.Unavailable(Kind, "ping", "", secret.ErrClosed)
	}
	h, err := b.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return secret.Unavailable(Kind, "ping", "", err)
	}
	switch {
	case !h.Initialized:
		return secret.Unavailable(Kind, "ping", "", errors.New("vault is not initialized"))
	case h.Sealed:
		return secret.Unavailable(Kind, "ping", "", errors.New("vault is sealed"))
	}
	return nil
}

// Close forgets the client token.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.client.ClearToken()
	return nil
}

func (b *Backend) read(ctx context.Context, op, key string) (map[string]any, error) {
	if b.closed.Load() {
		return nil, secret.Unavailable(Kind, op, key, secret.ErrClosed)
	}
	s, err := b.kv.Get(ctx, b.path)
	if err != nil {
		if isNotFound(err) {
			return nil, &secret.BackendError{Backend: Kind, Op: op, Key: key, Err: secret.ErrNotFound}
		}
		return nil, secret.Unavailable(Kind, op, key, err)
	}
	if s == nil || s.Data == nil {
		return nil, &secret.BackendError{Backend: Kind, Op: op, Key: key, Err: secret.ErrNotFound}
	}
	return s.Data, nil
}

func isNotFound(err error) bool {
	if errors.Is(err, vaultapi.ErrSecretNotFound) {
		return true
	}
	var re *vaultapi.ResponseError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

// Register adds the vault kind to reg. Options: address, token, namespace,
// mount, path.
func Register(reg *secret.Registry) error {
	return reg.Register(Kind, func(opts map[string]any) (secret.Backend, error) {
		var cfg Config
		for name, dst := range map[string]*string{
			"address":   &cfg.Address,
			"token":     &cfg.Token,
			"namespace": &cfg.Namespace,
			"mount":     &cfg.Mount,
			"path":      &cfg.Path,
		} {
			v, err := secret.StringOption(opts, name)
			if err != nil {
				return nil, err
			}
			*dst = v
		}
		return New(cfg)
	})
}
