// Package awssm provides a secret.Backend over AWS Secrets Manager. Each key
// is a secret id, optionally under a common name prefix.
package awssm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/shimarch/smrkit/secret"
)

// Kind is the registry name of this backend.
const Kind = "awssm"

// pingSecretID is described by Ping; a not-found answer proves the service
// is reachable and the credentials are accepted.
const pingSecretID = "smrkit-health-check-nonexistent"

// SecretsManagerAPI is the subset of the Secrets Manager client the backend
// uses.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
}

// Config configures New.
type Config struct {
	Region string `koanf:"region"`
	// Endpoint overrides the service URL, e.g. for LocalStack.
	Endpoint string `koanf:"endpoint"`
	// Prefix is prepended to every key to form the secret id.
	Prefix string `koanf:"prefix"`
}

// Backend reads and writes string secrets.
type Backend struct {
	api    SecretsManagerAPI
	prefix string
	closed atomic.Bool
}

var (
	_ secret.Writer = (*Backend)(nil)
	_ secret.Pinger = (*Backend)(nil)
)

// New loads the default AWS configuration chain and builds a client.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %w", secret.ErrInvalidConfig, err)
	}
	client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.Prefix), nil
}

// NewWithClient wraps api.
func NewWithClient(api SecretsManagerAPI, prefix string) *Backend {
	return &Backend{api: api, prefix: prefix}
}

func (b *Backend) Name() string { return Kind }

func (b *Backend) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", secret.ErrInvalidKey
	}
	if b.closed.Load() {
		return "", secret.Unavailable(Kind, "get", key, secret.ErrClosed)
	}
	out, err := b.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(b.prefix + key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", secret.NotFound(Kind, key)
		}
		return "", secret.Unavailable(Kind, "get", key, err)
	}
	switch {
	case out.SecretString != nil:
		return *out.SecretString, nil
	case out.SecretBinary != nil:
		return string(out.SecretBinary), nil
	}
	return "", secret.NotFound(Kind, key)
}

// Set puts a new version of the secret, creating it on first write.
func (b *Backend) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return secret.ErrInvalidKey
	}
	if b.closed.Load() {
		return secret.Unavailable(Kind, "set", key, secret.ErrClosed)
	}
	id := aws.String(b.prefix + key)
	_, err := b.api.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     id,
		SecretString: aws.String(value),
	})
	if isNotFound(err) {
		_, err = b.api.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
			Name:         id,
			SecretString: aws.String(value),
		})
	}
	if err != nil {
		return secret.Unavailable(Kind, "set", key, err)
	}
	return nil
}

// Ping describes a secret that does not exist.
func (b *Backend) Ping(ctx context.Context) error {
	if b.closed.Load() {
		return secret.Unavailable(Kind, "ping", "", secret.ErrClosed)
	}
	_, err := b.api.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(pingSecretID),
	})
	if err == nil || isNotFound(err) {
		return nil
	}
	return secret.Unavailable(Kind, "ping", "", err)
}

func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}

func isNotFound(err error) bool {
	var nf *types.ResourceNotFoundException
	return errors.As(err, &nf)
}

// Register adds the awssm kind to reg. Options: region, endpoint, prefix.
func Register(reg *secret.Registry) error {
	return reg.Register(Kind, func(opts map[string]any) (secret.Backend, error) {
		var cfg Config
		var err error
		if cfg.Region, err = secret.StringOption(opts, "region"); err != nil {
			return nil, err
		}
		if cfg.Endpoint, err = secret.StringOption(opts, "endpoint"); err != nil {
			return nil, err
		}
		if cfg.Prefix, err = secret.StringOption(opts, "prefix"); err != nil {
			return nil, err
		}
		return New(context.Background(), cfg)
	})
}
