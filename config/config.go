// Package config loads smrkit configuration from defaults, an optional
// YAML file and SMRKIT_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/shimarch/smrkit/cache"
	"github.com/shimarch/smrkit/chat"
	"github.com/shimarch/smrkit/logging"
	"github.com/shimarch/smrkit/observe"
	"github.com/shimarch/smrkit/resilience"
	"github.com/shimarch/smrkit/secret"
	"github.com/shimarch/smrkit/sheets"
)

// Config is the complete configuration.
type Config struct {
	Logging   logging.Config `koanf:"logging"`
	Secrets   SecretsConfig  `koanf:"secrets"`
	Chat      chat.Config    `koanf:"chat"`
	Sheets    sheets.Config  `koanf:"sheets"`
	Telemetry observe.Config `koanf:"telemetry"`
}

// SecretsConfig selects the secret backend and the Manager options.
type SecretsConfig struct {
	// Backend is a registry kind: env, dotenv, file, memory, vault, awssm.
	Backend string `koanf:"backend"`

	// Options are passed to the backend factory.
	Options map[string]any `koanf:"options"`

	// Timeout bounds each backend call. Zero disables it.
	Timeout time.Duration `koanf:"timeout"`

	// CacheTTL enables the lookup cache when positive.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// AllowOverwrite lists keys that Set may replace.
	AllowOverwrite []string `koanf:"allow_overwrite"`

	// CircuitBreaker stops calling a backend that keeps failing.
	CircuitBreaker bool `koanf:"circuit_breaker"`
}

// Default returns the built-in configuration: a .env file backend, info
// logging and telemetry off.
func Default() Config {
	return Config{
		Logging: logging.DefaultConfig(),
		Secrets: SecretsConfig{
			Backend:        secret.KindDotenv,
			Options:        map[string]any{"path": secret.DefaultDotenvPath},
			AllowOverwrite: []string{sheets.RefreshTokenKey},
		},
		Chat:      chat.DefaultConfig(),
		Sheets:    sheets.DefaultConfig(),
		Telemetry: observe.DefaultConfig(),
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Secrets.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Chat.Timeout < 0 || c.Chat.Rate < 0 || c.Chat.Burst < 0 {
		errs = append(errs, errors.New("config: chat timeout, rate and burst must not be negative"))
	}
	if c.Sheets.Timeout < 0 {
		errs = append(errs, errors.New("config: sheets timeout must not be negative"))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks the secrets section.
func (s SecretsConfig) Validate() error {
	if s.Backend == "" {
		return errors.New("config: secrets.backend is required")
	}
	if s.Timeout < 0 || s.CacheTTL < 0 {
		return errors.New("config: secrets durations must not be negative")
	}
	return nil
}

// NewManager builds the configured backend through reg and binds a
// Manager to it. opts are applied after the configured options.
func (s SecretsConfig) NewManager(reg *secret.Registry, opts ...secret.ManagerOption) (*secret.Manager, error) {
	if reg == nil {
		reg = secret.DefaultRegistry
	}
	b, err := reg.Create(s.Backend, s.Options)
	if err != nil {
		return nil, fmt.Errorf("config: secrets backend %q: %w", s.Backend, err)
	}

	var mopts []secret.ManagerOption
	if s.Timeout > 0 {
		mopts = append(mopts, secret.WithTimeout(s.Timeout))
	}
	if s.CacheTTL > 0 {
		policy := cache.DefaultPolicy()
		policy.DefaultTTL = s.CacheTTL
		policy.MaxTTL = max(policy.MaxTTL, s.CacheTTL)
		mopts = append(mopts, secret.WithCache(cache.NewMemoryCache(policy), 0))
	}
	if len(s.AllowOverwrite) > 0 {
		mopts = append(mopts, secret.WithAllowOverwrite(s.AllowOverwrite...))
	}
	if s.CircuitBreaker {
		mopts = append(mopts, secret.WithCircuitBreaker(resilience.CircuitBreakerConfig{Name: "secret:" + s.Backend}))
	}
	m, err := secret.NewManager(b, append(mopts, opts...)...)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return m, nil
}
