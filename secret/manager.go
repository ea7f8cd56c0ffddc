package secret

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shimarch/smrkit/cache"
	"github.com/shimarch/smrkit/health"
	"github.com/shimarch/smrkit/logging"
	"github.com/shimarch/smrkit/observe"
	"github.com/shimarch/smrkit/resilience"
)

// Manager is the application facing entry point for secrets. It is bound
// to one Backend for its whole life.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Without options, Get is a plain delegation to the backend.
//   - Failed lookups match ErrNotFound or ErrUnavailable, never both.
//   - Values are never logged or cached in clear key form.
type Manager struct {
	backend Backend

	timeout   time.Duration
	breaker   *resilience.CircuitBreaker
	exec      *resilience.Executor
	cache     cache.Cache
	cacheTTL  time.Duration
	cacheNS   string
	group     singleflight.Group
	overwrite map[string]bool
	mw        *observe.Middleware
	logger    logging.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout bounds every backend call. A call that exceeds d fails with
// ErrUnavailable.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// WithCircuitBreaker stops calling the backend after repeated unavailable
// results; rejected calls fail with ErrUnavailable. Not-found results do
// not count as failures.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) ManagerOption {
	return func(m *Manager) {
		cfg.IsFailure = func(err error) bool {
			return err != nil && !IsNotFound(err) && !errors.Is(err, ErrInvalidKey) && !errors.Is(err, ErrInvalidValue)
		}
		m.breaker = resilience.NewCircuitBreaker(cfg)
	}
}

// WithCache keeps successful lookups in c for ttl. A ttl of zero defers
// to the cache's default; a cache whose policy caches nothing by default
// is then ignored. Concurrent lookups of the same missing key share one
// backend call. Errors are never cached.
func WithCache(c cache.Cache, ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if p, ok := c.(interface{ Policy() cache.Policy }); ok && ttl <= 0 && !p.Policy().Enabled() {
			return
		}
		m.cache = c
		m.cacheTTL = ttl
	}
}

// WithAllowOverwrite lists the keys Set may replace once they have a value.
func WithAllowOverwrite(keys ...string) ManagerOption {
	return func(m *Manager) {
		for _, k := range keys {
			m.overwrite[k] = true
		}
	}
}

// WithMiddleware instruments backend calls.
func WithMiddleware(mw *observe.Middleware) ManagerOption {
	return func(m *Manager) { m.mw = mw }
}

// WithLogger records lookups (key names only) at debug level.
func WithLogger(l logging.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager binds a Manager to b.
func NewManager(b Backend, opts ...ManagerOption) (*Manager, error) {
	if b == nil {
		return nil, errors.New("secret: manager needs a backend")
	}
	m := &Manager{
		backend:   b,
		overwrite: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}

	var execOpts []resilience.ExecutorOption
	if m.breaker != nil {
		execOpts = append(execOpts, resilience.WithCircuitBreaker(m.breaker))
	}
	if m.timeout > 0 {
		execOpts = append(execOpts, resilience.WithTimeout(m.timeout))
	}
	m.exec = resilience.NewExecutor(execOpts...)
	m.cacheNS = "secret:" + b.Name()
	if m.logger == nil {
		m.logger = logging.NewNop()
	}
	return m, nil
}

// Backend returns the bound backend.
func (m *Manager) Backend() Backend {
	return m.backend
}

// Get returns the value of key.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", m.invalidKey("get")
	}
	if m.cache == nil {
		return m.lookup(ctx, key)
	}

	ck := cache.Key(m.cacheNS, key)
	if v, ok := m.cache.Get(ctx, ck); ok {
		return string(v), nil
	}
	// The shared lookup outlives any single caller; each caller still
	// leaves when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(ck, func() (any, error) {
		value, err := m.lookup(shared, key)
		if err != nil {
			return "", err
		}
		if cerr := m.cache.Set(shared, ck, []byte(value), m.cacheTTL); cerr != nil {
			m.logger.Debug("secret not cached", logging.Fields{"key": key, "error": cerr.Error()})
		}
		return value, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", Unavailable(m.backend.Name(), "get", key, ctx.Err())
	}
}

// Require is Get for values that must be present and non-empty. An empty
// value is reported as ErrNotFound.
func (m *Manager) Require(ctx context.Context, key string) (string, error) {
	v, err := m.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", NotFound(m.backend.Name(), key)
	}
	return v, nil
}

// Has reports whether key has a value. Unavailable backends return an
// error rather than false.
func (m *Manager) Has(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// Set stores value under key. The backend must implement Writer. A key
// that already holds a different value is only replaced when it was listed
// with WithAllowOverwrite.
func (m *Manager) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return m.invalidKey("set")
	}
	w, ok := m.backend.(Writer)
	if !ok {
		return &BackendError{Backend: m.backend.Name(), Op: "set", Key: key, Err: ErrReadOnly}
	}

	current, err := m.lookup(ctx, key)
	switch {
	case err == nil && current == value:
		return nil
	case err == nil && !m.overwrite[key]:
		return &BackendError{Backend: m.backend.Name(), Op: "set", Key: key, Err: ErrOverwriteDenied}
	case err != nil && !IsNotFound(err):
		return err
	}

	op := observe.Operation{Component: "secret", Name: "set", Target: m.backend.Name()}
	err = m.mw.Run(ctx, op, func(ctx context.Context) error {
		return m.exec.Execute(ctx, "", func(ctx context.Context) error {
			return w.Set(ctx, key, value)
		})
	})
	if m.cache != nil {
		_ = m.cache.Delete(ctx, cache.Key(m.cacheNS, key))
	}
	if err != nil {
		return m.classify("set", key, err)
	}
	m.logger.Debug("secret stored", logging.Fields{"backend": m.backend.Name(), "key": key})
	return nil
}

// All returns every secret of a listable backend.
func (m *Manager) All(ctx context.Context) (map[string]string, error) {
	l, ok := m.backend.(Lister)
	if !ok {
		return nil, &BackendError{Backend: m.backend.Name(), Op: "list", Err: ErrNotListable}
	}
	var out map[string]string
	op := observe.Operation{Component: "secret", Name: "list", Target: m.backend.Name()}
	err := m.mw.Run(ctx, op, func(ctx context.Context) error {
		return m.exec.Execute(ctx, "", func(ctx context.Context) error {
			values, err := l.All(ctx)
			if err != nil {
				return err
			}
			out = values
			return nil
		})
	})
	if err != nil {
		return nil, m.classify("list", "", err)
	}
	return out, nil
}

// HealthChecker reports the reachability of the backend. An open circuit
// is reported degraded; otherwise backends without Ping are healthy.
func (m *Manager) HealthChecker(name string) health.Checker {
	p, ok := m.backend.(Pinger)
	return health.Func(name, func(ctx context.Context) health.Result {
		if m.breaker != nil && m.breaker.State() == resilience.StateOpen {
			return health.Degraded(m.backend.Name()+" circuit open", resilience.ErrCircuitOpen)
		}
		if !ok {
			return health.Healthy(m.backend.Name() + " backend has no remote state")
		}
		err := m.exec.Execute(ctx, "", p.Ping)
		switch {
		case err == nil:
			return health.Healthy(m.backend.Name() + " reachable")
		case errors.Is(err, resilience.ErrCircuitOpen):
			return health.Degraded(m.backend.Name()+" circuit open", err)
		default:
			return health.Unhealthy(m.backend.Name()+" unreachable", m.classify("ping", "", err))
		}
	})
}

// Close closes the backend and drops cached values.
func (m *Manager) Close() error {
	if m.cache != nil {
		_ = m.cache.Clear(context.Background())
	}
	return m.backend.Close()
}

func (m *Manager) lookup(ctx context.Context, key string) (string, error) {
	var value string
	op := observe.Operation{Component: "secret", Name: "get", Target: m.backend.Name()}
	err := m.mw.Run(ctx, op, func(ctx context.Context) error {
		return m.exec.Execute(ctx, "", func(ctx context.Context) error {
			v, err := m.backend.Get(ctx, key)
			if err != nil {
				return err
			}
			value = v
			return nil
		})
	})
	if err != nil {
		err = m.classify("get", key, err)
		m.logger.Debug("secret lookup failed", logging.Fields{"backend": m.backend.Name(), "key": key, "error": err.Error()})
		return "", err
	}
	m.logger.Debug("secret loaded", logging.Fields{"backend": m.backend.Name(), "key": key})
	return value, nil
}

func (m *Manager) invalidKey(op string) error {
	return &BackendError{Backend: m.backend.Name(), Op: op, Err: ErrInvalidKey}
}

// classify maps any failure onto the error taxonomy of the package.
func (m *Manager) classify(op, key string, err error) error {
	var be *BackendError
	switch {
	case IsNotFound(err), IsUnavailable(err), errors.Is(err, ErrInvalidKey), errors.Is(err, ErrInvalidValue):
		if errors.As(err, &be) {
			return err
		}
		return &BackendError{Backend: m.backend.Name(), Op: op, Key: key, Err: err}
	default:
		return Unavailable(m.backend.Name(), op, key, err)
	}
}
