package observe

import (
	"context"
	"time"

	"github.com/shimarch/smrkit/logging"
)

// Middleware wraps operations with a span, metrics and a debug record.
//
// Contract:
//   - Concurrency: Run may be called concurrently.
//   - Errors from the wrapped function are returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  logging.Logger
}

// NewMiddleware builds a Middleware. A nil logger disables logging.
func NewMiddleware(tracer Tracer, metrics Metrics, logger logging.Logger) *Middleware {
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// MiddlewareFromObserver builds a Middleware over obs.
func MiddlewareFromObserver(obs Observer, logger logging.Logger) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	m, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), m, logger), nil
}

// Run executes fn as op.
func (m *Middleware) Run(ctx context.Context, op Operation, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}
	ctx, span := m.tracer.StartSpan(ctx, op)
	start := time.Now()

	err := fn(ctx)

	d := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordOperation(ctx, op, d, err)

	if m.logger != nil {
		fields := logging.Fields{
			"operation":   op.SpanName(),
			"duration_ms": d.Milliseconds(),
		}
		if op.Target != "" {
			fields["target"] = op.Target
		}
		if err != nil {
			fields["error"] = err.Error()
			m.logger.Debug("operation failed", fields)
		} else {
			m.logger.Debug("operation completed", fields)
		}
	}
	return err
}

// Wrap returns fn instrumented as op.
func (m *Middleware) Wrap(op Operation, fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return m.Run(ctx, op, fn)
	}
}
