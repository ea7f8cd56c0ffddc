package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricOperations = "smrkit.operation.total"
	MetricErrors     = "smrkit.operation.errors"
	MetricDuration   = "smrkit.operation.duration_ms"
)

// Metrics records operation outcomes.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - RecordOperation returns quickly and never panics.
type Metrics interface {
	RecordOperation(ctx context.Context, op Operation, d time.Duration, err error)
}

type metrics struct {
	total    metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates the operation instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	total, err := meter.Int64Counter(MetricOperations,
		metric.WithDescription("Number of external operations"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter(MetricErrors,
		metric.WithDescription("Number of failed external operations"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Duration of external operations"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &metrics{total: total, errors: errs, duration: duration}, nil
}

func (m *metrics) RecordOperation(ctx context.Context, op Operation, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(append(op.attributes(), attribute.String("smrkit.outcome", outcome))...)

	m.total.Add(ctx, 1, attrs)
	if err != nil {
		m.errors.Add(ctx, 1, attrs)
	}
	m.duration.Record(ctx, float64(d.Microseconds())/1000, attrs)
}
