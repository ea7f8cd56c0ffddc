package observe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/shimarch/smrkit/observe/exporters"
)

// Config configures an Observer.
type Config struct {
	ServiceName string        `koanf:"service_name"`
	Version     string        `koanf:"version"`
	Tracing     TracingConfig `koanf:"tracing"`
	Metrics     MetricsConfig `koanf:"metrics"`
}

// TracingConfig configures tracing.
type TracingConfig struct {
	Enabled   bool    `koanf:"enabled"`
	Exporter  string  `koanf:"exporter"`   // otlp|stdout|none
	SamplePct float64 `koanf:"sample_pct"` // 0.0-1.0
}

// MetricsConfig configures metrics.
type MetricsConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Exporter string `koanf:"exporter"` // otlp|prometheus|stdout|none
}

// DefaultConfig has telemetry disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName: "smrkit",
		Tracing:     TracingConfig{Exporter: exporters.None, SamplePct: 1},
		Metrics:     MetricsConfig{Exporter: exporters.None},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case exporters.OTLP, exporters.Stdout, exporters.None, "":
		default:
			return fmt.Errorf("%w: %q", ErrInvalidTracingExporter, c.Tracing.Exporter)
		}
		if c.Tracing.SamplePct < 0 || c.Tracing.SamplePct > 1 {
			return fmt.Errorf("%w: %v", ErrInvalidSamplePct, c.Tracing.SamplePct)
		}
	}
	if c.Metrics.Enabled {
		switch c.Metrics.Exporter {
		case exporters.OTLP, exporters.Prometheus, exporters.Stdout, exporters.None, "":
		default:
			return fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, c.Metrics.Exporter)
		}
	}
	return nil
}

// Observer gives access to the configured tracer and meter.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Shutdown flushes exporters, honours ctx and may be called more than once.
type Observer interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
	Shutdown(ctx context.Context) error
}

type observer struct {
	tracer trace.Tracer
	meter  metric.Meter
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures NewObserver.
type Option func(*observerOptions)

type observerOptions struct {
	writer io.Writer
	reader sdkmetric.Reader
	spans  sdktrace.SpanExporter
}

// WithWriter directs stdout exporters to w.
func WithWriter(w io.Writer) Option {
	return func(o *observerOptions) { o.writer = w }
}

// WithMetricReader replaces the configured metric exporter with reader.
func WithMetricReader(reader sdkmetric.Reader) Option {
	return func(o *observerOptions) { o.reader = reader }
}

// WithSpanExporter replaces the configured span exporter with exp. Spans
// are exported synchronously.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *observerOptions) { o.spans = exp }
}

// NewObserver builds tracer and meter providers from cfg. Disabled signals
// use no-op implementations. The providers are not installed globally.
func NewObserver(ctx context.Context, cfg Config, opts ...Option) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o observerOptions
	for _, opt := range opts {
		opt(&o)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: create resource: %w", err)
	}

	obs := &observer{
		tracer: tracenoop.NewTracerProvider().Tracer(cfg.ServiceName),
		meter:  metricnoop.NewMeterProvider().Meter(cfg.ServiceName),
	}

	if cfg.Tracing.Enabled {
		tpOpts := []sdktrace.TracerProviderOption{
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler(cfg.Tracing.SamplePct)),
		}
		if o.spans != nil {
			tpOpts = append(tpOpts, sdktrace.WithSyncer(o.spans))
		} else {
			exp, err := exporters.NewTracingExporter(ctx, cfg.Tracing.Exporter, exporters.Options{Writer: o.writer})
			if err != nil {
				return nil, err
			}
			if exp != nil {
				tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
			}
		}
		obs.tp = sdktrace.NewTracerProvider(tpOpts...)
		obs.tracer = obs.tp.Tracer(cfg.ServiceName)
	}

	if cfg.Metrics.Enabled {
		reader := o.reader
		if reader == nil {
			reader, err = exporters.NewMetricsReader(ctx, cfg.Metrics.Exporter, exporters.Options{Writer: o.writer})
			if err != nil {
				return nil, err
			}
		}
		mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
		if reader != nil {
			mpOpts = append(mpOpts, sdkmetric.WithReader(reader))
		}
		obs.mp = sdkmetric.NewMeterProvider(mpOpts...)
		obs.meter = obs.mp.Meter(cfg.ServiceName)
	}

	return obs, nil
}

// NewNoop returns an Observer that records nothing.
func NewNoop() Observer {
	return &observer{
		tracer: tracenoop.NewTracerProvider().Tracer("smrkit"),
		meter:  metricnoop.NewMeterProvider().Meter("smrkit"),
	}
}

func sampler(pct float64) sdktrace.Sampler {
	switch {
	case pct >= 1:
		return sdktrace.AlwaysSample()
	case pct <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(pct)
	}
}

func (o *observer) Tracer() trace.Tracer { return o.tracer }
func (o *observer) Meter() metric.Meter  { return o.meter }

func (o *observer) Shutdown(ctx context.Context) error {
	o.shutdownOnce.Do(func() {
		var errs []error
		if o.tp != nil {
			if err := o.tp.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("observe: tracer shutdown: %w", err))
			}
		}
		if o.mp != nil {
			if err := o.mp.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("observe: meter shutdown: %w", err))
			}
		}
		o.shutdownErr = errors.Join(errs...)
	})
	return o.shutdownErr
}
