package exporters

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestNewTracingExporter(t *testing.T) {
	var buf bytes.Buffer
	exp, err := NewTracingExporter(context.Background(), Stdout, Options{Writer: &buf})
	if err != nil || exp == nil {
		t.Fatalf("stdout exporter = %v, %v", exp, err)
	}

	for _, name := range []string{None, ""} {
		exp, err := NewTracingExporter(context.Background(), name, Options{})
		if err != nil || exp != nil {
			t.Errorf("%q exporter = %v, %v; want nil, nil", name, exp, err)
		}
	}

	if _, err := NewTracingExporter(context.Background(), "jaeger", Options{}); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("unknown exporter error = %v, want ErrUnknownExporter", err)
	}
}

func TestNewTracingExporter_OTLPNeedsEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	if _, err := NewTracingExporter(context.Background(), OTLP, Options{}); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("otlp error = %v, want ErrEndpointNotConfigured", err)
	}
}

func TestNewMetricsReader(t *testing.T) {
	for _, name := range []string{Stdout, Prometheus} {
		reader, err := NewMetricsReader(context.Background(), name, Options{Writer: &bytes.Buffer{}})
		if err != nil || reader == nil {
			t.Errorf("%q reader = %v, %v", name, reader, err)
		}
	}

	reader, err := NewMetricsReader(context.Background(), None, Options{})
	if err != nil || reader != nil {
		t.Errorf("none reader = %v, %v; want nil, nil", reader, err)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	if _, err := NewMetricsReader(context.Background(), OTLP, Options{}); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("otlp error = %v, want ErrEndpointNotConfigured", err)
	}
}
