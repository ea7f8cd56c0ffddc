package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation identifies one kind of external call.
type Operation struct {
	// Component is the package making the call: "secret", "chat", "sheets".
	Component string
	// Name is the call: "get", "send", "values".
	Name string
	// Target is the backend, space or spreadsheet involved. It must not
	// contain secret material.
	Target string
}

// SpanName returns "smrkit.<component>.<name>".
func (o Operation) SpanName() string {
	return "smrkit." + o.Component + "." + o.Name
}

func (o Operation) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("smrkit.component", o.Component),
		attribute.String("smrkit.operation", o.Name),
	}
	if o.Target != "" {
		attrs = append(attrs, attribute.String("smrkit.target", o.Target))
	}
	return attrs
}

// Tracer starts and ends spans for operations.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - EndSpan is best effort and never panics.
type Tracer interface {
	StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)
}

type tracer struct {
	t trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracer{t: t}
}

func (t *tracer) StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span) {
	kind := trace.SpanKindClient
	if op.Component == "" {
		kind = trace.SpanKindInternal
	}
	return t.t.Start(ctx, op.SpanName(),
		trace.WithAttributes(op.attributes()...),
		trace.WithSpanKind(kind),
	)
}

func (t *tracer) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
