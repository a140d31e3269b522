package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Tracer starts and ends spans around boot stages, recording stage latency.
type Tracer interface {
	Start(ctx context.Context, stage string, options ...trace.SpanStartOption) (context.Context, trace.Span)
	End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption)
}
