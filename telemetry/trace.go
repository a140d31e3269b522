package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to boot spans and measurements.
var (
	AttrStageKey   = attribute.Key("boot_stage")
	AttrPackageKey = attribute.Key("boot_package")
	AttrStatusKey  = attribute.Key("boot_status")
	AttrErrorKey   = attribute.Key("boot_error")
	AttrCodeKey    = attribute.Key("boot_failure_code")
)

type contextKey string

const (
	startTimeContextKey contextKey = "stageStartTimeCtxKey"
	stageContextKey     contextKey = "stageNameCtxKey"
)

type tracer struct {
	name           string
	tracer         trace.Tracer
	latencyMeasure metric.Float64Histogram
}

// NewTracer creates a tracer whose stage latencies land in the name/latency histogram.
func NewTracer(name string, options ...trace.TracerOption) Tracer {
	return &tracer{
		name:           name,
		tracer:         otel.Tracer(name, options...),
		latencyMeasure: LatencyMeasure(name),
	}
}

// Start opens a span for stage. The caller must pass the returned context to End.
func (t *tracer) Start(
	ctx context.Context,
	stage string,
	options ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	options = append(options, trace.WithAttributes(AttrStageKey.String(stage)))

	sCtx, span := t.tracer.Start(ctx, t.name+"/"+stage, options...)
	sCtx = context.WithValue(sCtx, startTimeContextKey, time.Now())
	return context.WithValue(sCtx, stageContextKey, stage), span
}

// End closes span, marking it failed when err is set, and records the latency.
func (t *tracer) End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption) {
	if err != nil {
		options = append(options, trace.WithStackTrace(true))
		span.SetAttributes(AttrErrorKey.String(err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(options...)

	startTime, ok := ctx.Value(startTimeContextKey).(time.Time)
	if !ok {
		util.Log(ctx).Warn("stage ended without a start time")
		return
	}
	stage, _ := ctx.Value(stageContextKey).(string)

	t.latencyMeasure.Record(ctx,
		float64(time.Since(startTime).Milliseconds()),
		metric.WithAttributes(
			AttrStatusKey.String(ErrorCode(err)),
			AttrStageKey.String(stage)),
	)
}

func ErrorCode(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "deadline exceeded"
	}
	return "err"
}
