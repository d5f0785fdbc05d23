package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartRunSpan starts the root span covering every trial of a run.
func StartRunSpan(ctx context.Context, tracer trace.Tracer, runID string, command []string, warmup, measured int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "ttfr run")
	span.SetAttributes(
		attribute.String("ttfr.run_id", runID),
		attribute.StringSlice("process.command_args", command),
		attribute.Int("ttfr.warmup", warmup),
		attribute.Int("ttfr.measured", measured),
	)
	return ctx, span
}

// StartTrialSpan starts a span for one launch-probe-teardown trial.
func StartTrialSpan(ctx context.Context, tracer trace.Tracer, index int, warmup bool) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "ttfr trial")
	span.SetAttributes(
		attribute.Int("ttfr.trial.index", index),
		attribute.Bool("ttfr.trial.warmup", warmup),
	)
	return ctx, span
}

// StartProbeSpan starts a client span for a single readiness probe.
func StartProbeSpan(ctx context.Context, tracer trace.Tracer, target string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "http probe",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("http.request.method", http.MethodGet),
		attribute.String("url.full", target),
	)
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
