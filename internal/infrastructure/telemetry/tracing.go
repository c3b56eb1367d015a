package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of the service's own spans
const TracerName = "github.com/meschain/marketsync"

// StartSpan starts an internal span
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartMarketplaceSpan starts a client span around one marketplace call
func StartMarketplaceSpan(ctx context.Context, marketplace, endpointClass, operation string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "marketplace."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrMarketplace.String(marketplace),
			AttrEndpointClass.String(endpointClass),
			AttrOperation.String(operation),
		),
	)
}

// StartJobSpan starts the root span of one sync job attempt
func StartJobSpan(ctx context.Context, marketplace, jobType string, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "sync."+jobType,
		trace.WithAttributes(
			AttrMarketplace.String(marketplace),
			AttrJobType.String(jobType),
			attribute.Int("job.attempt", attempt),
		),
	)
}

// EndSpan sets the span status from err and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TraceID returns the trace ID of the span in ctx, empty if none
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
