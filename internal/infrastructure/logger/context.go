package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
)

// WithContext stores logger in ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, enriched with the active
// trace and span IDs. It never returns nil.
func FromContext(ctx context.Context) *zap.Logger {
	return fromContextOr(ctx, zap.L())
}

func fromContextOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok || logger == nil {
		logger = fallback
	}
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		logger = logger.With(
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	return logger
}

// WithRequestID stores a request ID and a logger carrying it
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	l := logger.With(zap.String("request_id", requestID))
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return WithContext(ctx, l), l
}

// RequestID returns the request ID stored in ctx
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithSyncJob stores a logger scoped to one sync job attempt
func WithSyncJob(ctx context.Context, logger *zap.Logger, jobID, marketplace, jobType string, attempt int) (context.Context, *zap.Logger) {
	l := logger.With(
		zap.String("job_id", jobID),
		zap.String("marketplace", marketplace),
		zap.String("job_type", jobType),
		zap.Int("attempt", attempt),
	)
	return WithContext(ctx, l), l
}
