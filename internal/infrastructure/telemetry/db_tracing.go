package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig configures query tracing
type DBTracingConfig struct {
	// DBName is reported as the db.name span attribute
	DBName string
	// LogFullSQL keeps bound query variables in spans and slow query logs
	LogFullSQL bool
	// SlowQueryThreshold marks queries slower than this, 0 disables the check
	SlowQueryThreshold time.Duration
}

type queryStartKey struct{}

// InstrumentDB registers otelgorm and a slow query detector on db
func InstrumentDB(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if cfg.SlowQueryThreshold <= 0 {
		return nil
	}

	start := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	finish := func(tx *gorm.DB) {
		observeQuery(tx, cfg, logger)
	}

	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("marketsync:query_start_create", start),
		cb.Create().After("gorm:create").Register("marketsync:query_end_create", finish),
		cb.Query().Before("gorm:query").Register("marketsync:query_start_query", start),
		cb.Query().After("gorm:query").Register("marketsync:query_end_query", finish),
		cb.Update().Before("gorm:update").Register("marketsync:query_start_update", start),
		cb.Update().After("gorm:update").Register("marketsync:query_end_update", finish),
		cb.Delete().Before("gorm:delete").Register("marketsync:query_start_delete", start),
		cb.Delete().After("gorm:delete").Register("marketsync:query_end_delete", finish),
		cb.Raw().Before("gorm:raw").Register("marketsync:query_start_raw", start),
		cb.Raw().After("gorm:raw").Register("marketsync:query_end_raw", finish),
	)
}

func observeQuery(tx *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	began, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(began)
	if elapsed < cfg.SlowQueryThreshold {
		return
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Bool("db.slow_query", true))
	span.AddEvent("slow_query", trace.WithAttributes(attribute.Int64("db.duration_ms", elapsed.Milliseconds())))

	fields := []zap.Field{
		zap.String("table", tx.Statement.Table),
		zap.Duration("duration", elapsed),
		zap.Duration("threshold", cfg.SlowQueryThreshold),
		zap.Int64("rows_affected", tx.RowsAffected),
	}
	if cfg.LogFullSQL {
		fields = append(fields, zap.String("sql", tx.Statement.SQL.String()))
	}
	if id := TraceID(ctx); id != "" {
		fields = append(fields, zap.String("trace_id", id))
	}
	logger.Warn("Slow query detected", fields...)
}
