package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/telemetry"
)

// Audited operations
const (
	OpProductUpsert     = "product.upsert"
	OpProductStockPrice = "product.stock_price"
	OpProductReconcile  = "product.reconcile"
	OpCategoryMap       = "category.map"
	OpOrderApply        = "order.apply"
	OpOrderPoll         = "order.poll"
	OpOrderStatusPush   = "order.status_push"
	OpWebhookReceive    = "webhook.receive"
	OpJobRun            = "job.run"
	OpConnectionTest    = "connection.test"
)

// Audited entity types
const (
	EntityProduct  = "product"
	EntityCategory = "category"
	EntityOrder    = "order"
	EntityWebhook  = "webhook"
	EntityJob      = "job"
)

// AuditEntry is one sync attempt to be audited
type AuditEntry struct {
	Marketplace integration.MarketplaceCode
	Operation   string
	EntityType  string
	EntityID    string
	Outcome     integration.AuditOutcome
	Err         error
	// Detail overrides the error text, used for conflicts
	Detail string
	// Payload is digested, never stored
	Payload  []byte
	Duration time.Duration
	// JobID defaults to the job carried by ctx
	JobID *uuid.UUID
}

type jobIDKey struct{}

// ContextWithJobID attaches the running job to ctx so audit entries are correlated
func ContextWithJobID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, jobIDKey{}, id)
}

// JobIDFromContext returns the job attached by ContextWithJobID
func JobIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(jobIDKey{}).(uuid.UUID)
	return id, ok
}

// AuditSink appends audit records, logs them and counts them.
// A failing repository is logged and never surfaces to the sync path.
type AuditSink struct {
	repo    integration.AuditRepository
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
}

// NewAuditSink creates an audit sink
func NewAuditSink(repo integration.AuditRepository, metrics *telemetry.SyncMetrics, logger *zap.Logger) *AuditSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditSink{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
	}
}

// Record appends one audit record
func (s *AuditSink) Record(ctx context.Context, entry AuditEntry) {
	record := integration.NewAuditRecord(entry.Marketplace, entry.Operation, entry.Outcome, entry.Err)
	record.EntityType = entry.EntityType
	record.EntityID = entry.EntityID
	record.PayloadDigest = integration.PayloadDigest(entry.Payload)
	record.DurationMs = entry.Duration.Milliseconds()
	if entry.Detail != "" {
		record.ErrorDetail = entry.Detail
	}
	if entry.JobID != nil {
		record.JobID = entry.JobID
	} else if id, ok := JobIDFromContext(ctx); ok {
		record.JobID = &id
	}

	// a cancelled sync must still leave its trail
	writeCtx := context.WithoutCancel(ctx)
	if err := s.repo.Append(writeCtx, record); err != nil {
		s.logger.Error("Failed to append audit record",
			zap.String("marketplace", string(record.Marketplace)),
			zap.String("operation", record.Operation),
			zap.String("entity_id", record.EntityID),
			zap.Error(err),
		)
	}
	s.metrics.RecordAudit(ctx, string(record.Marketplace), string(record.Outcome))
	s.log(record)
}

func (s *AuditSink) log(record *integration.AuditRecord) {
	fields := []zap.Field{
		zap.String("marketplace", string(record.Marketplace)),
		zap.String("operation", record.Operation),
		zap.String("entity_type", record.EntityType),
		zap.String("entity_id", record.EntityID),
		zap.String("outcome", string(record.Outcome)),
	}
	if record.ErrorKind != integration.ErrorKindNone {
		fields = append(fields, zap.String("error_kind", record.ErrorKind.String()))
	}
	if record.ErrorDetail != "" {
		fields = append(fields, zap.String("detail", record.ErrorDetail))
	}
	if record.JobID != nil {
		fields = append(fields, zap.String("job_id", record.JobID.String()))
	}

	if ce := s.logger.Check(auditLevel(record.Outcome), "Sync audit"); ce != nil {
		ce.Write(fields...)
	}
}

func auditLevel(outcome integration.AuditOutcome) zapcore.Level {
	switch outcome {
	case integration.AuditOutcomeFailure:
		return zapcore.ErrorLevel
	case integration.AuditOutcomeRejected, integration.AuditOutcomeConflict:
		return zapcore.WarnLevel
	case integration.AuditOutcomeSkipped:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// RecordJob audits a finished sync job
func (s *AuditSink) RecordJob(ctx context.Context, job *integration.SyncJob) {
	outcome := integration.AuditOutcomeSuccess
	var err error
	switch job.State {
	case integration.JobStateFailedPermanent:
		outcome = integration.AuditOutcomeFailure
	case integration.JobStateCancelled:
		outcome = integration.AuditOutcomeSkipped
	}
	if job.LastError != "" && outcome != integration.AuditOutcomeSuccess {
		err = jobError{kind: job.LastErrorKind, msg: job.LastError}
	}
	id := job.ID
	s.Record(ctx, AuditEntry{
		Marketplace: job.Marketplace,
		Operation:   OpJobRun,
		EntityType:  EntityJob,
		EntityID:    string(job.JobType),
		Outcome:     outcome,
		Err:         err,
		Duration:    job.Duration(),
		JobID:       &id,
	})
}

// jobError replays a recorded job failure so it classifies to its original kind
type jobError struct {
	kind integration.ErrorKind
	msg  string
}

func (e jobError) Error() string { return e.msg }

func (e jobError) Unwrap() error {
	return sentinelFor(e.kind)
}

func sentinelFor(kind integration.ErrorKind) error {
	switch kind {
	case integration.ErrorKindAuth:
		return integration.ErrAuth
	case integration.ErrorKindValidation:
		return integration.ErrValidation
	case integration.ErrorKindRateLimit:
		return integration.ErrRateLimited
	case integration.ErrorKindRateLimitTimeout:
		return integration.ErrRateLimitTimeout
	case integration.ErrorKindTransientNetwork:
		return integration.ErrTransientNetwork
	case integration.ErrorKindConflict:
		return integration.ErrConflict
	case integration.ErrorKindSecurity:
		return integration.ErrSecurity
	case integration.ErrorKindMappingUnresolved:
		return integration.ErrMappingUnresolved
	case integration.ErrorKindNotFound:
		return integration.ErrNotFound
	case integration.ErrorKindCancelled:
		return context.Canceled
	}
	return nil
}
