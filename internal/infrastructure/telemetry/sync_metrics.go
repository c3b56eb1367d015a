package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SyncMetrics records measured marketplace sync metrics: real call
// latencies, real error counts, limiter waits, job outcomes and webhook
// receipts. All methods are safe on a nil receiver so components can run
// without metrics.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics
	apiCallsTotal     *Counter
	apiErrorsTotal    *Counter
	limiterTimeouts   *Counter
	jobsTotal         *Counter
	itemsTotal        *Counter
	webhooksTotal     *Counter
	auditRecordsTotal *Counter
	conflictsTotal    *Counter

	// Histogram metrics
	apiCallDuration *Histogram
	limiterWait     *Histogram
	jobDuration     *Histogram

	// Gauge metrics
	queueDepth  *Gauge
	linkStatus  *Gauge
	haltedCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	linkProvider LinkStatusProvider
}

// LinkStatusProvider provides marketplace link counts for periodic collection.
// It lets the telemetry layer read catalog state without depending on the
// persistence layer.
type LinkStatusProvider interface {
	// CountAllLinksByStatus returns link counts keyed by marketplace, then status
	CountAllLinksByStatus(ctx context.Context) (map[string]map[string]int64, error)
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter        metric.Meter
	Logger       *zap.Logger
	LinkProvider LinkStatusProvider
}

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{
		meter:        cfg.Meter,
		logger:       logger,
		stopChan:     make(chan struct{}),
		linkProvider: cfg.LinkProvider,
	}

	in := NewInstruments(cfg.Meter)

	sm.apiCallsTotal = in.Counter("msync_marketplace_api_calls_total", "Marketplace API calls issued", "{calls}")
	sm.apiErrorsTotal = in.Counter("msync_marketplace_api_errors_total", "Marketplace API calls that failed, by error kind", "{calls}")
	sm.limiterTimeouts = in.Counter("msync_rate_limit_timeouts_total", "Token acquisitions that timed out", "{acquisitions}")
	sm.jobsTotal = in.Counter("msync_sync_jobs_total", "Sync job attempts by final state", "{jobs}")
	sm.itemsTotal = in.Counter("msync_sync_items_total", "Items processed by sync jobs, by outcome", "{items}")
	sm.webhooksTotal = in.Counter("msync_webhooks_total", "Inbound webhook deliveries by outcome", "{deliveries}")
	sm.auditRecordsTotal = in.Counter("msync_audit_records_total", "Audit records appended by outcome", "{records}")
	sm.conflictsTotal = in.Counter("msync_reconcile_conflicts_total", "Fields changed on both sides since the last sync", "{fields}")

	sm.apiCallDuration = in.Histogram("msync_marketplace_api_call_duration_seconds", "Marketplace API call latency", "s", HTTPDurationBuckets)
	sm.limiterWait = in.Histogram("msync_rate_limit_wait_seconds", "Time spent waiting for a rate limit token", "s", LimiterWaitBuckets)
	sm.jobDuration = in.Histogram("msync_sync_job_duration_seconds", "Sync job attempt duration", "s", JobDurationBuckets)

	sm.queueDepth = in.Gauge("msync_orchestrator_queue_depth", "Queued sync jobs per marketplace", "{jobs}")
	sm.linkStatus = in.Gauge("msync_marketplace_links", "Marketplace links per sync status", "{links}")
	sm.haltedCount = in.Gauge("msync_marketplaces_halted", "Marketplaces halted after an authentication failure", "{marketplaces}")

	if err := in.Err(); err != nil {
		return nil, err
	}
	return sm, nil
}

// =============================================================================
// Marketplace API metrics
// =============================================================================

// RecordAPICall records one marketplace HTTP call. errorKind is empty on success.
func (sm *SyncMetrics) RecordAPICall(ctx context.Context, marketplace, endpointClass, operation string, d time.Duration, statusCode int, errorKind string) {
	if sm == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrMarketplace.String(marketplace),
		AttrEndpointClass.String(endpointClass),
		AttrOperation.String(operation),
	}
	sm.apiCallsTotal.Inc(ctx, attrs...)
	sm.apiCallDuration.Seconds(ctx, d, append(attrs, AttrHTTPStatusCode.Int(statusCode))...)
	if errorKind != "" {
		sm.apiErrorsTotal.Inc(ctx, append(attrs, AttrErrorKind.String(errorKind))...)
	}
}

// RecordLimiterWait records the wait for a rate limit token
func (sm *SyncMetrics) RecordLimiterWait(ctx context.Context, marketplace, endpointClass string, wait time.Duration, timedOut bool) {
	if sm == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrMarketplace.String(marketplace),
		AttrEndpointClass.String(endpointClass),
	}
	sm.limiterWait.Seconds(ctx, wait, attrs...)
	if timedOut {
		sm.limiterTimeouts.Inc(ctx, attrs...)
	}
}

// =============================================================================
// Job metrics
// =============================================================================

// RecordJob records the end of one job attempt
func (sm *SyncMetrics) RecordJob(ctx context.Context, marketplace, jobType, state string, d time.Duration) {
	if sm == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrMarketplace.String(marketplace),
		AttrJobType.String(jobType),
		AttrJobState.String(state),
	}
	sm.jobsTotal.Inc(ctx, attrs...)
	sm.jobDuration.Seconds(ctx, d, attrs...)
}

// RecordItems records per-item outcomes of a job attempt
func (sm *SyncMetrics) RecordItems(ctx context.Context, marketplace, jobType string, succeeded, failed, skipped, conflicts int) {
	if sm == nil {
		return
	}
	base := []attribute.KeyValue{AttrMarketplace.String(marketplace), AttrJobType.String(jobType)}
	for outcome, n := range map[string]int{"succeeded": succeeded, "failed": failed, "skipped": skipped} {
		if n > 0 {
			sm.itemsTotal.Add(ctx, int64(n), append(base, AttrOutcome.String(outcome))...)
		}
	}
	if conflicts > 0 {
		sm.conflictsTotal.Add(ctx, int64(conflicts), base...)
	}
}

// RecordQueueDepth records the number of queued jobs of a marketplace
func (sm *SyncMetrics) RecordQueueDepth(ctx context.Context, marketplace string, depth int) {
	if sm == nil {
		return
	}
	sm.queueDepth.Set(ctx, int64(depth), AttrMarketplace.String(marketplace))
}

// RecordHalted records the number of halted marketplaces
func (sm *SyncMetrics) RecordHalted(ctx context.Context, count int) {
	if sm == nil {
		return
	}
	sm.haltedCount.Set(ctx, int64(count))
}

// =============================================================================
// Webhook and audit metrics
// =============================================================================

// RecordWebhook records an inbound webhook delivery outcome
func (sm *SyncMetrics) RecordWebhook(ctx context.Context, marketplace, outcome string) {
	if sm == nil {
		return
	}
	sm.webhooksTotal.Inc(ctx, AttrMarketplace.String(marketplace), AttrOutcome.String(outcome))
}

// RecordAudit records an appended audit record
func (sm *SyncMetrics) RecordAudit(ctx context.Context, marketplace, outcome string) {
	if sm == nil {
		return
	}
	sm.auditRecordsTotal.Inc(ctx, AttrMarketplace.String(marketplace), AttrOutcome.String(outcome))
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of link status gauges
// (default every 5 minutes). Non-blocking; use Stop to end it.
func (sm *SyncMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if sm == nil {
		return
	}
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go sm.runPeriodicCollection(ctx, interval)
	})
}

func (sm *SyncMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sm.collectLinkMetrics(ctx)

	for {
		select {
		case <-sm.stopChan:
			sm.logger.Info("Stopping periodic sync metrics collection")
			return
		case <-ctx.Done():
			sm.logger.Info("Context cancelled, stopping periodic sync metrics collection")
			return
		case <-ticker.C:
			sm.collectLinkMetrics(ctx)
		}
	}
}

func (sm *SyncMetrics) collectLinkMetrics(ctx context.Context) {
	if sm.linkProvider == nil {
		sm.logger.Debug("No link provider configured, skipping link metrics collection")
		return
	}
	counts, err := sm.linkProvider.CountAllLinksByStatus(ctx)
	if err != nil {
		sm.logger.Warn("Failed to count marketplace links", zap.Error(err))
		return
	}
	for marketplace, byStatus := range counts {
		for status, n := range byStatus {
			sm.linkStatus.Set(ctx, n,
				AttrMarketplace.String(marketplace),
				AttrSyncStatus.String(status),
			)
		}
	}
}

// Stop stops the periodic collection.
func (sm *SyncMetrics) Stop() {
	if sm == nil {
		return
	}
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// ErrMeterNil is returned by NewSyncMetrics without a meter
var ErrMeterNil = errors.New("telemetry: sync metrics need a meter")
