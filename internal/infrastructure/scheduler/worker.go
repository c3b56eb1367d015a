package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/telemetry"
)

// Webhook event outcomes reported to metrics
const (
	eventOutcomeApplied = "applied"
	eventOutcomeFailed  = "failed"
	eventOutcomeDropped = "dropped"
)

// maxEventTries bounds in-process retries of one webhook event
const maxEventTries = 3

// jobWorker processes jobs from the marketplace queue
func (o *Orchestrator) jobWorker(ctx context.Context, pool *marketplacePool, workerID int) {
	defer o.wg.Done()

	logger := o.logger.With(
		zap.String("marketplace", string(pool.marketplace)),
		zap.Int("worker_id", workerID),
	)
	logger.Debug("Sync worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Sync worker stopping")
			return
		case job := <-pool.jobs:
			o.processJob(ctx, pool, job, logger)
		}
	}
}

// processJob runs one attempt of a job
func (o *Orchestrator) processJob(ctx context.Context, pool *marketplacePool, job *integration.SyncJob, logger *zap.Logger) {
	o.mu.Lock()
	if o.jobs[job.ID] != job || job.State != integration.JobStateQueued {
		// cancelled while queued
		o.mu.Unlock()
		return
	}
	if _, halted := o.halted[job.Marketplace]; halted {
		job.Cancel()
		finished := o.finishLocked(job)
		o.mu.Unlock()
		o.afterFinish(finished)
		return
	}
	if err := job.Start(); err != nil {
		o.mu.Unlock()
		logger.Error("Failed to start sync job", zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}
	attemptCtx, cancel := context.WithTimeout(ctx, o.config.JobTimeout)
	o.inflight[job.ID] = cancel
	snapshot := *job
	o.mu.Unlock()

	o.metrics.RecordQueueDepth(ctx, string(pool.marketplace), len(pool.jobs))
	jobLogger := logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.JobType)),
		zap.Int("attempt", snapshot.Attempt),
	)
	jobLogger.Info("Sync job started", zap.String("trigger", snapshot.Trigger))

	result, err := o.execute(attemptCtx, &snapshot)
	cancel()

	o.mu.Lock()
	delete(o.inflight, job.ID)
	if err != nil && ctx.Err() != nil {
		// orchestrator is stopping
		job.CancelRequested = true
	}

	if err == nil {
		if cerr := job.Complete(result); cerr != nil {
			jobLogger.Error("Failed to complete sync job", zap.Error(cerr))
		}
		finished := o.finishLocked(job)
		o.mu.Unlock()

		o.completed.Inc()
		o.metrics.RecordItems(ctx, string(job.Marketplace), string(job.JobType),
			result.Succeeded, result.Failed, result.Skipped, result.Conflicts)
		jobLogger.Info("Sync job completed",
			zap.Duration("duration", finished.Duration()),
			zap.Int("processed", result.Processed),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
			zap.Int("conflicts", result.Conflicts),
		)
		o.afterFinish(finished)
		return
	}

	retry, ferr := job.Fail(err, result)
	if ferr != nil {
		jobLogger.Error("Failed to record sync job failure", zap.Error(ferr))
	}
	if retry {
		delay := o.retryDelay(job.Attempt, err)
		if serr := job.ScheduleRetry(delay); serr == nil {
			o.timers[job.ID] = time.AfterFunc(delay, func() { o.requeue(pool, job) })
			o.mu.Unlock()

			o.retried.Inc()
			jobLogger.Warn("Sync job failed, retry scheduled",
				zap.Duration("retry_in", delay),
				zap.String("error_kind", integration.Classify(err).String()),
				zap.Error(err),
			)
			return
		}
	}
	finished := o.finishLocked(job)
	o.mu.Unlock()

	if finished.State == integration.JobStateCancelled {
		jobLogger.Info("Sync job cancelled while running")
	} else {
		o.failed.Inc()
		jobLogger.Error("Sync job failed permanently",
			zap.String("error_kind", finished.LastErrorKind.String()),
			zap.Error(err),
		)
	}
	o.metrics.RecordItems(ctx, string(job.Marketplace), string(job.JobType),
		result.Succeeded, result.Failed, result.Skipped, result.Conflicts)
	o.afterFinish(finished)

	if isHaltError(err) {
		o.halt(job.Marketplace, err)
	}
}

// execute runs the executor inside a job span with profiler labels
func (o *Orchestrator) execute(ctx context.Context, job *integration.SyncJob) (result integration.SyncResult, err error) {
	ctx, span := telemetry.StartJobSpan(ctx, string(job.Marketplace), string(job.JobType), job.Attempt)
	defer func() { telemetry.EndSpan(span, err) }()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync job panicked: %v", r)
		}
	}()

	telemetry.WithSyncLabels(ctx, string(job.Marketplace), string(job.JobType), func(ctx context.Context) {
		result, err = o.executor.Execute(ctx, job)
	})
	return result, err
}

// requeue puts a job whose retry delay elapsed back on its queue
func (o *Orchestrator) requeue(pool *marketplacePool, job *integration.SyncJob) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.timers, job.ID)
	if !o.running.Load() || o.jobs[job.ID] != job || job.State != integration.JobStateQueued {
		return
	}
	select {
	case pool.jobs <- job:
	default:
		o.logger.Warn("Job queue full, delaying retry",
			zap.String("job_id", job.ID.String()),
			zap.String("marketplace", string(pool.marketplace)),
		)
		o.timers[job.ID] = time.AfterFunc(o.config.RetryInitialInterval, func() { o.requeue(pool, job) })
	}
}

// retryDelay returns the exponential backoff for the given attempt, or the
// server's Retry-After hint when that is longer
func (o *Orchestrator) retryDelay(attempt int, err error) time.Duration {
	b := o.newBackOff()
	delay := b.InitialInterval
	for i := 0; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	if hint := integration.RetryAfterHint(err); hint > delay {
		delay = hint
	}
	return delay
}

func (o *Orchestrator) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.config.RetryInitialInterval
	b.MaxInterval = o.config.RetryMaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.Reset()
	return b
}

// eventWorker applies webhook events of one marketplace in arrival order
func (o *Orchestrator) eventWorker(ctx context.Context, pool *marketplacePool) {
	defer o.wg.Done()

	logger := o.logger.With(zap.String("marketplace", string(pool.marketplace)))
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-pool.events:
			o.processEvent(ctx, event, logger)
		}
	}
}

func (o *Orchestrator) processEvent(ctx context.Context, event *integration.WebhookEvent, logger *zap.Logger) {
	logger = logger.With(
		zap.String("delivery_id", event.DeliveryID),
		zap.String("event_type", string(event.Type)),
	)
	if o.events == nil {
		logger.Warn("No event handler configured, dropping webhook event")
		o.metrics.RecordWebhook(ctx, string(event.Marketplace), eventOutcomeDropped)
		return
	}

	eventCtx, cancel := context.WithTimeout(ctx, o.config.EventTimeout)
	defer cancel()

	_, err := backoff.Retry(eventCtx, func() (struct{}, error) {
		err := o.events.HandleEvent(eventCtx, event)
		if err != nil && !integration.Classify(err).Retryable() {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(o.newBackOff()),
		backoff.WithMaxTries(maxEventTries),
	)

	if err != nil {
		o.metrics.RecordWebhook(ctx, string(event.Marketplace), eventOutcomeFailed)
		logger.Error("Failed to apply webhook event", zap.Error(err))
		return
	}
	o.metrics.RecordWebhook(ctx, string(event.Marketplace), eventOutcomeApplied)
	logger.Debug("Webhook event applied")
}
