package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// JobExecutor runs the body of a sync job. The returned result is recorded on
// the job whether or not an error is returned.
type JobExecutor interface {
	Execute(ctx context.Context, job *integration.SyncJob) (integration.SyncResult, error)
}

// EventHandler applies a normalized webhook event
type EventHandler interface {
	HandleEvent(ctx context.Context, event *integration.WebhookEvent) error
}

// AdapterSource resolves the adapter used to re-authenticate a halted marketplace
type AdapterSource interface {
	Get(code integration.MarketplaceCode) (integration.MarketplaceAdapter, error)
}

// JobRecorder receives jobs that reached a terminal state
type JobRecorder interface {
	RecordJob(ctx context.Context, job *integration.SyncJob)
}

// AlertHook is called for jobs that failed permanently
type AlertHook func(ctx context.Context, job *integration.SyncJob)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// OrchestratorConfig holds configuration for the sync orchestrator
type OrchestratorConfig struct {
	// Marketplaces lists the marketplaces that get a worker pool
	Marketplaces []integration.MarketplaceCode
	// Workers is the pool size per marketplace, overriding DefaultWorkers
	Workers map[integration.MarketplaceCode]int
	// DefaultWorkers is the pool size of marketplaces without an override
	DefaultWorkers int
	// QueueSize bounds the job queue of each marketplace
	QueueSize int
	// EventQueueSize bounds the webhook event queue of each marketplace
	EventQueueSize int
	// MaxAttempts is the number of attempts before a job fails permanently
	MaxAttempts int
	// JobTimeout bounds one attempt
	JobTimeout time.Duration
	// EventTimeout bounds the handling of one webhook event
	EventTimeout time.Duration
	// RetryInitialInterval and RetryMaxInterval shape the exponential backoff
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	// HistorySize bounds the in-memory job history
	HistorySize int
}

// Worker pool bounds per marketplace
const (
	MinWorkers = 1
	MaxWorkers = 4
)

// DefaultOrchestratorConfig returns default configuration
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Marketplaces:         integration.AllMarketplaces(),
		DefaultWorkers:       2,
		QueueSize:            64,
		EventQueueSize:       1024,
		MaxAttempts:          5,
		JobTimeout:           15 * time.Minute,
		EventTimeout:         30 * time.Second,
		RetryInitialInterval: 5 * time.Second,
		RetryMaxInterval:     5 * time.Minute,
		HistorySize:          200,
	}
}

// Validate validates the configuration
func (c *OrchestratorConfig) Validate() error {
	if len(c.Marketplaces) == 0 {
		return fmt.Errorf("%w: no marketplaces", ErrInvalidConfig)
	}
	for _, code := range c.Marketplaces {
		if !code.IsValid() {
			return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, integration.ErrMarketplaceUnknown, code)
		}
	}
	if c.DefaultWorkers < MinWorkers || c.DefaultWorkers > MaxWorkers {
		return fmt.Errorf("%w: default workers must be between %d and %d", ErrInvalidConfig, MinWorkers, MaxWorkers)
	}
	for code, n := range c.Workers {
		if n < MinWorkers || n > MaxWorkers {
			return fmt.Errorf("%w: %s workers must be between %d and %d", ErrInvalidConfig, code, MinWorkers, MaxWorkers)
		}
	}
	if c.QueueSize <= 0 || c.EventQueueSize <= 0 || c.MaxAttempts <= 0 || c.HistorySize <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 || c.EventTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryInitialInterval <= 0 || c.RetryMaxInterval < c.RetryInitialInterval {
		return ErrInvalidConfig
	}
	return nil
}

func (c *OrchestratorConfig) workersFor(code integration.MarketplaceCode) int {
	if n, ok := c.Workers[code]; ok {
		return n
	}
	return c.DefaultWorkers
}

// ---------------------------------------------------------------------------
// Orchestrator
// ---------------------------------------------------------------------------

// marketplacePool is the worker pool of one marketplace
type marketplacePool struct {
	marketplace integration.MarketplaceCode
	workers     int
	jobs        chan *integration.SyncJob
	events      chan *integration.WebhookEvent
}

// OrchestratorDeps holds the collaborators of the orchestrator
type OrchestratorDeps struct {
	Executor     JobExecutor
	EventHandler EventHandler
	Adapters     AdapterSource
	Recorder     JobRecorder
	Alert        AlertHook
	Metrics      *telemetry.SyncMetrics
	Logger       *zap.Logger
}

// Orchestrator runs sync jobs on one worker pool per marketplace. A job key
// (marketplace, job type) is owned by at most one job at a time: requests for
// a key that is queued, running or waiting for a retry are coalesced into the
// existing job, so a key never runs on two workers at once.
type Orchestrator struct {
	config   OrchestratorConfig
	executor JobExecutor
	events   EventHandler
	adapters AdapterSource
	recorder JobRecorder
	alert    AlertHook
	metrics  *telemetry.SyncMetrics
	logger   *zap.Logger

	pools map[integration.MarketplaceCode]*marketplacePool

	running *atomic.Bool
	cancel  context.CancelFunc
	ctx     context.Context
	wg      sync.WaitGroup

	mu       sync.Mutex
	active   map[integration.JobKey]*integration.SyncJob
	jobs     map[uuid.UUID]*integration.SyncJob
	inflight map[uuid.UUID]context.CancelFunc
	timers   map[uuid.UUID]*time.Timer
	halted   map[integration.MarketplaceCode]string

	historyMu sync.RWMutex
	history   []integration.SyncJob

	submitted *atomic.Uint64
	coalesced *atomic.Uint64
	completed *atomic.Uint64
	failed    *atomic.Uint64
	retried   *atomic.Uint64
	eventsIn  *atomic.Uint64
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(config OrchestratorConfig, deps OrchestratorDeps) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("%w: executor is required", ErrInvalidConfig)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		config:    config,
		executor:  deps.Executor,
		events:    deps.EventHandler,
		adapters:  deps.Adapters,
		recorder:  deps.Recorder,
		alert:     deps.Alert,
		metrics:   deps.Metrics,
		logger:    logger.With(zap.String("component", "orchestrator")),
		pools:     make(map[integration.MarketplaceCode]*marketplacePool, len(config.Marketplaces)),
		running:   atomic.NewBool(false),
		active:    make(map[integration.JobKey]*integration.SyncJob),
		jobs:      make(map[uuid.UUID]*integration.SyncJob),
		inflight:  make(map[uuid.UUID]context.CancelFunc),
		timers:    make(map[uuid.UUID]*time.Timer),
		halted:    make(map[integration.MarketplaceCode]string),
		history:   make([]integration.SyncJob, 0, config.HistorySize),
		submitted: atomic.NewUint64(0),
		coalesced: atomic.NewUint64(0),
		completed: atomic.NewUint64(0),
		failed:    atomic.NewUint64(0),
		retried:   atomic.NewUint64(0),
		eventsIn:  atomic.NewUint64(0),
	}
	for _, code := range config.Marketplaces {
		o.pools[code] = &marketplacePool{
			marketplace: code,
			workers:     config.workersFor(code),
			jobs:        make(chan *integration.SyncJob, config.QueueSize),
			events:      make(chan *integration.WebhookEvent, config.EventQueueSize),
		}
	}
	return o, nil
}

// Start starts the worker pools
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.running.CAS(false, true) {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.ctx = ctx
	o.cancel = cancel
	o.mu.Unlock()

	for _, pool := range o.pools {
		for i := 0; i < pool.workers; i++ {
			o.wg.Add(1)
			go o.jobWorker(ctx, pool, i)
		}
		o.wg.Add(1)
		go o.eventWorker(ctx, pool)
	}

	o.logger.Info("Sync orchestrator started",
		zap.Int("marketplaces", len(o.pools)),
		zap.Int("max_attempts", o.config.MaxAttempts),
		zap.Duration("job_timeout", o.config.JobTimeout),
	)
	return nil
}

// Stop cancels running attempts and waits for the workers to exit
func (o *Orchestrator) Stop(ctx context.Context) error {
	if !o.running.CAS(true, false) {
		return nil
	}
	o.mu.Lock()
	for id, t := range o.timers {
		t.Stop()
		delete(o.timers, id)
	}
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("Sync orchestrator stopped gracefully")
		return nil
	case <-ctx.Done():
		o.logger.Warn("Sync orchestrator stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns true between Start and Stop
func (o *Orchestrator) IsRunning() bool {
	return o.running.Load()
}

// Submit enqueues a job for (marketplace, jobType). When the key already has
// a live job that job is returned with coalesced set.
func (o *Orchestrator) Submit(marketplace integration.MarketplaceCode, jobType integration.JobType, trigger string) (*integration.SyncJob, bool, error) {
	if !o.running.Load() {
		return nil, false, ErrSchedulerNotRunning
	}
	pool, ok := o.pools[marketplace]
	if !ok {
		if !marketplace.IsValid() {
			return nil, false, integration.ErrMarketplaceUnknown
		}
		return nil, false, integration.ErrMarketplaceNotConfigured
	}
	if !jobType.IsValid() {
		return nil, false, fmt.Errorf("%w: %q", integration.ErrInvalidJobType, jobType)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if reason, halted := o.halted[marketplace]; halted {
		return nil, false, fmt.Errorf("%w: %s: %s", ErrMarketplaceHalted, marketplace, reason)
	}
	key := integration.JobKey{Marketplace: marketplace, JobType: jobType}
	if existing, ok := o.active[key]; ok {
		o.coalesced.Inc()
		snapshot := *existing
		return &snapshot, true, nil
	}

	job, err := integration.NewSyncJob(marketplace, jobType, o.config.MaxAttempts, trigger)
	if err != nil {
		return nil, false, err
	}
	select {
	case pool.jobs <- job:
	default:
		return nil, false, fmt.Errorf("%w: %s", ErrJobQueueFull, marketplace)
	}
	o.active[key] = job
	o.jobs[job.ID] = job
	o.submitted.Inc()
	o.metrics.RecordQueueDepth(context.Background(), string(marketplace), len(pool.jobs))

	o.logger.Debug("Sync job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("marketplace", string(marketplace)),
		zap.String("job_type", string(jobType)),
		zap.String("trigger", trigger),
	)
	snapshot := *job
	return &snapshot, false, nil
}

// RunScheduledSync enqueues a scheduled run; it is the entry point of the
// cron trigger and the operator CLI
func (o *Orchestrator) RunScheduledSync(ctx context.Context, marketplace integration.MarketplaceCode, jobType integration.JobType) (*integration.SyncJob, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return o.Submit(marketplace, jobType, "schedule")
}

// SubmitEvent queues a validated webhook event for its marketplace
func (o *Orchestrator) SubmitEvent(event *integration.WebhookEvent) error {
	if !o.running.Load() {
		return ErrSchedulerNotRunning
	}
	if event == nil {
		return fmt.Errorf("%w: nil event", integration.ErrValidation)
	}
	pool, ok := o.pools[event.Marketplace]
	if !ok {
		return integration.ErrMarketplaceNotConfigured
	}
	select {
	case pool.events <- event:
		o.eventsIn.Inc()
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrEventQueueFull, event.Marketplace)
	}
}

// Cancel requests cancellation of a job. A queued job is cancelled at once; a
// running attempt has its context cancelled and the job ends as cancelled.
func (o *Orchestrator) Cancel(jobID uuid.UUID) error {
	o.mu.Lock()
	job, ok := o.jobs[jobID]
	if !ok {
		o.mu.Unlock()
		return ErrJobNotFound
	}
	if !job.Cancel() {
		o.mu.Unlock()
		return ErrJobFinished
	}
	if cancel, running := o.inflight[jobID]; running {
		cancel()
		o.mu.Unlock()
		o.logger.Info("Cancellation requested for running sync job", zap.String("job_id", jobID.String()))
		return nil
	}
	finished := o.finishLocked(job)
	o.mu.Unlock()

	o.logger.Info("Sync job cancelled", zap.String("job_id", jobID.String()))
	o.afterFinish(finished)
	return nil
}

// Job returns a snapshot of a live job
func (o *Orchestrator) Job(jobID uuid.UUID) (*integration.SyncJob, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

// Halted returns true if the marketplace is halted
func (o *Orchestrator) Halted(marketplace integration.MarketplaceCode) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.halted[marketplace]
	return ok
}

// Resume re-authenticates a halted marketplace and accepts its jobs again
func (o *Orchestrator) Resume(ctx context.Context, marketplace integration.MarketplaceCode) error {
	if o.adapters == nil {
		return fmt.Errorf("%w: no adapter source", ErrInvalidConfig)
	}
	adapter, err := o.adapters.Get(marketplace)
	if err != nil {
		return err
	}
	if _, err := adapter.Authenticate(ctx); err != nil {
		o.logger.Warn("Re-authentication failed, marketplace stays halted",
			zap.String("marketplace", string(marketplace)),
			zap.Error(err),
		)
		return err
	}

	o.mu.Lock()
	delete(o.halted, marketplace)
	halted := len(o.halted)
	o.mu.Unlock()

	o.metrics.RecordHalted(ctx, halted)
	o.logger.Info("Marketplace resumed", zap.String("marketplace", string(marketplace)))
	return nil
}

// halt stops accepting jobs for a marketplace and cancels its queued jobs
func (o *Orchestrator) halt(marketplace integration.MarketplaceCode, cause error) {
	o.mu.Lock()
	o.halted[marketplace] = cause.Error()
	var cancelled []integration.SyncJob
	for key, job := range o.active {
		if key.Marketplace != marketplace {
			continue
		}
		if _, running := o.inflight[job.ID]; running {
			continue
		}
		if job.Cancel() {
			job.LastError = "marketplace halted: " + cause.Error()
			job.LastErrorKind = integration.ErrorKindAuth
			cancelled = append(cancelled, o.finishLocked(job))
		}
	}
	halted := len(o.halted)
	o.mu.Unlock()

	o.metrics.RecordHalted(context.Background(), halted)
	o.logger.Error("Marketplace halted after authentication failure",
		zap.String("marketplace", string(marketplace)),
		zap.Int("cancelled_jobs", len(cancelled)),
		zap.Error(cause),
	)
	for _, job := range cancelled {
		o.afterFinish(job)
	}
}

// finishLocked removes a terminal job from the live set and returns its
// snapshot. Caller holds o.mu.
func (o *Orchestrator) finishLocked(job *integration.SyncJob) integration.SyncJob {
	if t, ok := o.timers[job.ID]; ok {
		t.Stop()
		delete(o.timers, job.ID)
	}
	if o.active[job.Key()] == job {
		delete(o.active, job.Key())
	}
	delete(o.jobs, job.ID)
	delete(o.inflight, job.ID)
	return *job
}

// afterFinish records a terminal job in history, metrics and the recorder
func (o *Orchestrator) afterFinish(job integration.SyncJob) {
	o.addToHistory(job)
	ctx := context.Background()
	o.metrics.RecordJob(ctx, string(job.Marketplace), string(job.JobType), string(job.State), job.Duration())
	if o.recorder != nil {
		o.recorder.RecordJob(ctx, &job)
	}
	if job.State == integration.JobStateFailedPermanent && o.alert != nil {
		o.alert(ctx, &job)
	}
}

func (o *Orchestrator) addToHistory(job integration.SyncJob) {
	o.historyMu.Lock()
	defer o.historyMu.Unlock()

	o.history = append([]integration.SyncJob{job}, o.history...)
	if len(o.history) > o.config.HistorySize {
		o.history = o.history[:o.config.HistorySize]
	}
}

// History returns finished jobs, newest first
func (o *Orchestrator) History(limit int) []integration.SyncJob {
	o.historyMu.RLock()
	defer o.historyMu.RUnlock()

	if limit <= 0 || limit > len(o.history) {
		limit = len(o.history)
	}
	result := make([]integration.SyncJob, limit)
	copy(result, o.history[:limit])
	return result
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// PoolStats describes one marketplace pool
type PoolStats struct {
	Marketplace     integration.MarketplaceCode `json:"marketplace"`
	Workers         int                         `json:"workers"`
	QueueDepth      int                         `json:"queue_depth"`
	EventQueueDepth int                         `json:"event_queue_depth"`
	RunningKeys     []string                    `json:"running_keys"`
	WaitingKeys     []string                    `json:"waiting_keys"`
	Halted          bool                        `json:"halted"`
	HaltReason      string                      `json:"halt_reason,omitempty"`
}

// OrchestratorStats is a point-in-time view of the orchestrator
type OrchestratorStats struct {
	Running   bool        `json:"running"`
	Submitted uint64      `json:"submitted"`
	Coalesced uint64      `json:"coalesced"`
	Completed uint64      `json:"completed"`
	Failed    uint64      `json:"failed"`
	Retried   uint64      `json:"retried"`
	Events    uint64      `json:"events"`
	Pools     []PoolStats `json:"pools"`
}

// Stats returns queue depths, running keys and halted marketplaces
func (o *Orchestrator) Stats() OrchestratorStats {
	stats := OrchestratorStats{
		Running:   o.running.Load(),
		Submitted: o.submitted.Load(),
		Coalesced: o.coalesced.Load(),
		Completed: o.completed.Load(),
		Failed:    o.failed.Load(),
		Retried:   o.retried.Load(),
		Events:    o.eventsIn.Load(),
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for code, pool := range o.pools {
		ps := PoolStats{
			Marketplace:     code,
			Workers:         pool.workers,
			QueueDepth:      len(pool.jobs),
			EventQueueDepth: len(pool.events),
			RunningKeys:     []string{},
			WaitingKeys:     []string{},
		}
		ps.HaltReason, ps.Halted = o.halted[code]
		for key, job := range o.active {
			if key.Marketplace != code {
				continue
			}
			if job.State == integration.JobStateRunning {
				ps.RunningKeys = append(ps.RunningKeys, key.String())
			} else {
				ps.WaitingKeys = append(ps.WaitingKeys, key.String())
			}
		}
		sort.Strings(ps.RunningKeys)
		sort.Strings(ps.WaitingKeys)
		stats.Pools = append(stats.Pools, ps)
	}
	sort.Slice(stats.Pools, func(i, j int) bool { return stats.Pools[i].Marketplace < stats.Pools[j].Marketplace })
	return stats
}

// isHaltError reports whether err halts the marketplace
func isHaltError(err error) bool {
	return err != nil && integration.Classify(err).HaltsMarketplace() && !errors.Is(err, context.Canceled)
}
