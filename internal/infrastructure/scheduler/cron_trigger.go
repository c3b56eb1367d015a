package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// SyncSubmitter enqueues scheduled sync jobs
type SyncSubmitter interface {
	RunScheduledSync(ctx context.Context, marketplace integration.MarketplaceCode, jobType integration.JobType) (*integration.SyncJob, bool, error)
}

// CronTriggerConfig sets when each marketplace gets a scheduled round
type CronTriggerConfig struct {
	// Intervals is the sync interval per marketplace. Marketplaces without
	// a positive interval are not scheduled.
	Intervals map[integration.MarketplaceCode]time.Duration

	// JobTypes are submitted on every round, in order
	JobTypes []integration.JobType

	// RunOnStart makes the first round due at Start
	RunOnStart bool
}

func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		Intervals:  map[integration.MarketplaceCode]time.Duration{},
		JobTypes:   integration.AllJobTypes(),
		RunOnStart: true,
	}
}

// CronTrigger submits a round of jobs per marketplace once per interval. A
// single goroutine sleeps until the earliest due marketplace, so a slow
// submission delays later rounds instead of piling them up.
type CronTrigger struct {
	cfg       CronTriggerConfig
	submitter SyncSubmitter
	logger    *zap.Logger

	mu      sync.Mutex
	due     map[integration.MarketplaceCode]time.Time
	lastRun map[integration.MarketplaceCode]time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewCronTrigger(cfg CronTriggerConfig, submitter SyncSubmitter, logger *zap.Logger) *CronTrigger {
	if len(cfg.JobTypes) == 0 {
		cfg.JobTypes = integration.AllJobTypes()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronTrigger{
		cfg:       cfg,
		submitter: submitter,
		logger:    logger.Named("cron"),
		lastRun:   make(map[integration.MarketplaceCode]time.Time),
	}
}

// Start schedules the first round of every marketplace. Calling it on a
// running trigger does nothing.
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	now := time.Now()
	c.due = make(map[integration.MarketplaceCode]time.Time, len(c.cfg.Intervals))
	for code, every := range c.cfg.Intervals {
		if every <= 0 {
			c.logger.Warn("Marketplace has no sync interval, not scheduled", zap.String("marketplace", string(code)))
			continue
		}
		if c.cfg.RunOnStart {
			c.due[code] = now
		} else {
			c.due[code] = now.Add(every)
		}
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.loop(ctx, c.done)

	c.logger.Info("Cron trigger started", zap.Int("marketplaces", len(c.due)))
	return nil
}

// Stop cancels any submission in progress and waits for the loop to exit
func (c *CronTrigger) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.logger.Info("Cron trigger stopped")
}

// LastRun returns when the marketplace's latest round started
func (c *CronTrigger) LastRun(code integration.MarketplaceCode) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.lastRun[code]
	return t, ok
}

func (c *CronTrigger) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		for _, code := range c.takeDue(time.Now()) {
			c.runRound(ctx, code)
		}
		wait, ok := c.untilNext(time.Now())
		if !ok {
			<-ctx.Done()
			return
		}
		timer.Reset(wait)
	}
}

// takeDue returns the marketplaces due at now and moves them one interval on
func (c *CronTrigger) takeDue(now time.Time) []integration.MarketplaceCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	var codes []integration.MarketplaceCode
	for code, at := range c.due {
		if at.After(now) {
			continue
		}
		codes = append(codes, code)
		c.lastRun[code] = now
		c.due[code] = now.Add(c.cfg.Intervals[code])
	}
	return codes
}

func (c *CronTrigger) untilNext(now time.Time) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var next time.Time
	for _, at := range c.due {
		if next.IsZero() || at.Before(next) {
			next = at
		}
	}
	if next.IsZero() {
		return 0, false
	}
	return max(next.Sub(now), 0), true
}

// runRound submits every job type in order, products first so mapping runs
// before stock and price pushes. A halted marketplace ends the round.
func (c *CronTrigger) runRound(ctx context.Context, code integration.MarketplaceCode) {
	log := c.logger.With(zap.String("marketplace", string(code)))
	for _, jobType := range c.cfg.JobTypes {
		if ctx.Err() != nil {
			return
		}
		job, coalesced, err := c.submitter.RunScheduledSync(ctx, code, jobType)
		if errors.Is(err, ErrMarketplaceHalted) {
			log.Warn("Marketplace halted, scheduled round skipped")
			return
		}
		if err != nil {
			log.Error("Scheduled sync not submitted", zap.String("job_type", string(jobType)), zap.Error(err))
			continue
		}
		if coalesced {
			log.Debug("Scheduled sync joined a queued job", zap.String("job_id", job.ID.String()))
		}
	}
}
