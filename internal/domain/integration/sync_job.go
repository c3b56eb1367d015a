package integration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// JobType and JobState
// ---------------------------------------------------------------------------

// JobType is the data category a sync job synchronizes
type JobType string

const (
	JobTypeProduct JobType = "product"
	JobTypeStock   JobType = "stock"
	JobTypePrice   JobType = "price"
	JobTypeOrder   JobType = "order"
)

// AllJobTypes returns the job types in scheduling order
func AllJobTypes() []JobType {
	return []JobType{JobTypeProduct, JobTypeStock, JobTypePrice, JobTypeOrder}
}

// IsValid returns true if the job type is valid
func (t JobType) IsValid() bool {
	switch t {
	case JobTypeProduct, JobTypeStock, JobTypePrice, JobTypeOrder:
		return true
	}
	return false
}

// String returns the string representation of JobType
func (t JobType) String() string {
	return string(t)
}

// ParseJobType parses a job type
func ParseJobType(s string) (JobType, error) {
	t := JobType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobType, s)
	}
	return t, nil
}

// JobState is the state of a sync job
type JobState string

const (
	JobStateQueued          JobState = "queued"
	JobStateRunning         JobState = "running"
	JobStateDone            JobState = "done"
	JobStateFailed          JobState = "failed"
	JobStateFailedPermanent JobState = "failed-permanent"
	JobStateCancelled       JobState = "cancelled"
)

// IsTerminal returns true if the job will not run again
func (s JobState) IsTerminal() bool {
	return s == JobStateDone || s == JobStateFailedPermanent || s == JobStateCancelled
}

// CanTransitionTo checks if the state can move to target
func (s JobState) CanTransitionTo(target JobState) bool {
	switch s {
	case JobStateQueued:
		return target == JobStateRunning || target == JobStateCancelled
	case JobStateRunning:
		return target == JobStateDone || target == JobStateFailed ||
			target == JobStateFailedPermanent || target == JobStateCancelled
	case JobStateFailed:
		return target == JobStateQueued || target == JobStateFailedPermanent || target == JobStateCancelled
	}
	return false
}

// JobKey identifies the sequencing key of a job
type JobKey struct {
	Marketplace MarketplaceCode
	JobType     JobType
}

// String returns "MARKETPLACE:type"
func (k JobKey) String() string {
	return string(k.Marketplace) + ":" + string(k.JobType)
}

// ---------------------------------------------------------------------------
// SyncResult
// ---------------------------------------------------------------------------

// ItemFailure records one failed item of a batch
type ItemFailure struct {
	EntityID string
	Kind     ErrorKind
	Message  string
}

// SyncResult aggregates the per-item outcomes of one job run
type SyncResult struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
	Conflicts int
	// RetryableFailures counts failed items whose kind is retryable
	RetryableFailures int
	Failures          []ItemFailure
}

// maxRecordedFailures bounds SyncResult.Failures
const maxRecordedFailures = 50

// RecordSuccess counts a successful item
func (r *SyncResult) RecordSuccess() {
	r.Processed++
	r.Succeeded++
}

// RecordSkip counts an item that needed no remote call
func (r *SyncResult) RecordSkip() {
	r.Processed++
	r.Skipped++
}

// RecordFailure counts a failed item and returns its kind
func (r *SyncResult) RecordFailure(entityID string, err error) ErrorKind {
	kind := Classify(err)
	r.Processed++
	r.Failed++
	if kind.Retryable() {
		r.RetryableFailures++
	}
	if len(r.Failures) < maxRecordedFailures {
		r.Failures = append(r.Failures, ItemFailure{EntityID: entityID, Kind: kind, Message: err.Error()})
	}
	return kind
}

// ItemOutcome is the view of a Result that Tally needs
type ItemOutcome interface {
	Err() error
	IsSkipped() bool
}

// Tally counts one item outcome. It returns the item error when its kind
// aborts the rest of the batch, nil otherwise.
func (r *SyncResult) Tally(entityID string, item ItemOutcome) error {
	err := item.Err()
	switch {
	case err != nil:
		if r.RecordFailure(entityID, err).AbortsBatch() {
			return err
		}
	case item.IsSkipped():
		r.RecordSkip()
	default:
		r.RecordSuccess()
	}
	return nil
}

// Merge adds another result into r
func (r *SyncResult) Merge(other SyncResult) {
	r.Processed += other.Processed
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Skipped += other.Skipped
	r.Conflicts += other.Conflicts
	r.RetryableFailures += other.RetryableFailures
	for _, f := range other.Failures {
		if len(r.Failures) >= maxRecordedFailures {
			break
		}
		r.Failures = append(r.Failures, f)
	}
}

// ---------------------------------------------------------------------------
// SyncJob Entity
// ---------------------------------------------------------------------------

// SyncJob is a scheduled unit of synchronization work for one marketplace
// and one job type
type SyncJob struct {
	ID            uuid.UUID
	Marketplace   MarketplaceCode
	JobType       JobType
	State         JobState
	Attempt       int
	MaxAttempts   int
	NextRetryAt   *time.Time
	LastError     string
	LastErrorKind ErrorKind
	// Trigger describes what requested the job: schedule, manual, webhook, retry
	Trigger     string
	Result      SyncResult
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	// CancelRequested is checked before each attempt
	CancelRequested bool
}

// NewSyncJob creates a queued job
func NewSyncJob(marketplace MarketplaceCode, jobType JobType, maxAttempts int, trigger string) (*SyncJob, error) {
	if !marketplace.IsValid() {
		return nil, ErrMarketplaceUnknown
	}
	if !jobType.IsValid() {
		return nil, ErrInvalidJobType
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &SyncJob{
		ID:          uuid.New(),
		Marketplace: marketplace,
		JobType:     jobType,
		State:       JobStateQueued,
		MaxAttempts: maxAttempts,
		Trigger:     trigger,
		CreatedAt:   time.Now(),
	}, nil
}

// Key returns the sequencing key
func (j *SyncJob) Key() JobKey {
	return JobKey{Marketplace: j.Marketplace, JobType: j.JobType}
}

func (j *SyncJob) moveTo(target JobState) error {
	if !j.State.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidJobTransition, j.State, target)
	}
	j.State = target
	return nil
}

// Start marks the job as running and counts the attempt
func (j *SyncJob) Start() error {
	if err := j.moveTo(JobStateRunning); err != nil {
		return err
	}
	now := time.Now()
	j.Attempt++
	j.StartedAt = &now
	j.NextRetryAt = nil
	return nil
}

// Complete marks the job as done
func (j *SyncJob) Complete(result SyncResult) error {
	if err := j.moveTo(JobStateDone); err != nil {
		return err
	}
	now := time.Now()
	j.Result = result
	j.CompletedAt = &now
	j.LastError = ""
	j.LastErrorKind = ErrorKindNone
	return nil
}

// Fail records a failed attempt. Retryable failures with attempts left move
// to failed, a job with a pending cancel request to cancelled, everything
// else to failed-permanent. It returns true if the job may be retried.
func (j *SyncJob) Fail(err error, result SyncResult) (bool, error) {
	kind := Classify(err)
	target := JobStateFailedPermanent
	switch {
	case j.CancelRequested:
		target = JobStateCancelled
	case kind.Retryable() && j.Attempt < j.MaxAttempts:
		target = JobStateFailed
	}
	if e := j.moveTo(target); e != nil {
		return false, e
	}
	j.Result = result
	if err != nil {
		j.LastError = err.Error()
	}
	j.LastErrorKind = kind
	if target != JobStateFailed {
		now := time.Now()
		j.CompletedAt = &now
	}
	return target == JobStateFailed, nil
}

// ScheduleRetry re-queues a failed job to run after delay
func (j *SyncJob) ScheduleRetry(delay time.Duration) error {
	if err := j.moveTo(JobStateQueued); err != nil {
		return err
	}
	next := time.Now().Add(delay)
	j.NextRetryAt = &next
	return nil
}

// Cancel requests cooperative cancellation. A queued or failed job is
// cancelled at once; a running job finishes its current attempt first.
func (j *SyncJob) Cancel() bool {
	if j.State.IsTerminal() {
		return false
	}
	j.CancelRequested = true
	if j.State == JobStateQueued || j.State == JobStateFailed {
		now := time.Now()
		j.State = JobStateCancelled
		j.CompletedAt = &now
	}
	return true
}

// ReadyAt returns true if the job may start at now
func (j *SyncJob) ReadyAt(now time.Time) bool {
	return j.NextRetryAt == nil || !now.Before(*j.NextRetryAt)
}

// Duration returns the run time of the last attempt
func (j *SyncJob) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}
