package integration

import (
	"time"

	"github.com/google/uuid"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Reporting DTOs
// ---------------------------------------------------------------------------

// SyncStatsFilter selects the marketplaces and window of a stats report
type SyncStatsFilter struct {
	Marketplace integration.MarketplaceCode `form:"marketplace"`
	// Since defaults to 24 hours ago
	Since *time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
}

// MarketplaceStatsResponse is the dashboard summary of one marketplace
type MarketplaceStatsResponse struct {
	Marketplace   integration.MarketplaceCode `json:"marketplace"`
	DisplayName   string                      `json:"display_name"`
	Halted        bool                        `json:"halted"`
	Total         int64                       `json:"total"`
	Success       int64                       `json:"success"`
	Failure       int64                       `json:"failure"`
	Skipped       int64                       `json:"skipped"`
	Conflict      int64                       `json:"conflict"`
	Rejected      int64                       `json:"rejected"`
	SuccessRate   float64                     `json:"success_rate"`
	LastSuccessAt *time.Time                  `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time                  `json:"last_failure_at,omitempty"`
	// Links counts marketplace links per sync status
	Links map[integration.LinkSyncStatus]int64 `json:"links"`
	// Orders counts imported orders per status
	Orders map[integration.OrderStatus]int64 `json:"orders"`
}

// SyncStatsResponse is the dashboard summary over all marketplaces
type SyncStatsResponse struct {
	Since        time.Time                  `json:"since"`
	Marketplaces []MarketplaceStatsResponse `json:"marketplaces"`
}

// SyncLogFilter selects audit records
type SyncLogFilter struct {
	Marketplace integration.MarketplaceCode `form:"marketplace"`
	Outcome     integration.AuditOutcome    `form:"outcome"`
	Operation   string                      `form:"operation"`
	EntityID    string                      `form:"entity_id"`
	JobID       string                      `form:"job_id" validate:"omitempty,uuid"`
	Limit       int                         `form:"limit" validate:"omitempty,min=1,max=500"`
}

// SyncLogResponse is one audit record. It carries the error message only.
type SyncLogResponse struct {
	ID            uuid.UUID                   `json:"id"`
	Timestamp     time.Time                   `json:"timestamp"`
	Marketplace   integration.MarketplaceCode `json:"marketplace"`
	Operation     string                      `json:"operation"`
	EntityType    string                      `json:"entity_type"`
	EntityID      string                      `json:"entity_id"`
	Outcome       integration.AuditOutcome    `json:"outcome"`
	ErrorKind     string                      `json:"error_kind,omitempty"`
	Message       string                      `json:"message,omitempty"`
	PayloadDigest string                      `json:"payload_digest,omitempty"`
	JobID         *uuid.UUID                  `json:"job_id,omitempty"`
	DurationMs    int64                       `json:"duration_ms"`
}

// ConnectionTestResponse is the result of a credential check
type ConnectionTestResponse struct {
	Marketplace integration.MarketplaceCode `json:"marketplace"`
	OK          bool                        `json:"ok"`
	LatencyMs   int64                       `json:"latency_ms"`
	SellerID    string                      `json:"seller_id,omitempty"`
	ExpiresAt   *time.Time                  `json:"expires_at,omitempty"`
	ErrorKind   string                      `json:"error_kind,omitempty"`
	Message     string                      `json:"message,omitempty"`
}

// ---------------------------------------------------------------------------
// Job DTOs
// ---------------------------------------------------------------------------

// SyncJobResponse is a sync job as shown to operators
type SyncJobResponse struct {
	ID          uuid.UUID                   `json:"id"`
	Marketplace integration.MarketplaceCode `json:"marketplace"`
	JobType     integration.JobType         `json:"job_type"`
	State       integration.JobState        `json:"state"`
	Trigger     string                      `json:"trigger"`
	Attempt     int                         `json:"attempt"`
	MaxAttempts int                         `json:"max_attempts"`
	Coalesced   bool                        `json:"coalesced,omitempty"`
	LastError   string                      `json:"last_error,omitempty"`
	ErrorKind   string                      `json:"error_kind,omitempty"`
	NextRetryAt *time.Time                  `json:"next_retry_at,omitempty"`
	StartedAt   *time.Time                  `json:"started_at,omitempty"`
	FinishedAt  *time.Time                  `json:"finished_at,omitempty"`
	Result      *SyncResultResponse         `json:"result,omitempty"`
	CreatedAt   time.Time                   `json:"created_at"`
}

// SyncResultResponse is the item summary of a job
type SyncResultResponse struct {
	Processed int                   `json:"processed"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Skipped   int                   `json:"skipped"`
	Conflicts int                   `json:"conflicts"`
	Failures  []ItemFailureResponse `json:"failures,omitempty"`
}

// ItemFailureResponse is one failed item of a job
type ItemFailureResponse struct {
	EntityID string `json:"entity_id"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// ToSyncJobResponse converts a job
func ToSyncJobResponse(job *integration.SyncJob, coalesced bool) SyncJobResponse {
	resp := SyncJobResponse{
		ID:          job.ID,
		Marketplace: job.Marketplace,
		JobType:     job.JobType,
		State:       job.State,
		Trigger:     job.Trigger,
		Attempt:     job.Attempt,
		MaxAttempts: job.MaxAttempts,
		Coalesced:   coalesced,
		LastError:   job.LastError,
		NextRetryAt: job.NextRetryAt,
		StartedAt:   job.StartedAt,
		FinishedAt:  job.CompletedAt,
		CreatedAt:   job.CreatedAt,
	}
	if job.LastErrorKind != integration.ErrorKindNone {
		resp.ErrorKind = job.LastErrorKind.String()
	}
	if job.Result.Processed > 0 || len(job.Result.Failures) > 0 {
		r := &SyncResultResponse{
			Processed: job.Result.Processed,
			Succeeded: job.Result.Succeeded,
			Failed:    job.Result.Failed,
			Skipped:   job.Result.Skipped,
			Conflicts: job.Result.Conflicts,
		}
		for _, f := range job.Result.Failures {
			r.Failures = append(r.Failures, ItemFailureResponse{EntityID: f.EntityID, Kind: f.Kind.String(), Message: f.Message})
		}
		resp.Result = r
	}
	return resp
}

// ---------------------------------------------------------------------------
// Category mapping DTOs
// ---------------------------------------------------------------------------

// SetCategoryMappingRequest records a manual category mapping
type SetCategoryMappingRequest struct {
	LocalCategoryID  uuid.UUID                   `json:"local_category_id" binding:"required"`
	Marketplace      integration.MarketplaceCode `json:"marketplace" binding:"required,marketplace"`
	RemoteCategoryID string                      `json:"remote_category_id" binding:"required,max=100"`
}

// CategoryMappingResponse is a stored category mapping
type CategoryMappingResponse struct {
	ID                 uuid.UUID                   `json:"id"`
	LocalCategoryID    uuid.UUID                   `json:"local_category_id"`
	Marketplace        integration.MarketplaceCode `json:"marketplace"`
	RemoteCategoryID   string                      `json:"remote_category_id"`
	RemoteCategoryName string                      `json:"remote_category_name"`
	RemoteCategoryPath string                      `json:"remote_category_path"`
	ConfidenceScore    float64                     `json:"confidence_score"`
	AutoMapped         bool                        `json:"auto_mapped"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// ToCategoryMappingResponse converts a mapping
func ToCategoryMappingResponse(m *integration.CategoryMapping) CategoryMappingResponse {
	return CategoryMappingResponse{
		ID:                 m.ID,
		LocalCategoryID:    m.LocalCategoryID,
		Marketplace:        m.Marketplace,
		RemoteCategoryID:   m.RemoteCategoryID,
		RemoteCategoryName: m.RemoteCategoryName,
		RemoteCategoryPath: m.RemoteCategoryPath,
		ConfidenceScore:    m.ConfidenceScore,
		AutoMapped:         m.AutoMapped,
		UpdatedAt:          m.UpdatedAt,
	}
}

// toSyncLogResponse converts an audit record
func toSyncLogResponse(r *integration.AuditRecord) SyncLogResponse {
	resp := SyncLogResponse{
		ID:            r.ID,
		Timestamp:     r.Timestamp,
		Marketplace:   r.Marketplace,
		Operation:     r.Operation,
		EntityType:    r.EntityType,
		EntityID:      r.EntityID,
		Outcome:       r.Outcome,
		Message:       r.ErrorDetail,
		PayloadDigest: r.PayloadDigest,
		JobID:         r.JobID,
		DurationMs:    r.DurationMs,
	}
	if r.ErrorKind != integration.ErrorKindNone {
		resp.ErrorKind = r.ErrorKind.String()
	}
	return resp
}
