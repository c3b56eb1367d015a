package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	integrationapp "github.com/meschain/marketsync/internal/application/integration"
	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/scheduler"
	"github.com/meschain/marketsync/internal/interfaces/http/dto"
	"github.com/meschain/marketsync/internal/interfaces/http/middleware"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// SyncReporter answers dashboard queries
type SyncReporter interface {
	GetSyncStats(ctx context.Context, filter integrationapp.SyncStatsFilter) (*integrationapp.SyncStatsResponse, error)
	GetRecentLogs(ctx context.Context, filter integrationapp.SyncLogFilter) ([]integrationapp.SyncLogResponse, error)
	TestConnection(ctx context.Context, marketplace integration.MarketplaceCode) (*integrationapp.ConnectionTestResponse, error)
}

// JobController submits and inspects sync jobs
type JobController interface {
	Submit(marketplace integration.MarketplaceCode, jobType integration.JobType, trigger string) (*integration.SyncJob, bool, error)
	Job(jobID uuid.UUID) (*integration.SyncJob, error)
	Cancel(jobID uuid.UUID) error
	Resume(ctx context.Context, marketplace integration.MarketplaceCode) error
	History(limit int) []integration.SyncJob
	Stats() scheduler.OrchestratorStats
}

// SyncHandler serves sync reporting and job control endpoints
type SyncHandler struct {
	BaseHandler
	reporter SyncReporter
	jobs     JobController
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(reporter SyncReporter, jobs JobController) *SyncHandler {
	return &SyncHandler{reporter: reporter, jobs: jobs}
}

// JobHistoryResponse is the orchestrator history with live counters
type JobHistoryResponse struct {
	Jobs  []integrationapp.SyncJobResponse `json:"jobs"`
	Stats scheduler.OrchestratorStats      `json:"stats"`
}

// GetStats godoc
// @ID           getSyncStats
// @Summary      Get sync statistics
// @Description  Returns per marketplace outcome counts, link and order status counts and the halt state
// @Tags         sync
// @Produce      json
// @Param        marketplace query string false "Marketplace code" Enums(TRENDYOL, AMAZON, N11, EBAY, HEPSIBURADA, OZON)
// @Param        since query string false "Window start (RFC 3339), defaults to 24 hours ago"
// @Success      200 {object} APIResponse[integrationapp.SyncStatsResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/sync/stats [get]
func (h *SyncHandler) GetStats(c *gin.Context) {
	var filter integrationapp.SyncStatsFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	if !h.normalizeMarketplace(c, &filter.Marketplace) {
		return
	}

	stats, err := h.reporter.GetSyncStats(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// GetLogs godoc
// @ID           getSyncLogs
// @Summary      List sync audit records
// @Description  Returns the most recent audit records, newest first
// @Tags         sync
// @Produce      json
// @Param        marketplace query string false "Marketplace code"
// @Param        outcome query string false "Outcome" Enums(success, failure, skipped, conflict, rejected)
// @Param        operation query string false "Operation"
// @Param        entity_id query string false "Entity ID (SKU or remote order ID)"
// @Param        job_id query string false "Job ID" format(uuid)
// @Param        limit query int false "Maximum records (1-500)" minimum(1) maximum(500)
// @Success      200 {object} APIResponse[[]integrationapp.SyncLogResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/sync/logs [get]
func (h *SyncHandler) GetLogs(c *gin.Context) {
	var filter integrationapp.SyncLogFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	if !h.normalizeMarketplace(c, &filter.Marketplace) {
		return
	}

	logs, err := h.reporter.GetRecentLogs(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, logs)
}

// TestConnection godoc
// @ID           testMarketplaceConnection
// @Summary      Test marketplace credentials
// @Description  Authenticates against the marketplace. A failed credential check is reported in the body with status 200.
// @Tags         sync
// @Produce      json
// @Param        marketplace path string true "Marketplace code"
// @Success      200 {object} APIResponse[integrationapp.ConnectionTestResponse]
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/sync/marketplaces/{marketplace}/test-connection [post]
func (h *SyncHandler) TestConnection(c *gin.Context) {
	marketplace, ok := h.MarketplaceParam(c)
	if !ok {
		return
	}
	result, err := h.reporter.TestConnection(c.Request.Context(), marketplace)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// TriggerJob godoc
// @ID           triggerSyncJob
// @Summary      Trigger a sync job
// @Description  Queues a job. A job already queued for the same marketplace and type is returned with coalesced set.
// @Tags         sync
// @Produce      json
// @Param        marketplace path string true "Marketplace code"
// @Param        jobType path string true "Job type" Enums(product, stock, price, order)
// @Success      202 {object} APIResponse[integrationapp.SyncJobResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/sync/marketplaces/{marketplace}/jobs/{jobType} [post]
func (h *SyncHandler) TriggerJob(c *gin.Context) {
	marketplace, ok := h.MarketplaceParam(c)
	if !ok {
		return
	}
	jobType, err := integration.ParseJobType(c.Param("jobType"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	trigger := "api"
	if subject := middleware.GetJWTSubject(c); subject != "" {
		trigger = "api:" + subject
	}
	job, coalesced, err := h.jobs.Submit(marketplace, jobType, trigger)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, integrationapp.ToSyncJobResponse(job, coalesced))
}

// ResumeMarketplace godoc
// @ID           resumeMarketplace
// @Summary      Resume a halted marketplace
// @Description  Re-authenticates and lifts the halt raised by an auth failure
// @Tags         sync
// @Produce      json
// @Param        marketplace path string true "Marketplace code"
// @Success      200 {object} APIResponse[MarketplaceStateResponse]
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/sync/marketplaces/{marketplace}/resume [post]
func (h *SyncHandler) ResumeMarketplace(c *gin.Context) {
	marketplace, ok := h.MarketplaceParam(c)
	if !ok {
		return
	}
	if err := h.jobs.Resume(c.Request.Context(), marketplace); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, MarketplaceStateResponse{Marketplace: string(marketplace), Halted: false})
}

// ListJobs godoc
// @ID           listSyncJobs
// @Summary      List recent sync jobs
// @Description  Returns the orchestrator job history with live counters
// @Tags         sync
// @Produce      json
// @Param        limit query int false "Maximum jobs (1-500)" minimum(1) maximum(500) default(50)
// @Success      200 {object} APIResponse[JobHistoryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/sync/jobs [get]
func (h *SyncHandler) ListJobs(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			h.ErrorWithCode(c, dto.ErrCodeValidationRange, "limit must be between 1 and "+strconv.Itoa(maxHistoryLimit))
			return
		}
		limit = n
	}

	history := h.jobs.History(limit)
	jobs := make([]integrationapp.SyncJobResponse, 0, len(history))
	for i := range history {
		jobs = append(jobs, integrationapp.ToSyncJobResponse(&history[i], false))
	}
	h.Success(c, JobHistoryResponse{Jobs: jobs, Stats: h.jobs.Stats()})
}

// GetJob godoc
// @ID           getSyncJob
// @Summary      Get a sync job
// @Tags         sync
// @Produce      json
// @Param        id path string true "Job ID" format(uuid)
// @Success      200 {object} APIResponse[integrationapp.SyncJobResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/sync/jobs/{id} [get]
func (h *SyncHandler) GetJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}
	job, err := h.jobs.Job(jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToSyncJobResponse(job, false))
}

// CancelJob godoc
// @ID           cancelSyncJob
// @Summary      Cancel a sync job
// @Description  Cancels a queued job or signals a running one
// @Tags         sync
// @Produce      json
// @Param        id path string true "Job ID" format(uuid)
// @Success      202 {object} APIResponse[CancelJobResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/sync/jobs/{id}/cancel [post]
func (h *SyncHandler) CancelJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}
	if err := h.jobs.Cancel(jobID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, CancelJobResponse{ID: jobID.String(), Cancelled: true})
}

func (h *SyncHandler) jobIDParam(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.ErrorWithCode(c, dto.ErrCodeValidationFormat, "Invalid job ID")
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}

// normalizeMarketplace accepts marketplace codes in any case
func (h *SyncHandler) normalizeMarketplace(c *gin.Context, code *integration.MarketplaceCode) bool {
	if *code == "" {
		return true
	}
	parsed, err := integration.ParseMarketplaceCode(string(*code))
	if err != nil {
		h.HandleError(c, err)
		return false
	}
	*code = parsed
	return true
}
