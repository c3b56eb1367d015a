package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
	"github.com/meschain/marketsync/internal/infrastructure/logger"
	"github.com/meschain/marketsync/internal/infrastructure/scheduler"
	"github.com/meschain/marketsync/internal/interfaces/http/dto"
	"github.com/meschain/marketsync/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// List sends items with their count. marketplace is echoed when the list
// was filtered by one.
func (h *BaseHandler) List(c *gin.Context, items any, count int, marketplace integration.MarketplaceCode) {
	c.JSON(http.StatusOK, dto.NewListResponse(items, count, string(marketplace)))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// BindJSON binds the request body and answers 400 with field details on
// failure. It reports whether the handler may continue.
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.bindFailed(c, err)
		return false
	}
	return true
}

// BindQuery binds the query string like BindJSON
func (h *BaseHandler) BindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		h.bindFailed(c, err)
		return false
	}
	return true
}

func (h *BaseHandler) bindFailed(c *gin.Context, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Request body too large")
		return
	}
	resp := middleware.FormatValidationErrors(err, middleware.GetRequestID(c))
	if len(resp.Error.Details) == 0 {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Malformed request body")
		return
	}
	c.JSON(http.StatusBadRequest, resp)
}

// MarketplaceParam parses the :marketplace path parameter and answers 404 for
// unknown codes. It reports whether the handler may continue.
func (h *BaseHandler) MarketplaceParam(c *gin.Context) (integration.MarketplaceCode, bool) {
	code, err := integration.ParseMarketplaceCode(c.Param("marketplace"))
	if err != nil {
		h.ErrorWithCode(c, dto.ErrCodeMarketplaceUnknown, "Unknown marketplace")
		return "", false
	}
	return code, true
}

// errorMapping translates sentinel errors to API error codes. The first match
// wins, so more specific errors come first.
var errorMapping = []struct {
	target  error
	code    string
	message string
}{
	{integration.ErrMarketplaceUnknown, dto.ErrCodeMarketplaceUnknown, "Unknown marketplace"},
	{integration.ErrMarketplaceNotConfigured, dto.ErrCodeMarketplaceUnknown, "Marketplace is not configured"},
	{integration.ErrSecurity, dto.ErrCodeSignatureInvalid, "Webhook signature verification failed"},
	{scheduler.ErrMarketplaceHalted, dto.ErrCodeMarketplaceHalted, "Marketplace is halted until re-authenticated"},
	{scheduler.ErrJobQueueFull, dto.ErrCodeUnavailable, "Job queue is full, retry later"},
	{scheduler.ErrEventQueueFull, dto.ErrCodeUnavailable, "Event queue is full, retry later"},
	{scheduler.ErrSchedulerNotRunning, dto.ErrCodeUnavailable, "Sync orchestrator is not running"},
	{scheduler.ErrJobNotFound, dto.ErrCodeNotFound, "Sync job not found"},
	{scheduler.ErrJobFinished, dto.ErrCodeInvalidState, "Sync job already finished"},
	{integration.ErrInvalidJobType, dto.ErrCodeInvalidInput, "Unknown sync job type"},
	{integration.ErrInvalidCategoryMapping, dto.ErrCodeInvalidInput, "Invalid category mapping"},
	{integration.ErrMappingUnresolved, dto.ErrCodeMappingUnresolved, "Category mapping unresolved"},
	{integration.ErrValidation, dto.ErrCodeValidation, "Payload rejected"},
	{integration.ErrAuth, dto.ErrCodeMarketplaceAuth, "Marketplace rejected the credentials"},
	{integration.ErrRateLimited, dto.ErrCodeMarketplaceUpstream, "Marketplace rate limit reached"},
	{integration.ErrRateLimitTimeout, dto.ErrCodeMarketplaceUpstream, "Marketplace rate limit reached"},
	{integration.ErrTransientNetwork, dto.ErrCodeMarketplaceUpstream, "Marketplace is unreachable"},
	{integration.ErrInvalidResponse, dto.ErrCodeMarketplaceUpstream, "Marketplace returned an invalid response"},
}

// HandleError converts domain, marketplace and orchestrator errors to HTTP
// responses. Anything unrecognised is logged and answered with 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.ErrorWithCode(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
		return
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Request body too large")
		return
	}

	for _, m := range errorMapping {
		if errors.Is(err, m.target) {
			h.ErrorWithCode(c, m.code, m.message)
			return
		}
	}

	logger.FromGin(c).Error("Unhandled request error", zap.Error(err))
	h.InternalError(c, "An unexpected error occurred")
}
