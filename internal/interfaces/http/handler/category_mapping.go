package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	integrationapp "github.com/meschain/marketsync/internal/application/integration"
	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/logger"
	"github.com/meschain/marketsync/internal/interfaces/http/dto"
)

// CategoryMapper manages local to marketplace category mappings
type CategoryMapper interface {
	SetManualMapping(ctx context.Context, localCategoryID uuid.UUID, marketplace integration.MarketplaceCode, remoteCategoryID string) (*integration.CategoryMapping, error)
	RefreshAutoMappings(ctx context.Context, marketplace integration.MarketplaceCode) (*integrationapp.RefreshResult, error)
	ListMappings(ctx context.Context, marketplace integration.MarketplaceCode) ([]integration.CategoryMapping, error)
}

// JobSubmitter enqueues a sync job
type JobSubmitter interface {
	Submit(marketplace integration.MarketplaceCode, jobType integration.JobType, trigger string) (*integration.SyncJob, bool, error)
}

// CategoryMappingHandler serves the category mapping endpoints
type CategoryMappingHandler struct {
	BaseHandler
	mapper CategoryMapper
	jobs   JobSubmitter
}

// NewCategoryMappingHandler creates a new CategoryMappingHandler. When jobs
// is set, a product sync is queued after each manual mapping so parked
// products are retried.
func NewCategoryMappingHandler(mapper CategoryMapper, jobs JobSubmitter) *CategoryMappingHandler {
	return &CategoryMappingHandler{mapper: mapper, jobs: jobs}
}

// RefreshMappingsResponse summarizes a re-mapping pass
type RefreshMappingsResponse struct {
	Marketplace integration.MarketplaceCode `json:"marketplace"`
	Unchanged   int                         `json:"unchanged"`
	Remapped    int                         `json:"remapped"`
	Parked      int                         `json:"parked"`
}

// Create godoc
// @ID           createCategoryMapping
// @Summary      Record a manual category mapping
// @Description  Replaces automatic mappings of the local category, requeues products parked on it and queues a product sync
// @Tags         category-mappings
// @Accept       json
// @Produce      json
// @Param        request body integrationapp.SetCategoryMappingRequest true "Mapping"
// @Success      201 {object} APIResponse[integrationapp.CategoryMappingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/category-mappings [post]
func (h *CategoryMappingHandler) Create(c *gin.Context) {
	var req integrationapp.SetCategoryMappingRequest
	if !h.BindJSON(c, &req) {
		return
	}
	marketplace, err := integration.ParseMarketplaceCode(string(req.Marketplace))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	mapping, err := h.mapper.SetManualMapping(c.Request.Context(), req.LocalCategoryID, marketplace, req.RemoteCategoryID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if h.jobs != nil {
		if _, _, err := h.jobs.Submit(marketplace, integration.JobTypeProduct, "category-mapping"); err != nil {
			logger.FromGin(c).Warn("Failed to queue product sync after manual mapping",
				zap.String("marketplace", string(marketplace)),
				zap.Error(err),
			)
		}
	}
	h.Created(c, integrationapp.ToCategoryMappingResponse(mapping))
}

// List godoc
// @ID           listCategoryMappings
// @Summary      List category mappings
// @Tags         category-mappings
// @Produce      json
// @Param        marketplace query string true "Marketplace code"
// @Success      200 {object} APIResponse[[]integrationapp.CategoryMappingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/category-mappings [get]
func (h *CategoryMappingHandler) List(c *gin.Context) {
	raw := c.Query("marketplace")
	if raw == "" {
		h.ErrorWithCode(c, dto.ErrCodeValidationRequired, "marketplace query parameter is required")
		return
	}
	marketplace, err := integration.ParseMarketplaceCode(raw)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	mappings, err := h.mapper.ListMappings(c.Request.Context(), marketplace)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]integrationapp.CategoryMappingResponse, 0, len(mappings))
	for i := range mappings {
		out = append(out, integrationapp.ToCategoryMappingResponse(&mappings[i]))
	}
	h.BaseHandler.List(c, out, len(out), marketplace)
}

// Refresh godoc
// @ID           refreshCategoryMappings
// @Summary      Re-run automatic category mapping
// @Description  Reloads the marketplace category tree and re-matches automatic mappings whose source changed
// @Tags         category-mappings
// @Produce      json
// @Param        marketplace path string true "Marketplace code"
// @Success      200 {object} APIResponse[RefreshMappingsResponse]
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/category-mappings/refresh/{marketplace} [post]
func (h *CategoryMappingHandler) Refresh(c *gin.Context) {
	marketplace, ok := h.MarketplaceParam(c)
	if !ok {
		return
	}
	result, err := h.mapper.RefreshAutoMappings(c.Request.Context(), marketplace)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RefreshMappingsResponse{
		Marketplace: marketplace,
		Unchanged:   result.Unchanged,
		Remapped:    result.Remapped,
		Parked:      result.Parked,
	})
}
