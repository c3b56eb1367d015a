package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	integrationapp "github.com/meschain/marketsync/internal/application/integration"
	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/logger"
	"github.com/meschain/marketsync/internal/interfaces/http/dto"
)

// DefaultWebhookBodyLimit caps a webhook body at 256 KiB
const DefaultWebhookBodyLimit int64 = 256 << 10

// WebhookIngester validates and enqueues a webhook delivery
type WebhookIngester interface {
	Ingest(ctx context.Context, marketplace integration.MarketplaceCode, headers http.Header, body []byte) (*integrationapp.IngestResult, error)
}

// WebhookHandler receives marketplace webhooks. It authenticates by
// signature, so it is mounted outside the JWT-protected API group.
type WebhookHandler struct {
	BaseHandler
	ingestor  WebhookIngester
	bodyLimit int64
}

// NewWebhookHandler creates a new WebhookHandler. A non-positive bodyLimit
// uses DefaultWebhookBodyLimit.
func NewWebhookHandler(ingestor WebhookIngester, bodyLimit int64) *WebhookHandler {
	if bodyLimit <= 0 {
		bodyLimit = DefaultWebhookBodyLimit
	}
	return &WebhookHandler{ingestor: ingestor, bodyLimit: bodyLimit}
}

// WebhookAckResponse acknowledges a validated delivery
type WebhookAckResponse struct {
	Accepted   bool   `json:"accepted"`
	Duplicate  bool   `json:"duplicate,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
	EventType  string `json:"event_type,omitempty"`
}

// Receive godoc
// @ID           receiveWebhook
// @Summary      Receive a marketplace webhook
// @Description  Verifies the marketplace signature, deduplicates the delivery and queues it. Processing happens asynchronously.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        marketplace path string true "Marketplace code"
// @Param        request body object true "Marketplace event payload"
// @Success      200 {object} APIResponse[WebhookAckResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      413 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /webhooks/{marketplace} [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	marketplace, ok := h.MarketplaceParam(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.bodyLimit))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.HandleError(c, err)
			return
		}
		h.BadRequest(c, "Unable to read request body")
		return
	}
	if len(body) == 0 {
		h.ErrorWithCode(c, dto.ErrCodeValidation, "Empty webhook body")
		return
	}

	result, err := h.ingestor.Ingest(c.Request.Context(), marketplace, c.Request.Header, body)
	if err != nil {
		if errors.Is(err, integration.ErrSecurity) {
			logger.FromGin(c).Warn("Webhook signature rejected",
				zap.String("marketplace", string(marketplace)),
				zap.String("client_ip", c.ClientIP()),
			)
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, WebhookAckResponse{
		Accepted:   result.Accepted,
		Duplicate:  result.Duplicate,
		DeliveryID: result.DeliveryID,
		EventType:  string(result.EventType),
	})
}
