package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	integrationapp "github.com/meschain/marketsync/internal/application/integration"
	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/scheduler"
	"github.com/meschain/marketsync/internal/interfaces/http/dto"
)

func setupWebhookTestRouter(limit int64) (*MockWebhookIngester, http.Handler) {
	ingester := new(MockWebhookIngester)
	h := NewWebhookHandler(ingester, limit)
	engine := newTestEngine()
	engine.POST("/webhooks/:marketplace", h.Receive)
	return ingester, engine
}

func postWebhook(router http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_Receive(t *testing.T) {
	body := `{"shipmentPackageId":"pkg-1","orderNumber":"TY-100","status":"Created"}`

	t.Run("accepted delivery", func(t *testing.T) {
		ingester, router := setupWebhookTestRouter(0)
		ingester.On("Ingest", mock.Anything, integration.MarketplaceTrendyol,
			mock.MatchedBy(func(h http.Header) bool { return h.Get("X-Signature") == "sig" }),
			[]byte(body),
		).Return(&integrationapp.IngestResult{
			Accepted:   true,
			DeliveryID: "pkg-1",
			EventType:  integration.WebhookOrderCreated,
		}, nil)

		w := postWebhook(router, "/webhooks/trendyol", body, map[string]string{"X-Signature": "sig"})

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
		data := resp.Data.(map[string]any)
		assert.Equal(t, true, data["accepted"])
		assert.Equal(t, "pkg-1", data["delivery_id"])
		assert.NotContains(t, data, "duplicate")
		ingester.AssertExpectations(t)
	})

	t.Run("duplicate delivery is acknowledged", func(t *testing.T) {
		ingester, router := setupWebhookTestRouter(0)
		ingester.On("Ingest", mock.Anything, integration.MarketplaceN11, mock.Anything, mock.Anything).
			Return(&integrationapp.IngestResult{Accepted: true, Duplicate: true, DeliveryID: "d-1"}, nil)

		w := postWebhook(router, "/webhooks/n11", body, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, true, data["duplicate"])
	})

	t.Run("invalid signature is rejected", func(t *testing.T) {
		ingester, router := setupWebhookTestRouter(0)
		ingester.On("Ingest", mock.Anything, integration.MarketplaceHepsiburada, mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("hepsiburada: %w", integration.ErrSecurity))

		w := postWebhook(router, "/webhooks/hepsiburada", body, map[string]string{"Authorization": "Basic bad"})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeSignatureInvalid, resp.Error.Code)
	})

	t.Run("full queue asks for redelivery", func(t *testing.T) {
		ingester, router := setupWebhookTestRouter(0)
		ingester.On("Ingest", mock.Anything, integration.MarketplaceAmazon, mock.Anything, mock.Anything).
			Return(nil, scheduler.ErrEventQueueFull)

		w := postWebhook(router, "/webhooks/amazon", body, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("unconfigured marketplace", func(t *testing.T) {
		ingester, router := setupWebhookTestRouter(0)
		ingester.On("Ingest", mock.Anything, integration.MarketplaceOzon, mock.Anything, mock.Anything).
			Return(nil, integration.ErrMarketplaceNotConfigured)

		w := postWebhook(router, "/webhooks/ozon", body, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown marketplace never reaches the ingestor", func(t *testing.T) {
		ingester, router := setupWebhookTestRouter(0)

		w := postWebhook(router, "/webhooks/etsy", body, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		ingester.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty body", func(t *testing.T) {
		ingester, router := setupWebhookTestRouter(0)

		w := postWebhook(router, "/webhooks/ebay", "", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		ingester.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("oversized body", func(t *testing.T) {
		ingester, router := setupWebhookTestRouter(16)

		w := postWebhook(router, "/webhooks/trendyol", body, nil)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodePayloadTooLarge, resp.Error.Code)
		ingester.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestNewWebhookHandler_DefaultLimit(t *testing.T) {
	h := NewWebhookHandler(new(MockWebhookIngester), -1)
	assert.Equal(t, DefaultWebhookBodyLimit, h.bodyLimit)
}
