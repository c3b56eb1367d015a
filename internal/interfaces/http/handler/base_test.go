package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
	"github.com/meschain/marketsync/internal/infrastructure/scheduler"
	"github.com/meschain/marketsync/internal/interfaces/http/dto"
	"github.com/meschain/marketsync/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// newTestEngine returns an engine with request IDs, as in production
func newTestEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	return engine
}

func jsonBody(s string) *strings.Reader {
	return strings.NewReader(s)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"domain not found", shared.NewDomainError("NOT_FOUND", "category not found"), http.StatusNotFound, dto.ErrCodeNotFound},
		{"wrapped domain error", fmt.Errorf("load: %w", shared.NewDomainError("INVALID_INPUT", "bad")), http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"unknown marketplace", integration.ErrMarketplaceUnknown, http.StatusNotFound, dto.ErrCodeMarketplaceUnknown},
		{"not configured", fmt.Errorf("get: %w", integration.ErrMarketplaceNotConfigured), http.StatusNotFound, dto.ErrCodeMarketplaceUnknown},
		{"bad signature", fmt.Errorf("trendyol: %w", integration.ErrSecurity), http.StatusUnauthorized, dto.ErrCodeSignatureInvalid},
		{"halted", scheduler.ErrMarketplaceHalted, http.StatusConflict, dto.ErrCodeMarketplaceHalted},
		{"job queue full", scheduler.ErrJobQueueFull, http.StatusServiceUnavailable, dto.ErrCodeUnavailable},
		{"event queue full", scheduler.ErrEventQueueFull, http.StatusServiceUnavailable, dto.ErrCodeUnavailable},
		{"not running", scheduler.ErrSchedulerNotRunning, http.StatusServiceUnavailable, dto.ErrCodeUnavailable},
		{"job not found", scheduler.ErrJobNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"job finished", scheduler.ErrJobFinished, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"bad job type", integration.ErrInvalidJobType, http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"mapping unresolved", integration.ErrMappingUnresolved, http.StatusUnprocessableEntity, dto.ErrCodeMappingUnresolved},
		{"malformed payload", fmt.Errorf("decode: %w", integration.ErrValidation), http.StatusBadRequest, dto.ErrCodeValidation},
		{"marketplace auth", integration.ErrAuth, http.StatusBadGateway, dto.ErrCodeMarketplaceAuth},
		{"upstream down", integration.ErrTransientNetwork, http.StatusBadGateway, dto.ErrCodeMarketplaceUpstream},
		{"body too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			engine := newTestEngine()
			engine.GET("/x", func(c *gin.Context) { h.HandleError(c, tt.err) })

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
			assert.Equal(t, w.Header().Get(middleware.RequestIDHeader), resp.Error.RequestID)
		})
	}
}

func TestBaseHandler_HandleError_Nil(t *testing.T) {
	h := &BaseHandler{}
	engine := newTestEngine()
	engine.GET("/x", func(c *gin.Context) {
		h.HandleError(c, nil)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestBaseHandler_MarketplaceParam(t *testing.T) {
	h := &BaseHandler{}
	engine := newTestEngine()
	engine.GET("/m/:marketplace", func(c *gin.Context) {
		code, ok := h.MarketplaceParam(c)
		if !ok {
			return
		}
		c.String(http.StatusOK, string(code))
	})

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/m/trendyol", http.StatusOK, "TRENDYOL"},
		{"/m/HEPSIBURADA", http.StatusOK, "HEPSIBURADA"},
		{"/m/Ozon", http.StatusOK, "OZON"},
		{"/m/etsy", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestBaseHandler_BindJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name" binding:"required,max=5"`
	}
	h := &BaseHandler{}
	engine := newTestEngine()
	engine.POST("/x", func(c *gin.Context) {
		var req payload
		if !h.BindJSON(c, &req) {
			return
		}
		c.String(http.StatusOK, req.Name)
	})

	t.Run("valid", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", jsonBody(`{"name":"abc"}`)))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "abc", w.Body.String())
	})

	t.Run("field errors carry details", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", jsonBody(`{"name":"toolong"}`)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "name", resp.Error.Details[0].Field)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", jsonBody(`{"name":`)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	})
}
