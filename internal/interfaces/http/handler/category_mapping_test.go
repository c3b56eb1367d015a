package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	integrationapp "github.com/meschain/marketsync/internal/application/integration"
	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
	"github.com/meschain/marketsync/internal/interfaces/http/dto"
)

func setupCategoryMappingTestRouter(withJobs bool) (*gin.Engine, *MockCategoryMapper, *MockJobController) {
	mapper := new(MockCategoryMapper)
	jobs := new(MockJobController)
	var submitter JobSubmitter
	if withJobs {
		submitter = jobs
	}
	h := NewCategoryMappingHandler(mapper, submitter)

	engine := newTestEngine()
	engine.POST("/category-mappings", h.Create)
	engine.GET("/category-mappings", h.List)
	engine.POST("/category-mappings/refresh/:marketplace", h.Refresh)
	return engine, mapper, jobs
}

func postJSON(engine http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func newTestMapping(t *testing.T, localID uuid.UUID, mp integration.MarketplaceCode) *integration.CategoryMapping {
	t.Helper()
	m, err := integration.NewCategoryMapping(localID, mp, integration.RemoteCategory{
		ID:   "411",
		Name: "Sneakers",
		Path: []string{"Shoes", "Sneakers"},
		Leaf: true,
	}, 1.0, false)
	require.NoError(t, err)
	return m
}

func TestCategoryMappingHandler_Create(t *testing.T) {
	localID := uuid.New()

	t.Run("manual mapping queues a product sync", func(t *testing.T) {
		engine, mapper, jobs := setupCategoryMappingTestRouter(true)
		mapping := newTestMapping(t, localID, integration.MarketplaceTrendyol)
		mapper.On("SetManualMapping", mock.Anything, localID, integration.MarketplaceTrendyol, "411").Return(mapping, nil)
		jobs.On("Submit", integration.MarketplaceTrendyol, integration.JobTypeProduct, "category-mapping").
			Return(newQueuedJob(t, integration.MarketplaceTrendyol, integration.JobTypeProduct), false, nil)

		w := postJSON(engine, "/category-mappings",
			`{"local_category_id":"`+localID.String()+`","marketplace":"trendyol","remote_category_id":"411"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "TRENDYOL", data["marketplace"])
		assert.Equal(t, "Shoes > Sneakers", data["remote_category_path"])
		assert.Equal(t, false, data["auto_mapped"])
		mapper.AssertExpectations(t)
		jobs.AssertExpectations(t)
	})

	t.Run("queue failure does not fail the mapping", func(t *testing.T) {
		engine, mapper, jobs := setupCategoryMappingTestRouter(true)
		mapper.On("SetManualMapping", mock.Anything, localID, integration.MarketplaceN11, "411").
			Return(newTestMapping(t, localID, integration.MarketplaceN11), nil)
		jobs.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return(nil, false, errors.New("queue full"))

		w := postJSON(engine, "/category-mappings",
			`{"local_category_id":"`+localID.String()+`","marketplace":"N11","remote_category_id":"411"}`)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("validation errors", func(t *testing.T) {
		engine, mapper, _ := setupCategoryMappingTestRouter(false)

		w := postJSON(engine, "/category-mappings", `{"marketplace":"etsy","remote_category_id":""}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		fields := make([]string, 0, len(resp.Error.Details))
		for _, d := range resp.Error.Details {
			fields = append(fields, d.Field)
		}
		assert.ElementsMatch(t, []string{"local_category_id", "marketplace", "remote_category_id"}, fields)
		mapper.AssertNotCalled(t, "SetManualMapping", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("remote category does not exist", func(t *testing.T) {
		engine, mapper, _ := setupCategoryMappingTestRouter(false)
		mapper.On("SetManualMapping", mock.Anything, localID, integration.MarketplaceEbay, "999").
			Return(nil, integration.ErrInvalidCategoryMapping)

		w := postJSON(engine, "/category-mappings",
			`{"local_category_id":"`+localID.String()+`","marketplace":"ebay","remote_category_id":"999"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("local category missing", func(t *testing.T) {
		engine, mapper, _ := setupCategoryMappingTestRouter(false)
		mapper.On("SetManualMapping", mock.Anything, localID, integration.MarketplaceOzon, "411").
			Return(nil, shared.ErrNotFound)

		w := postJSON(engine, "/category-mappings",
			`{"local_category_id":"`+localID.String()+`","marketplace":"ozon","remote_category_id":"411"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCategoryMappingHandler_List(t *testing.T) {
	t.Run("lists mappings", func(t *testing.T) {
		engine, mapper, _ := setupCategoryMappingTestRouter(false)
		m := newTestMapping(t, uuid.New(), integration.MarketplaceAmazon)
		mapper.On("ListMappings", mock.Anything, integration.MarketplaceAmazon).Return([]integration.CategoryMapping{*m}, nil)

		w := doRequest(engine, http.MethodGet, "/category-mappings?marketplace=amazon")

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 1, resp.Meta.Count)
		assert.Equal(t, "AMAZON", resp.Meta.Marketplace)
		assert.Len(t, resp.Data.([]any), 1)
	})

	t.Run("marketplace is required", func(t *testing.T) {
		engine, mapper, _ := setupCategoryMappingTestRouter(false)

		w := doRequest(engine, http.MethodGet, "/category-mappings")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mapper.AssertNotCalled(t, "ListMappings", mock.Anything, mock.Anything)
	})
}

func TestCategoryMappingHandler_Refresh(t *testing.T) {
	engine, mapper, _ := setupCategoryMappingTestRouter(false)
	mapper.On("RefreshAutoMappings", mock.Anything, integration.MarketplaceHepsiburada).
		Return(&integrationapp.RefreshResult{Unchanged: 5, Remapped: 2, Parked: 1}, nil)

	w := postJSON(engine, "/category-mappings/refresh/hepsiburada", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, "HEPSIBURADA", data["marketplace"])
	assert.Equal(t, float64(2), data["remapped"])
	assert.Equal(t, float64(1), data["parked"])
}
