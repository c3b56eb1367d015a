package ecommerce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meschain/marketsync/internal/domain/integration"
)

func newTrendyolTest(t *testing.T, handler http.Handler) (*TrendyolAdapter, *fakeGate) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gate := newFakeGate()
	a, err := NewTrendyolAdapter(Config{
		APIKey:        "key",
		APISecret:     "secret",
		SupplierID:    "1001",
		WebhookSecret: "hook",
		BaseURL:       server.URL,
		PageSize:      2,
	}, testDeps(gate))
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC) }
	return a, gate
}

func TestTrendyolAdapter_AuthHeaders(t *testing.T) {
	a, gate := newTrendyolTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "1001 - SelfIntegration", r.Header.Get("User-Agent"))
		assert.Equal(t, "/product/sellers/1001/products", r.URL.Path)
		_, _ = w.Write([]byte(`{"content":[],"totalPages":0}`))
	}))

	session, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1001", session.SellerID)
	assert.Nil(t, session.ExpiresAt)
	assert.Equal(t, []integration.EndpointClass{integration.EndpointAuth}, gate.acquired)
}

func TestTrendyolAdapter_AuthenticateRejected(t *testing.T) {
	a, _ := newTrendyolTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	_, err := a.Authenticate(context.Background())
	assert.ErrorIs(t, err, integration.ErrAuth)
	assert.True(t, integration.Classify(err).HaltsMarketplace())
}

func TestTrendyolAdapter_ListProducts(t *testing.T) {
	a, _ := newTrendyolTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "0":
			_, _ = w.Write([]byte(`{"totalPages":2,"content":[
				{"barcode":"ABC123","title":"Mug","stockCode":"SKU-1","quantity":10,"salePrice":99.9,"pimCategoryId":411,"lastUpdateDate":1715000000000},
				{"barcode":"DEF456","title":"Cup","stockCode":"SKU-2","quantity":0,"salePrice":"12.50"}]}`))
		default:
			_, _ = w.Write([]byte(`{"totalPages":2,"content":[{"barcode":"GHI789","title":"Plate","quantity":3,"salePrice":5}]}`))
		}
	}))

	page, err := a.ListProducts(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Products, 2)
	assert.Equal(t, "1", page.NextCursor)

	first := page.Products[0]
	assert.Equal(t, "ABC123", first.RemoteProductID)
	assert.Equal(t, "SKU-1", first.SKU)
	assert.True(t, decimal.RequireFromString("99.9").Equal(first.Price))
	assert.Equal(t, "411", first.CategoryID)
	assert.Equal(t, "1715000000000", first.RevisionHash)
	assert.NotEmpty(t, page.Products[1].RevisionHash)

	page, err = a.ListProducts(context.Background(), page.NextCursor)
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.False(t, page.HasMore())
}

func TestTrendyolAdapter_GetProductNotFound(t *testing.T) {
	a, _ := newTrendyolTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NOPE", r.URL.Query().Get("barcode"))
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	_, err := a.GetProduct(context.Background(), "NOPE")
	assert.ErrorIs(t, err, integration.ErrNotFound)
}

func TestTrendyolAdapter_ListCategories(t *testing.T) {
	a, _ := newTrendyolTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"categories":[{"id":1,"name":"Home","subCategories":[
			{"id":2,"name":"Kitchen","subCategories":[{"id":3,"name":"Mugs","subCategories":[]}]}]}]}`))
	}))
	cats, err := a.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, "3", cats[2].ID)
	assert.Equal(t, []string{"Home", "Kitchen", "Mugs"}, cats[2].Path)
	assert.True(t, cats[2].Leaf)
	assert.False(t, cats[0].Leaf)
}

func TestTrendyolAdapter_UpsertProduct(t *testing.T) {
	var (
		method string
		body   trendyolProductRequest
	)
	a, gate := newTrendyolTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		_, _ = w.Write([]byte(`{"batchRequestId":"batch-1"}`))
	}))

	product, err := integration.NewProduct("SKU-1", "Mug", decimal.NewFromInt(100), 10, uuid.New())
	require.NoError(t, err)
	product.Barcode = "ABC123"
	mapping := &integration.CategoryMapping{RemoteCategoryID: "411"}

	ref, err := a.UpsertProduct(context.Background(), product, mapping, integration.AttributeSet{"brand_id": "77", "47": "Red"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "ABC123", ref.RemoteProductID)
	assert.Equal(t, "batch-1", ref.BatchRequestID)
	require.Len(t, body.Items, 1)
	assert.Equal(t, int64(411), body.Items[0].CategoryID)
	assert.Equal(t, int64(77), body.Items[0].BrandID)
	assert.Equal(t, []trendyolAttribute{{AttributeID: 47, CustomAttributeValue: "Red"}}, body.Items[0].Attributes)
	assert.Equal(t, []integration.EndpointClass{integration.EndpointProductWrite}, gate.acquired)

	link, err := product.EnsureLink(integration.MarketplaceTrendyol)
	require.NoError(t, err)
	link.MarkSynced("ABC123", "rev", product.Snapshot())
	_, err = a.UpsertProduct(context.Background(), product, mapping, nil)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, method)
}

func TestTrendyolAdapter_UpsertRequiresMapping(t *testing.T) {
	a, _ := newTrendyolTest(t, http.NotFoundHandler())
	product, _ := integration.NewProduct("SKU-1", "Mug", decimal.NewFromInt(1), 1, uuid.New())

	_, err := a.UpsertProduct(context.Background(), product, nil, nil)
	assert.ErrorIs(t, err, integration.ErrMappingUnresolved)

	_, err = a.UpsertProduct(context.Background(), product, &integration.CategoryMapping{RemoteCategoryID: "x"}, nil)
	assert.ErrorIs(t, err, integration.ErrValidation)
}

func TestTrendyolAdapter_UpdateStockPrice(t *testing.T) {
	var body trendyolStockPriceRequest
	a, gate := newTrendyolTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inventory/sellers/1001/products/price-and-inventory", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"batchRequestId":"b-2"}`))
	}))

	ack, err := a.UpdateStockPrice(context.Background(), "ABC123", 7, decimal.RequireFromString("89.90"))
	require.NoError(t, err)
	assert.Equal(t, "b-2", ack.BatchRequestID)
	require.Len(t, body.Items, 1)
	assert.Equal(t, 7, body.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("89.9").Equal(body.Items[0].SalePrice))
	assert.Equal(t, []integration.EndpointClass{integration.EndpointStockPrice}, gate.acquired)
}

func TestTrendyolAdapter_ListOrders(t *testing.T) {
	var startDates []string
	a, _ := newTrendyolTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		startDates = append(startDates, q.Get("startDate"))
		if q.Get("page") == "0" {
			_, _ = w.Write([]byte(`{"totalPages":2,"content":[{"id":9001,"orderNumber":"O-1","status":"Created",
				"customerFirstName":"Ada","customerLastName":"Lovelace","totalPrice":150,"currencyCode":"TRY",
				"orderDate":1715000000000,"lastModifiedDate":1715000100000,
				"lines":[{"id":1,"barcode":"ABC123","merchantSku":"SKU-1","productName":"Mug","quantity":2,"price":75}]}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"totalPages":2,"content":[{"id":9002,"status":"Shipped","cargoTrackingNumber":"TRK"}]}`))
	}))

	it := integration.NewOrderIterator(a, "", 0)
	var orders []*integration.RemoteOrder
	for {
		o, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		orders = append(orders, o)
	}
	require.Len(t, orders, 2)
	assert.True(t, it.Exhausted())

	assert.Equal(t, "9001", orders[0].RemoteOrderID)
	assert.Equal(t, integration.OrderStatusPending, orders[0].Status)
	assert.Equal(t, "Ada Lovelace", orders[0].CustomerName)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, "ABC123", orders[0].Items[0].RemoteProductID)
	assert.Equal(t, integration.OrderStatusShipped, orders[1].Status)

	// both pages share the watermark of the poll
	require.Len(t, startDates, 2)
	assert.Equal(t, startDates[0], startDates[1])
	expected := a.now().Add(-DefaultOrderLookback).UnixMilli()
	assert.Equal(t, strconv.FormatInt(expected, 10), startDates[0])
}

func TestTrendyolAdapter_UpdateOrderStatus(t *testing.T) {
	var paths []string
	a, _ := newTrendyolTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
	}))
	ctx := context.Background()

	require.NoError(t, a.UpdateOrderStatus(ctx, &integration.OrderStatusUpdate{RemoteOrderID: "9001", Status: integration.OrderStatusIntegrated}))
	require.NoError(t, a.UpdateOrderStatus(ctx, &integration.OrderStatusUpdate{RemoteOrderID: "9001", Status: integration.OrderStatusShipped, TrackingNumber: "TRK"}))
	require.NoError(t, a.UpdateOrderStatus(ctx, &integration.OrderStatusUpdate{RemoteOrderID: "9001", Status: integration.OrderStatusCancelled}))
	assert.Equal(t, []string{
		"PUT /order/sellers/1001/shipment-packages/9001",
		"PUT /order/sellers/1001/shipment-packages/9001/update-tracking-number",
		"PUT /order/sellers/1001/shipment-packages/9001/items/unsupplied",
	}, paths)

	err := a.UpdateOrderStatus(ctx, &integration.OrderStatusUpdate{RemoteOrderID: "9001", Status: integration.OrderStatusShipped})
	assert.ErrorIs(t, err, integration.ErrValidation)
	err = a.UpdateOrderStatus(ctx, &integration.OrderStatusUpdate{RemoteOrderID: "9001", Status: integration.OrderStatusDelivered})
	assert.ErrorIs(t, err, integration.ErrValidation)
}

func TestTrendyolAdapter_ValidateWebhook(t *testing.T) {
	a, _ := newTrendyolTest(t, http.NotFoundHandler())
	body := []byte(`{"id":9001,"status":"Created","lines":[{"barcode":"ABC123","quantity":1}]}`)

	headers := http.Header{}
	headers.Set(HeaderTrendyolSignature, Sign("hook", body))
	event, err := a.ValidateWebhook(headers, body)
	require.NoError(t, err)
	assert.Equal(t, integration.WebhookOrderCreated, event.Type)
	assert.Equal(t, "9001", event.Order.RemoteOrderID)
	assert.NotEmpty(t, event.DeliveryID)

	headers.Set(HeaderTrendyolSignature, Sign("wrong", body))
	_, err = a.ValidateWebhook(headers, body)
	assert.ErrorIs(t, err, integration.ErrSecurity)

	bad := []byte(`{"status":"Created"}`)
	headers.Set(HeaderTrendyolSignature, Sign("hook", bad))
	_, err = a.ValidateWebhook(headers, bad)
	assert.ErrorIs(t, err, integration.ErrValidation)
}
