package integration

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedAdapter serves ListOrders from fixed pages keyed by cursor
type pagedAdapter struct {
	code   MarketplaceCode
	pages  map[string]*OrderPage
	calls  []string
	failAt string
}

func (a *pagedAdapter) Code() MarketplaceCode { return a.code }
func (a *pagedAdapter) Authenticate(context.Context) (*Session, error) {
	return &Session{Marketplace: a.code}, nil
}
func (a *pagedAdapter) ListProducts(context.Context, string) (*ProductPage, error) {
	return &ProductPage{}, nil
}
func (a *pagedAdapter) GetProduct(context.Context, string) (*RemoteProduct, error) {
	return nil, ErrNotFound
}
func (a *pagedAdapter) ListCategories(context.Context) ([]RemoteCategory, error) { return nil, nil }
func (a *pagedAdapter) UpsertProduct(context.Context, *Product, *CategoryMapping, AttributeSet) (*RemoteProductRef, error) {
	return nil, nil
}
func (a *pagedAdapter) UpdateStockPrice(context.Context, string, int, decimal.Decimal) (*Ack, error) {
	return nil, nil
}
func (a *pagedAdapter) ListOrders(_ context.Context, cursor string) (*OrderPage, error) {
	a.calls = append(a.calls, cursor)
	if cursor == a.failAt && a.failAt != "" {
		return nil, ErrTransientNetwork
	}
	if p, ok := a.pages[cursor]; ok {
		return p, nil
	}
	return &OrderPage{}, nil
}
func (a *pagedAdapter) UpdateOrderStatus(context.Context, *OrderStatusUpdate) error { return nil }
func (a *pagedAdapter) ValidateWebhook(http.Header, []byte) (*WebhookEvent, error) {
	return nil, ErrSecurity
}

func orders(ids ...string) []RemoteOrder {
	out := make([]RemoteOrder, 0, len(ids))
	for _, id := range ids {
		out = append(out, RemoteOrder{Marketplace: MarketplaceTrendyol, RemoteOrderID: id})
	}
	return out
}

func drain(t *testing.T, it *OrderIterator) ([]string, error) {
	t.Helper()
	var ids []string
	for {
		o, ok, err := it.Next(context.Background())
		if err != nil {
			return ids, err
		}
		if !ok {
			return ids, nil
		}
		ids = append(ids, o.RemoteOrderID)
	}
}

func TestOrderIterator_LazyPaging(t *testing.T) {
	a := &pagedAdapter{code: MarketplaceTrendyol, pages: map[string]*OrderPage{
		"":   {Orders: orders("1", "2"), NextCursor: "p2"},
		"p2": {Orders: orders("3"), NextCursor: "p3"},
		"p3": {Orders: nil},
	}}
	it := NewOrderIterator(a, "", 0)

	first, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", first.RemoteOrderID)
	assert.Equal(t, []string{""}, a.calls)

	ids, err := drain(t, it)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids)
	assert.True(t, it.Exhausted())
	assert.Equal(t, "p3", it.Cursor())
	assert.Equal(t, 3, it.Pages())
}

func TestOrderIterator_MaxPages(t *testing.T) {
	a := &pagedAdapter{code: MarketplaceTrendyol, pages: map[string]*OrderPage{
		"":   {Orders: orders("1"), NextCursor: "p2"},
		"p2": {Orders: orders("2"), NextCursor: "p3"},
	}}
	it := NewOrderIterator(a, "", 1)

	ids, err := drain(t, it)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)
	assert.False(t, it.Exhausted())
	assert.Equal(t, "p2", it.Cursor())

	_, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderIterator_ErrorKeepsCursor(t *testing.T) {
	a := &pagedAdapter{code: MarketplaceTrendyol, failAt: "p2", pages: map[string]*OrderPage{
		"": {Orders: orders("1"), NextCursor: "p2"},
	}}
	it := NewOrderIterator(a, "", 0)

	ids, err := drain(t, it)
	assert.ErrorIs(t, err, ErrTransientNetwork)
	assert.Equal(t, []string{"1"}, ids)
	assert.Equal(t, "p2", it.Cursor())
}

func TestOrderCursor_RoundTrip(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := OrderCursor{Since: since, Page: "3"}

	parsed := ParseOrderCursor(c.String())
	assert.True(t, parsed.Since.Equal(since))
	assert.Equal(t, "3", parsed.Page)

	assert.Equal(t, OrderCursor{}, ParseOrderCursor("garbage"))
	assert.Equal(t, "", OrderCursor{}.String())
}

func TestAdapterRegistry(t *testing.T) {
	reg := NewAdapterRegistry(
		&pagedAdapter{code: MarketplaceOzon},
		&pagedAdapter{code: MarketplaceAmazon},
	)

	a, err := reg.Get(MarketplaceOzon)
	require.NoError(t, err)
	assert.Equal(t, MarketplaceOzon, a.Code())

	_, err = reg.Get(MarketplaceN11)
	assert.True(t, errors.Is(err, ErrMarketplaceNotConfigured))

	_, err = reg.Get("SHOPIFY")
	assert.ErrorIs(t, err, ErrMarketplaceUnknown)

	assert.Equal(t, []MarketplaceCode{MarketplaceAmazon, MarketplaceOzon}, reg.Codes())
}

func TestRevisionHash(t *testing.T) {
	a := ProductSnapshot{Price: decimal.RequireFromString("10.5"), Quantity: 3, Name: "x"}
	b := ProductSnapshot{Price: decimal.RequireFromString("10.50"), Quantity: 3, Name: "x"}
	assert.Equal(t, RevisionHash(a), RevisionHash(b))

	b.Quantity = 4
	assert.NotEqual(t, RevisionHash(a), RevisionHash(b))
}

func TestSyncCursor_ResumeCursor(t *testing.T) {
	c := NewSyncCursor(MarketplaceTrendyol, JobTypeOrder)
	assert.Equal(t, "", c.ResumeCursor(time.Minute))

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Observe(ts)
	c.Observe(ts.Add(-time.Hour))

	parsed := ParseOrderCursor(c.ResumeCursor(5 * time.Minute))
	assert.True(t, parsed.Since.Equal(ts.Add(-5*time.Minute)))
}
