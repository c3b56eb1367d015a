package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
)

var errQueueFull = errors.New("event queue is full")

func orderEvent(mp integration.MarketplaceCode, deliveryID, remoteID string) *integration.WebhookEvent {
	return &integration.WebhookEvent{
		DeliveryID: deliveryID,
		Type:       integration.WebhookOrderCreated,
		Order:      remoteOrder(mp, remoteID, integration.OrderStatusPending, time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC)),
	}
}

// collectingQueue records submitted events
type collectingQueue struct {
	events []*integration.WebhookEvent
	err    error
}

func (q *collectingQueue) SubmitEvent(e *integration.WebhookEvent) error {
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, e)
	return nil
}

func TestWebhookIngestor_Accepts(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceTrendyol
	body := []byte(`{"orderNumber":"TY-77"}`)
	headers := http.Header{"X-Signature": []string{"ok"}}

	adapter := newMockAdapter(mp)
	adapter.On("ValidateWebhook", headers, body).Return(orderEvent("", "", "TY-77"), nil)

	queue := &collectingQueue{}
	audit := &recordingAudit{}
	w := NewWebhookIngestor(integration.NewAdapterRegistry(adapter), newMemDedupe(), queue, audit, shared.DefaultIdempotencyConfig(), nil)

	result, err := w.Ingest(ctx, mp, headers, body)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.False(t, result.Duplicate)
	assert.Equal(t, integration.PayloadDigest(body), result.DeliveryID, "falls back to a digest of the body")
	assert.Equal(t, integration.WebhookOrderCreated, result.EventType)

	require.Len(t, queue.events, 1)
	assert.Equal(t, mp, queue.events[0].Marketplace)
	assert.False(t, queue.events[0].ReceivedAt.IsZero())

	entries := audit.WithOutcome(integration.AuditOutcomeSuccess)
	require.Len(t, entries, 1)
	assert.Equal(t, OpWebhookReceive, entries[0].Operation)
	assert.Equal(t, string(integration.WebhookOrderCreated), entries[0].Detail)
}

func TestWebhookIngestor_RejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceHepsiburada
	body := []byte(`{"id":"HB-1"}`)

	adapter := newMockAdapter(mp)
	adapter.On("ValidateWebhook", mock.Anything, body).
		Return(nil, fmt.Errorf("%w: signature mismatch", integration.ErrSecurity))

	queue := &collectingQueue{}
	audit := &recordingAudit{}
	w := NewWebhookIngestor(integration.NewAdapterRegistry(adapter), newMemDedupe(), queue, audit, shared.DefaultIdempotencyConfig(), nil)

	result, err := w.Ingest(ctx, mp, http.Header{}, body)
	require.ErrorIs(t, err, integration.ErrSecurity)
	assert.Nil(t, result)
	assert.Empty(t, queue.events)

	rejected := audit.WithOutcome(integration.AuditOutcomeRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, body, rejected[0].Payload)
}

func TestWebhookIngestor_DuplicateDelivery(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceN11
	body := []byte(`{"orderId":"N-3"}`)

	adapter := newMockAdapter(mp)
	adapter.On("ValidateWebhook", mock.Anything, body).Return(orderEvent(mp, "dlv-1", "N-3"), nil)

	queue := &collectingQueue{}
	w := NewWebhookIngestor(integration.NewAdapterRegistry(adapter), newMemDedupe(), queue, nil, shared.DefaultIdempotencyConfig(), nil)

	first, err := w.Ingest(ctx, mp, http.Header{}, body)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := w.Ingest(ctx, mp, http.Header{}, body)
	require.NoError(t, err)
	assert.True(t, second.Accepted)
	assert.True(t, second.Duplicate)

	assert.Len(t, queue.events, 1)
}

func TestWebhookIngestor_FullQueueAllowsRedelivery(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceOzon
	body := []byte(`{"posting_number":"OZ-9"}`)

	adapter := newMockAdapter(mp)
	adapter.On("ValidateWebhook", mock.Anything, body).Return(orderEvent(mp, "dlv-9", "OZ-9"), nil)

	dedupe := newMemDedupe()
	queue := &collectingQueue{err: errQueueFull}
	w := NewWebhookIngestor(integration.NewAdapterRegistry(adapter), dedupe, queue, nil, shared.DefaultIdempotencyConfig(), nil)

	_, err := w.Ingest(ctx, mp, http.Header{}, body)
	require.ErrorIs(t, err, errQueueFull)

	processed, err := dedupe.IsProcessed(ctx, "OZON:dlv-9")
	require.NoError(t, err)
	assert.False(t, processed, "the key is released so the redelivery is not dropped")

	queue.err = nil
	result, err := w.Ingest(ctx, mp, http.Header{}, body)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Len(t, queue.events, 1)
}

func TestWebhookIngestor_UnknownMarketplace(t *testing.T) {
	w := NewWebhookIngestor(integration.NewAdapterRegistry(), nil, &collectingQueue{}, nil, shared.IdempotencyConfig{}, nil)

	_, err := w.Ingest(context.Background(), "etsy", http.Header{}, []byte(`{}`))
	assert.ErrorIs(t, err, integration.ErrMarketplaceUnknown)

	_, err = w.Ingest(context.Background(), integration.MarketplaceAmazon, http.Header{}, []byte(`{}`))
	assert.ErrorIs(t, err, integration.ErrMarketplaceNotConfigured)
}

func TestWebhookIngestor_DisabledDedupeStillIdempotent(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceTrendyol
	body := []byte(`{"orderNumber":"TY-5"}`)

	adapter := newMockAdapter(mp)
	adapter.On("ValidateWebhook", mock.Anything, body).Return(orderEvent(mp, "dlv-5", "TY-5"), nil)

	orders := newMemOrders()
	orderSvc, _ := newOrderService(orders, noProducts(), adapter, nil)
	dispatcher := NewEventDispatcher(orderSvc, nil, nil)
	queue := queueFunc(func(e *integration.WebhookEvent) error {
		return dispatcher.HandleEvent(ctx, e)
	})

	dedupe := newMemDedupe()
	w := NewWebhookIngestor(integration.NewAdapterRegistry(adapter), dedupe, queue, nil, shared.IdempotencyConfig{Enabled: false}, nil)

	for i := 0; i < 3; i++ {
		result, err := w.Ingest(ctx, mp, http.Header{}, body)
		require.NoError(t, err)
		assert.False(t, result.Duplicate)
	}

	assert.Equal(t, 1, orders.Len(), "redeliveries converge on one order")
	processed, _ := dedupe.IsProcessed(ctx, "TRENDYOL:dlv-5")
	assert.False(t, processed)
}

func TestEventDispatcher_ProductEventForUnlinkedListing(t *testing.T) {
	ctx := context.Background()
	mp := integration.MarketplaceEbay
	repo := new(mockProductRepository)
	repo.On("FindByRemoteProductID", ctx, mp, "EB-404").Return(nil, shared.ErrNotFound)

	reconciler := NewReconciliationService(repo, integration.NewAdapterRegistry(newMockAdapter(mp)), nil, nil, nil)
	dispatcher := NewEventDispatcher(nil, reconciler, nil)

	err := dispatcher.HandleEvent(ctx, &integration.WebhookEvent{
		Marketplace:     mp,
		Type:            integration.WebhookProductChanged,
		RemoteProductID: "EB-404",
	})
	assert.NoError(t, err)
}

func TestEventDispatcher_OrderEventWithoutOrder(t *testing.T) {
	dispatcher := NewEventDispatcher(nil, nil, nil)
	err := dispatcher.HandleEvent(context.Background(), &integration.WebhookEvent{
		Marketplace: integration.MarketplaceN11,
		Type:        integration.WebhookOrderStatusChanged,
	})
	assert.ErrorIs(t, err, integration.ErrValidation)

	err = dispatcher.HandleEvent(context.Background(), &integration.WebhookEvent{
		Marketplace: integration.MarketplaceN11,
		Type:        "shipment.label_printed",
	})
	assert.NoError(t, err, "unsupported events are dropped")
}
