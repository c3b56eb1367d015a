package integration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
	"github.com/meschain/marketsync/internal/infrastructure/logger"
)

// EventDispatcher routes validated webhook events onto the same paths polling
// uses: order events to ApplyRemoteOrder, product events to reconciliation.
type EventDispatcher struct {
	orders   *OrderSyncService
	products *ReconciliationService
	logger   *zap.Logger
}

// NewEventDispatcher creates a new EventDispatcher
func NewEventDispatcher(orders *OrderSyncService, products *ReconciliationService, log *zap.Logger) *EventDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventDispatcher{orders: orders, products: products, logger: log}
}

// HandleEvent processes one event. Retryable errors are returned so the
// event worker retries them.
func (d *EventDispatcher) HandleEvent(ctx context.Context, event *integration.WebhookEvent) error {
	log := logger.FromContext(ctx).With(
		zap.String("marketplace", string(event.Marketplace)),
		zap.String("event_type", string(event.Type)),
		zap.String("delivery_id", event.DeliveryID),
	)

	switch event.Type {
	case integration.WebhookOrderCreated, integration.WebhookOrderStatusChanged:
		if event.Order == nil {
			return fmt.Errorf("%w: order event without order", integration.ErrValidation)
		}
		if event.Order.Marketplace == "" {
			event.Order.Marketplace = event.Marketplace
		}
		result, err := d.orders.ApplyRemoteOrder(ctx, event.Order)
		if err != nil {
			return err
		}
		log.Debug("Order event applied",
			zap.String("remote_id", event.Order.RemoteOrderID),
			zap.String("result", string(result)),
		)
		return nil

	case integration.WebhookProductChanged:
		outcome, err := d.products.ReconcileRemoteProduct(ctx, event.Marketplace, event.RemoteProductID)
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, integration.ErrLinkNotFound) {
			// listings created outside the catalog are not tracked
			log.Debug("Ignoring change of unlinked listing", zap.String("remote_id", event.RemoteProductID))
			return nil
		}
		if err != nil {
			return err
		}
		log.Debug("Product event reconciled",
			zap.String("remote_id", event.RemoteProductID),
			zap.Bool("noop", outcome.NoOp),
			zap.Int("conflicts", len(outcome.Conflicts)),
		)
		return nil
	}

	log.Warn("Unsupported webhook event type")
	return nil
}
