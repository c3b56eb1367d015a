package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
	"github.com/meschain/marketsync/internal/infrastructure/logger"
)

// OrderApplyResult tells what applying a remote order did
type OrderApplyResult string

const (
	OrderCreated   OrderApplyResult = "created"
	OrderUpdated   OrderApplyResult = "updated"
	OrderUnchanged OrderApplyResult = "unchanged"
)

// Order poll defaults
const (
	DefaultOrderMaxPages = 20
	DefaultOrderOverlap  = 5 * time.Minute
)

// OrderSyncService imports marketplace orders. Polls and webhooks both end in
// ApplyRemoteOrder, an idempotent upsert keyed by (marketplace, remote order id).
type OrderSyncService struct {
	orders   integration.OrderRepository
	products integration.ProductReader
	cursors  integration.SyncCursorRepository
	adapters AdapterResolver
	audit    AuditRecorder
	maxPages int
	overlap  time.Duration
	logger   *zap.Logger
}

// OrderSyncServiceDeps holds the dependencies of the order sync service
type OrderSyncServiceDeps struct {
	Orders   integration.OrderRepository
	Products integration.ProductReader
	Cursors  integration.SyncCursorRepository
	Adapters AdapterResolver
	Audit    AuditRecorder
	// MaxPages bounds one poll; the next poll resumes from the stored cursor
	MaxPages int
	// Overlap is subtracted from the watermark of a drained poll
	Overlap time.Duration
	Logger  *zap.Logger
}

// NewOrderSyncService creates a new OrderSyncService
func NewOrderSyncService(deps OrderSyncServiceDeps) *OrderSyncService {
	s := &OrderSyncService{
		orders:   deps.Orders,
		products: deps.Products,
		cursors:  deps.Cursors,
		adapters: deps.Adapters,
		audit:    deps.Audit,
		maxPages: deps.MaxPages,
		overlap:  deps.Overlap,
		logger:   deps.Logger,
	}
	if s.maxPages <= 0 {
		s.maxPages = DefaultOrderMaxPages
	}
	if s.overlap <= 0 {
		s.overlap = DefaultOrderOverlap
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// SyncOrders polls orders changed since the stored cursor. The cursor is saved
// after the poll, also when a page failed, so progress is not lost.
func (s *OrderSyncService) SyncOrders(ctx context.Context, marketplace integration.MarketplaceCode) (integration.SyncResult, error) {
	var result integration.SyncResult
	adapter, err := s.adapters.Get(marketplace)
	if err != nil {
		return result, err
	}
	cursor, err := s.cursors.Get(ctx, marketplace, integration.JobTypeOrder)
	if err != nil {
		return result, fmt.Errorf("failed to load order cursor: %w", err)
	}

	it := integration.NewOrderIterator(adapter, cursor.Cursor, s.maxPages)
	for {
		remote, ok, err := it.Next(ctx)
		if err != nil {
			cursor.Failed(err)
			s.saveCursor(ctx, cursor)
			s.recordAudit(ctx, AuditEntry{
				Marketplace: marketplace,
				Operation:   OpOrderPoll,
				EntityType:  EntityOrder,
				EntityID:    it.Cursor(),
				Outcome:     integration.AuditOutcomeFailure,
				Err:         err,
			})
			return result, err
		}
		if !ok {
			break
		}

		if _, err := s.ApplyRemoteOrder(ctx, remote); err != nil {
			if kind := result.RecordFailure(remote.RemoteOrderID, err); kind.AbortsBatch() {
				cursor.Failed(err)
				s.saveCursor(ctx, cursor)
				return result, err
			}
		} else {
			result.RecordSuccess()
		}
		cursor.Observe(remote.UpdatedAt)
	}

	if it.Exhausted() {
		cursor.Advance(cursor.ResumeCursor(s.overlap))
	} else {
		cursor.Advance(it.Cursor())
	}
	s.saveCursor(ctx, cursor)

	logger.FromContext(ctx).Info("Order poll finished",
		zap.String("marketplace", string(marketplace)),
		zap.Int("pages", it.Pages()),
		zap.Bool("drained", it.Exhausted()),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *OrderSyncService) saveCursor(ctx context.Context, cursor *integration.SyncCursor) {
	if err := s.cursors.Save(context.WithoutCancel(ctx), cursor); err != nil {
		s.logger.Error("Failed to save sync cursor",
			zap.String("marketplace", string(cursor.Marketplace)),
			zap.String("job_type", string(cursor.JobType)),
			zap.Error(err),
		)
	}
}

// ApplyRemoteOrder creates or updates the local order of a remote order.
// Replaying the same state is a no-op and a backward status is ignored.
func (s *OrderSyncService) ApplyRemoteOrder(ctx context.Context, remote *integration.RemoteOrder) (OrderApplyResult, error) {
	start := time.Now()
	result, err := s.applyRemoteOrder(ctx, remote)
	entry := AuditEntry{
		Marketplace: remote.Marketplace,
		Operation:   OpOrderApply,
		EntityType:  EntityOrder,
		EntityID:    remote.RemoteOrderID,
		Outcome:     integration.AuditOutcomeSuccess,
		Err:         err,
		Duration:    time.Since(start),
	}
	switch {
	case err != nil:
		entry.Outcome = integration.AuditOutcomeFailure
	case result == OrderUnchanged:
		// replays are frequent and leave no trail
		return result, nil
	}
	s.recordAudit(ctx, entry)
	return result, err
}

func (s *OrderSyncService) applyRemoteOrder(ctx context.Context, remote *integration.RemoteOrder) (OrderApplyResult, error) {
	for attempt := 1; ; attempt++ {
		order, err := s.orders.FindByRemoteID(ctx, remote.Marketplace, remote.RemoteOrderID)
		if errors.Is(err, shared.ErrNotFound) {
			order, err = s.newOrder(ctx, remote)
			if err != nil {
				return "", err
			}
			err = s.orders.Create(ctx, order)
			if err == nil {
				logger.FromContext(ctx).Info("Order imported",
					zap.String("marketplace", string(remote.Marketplace)),
					zap.String("remote_id", remote.RemoteOrderID),
					zap.String("order_id", order.ID.String()),
					zap.String("status", string(order.Status)),
				)
				return OrderCreated, nil
			}
			// a concurrent delivery created it first; update instead
			if errors.Is(err, shared.ErrAlreadyExists) && attempt < maxSaveAttempts {
				continue
			}
			return "", fmt.Errorf("failed to create order: %w", err)
		}
		if err != nil {
			return "", fmt.Errorf("failed to load order: %w", err)
		}

		changed, err := order.ApplyRemote(remote)
		if errors.Is(err, integration.ErrInvalidOrderTransition) {
			// a redelivery of the same stale state changes nothing and leaves no trail
			if !changed {
				return OrderUnchanged, nil
			}
			logger.FromContext(ctx).Warn("Ignoring backward order status",
				zap.String("marketplace", string(remote.Marketplace)),
				zap.String("remote_id", remote.RemoteOrderID),
				zap.String("local_status", string(order.Status)),
				zap.String("remote_status", string(remote.Status)),
			)
			s.recordAudit(ctx, AuditEntry{
				Marketplace: remote.Marketplace,
				Operation:   OpOrderApply,
				EntityType:  EntityOrder,
				EntityID:    remote.RemoteOrderID,
				Outcome:     integration.AuditOutcomeSkipped,
				Err:         err,
			})
		} else if err != nil {
			return "", err
		}
		if !changed {
			return OrderUnchanged, nil
		}

		err = s.orders.Save(ctx, order)
		if err == nil {
			return OrderUpdated, nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) || attempt >= maxSaveAttempts {
			return "", fmt.Errorf("failed to save order: %w", err)
		}
	}
}

// newOrder builds the local order and correlates lines to catalog products by SKU
func (s *OrderSyncService) newOrder(ctx context.Context, remote *integration.RemoteOrder) (*integration.Order, error) {
	order, err := integration.NewOrderFromRemote(remote)
	if err != nil {
		return nil, err
	}
	if s.products == nil {
		return order, nil
	}
	for i := range order.Items {
		item := &order.Items[i]
		if item.SKU == "" {
			continue
		}
		p, err := s.products.FindBySKU(ctx, item.SKU)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				return nil, fmt.Errorf("failed to correlate order line %s: %w", item.RemoteLineID, err)
			}
			continue
		}
		id := p.ID
		item.ProductID = &id
	}
	return order, nil
}

// ShipOrder pushes a shipment of a local order to the marketplace it came from
// and moves the order to shipped.
func (s *OrderSyncService) ShipOrder(ctx context.Context, orderID uuid.UUID, marketplace integration.MarketplaceCode, trackingNumber, carrier string) error {
	return s.pushStatus(ctx, orderID, marketplace, integration.OrderStatusShipped, func(u *integration.OrderStatusUpdate) {
		u.TrackingNumber = trackingNumber
		u.Carrier = carrier
	})
}

// CancelOrder pushes a cancellation to the marketplace and cancels the local order
func (s *OrderSyncService) CancelOrder(ctx context.Context, orderID uuid.UUID, marketplace integration.MarketplaceCode, reason string) error {
	return s.pushStatus(ctx, orderID, marketplace, integration.OrderStatusCancelled, func(u *integration.OrderStatusUpdate) {
		u.Reason = reason
	})
}

func (s *OrderSyncService) pushStatus(
	ctx context.Context,
	orderID uuid.UUID,
	marketplace integration.MarketplaceCode,
	status integration.OrderStatus,
	fill func(*integration.OrderStatusUpdate),
) error {
	adapter, err := s.adapters.Get(marketplace)
	if err != nil {
		return err
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	var link *integration.OrderLink
	for i := range order.Links {
		if order.Links[i].Marketplace == marketplace {
			link = &order.Links[i]
			break
		}
	}
	if link == nil {
		return fmt.Errorf("%w: order %s has no %s link", integration.ErrLinkNotFound, orderID, marketplace)
	}
	if !order.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", integration.ErrInvalidOrderTransition, order.Status, status)
	}

	update := &integration.OrderStatusUpdate{RemoteOrderID: link.RemoteOrderID, Status: status}
	fill(update)

	start := time.Now()
	err = adapter.UpdateOrderStatus(ctx, update)
	entry := AuditEntry{
		Marketplace: marketplace,
		Operation:   OpOrderStatusPush,
		EntityType:  EntityOrder,
		EntityID:    link.RemoteOrderID,
		Outcome:     integration.AuditOutcomeSuccess,
		Err:         err,
		Detail:      string(status),
		Duration:    time.Since(start),
	}
	if err != nil {
		entry.Outcome = integration.AuditOutcomeFailure
		entry.Detail = ""
		s.recordAudit(ctx, entry)
		return err
	}
	s.recordAudit(ctx, entry)

	// the marketplace confirms with the same state on the next poll, which is then a no-op
	_, err = s.applyRemoteOrder(ctx, &integration.RemoteOrder{
		Marketplace:    marketplace,
		RemoteOrderID:  link.RemoteOrderID,
		Status:         status,
		TrackingNumber: update.TrackingNumber,
		Carrier:        update.Carrier,
	})
	return err
}

func (s *OrderSyncService) recordAudit(ctx context.Context, entry AuditEntry) {
	if s.audit != nil {
		s.audit.Record(ctx, entry)
	}
}
