package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// OrderStatus
// ---------------------------------------------------------------------------

// OrderStatus is the normalized lifecycle status of a marketplace order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusIntegrated OrderStatus = "integrated"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

// IsValid returns true if the status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusIntegrated, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal returns true for statuses no further transition leaves
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusReturned
}

// rank orders the main line pending < integrated < shipped < delivered
func (s OrderStatus) rank() int {
	switch s {
	case OrderStatusPending:
		return 0
	case OrderStatusIntegrated:
		return 1
	case OrderStatusShipped:
		return 2
	case OrderStatusDelivered:
		return 3
	}
	return -1
}

// CanTransitionTo checks if the status can move to target.
// The main line only moves forward (skipping steps is allowed);
// cancellation and return are explicit exits.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if s.IsTerminal() || s == target {
		return false
	}
	switch target {
	case OrderStatusCancelled:
		return s == OrderStatusPending || s == OrderStatusIntegrated || s == OrderStatusShipped
	case OrderStatusReturned:
		return s == OrderStatusShipped || s == OrderStatusDelivered
	}
	return target.rank() > s.rank() && s.rank() >= 0
}

// ---------------------------------------------------------------------------
// OrderLink Entity
// ---------------------------------------------------------------------------

// OrderLink correlates a local order with a marketplace order.
// Unique per (Marketplace, RemoteOrderID).
type OrderLink struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	Marketplace    MarketplaceCode
	RemoteOrderID  string
	RemoteStatus   string
	TrackingNumber string
	Carrier        string
	IntegratedAt   *time.Time
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CancelledAt    *time.Time
	ReturnedAt     *time.Time
	// RemoteUpdatedAt is the marketplace modification time of the last applied state
	RemoteUpdatedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// stamp records the time the link reached a status, once
func (l *OrderLink) stamp(status OrderStatus, at time.Time) {
	set := func(field **time.Time) {
		if *field == nil {
			t := at
			*field = &t
		}
	}
	switch status {
	case OrderStatusIntegrated:
		set(&l.IntegratedAt)
	case OrderStatusShipped:
		set(&l.ShippedAt)
	case OrderStatusDelivered:
		set(&l.DeliveredAt)
	case OrderStatusCancelled:
		set(&l.CancelledAt)
	case OrderStatusReturned:
		set(&l.ReturnedAt)
	}
}

// ---------------------------------------------------------------------------
// Order Aggregate
// ---------------------------------------------------------------------------

// OrderItem is one line of a local order
type OrderItem struct {
	RemoteLineID string
	// ProductID is nil when the line could not be correlated to a local product
	ProductID *uuid.UUID
	SKU       string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Order is the local record of a marketplace order
type Order struct {
	ID           uuid.UUID
	Status       OrderStatus
	CustomerName string
	TotalAmount  decimal.Decimal
	Currency     string
	Items        []OrderItem
	Links        []OrderLink
	OrderedAt    time.Time
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewOrderFromRemote creates a local order for a remote order seen for the
// first time. The order is created pending and integrated immediately; the
// remote status is applied afterwards.
func NewOrderFromRemote(remote *RemoteOrder) (*Order, error) {
	if remote == nil || strings.TrimSpace(remote.RemoteOrderID) == "" {
		return nil, ErrInvalidOrder
	}
	if !remote.Marketplace.IsValid() {
		return nil, ErrMarketplaceUnknown
	}
	now := time.Now()
	id := uuid.New()

	o := &Order{
		ID:           id,
		Status:       OrderStatusPending,
		CustomerName: remote.CustomerName,
		TotalAmount:  remote.TotalAmount,
		Currency:     remote.Currency,
		Items:        make([]OrderItem, 0, len(remote.Items)),
		OrderedAt:    remote.OrderedAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if o.OrderedAt.IsZero() {
		o.OrderedAt = now
	}
	for _, it := range remote.Items {
		o.Items = append(o.Items, OrderItem{
			RemoteLineID: it.RemoteLineID,
			SKU:          it.SKU,
			Name:         it.Name,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
		})
	}
	o.Links = []OrderLink{{
		ID:            uuid.New(),
		OrderID:       id,
		Marketplace:   remote.Marketplace,
		RemoteOrderID: remote.RemoteOrderID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}}

	if err := o.Integrate(); err != nil {
		return nil, err
	}
	if _, err := o.ApplyRemote(remote); err != nil && !errors.Is(err, ErrInvalidOrderTransition) {
		return nil, err
	}
	return o, nil
}

// LinkFor returns the link for a remote order, or nil
func (o *Order) LinkFor(marketplace MarketplaceCode, remoteOrderID string) *OrderLink {
	for i := range o.Links {
		if o.Links[i].Marketplace == marketplace && o.Links[i].RemoteOrderID == remoteOrderID {
			return &o.Links[i]
		}
	}
	return nil
}

// Integrate marks a pending order as imported into the catalog
func (o *Order) Integrate() error {
	return o.transition(OrderStatusIntegrated, time.Now())
}

func (o *Order) transition(target OrderStatus, at time.Time) error {
	if !o.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidOrderTransition, o.Status, target)
	}
	o.Status = target
	o.UpdatedAt = at
	for i := range o.Links {
		o.Links[i].stamp(target, at)
		o.Links[i].UpdatedAt = at
	}
	return nil
}

// ApplyRemote merges the state of a remote order into its link. It reports
// whether anything changed; replaying the same state is a no-op. A remote
// status behind the local one returns ErrInvalidOrderTransition after the
// descriptive fields were merged.
func (o *Order) ApplyRemote(remote *RemoteOrder) (bool, error) {
	link := o.LinkFor(remote.Marketplace, remote.RemoteOrderID)
	if link == nil {
		return false, fmt.Errorf("%w: %s/%s", ErrLinkNotFound, remote.Marketplace, remote.RemoteOrderID)
	}

	now := time.Now()
	changed := false
	if remote.RemoteStatus != "" && link.RemoteStatus != remote.RemoteStatus {
		link.RemoteStatus = remote.RemoteStatus
		changed = true
	}
	if remote.TrackingNumber != "" && link.TrackingNumber != remote.TrackingNumber {
		link.TrackingNumber = remote.TrackingNumber
		changed = true
	}
	if remote.Carrier != "" && link.Carrier != remote.Carrier {
		link.Carrier = remote.Carrier
		changed = true
	}
	if remote.UpdatedAt.After(link.RemoteUpdatedAt) {
		link.RemoteUpdatedAt = remote.UpdatedAt
		changed = true
	}
	if changed {
		link.UpdatedAt = now
		o.UpdatedAt = now
	}

	if !remote.Status.IsValid() || remote.Status == o.Status {
		return changed, nil
	}
	// Pending on the remote side means not yet shipped; an integrated order already covers it
	if remote.Status == OrderStatusPending && o.Status == OrderStatusIntegrated {
		return changed, nil
	}
	if err := o.transition(remote.Status, now); err != nil {
		return changed, err
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// Repository port
// ---------------------------------------------------------------------------

// OrderRepository persists orders and their links
type OrderRepository interface {
	// FindByRemoteID returns the order linked to a remote order, shared.ErrNotFound if none
	FindByRemoteID(ctx context.Context, marketplace MarketplaceCode, remoteOrderID string) (*Order, error)

	// GetOrder returns an order by id
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)

	// Create inserts a new order with its links and items. Returns
	// shared.ErrAlreadyExists when the (marketplace, remote order id) is taken.
	Create(ctx context.Context, order *Order) error

	// Save updates an order guarded by its Version.
	// Returns shared.ErrConcurrencyConflict when the stored version moved.
	Save(ctx context.Context, order *Order) error

	// CountByStatus returns order counts per status for a marketplace (all when empty)
	CountByStatus(ctx context.Context, marketplace MarketplaceCode) (map[OrderStatus]int64, error)
}
