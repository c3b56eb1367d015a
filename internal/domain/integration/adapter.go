package integration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MarketplaceAdapter normalizes one marketplace API into the capability set
// used by the sync core. Implementations confine side effects to network I/O;
// they never write to the catalog store.
type MarketplaceAdapter interface {
	// Code returns the marketplace this adapter handles
	Code() MarketplaceCode

	// Authenticate validates credentials and returns a session.
	// Fails with ErrAuth when credentials are invalid or expired.
	Authenticate(ctx context.Context) (*Session, error)

	// ListProducts returns one page of remote listings, resumable via cursor
	ListProducts(ctx context.Context, cursor string) (*ProductPage, error)

	// GetProduct returns the current remote state of a listing
	GetProduct(ctx context.Context, remoteProductID string) (*RemoteProduct, error)

	// ListCategories returns the leaf-annotated category tree of the marketplace
	ListCategories(ctx context.Context) ([]RemoteCategory, error)

	// UpsertProduct creates or updates a listing.
	// Fails with ErrValidation, ErrRateLimited or ErrTransientNetwork.
	UpsertProduct(ctx context.Context, product *Product, mapping *CategoryMapping, attrs AttributeSet) (*RemoteProductRef, error)

	// UpdateStockPrice updates quantity and price of a listing.
	// Fails with ErrNotFound or ErrConflict.
	UpdateStockPrice(ctx context.Context, remoteProductID string, quantity int, price decimal.Decimal) (*Ack, error)

	// ListOrders returns one finite page of orders changed after the cursor.
	// An empty cursor starts a full poll.
	ListOrders(ctx context.Context, cursor string) (*OrderPage, error)

	// UpdateOrderStatus pushes a local status change (shipment, cancellation)
	UpdateOrderStatus(ctx context.Context, update *OrderStatusUpdate) error

	// ValidateWebhook verifies the signature of an inbound notification and
	// normalizes it. Fails with ErrSecurity on a missing or invalid signature.
	ValidateWebhook(headers http.Header, body []byte) (*WebhookEvent, error)
}

// FieldReporter is implemented by adapters whose listing reads carry only
// part of the synchronizable fields. Reconciliation compares just those.
type FieldReporter interface {
	ReportedFields() []Field
}

// ReportedFields returns the fields an adapter reads back, all by default
func ReportedFields(a MarketplaceAdapter) []Field {
	if r, ok := a.(FieldReporter); ok {
		return r.ReportedFields()
	}
	return AllFields()
}

// Session is the result of a successful authentication
type Session struct {
	Marketplace MarketplaceCode
	// AccessToken is empty for static-credential marketplaces
	AccessToken string
	ExpiresAt   *time.Time
	// SellerID is the merchant identity reported by the marketplace, if any
	SellerID string
}

// Expired returns true if the session has an expiry that has passed
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// RemoteProduct is the state of a listing as reported by the marketplace
type RemoteProduct struct {
	RemoteProductID string
	SKU             string
	Barcode         string
	Name            string
	Description     string
	Price           decimal.Decimal
	Quantity        int
	CategoryID      string
	// RevisionHash identifies this remote state. Adapters use the native
	// version or last-modified token when available, RevisionHash otherwise.
	RevisionHash string
	UpdatedAt    time.Time
}

// Snapshot returns the synchronizable fields of the remote listing
func (p *RemoteProduct) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		Price:       p.Price,
		Quantity:    p.Quantity,
		Name:        p.Name,
		Description: p.Description,
	}
}

// ProductPage is one page of remote listings
type ProductPage struct {
	Products   []RemoteProduct
	NextCursor string
}

// HasMore returns true if another page is available
func (p *ProductPage) HasMore() bool {
	return p.NextCursor != ""
}

// RemoteProductRef identifies a listing after an upsert
type RemoteProductRef struct {
	RemoteProductID string
	RevisionHash    string
	// BatchRequestID is set by marketplaces that accept writes asynchronously
	BatchRequestID string
}

// Ack acknowledges a stock/price update
type Ack struct {
	RemoteProductID string
	RevisionHash    string
	BatchRequestID  string
	AcceptedAt      time.Time
}

// RemoteOrderItem is one line of a remote order
type RemoteOrderItem struct {
	RemoteLineID    string
	RemoteProductID string
	SKU             string
	Barcode         string
	Name            string
	Quantity        int
	UnitPrice       decimal.Decimal
}

// RemoteOrder is an order as reported by a marketplace
type RemoteOrder struct {
	Marketplace    MarketplaceCode
	RemoteOrderID  string
	RemoteStatus   string
	Status         OrderStatus
	CustomerName   string
	TotalAmount    decimal.Decimal
	Currency       string
	TrackingNumber string
	Carrier        string
	Items          []RemoteOrderItem
	OrderedAt      time.Time
	UpdatedAt      time.Time
}

// OrderPage is one page of remote orders
type OrderPage struct {
	Orders     []RemoteOrder
	NextCursor string
}

// OrderStatusUpdate is a local status change pushed to a marketplace
type OrderStatusUpdate struct {
	RemoteOrderID  string
	Status         OrderStatus
	TrackingNumber string
	Carrier        string
	Reason         string
}

// WebhookEventType classifies inbound notifications
type WebhookEventType string

const (
	WebhookOrderCreated       WebhookEventType = "order.created"
	WebhookOrderStatusChanged WebhookEventType = "order.status_changed"
	WebhookProductChanged     WebhookEventType = "product.changed"
)

// WebhookEvent is a validated, normalized inbound notification
type WebhookEvent struct {
	// DeliveryID identifies the delivery for de-duplication.
	// Adapters fall back to a digest of the body when the marketplace sends none.
	DeliveryID  string
	Marketplace MarketplaceCode
	Type        WebhookEventType
	// Order is set for order events
	Order *RemoteOrder
	// RemoteProductID is set for product events
	RemoteProductID string
	ReceivedAt      time.Time
}

// ---------------------------------------------------------------------------
// OrderIterator
// ---------------------------------------------------------------------------

// OrderIterator exposes ListOrders as a lazy sequence. The next page is only
// fetched when the current one is drained.
type OrderIterator struct {
	adapter    MarketplaceAdapter
	cursor     string
	page       []RemoteOrder
	pos        int
	nextCursor string
	started    bool
	exhausted  bool
	limited    bool
	maxPages   int
	pages      int
}

// NewOrderIterator creates an iterator starting at cursor. maxPages bounds a
// single poll; 0 means unbounded.
func NewOrderIterator(adapter MarketplaceAdapter, cursor string, maxPages int) *OrderIterator {
	return &OrderIterator{adapter: adapter, cursor: cursor, maxPages: maxPages}
}

// Next returns the next order. ok is false when the sequence ends, either
// because the marketplace has no more pages or because maxPages was reached.
func (it *OrderIterator) Next(ctx context.Context) (*RemoteOrder, bool, error) {
	for it.pos >= len(it.page) {
		if it.exhausted || it.limited {
			return nil, false, nil
		}
		if it.started {
			if it.nextCursor == "" {
				it.exhausted = true
				return nil, false, nil
			}
			it.cursor = it.nextCursor
			it.nextCursor = ""
			it.page = nil
		}
		if it.maxPages > 0 && it.pages >= it.maxPages {
			it.limited = true
			return nil, false, nil
		}

		page, err := it.adapter.ListOrders(ctx, it.cursor)
		if err != nil {
			return nil, false, err
		}
		it.started = true
		it.pages++
		it.page = page.Orders
		it.pos = 0
		it.nextCursor = page.NextCursor
	}

	order := &it.page[it.pos]
	it.pos++
	return order, true, nil
}

// Cursor returns the cursor of the page currently being read. Resuming from
// it replays at most one page, which idempotent order upserts absorb.
func (it *OrderIterator) Cursor() string {
	return it.cursor
}

// Exhausted returns true once the marketplace reported no further pages
func (it *OrderIterator) Exhausted() bool {
	return it.exhausted
}

// Pages returns the number of pages fetched so far
func (it *OrderIterator) Pages() int {
	return it.pages
}

// OrderCursor is the cursor format shared by all adapters: a modification
// watermark plus an opaque marketplace page token
type OrderCursor struct {
	Since time.Time
	Page  string
}

// ParseOrderCursor decodes a cursor. An empty or malformed cursor yields the
// zero value, which adapters treat as a full poll.
func ParseOrderCursor(s string) OrderCursor {
	if s == "" {
		return OrderCursor{}
	}
	since, page, _ := strings.Cut(s, "|")
	t, err := time.Parse(time.RFC3339, since)
	if err != nil {
		return OrderCursor{}
	}
	return OrderCursor{Since: t.UTC(), Page: page}
}

// String encodes the cursor
func (c OrderCursor) String() string {
	if c.Since.IsZero() && c.Page == "" {
		return ""
	}
	return c.Since.UTC().Format(time.RFC3339) + "|" + c.Page
}

// WithPage returns a cursor for the next page of the same poll
func (c OrderCursor) WithPage(page string) OrderCursor {
	return OrderCursor{Since: c.Since, Page: page}
}

// ---------------------------------------------------------------------------
// AdapterRegistry
// ---------------------------------------------------------------------------

// AdapterRegistry resolves adapters by marketplace code. It is built once at
// start-up and read-only afterwards.
type AdapterRegistry struct {
	adapters map[MarketplaceCode]MarketplaceAdapter
}

// NewAdapterRegistry creates a registry from the given adapters.
// A later adapter for the same code replaces an earlier one.
func NewAdapterRegistry(adapters ...MarketplaceAdapter) *AdapterRegistry {
	r := &AdapterRegistry{adapters: make(map[MarketplaceCode]MarketplaceAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Code()] = a
	}
	return r
}

// Get returns the adapter for a marketplace
func (r *AdapterRegistry) Get(code MarketplaceCode) (MarketplaceAdapter, error) {
	if !code.IsValid() {
		return nil, ErrMarketplaceUnknown
	}
	a, ok := r.adapters[code]
	if !ok {
		return nil, ErrMarketplaceNotConfigured
	}
	return a, nil
}

// Codes returns the configured marketplaces in a stable order
func (r *AdapterRegistry) Codes() []MarketplaceCode {
	codes := make([]MarketplaceCode, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// RevisionHash derives a revision token from the synchronizable fields, for
// marketplaces that expose no native listing version
func RevisionHash(s ProductSnapshot) string {
	h := sha256.New()
	h.Write([]byte(s.Price.StringFixed(2)))
	h.Write([]byte{0})
	h.Write([]byte(decimal.NewFromInt(int64(s.Quantity)).String()))
	h.Write([]byte{0})
	h.Write([]byte(s.Name))
	h.Write([]byte{0})
	h.Write([]byte(s.Description))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
