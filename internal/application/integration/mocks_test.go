package integration

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
)

// Mock implementations

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) GetProduct(ctx context.Context, id uuid.UUID) (*integration.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Product), args.Error(1)
}

func (m *mockProductRepository) FindBySKU(ctx context.Context, sku string) (*integration.Product, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Product), args.Error(1)
}

func (m *mockProductRepository) FindByRemoteProductID(ctx context.Context, mp integration.MarketplaceCode, remoteID string) (*integration.Product, error) {
	args := m.Called(ctx, mp, remoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Product), args.Error(1)
}

func (m *mockProductRepository) FindPendingProducts(ctx context.Context, mp integration.MarketplaceCode, limit int) ([]integration.Product, error) {
	args := m.Called(ctx, mp, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Product), args.Error(1)
}

func (m *mockProductRepository) FindLinkedProducts(ctx context.Context, mp integration.MarketplaceCode, afterID uuid.UUID, limit int) ([]integration.Product, error) {
	args := m.Called(ctx, mp, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Product), args.Error(1)
}

func (m *mockProductRepository) Save(ctx context.Context, product *integration.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepository) UpsertMarketplaceLink(ctx context.Context, link *integration.MarketplaceLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *mockProductRepository) ReleaseParkedLinks(ctx context.Context, mp integration.MarketplaceCode, localCategoryID uuid.UUID) (int64, error) {
	args := m.Called(ctx, mp, localCategoryID)
	return args.Get(0).(int64), args.Error(1)
}

type mockCategoryMappingRepository struct {
	mock.Mock
}

func (m *mockCategoryMappingRepository) FindForCategory(ctx context.Context, localID uuid.UUID, mp integration.MarketplaceCode) (*integration.CategoryMapping, error) {
	args := m.Called(ctx, localID, mp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.CategoryMapping), args.Error(1)
}

func (m *mockCategoryMappingRepository) ListByMarketplace(ctx context.Context, mp integration.MarketplaceCode) ([]integration.CategoryMapping, error) {
	args := m.Called(ctx, mp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.CategoryMapping), args.Error(1)
}

func (m *mockCategoryMappingRepository) Upsert(ctx context.Context, mapping *integration.CategoryMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *mockCategoryMappingRepository) DeleteAutoMappings(ctx context.Context, localID uuid.UUID, mp integration.MarketplaceCode) error {
	args := m.Called(ctx, localID, mp)
	return args.Error(0)
}

type mockLocalCategoryReader struct {
	mock.Mock
}

func (m *mockLocalCategoryReader) GetCategory(ctx context.Context, id uuid.UUID) (*integration.LocalCategory, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.LocalCategory), args.Error(1)
}

type mockCategoryResolver struct {
	mock.Mock
}

func (m *mockCategoryResolver) ResolveCategory(ctx context.Context, mp integration.MarketplaceCode, p *integration.Product) (*integration.CategoryMapping, error) {
	args := m.Called(ctx, mp, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.CategoryMapping), args.Error(1)
}

func (m *mockCategoryResolver) Attributes(mp integration.MarketplaceCode, p *integration.Product) integration.AttributeMappingResult {
	return integration.AttributeMappingResult{Attributes: integration.AttributeSet{}}
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) FindByRemoteID(ctx context.Context, mp integration.MarketplaceCode, remoteID string) (*integration.Order, error) {
	args := m.Called(ctx, mp, remoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Order), args.Error(1)
}

func (m *mockOrderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*integration.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Order), args.Error(1)
}

func (m *mockOrderRepository) Create(ctx context.Context, order *integration.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) Save(ctx context.Context, order *integration.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) CountByStatus(ctx context.Context, mp integration.MarketplaceCode) (map[integration.OrderStatus]int64, error) {
	args := m.Called(ctx, mp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[integration.OrderStatus]int64), args.Error(1)
}

type mockAuditRepository struct {
	mock.Mock
}

func (m *mockAuditRepository) Append(ctx context.Context, record *integration.AuditRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockAuditRepository) FindRecent(ctx context.Context, filter integration.AuditFilter) ([]integration.AuditRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.AuditRecord), args.Error(1)
}

func (m *mockAuditRepository) Stats(ctx context.Context, since time.Time) ([]integration.AuditStats, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.AuditStats), args.Error(1)
}

func (m *mockAuditRepository) FindBefore(ctx context.Context, cutoff time.Time, limit int) ([]integration.AuditRecord, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.AuditRecord), args.Error(1)
}

func (m *mockAuditRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

type mockAdapter struct {
	mock.Mock
	code integration.MarketplaceCode
}

func newMockAdapter(code integration.MarketplaceCode) *mockAdapter {
	return &mockAdapter{code: code}
}

func (m *mockAdapter) Code() integration.MarketplaceCode { return m.code }

func (m *mockAdapter) Authenticate(ctx context.Context) (*integration.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Session), args.Error(1)
}

func (m *mockAdapter) ListProducts(ctx context.Context, cursor string) (*integration.ProductPage, error) {
	args := m.Called(ctx, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProductPage), args.Error(1)
}

func (m *mockAdapter) GetProduct(ctx context.Context, remoteID string) (*integration.RemoteProduct, error) {
	args := m.Called(ctx, remoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteProduct), args.Error(1)
}

func (m *mockAdapter) ListCategories(ctx context.Context) ([]integration.RemoteCategory, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.RemoteCategory), args.Error(1)
}

func (m *mockAdapter) UpsertProduct(ctx context.Context, p *integration.Product, mapping *integration.CategoryMapping, attrs integration.AttributeSet) (*integration.RemoteProductRef, error) {
	args := m.Called(ctx, p, mapping, attrs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteProductRef), args.Error(1)
}

func (m *mockAdapter) UpdateStockPrice(ctx context.Context, remoteID string, qty int, price decimal.Decimal) (*integration.Ack, error) {
	args := m.Called(ctx, remoteID, qty, price)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Ack), args.Error(1)
}

func (m *mockAdapter) ListOrders(ctx context.Context, cursor string) (*integration.OrderPage, error) {
	args := m.Called(ctx, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.OrderPage), args.Error(1)
}

func (m *mockAdapter) UpdateOrderStatus(ctx context.Context, update *integration.OrderStatusUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

func (m *mockAdapter) ValidateWebhook(headers http.Header, body []byte) (*integration.WebhookEvent, error) {
	args := m.Called(headers, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.WebhookEvent), args.Error(1)
}

// Fakes

// recordingAudit keeps audit entries in memory
type recordingAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *recordingAudit) Record(ctx context.Context, entry AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingAudit) Entries() []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuditEntry(nil), r.entries...)
}

func (r *recordingAudit) WithOutcome(outcome integration.AuditOutcome) []AuditEntry {
	var out []AuditEntry
	for _, e := range r.Entries() {
		if e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

// memCursors is an in-memory SyncCursorRepository
type memCursors struct {
	mu      sync.Mutex
	cursors map[integration.JobKey]integration.SyncCursor
}

func newMemCursors() *memCursors {
	return &memCursors{cursors: make(map[integration.JobKey]integration.SyncCursor)}
}

func (c *memCursors) Get(ctx context.Context, mp integration.MarketplaceCode, jt integration.JobType) (*integration.SyncCursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.cursors[integration.JobKey{Marketplace: mp, JobType: jt}]; ok {
		return &cur, nil
	}
	return integration.NewSyncCursor(mp, jt), nil
}

func (c *memCursors) Save(ctx context.Context, cursor *integration.SyncCursor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursors[integration.JobKey{Marketplace: cursor.Marketplace, JobType: cursor.JobType}] = *cursor
	return nil
}

// memDedupe is an in-memory IdempotencyStore
type memDedupe struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemDedupe() *memDedupe {
	return &memDedupe{keys: make(map[string]bool)}
}

func (d *memDedupe) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys[key] {
		return false, nil
	}
	d.keys[key] = true
	return true, nil
}

func (d *memDedupe) IsProcessed(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.keys[key], nil
}

func (d *memDedupe) Forget(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}

func (d *memDedupe) Close() error { return nil }

var _ shared.IdempotencyStore = (*memDedupe)(nil)

// queueFunc adapts a function to EventQueue
type queueFunc func(*integration.WebhookEvent) error

func (f queueFunc) SubmitEvent(e *integration.WebhookEvent) error { return f(e) }

// Fixtures

func newTestProduct(sku string, price float64, qty int) *integration.Product {
	p, err := integration.NewProduct(sku, "Product "+sku, decimal.NewFromFloat(price), qty, uuid.New())
	if err != nil {
		panic(err)
	}
	return p
}

// linkedProduct returns a product synced on mp at the given snapshot and revision
func linkedProduct(mp integration.MarketplaceCode, sku string, synced integration.ProductSnapshot, revision string) *integration.Product {
	p := newTestProduct(sku, 0, 0)
	p.Price = synced.Price
	p.Quantity = synced.Quantity
	p.Name = synced.Name
	p.Description = synced.Description
	link, err := p.EnsureLink(mp)
	if err != nil {
		panic(err)
	}
	link.MarkSynced("R-"+sku, revision, synced)
	return p
}

func snapshot(price float64, qty int, name string) integration.ProductSnapshot {
	return integration.ProductSnapshot{Price: decimal.NewFromFloat(price), Quantity: qty, Name: name}
}
