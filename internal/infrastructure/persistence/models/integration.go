package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// CategoryMappingModel is the persistence model for the CategoryMapping entity.
type CategoryMappingModel struct {
	ID                 uuid.UUID                   `gorm:"type:uuid;primary_key"`
	LocalCategoryID    uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:idx_category_mapping_target,priority:1"`
	Marketplace        integration.MarketplaceCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_category_mapping_target,priority:2;index"`
	RemoteCategoryID   string                      `gorm:"type:varchar(100);not null;uniqueIndex:idx_category_mapping_target,priority:3"`
	RemoteCategoryName string                      `gorm:"type:varchar(255)"`
	RemoteCategoryPath string                      `gorm:"type:text"`
	ConfidenceScore    float64                     `gorm:"not null;default:0"`
	AutoMapped         bool                        `gorm:"not null;default:true"`
	SourceHash         string                      `gorm:"type:varchar(64)"`
	CreatedAt          time.Time                   `gorm:"not null"`
	UpdatedAt          time.Time                   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CategoryMappingModel) TableName() string {
	return "category_mappings"
}

// ToDomain converts the persistence model to a domain CategoryMapping
func (m *CategoryMappingModel) ToDomain() *integration.CategoryMapping {
	return &integration.CategoryMapping{
		ID:                 m.ID,
		LocalCategoryID:    m.LocalCategoryID,
		Marketplace:        m.Marketplace,
		RemoteCategoryID:   m.RemoteCategoryID,
		RemoteCategoryName: m.RemoteCategoryName,
		RemoteCategoryPath: m.RemoteCategoryPath,
		ConfidenceScore:    m.ConfidenceScore,
		AutoMapped:         m.AutoMapped,
		SourceHash:         m.SourceHash,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// CategoryMappingModelFromDomain creates a new persistence model from a domain CategoryMapping
func CategoryMappingModelFromDomain(c *integration.CategoryMapping) *CategoryMappingModel {
	return &CategoryMappingModel{
		ID:                 c.ID,
		LocalCategoryID:    c.LocalCategoryID,
		Marketplace:        c.Marketplace,
		RemoteCategoryID:   c.RemoteCategoryID,
		RemoteCategoryName: c.RemoteCategoryName,
		RemoteCategoryPath: c.RemoteCategoryPath,
		ConfidenceScore:    c.ConfidenceScore,
		AutoMapped:         c.AutoMapped,
		SourceHash:         c.SourceHash,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// OrderModel is the persistence model for the Order aggregate
type OrderModel struct {
	ID           uuid.UUID               `gorm:"type:uuid;primary_key"`
	Status       integration.OrderStatus `gorm:"type:varchar(20);not null;index"`
	CustomerName string                  `gorm:"type:varchar(255)"`
	TotalAmount  decimal.Decimal         `gorm:"type:decimal(18,4);not null;default:0"`
	Currency     string                  `gorm:"type:varchar(3)"`
	OrderedAt    time.Time               `gorm:"not null;index"`
	Version      int                     `gorm:"not null;default:1"`
	CreatedAt    time.Time               `gorm:"not null"`
	UpdatedAt    time.Time               `gorm:"not null"`

	Items []OrderItemModel        `gorm:"foreignKey:OrderID"`
	Links []OrderIntegrationModel `gorm:"foreignKey:OrderID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel is one order line
type OrderItemModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo       int             `gorm:"not null"`
	RemoteLineID string          `gorm:"type:varchar(100)"`
	ProductID    *uuid.UUID      `gorm:"type:uuid;index"`
	SKU          string          `gorm:"column:sku;type:varchar(100)"`
	Name         string          `gorm:"type:varchar(255)"`
	Quantity     int             `gorm:"not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// OrderIntegrationModel correlates an order with a marketplace order.
// Unique per (marketplace, remote order id).
type OrderIntegrationModel struct {
	ID              uuid.UUID                   `gorm:"type:uuid;primary_key"`
	OrderID         uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Marketplace     integration.MarketplaceCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_order_integrations_remote,priority:1"`
	RemoteOrderID   string                      `gorm:"type:varchar(100);not null;uniqueIndex:idx_order_integrations_remote,priority:2"`
	RemoteStatus    string                      `gorm:"type:varchar(50)"`
	TrackingNumber  string                      `gorm:"type:varchar(100)"`
	Carrier         string                      `gorm:"type:varchar(100)"`
	IntegratedAt    *time.Time
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
	ReturnedAt      *time.Time
	RemoteUpdatedAt time.Time
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderIntegrationModel) TableName() string {
	return "order_integrations"
}

// ToDomain converts the persistence model to a domain Order.
// Items and links are included when they were preloaded.
func (m *OrderModel) ToDomain() *integration.Order {
	o := &integration.Order{
		ID:           m.ID,
		Status:       m.Status,
		CustomerName: m.CustomerName,
		TotalAmount:  m.TotalAmount,
		Currency:     m.Currency,
		Items:        make([]integration.OrderItem, 0, len(m.Items)),
		Links:        make([]integration.OrderLink, 0, len(m.Links)),
		OrderedAt:    m.OrderedAt,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	for _, it := range m.Items {
		o.Items = append(o.Items, integration.OrderItem{
			RemoteLineID: it.RemoteLineID,
			ProductID:    it.ProductID,
			SKU:          it.SKU,
			Name:         it.Name,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
		})
	}
	for _, l := range m.Links {
		o.Links = append(o.Links, integration.OrderLink{
			ID:              l.ID,
			OrderID:         l.OrderID,
			Marketplace:     l.Marketplace,
			RemoteOrderID:   l.RemoteOrderID,
			RemoteStatus:    l.RemoteStatus,
			TrackingNumber:  l.TrackingNumber,
			Carrier:         l.Carrier,
			IntegratedAt:    l.IntegratedAt,
			ShippedAt:       l.ShippedAt,
			DeliveredAt:     l.DeliveredAt,
			CancelledAt:     l.CancelledAt,
			ReturnedAt:      l.ReturnedAt,
			RemoteUpdatedAt: l.RemoteUpdatedAt,
			CreatedAt:       l.CreatedAt,
			UpdatedAt:       l.UpdatedAt,
		})
	}
	return o
}

// OrderModelFromDomain creates persistence models for an order, its lines and links
func OrderModelFromDomain(o *integration.Order) *OrderModel {
	m := &OrderModel{
		ID:           o.ID,
		Status:       o.Status,
		CustomerName: o.CustomerName,
		TotalAmount:  o.TotalAmount,
		Currency:     o.Currency,
		OrderedAt:    o.OrderedAt,
		Version:      o.Version,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
		Items:        make([]OrderItemModel, 0, len(o.Items)),
		Links:        make([]OrderIntegrationModel, 0, len(o.Links)),
	}
	for i, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			ID:           uuid.New(),
			OrderID:      o.ID,
			LineNo:       i + 1,
			RemoteLineID: it.RemoteLineID,
			ProductID:    it.ProductID,
			SKU:          it.SKU,
			Name:         it.Name,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
		})
	}
	for i := range o.Links {
		m.Links = append(m.Links, *OrderIntegrationModelFromDomain(&o.Links[i]))
	}
	return m
}

// OrderIntegrationModelFromDomain creates a persistence model from a domain OrderLink
func OrderIntegrationModelFromDomain(l *integration.OrderLink) *OrderIntegrationModel {
	return &OrderIntegrationModel{
		ID:              l.ID,
		OrderID:         l.OrderID,
		Marketplace:     l.Marketplace,
		RemoteOrderID:   l.RemoteOrderID,
		RemoteStatus:    l.RemoteStatus,
		TrackingNumber:  l.TrackingNumber,
		Carrier:         l.Carrier,
		IntegratedAt:    l.IntegratedAt,
		ShippedAt:       l.ShippedAt,
		DeliveredAt:     l.DeliveredAt,
		CancelledAt:     l.CancelledAt,
		ReturnedAt:      l.ReturnedAt,
		RemoteUpdatedAt: l.RemoteUpdatedAt,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Audit and cursors
// ---------------------------------------------------------------------------

// SyncAuditLogModel is an append-only audit record
type SyncAuditLogModel struct {
	ID            uuid.UUID                   `gorm:"type:uuid;primary_key"`
	Timestamp     time.Time                   `gorm:"not null;index:idx_sync_audit_marketplace_ts,priority:2;index"`
	Marketplace   integration.MarketplaceCode `gorm:"type:varchar(20);index:idx_sync_audit_marketplace_ts,priority:1"`
	Operation     string                      `gorm:"type:varchar(50);not null"`
	EntityType    string                      `gorm:"type:varchar(30)"`
	EntityID      string                      `gorm:"type:varchar(255);index"`
	Outcome       integration.AuditOutcome    `gorm:"type:varchar(20);not null;index"`
	ErrorKind     integration.ErrorKind       `gorm:"type:varchar(32)"`
	ErrorDetail   string                      `gorm:"type:text"`
	PayloadDigest string                      `gorm:"type:varchar(64)"`
	JobID         *uuid.UUID                  `gorm:"type:uuid;index"`
	DurationMs    int64                       `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (SyncAuditLogModel) TableName() string {
	return "sync_audit_logs"
}

// ToDomain converts the persistence model to a domain AuditRecord
func (m *SyncAuditLogModel) ToDomain() *integration.AuditRecord {
	return &integration.AuditRecord{
		ID:            m.ID,
		Timestamp:     m.Timestamp,
		Marketplace:   m.Marketplace,
		Operation:     m.Operation,
		EntityType:    m.EntityType,
		EntityID:      m.EntityID,
		Outcome:       m.Outcome,
		ErrorKind:     m.ErrorKind,
		ErrorDetail:   m.ErrorDetail,
		PayloadDigest: m.PayloadDigest,
		JobID:         m.JobID,
		DurationMs:    m.DurationMs,
	}
}

// SyncAuditLogModelFromDomain creates a persistence model from a domain AuditRecord
func SyncAuditLogModelFromDomain(r *integration.AuditRecord) *SyncAuditLogModel {
	return &SyncAuditLogModel{
		ID:            r.ID,
		Timestamp:     r.Timestamp,
		Marketplace:   r.Marketplace,
		Operation:     r.Operation,
		EntityType:    r.EntityType,
		EntityID:      r.EntityID,
		Outcome:       r.Outcome,
		ErrorKind:     r.ErrorKind,
		ErrorDetail:   r.ErrorDetail,
		PayloadDigest: r.PayloadDigest,
		JobID:         r.JobID,
		DurationMs:    r.DurationMs,
	}
}

// SyncCursorModel stores the resume position of one (marketplace, job type)
type SyncCursorModel struct {
	Marketplace   integration.MarketplaceCode `gorm:"type:varchar(20);primaryKey"`
	JobType       integration.JobType         `gorm:"type:varchar(20);primaryKey"`
	Cursor        string                      `gorm:"type:text"`
	Watermark     *time.Time
	LastAttemptAt *time.Time
	LastSuccessAt *time.Time
	LastError     string    `gorm:"type:text"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncCursorModel) TableName() string {
	return "sync_cursors"
}

// ToDomain converts the persistence model to a domain SyncCursor
func (m *SyncCursorModel) ToDomain() *integration.SyncCursor {
	return &integration.SyncCursor{
		Marketplace:   m.Marketplace,
		JobType:       m.JobType,
		Cursor:        m.Cursor,
		Watermark:     m.Watermark,
		LastAttemptAt: m.LastAttemptAt,
		LastSuccessAt: m.LastSuccessAt,
		LastError:     m.LastError,
	}
}

// SyncCursorModelFromDomain creates a persistence model from a domain SyncCursor
func SyncCursorModelFromDomain(c *integration.SyncCursor) *SyncCursorModel {
	return &SyncCursorModel{
		Marketplace:   c.Marketplace,
		JobType:       c.JobType,
		Cursor:        c.Cursor,
		Watermark:     c.Watermark,
		LastAttemptAt: c.LastAttemptAt,
		LastSuccessAt: c.LastSuccessAt,
		LastError:     c.LastError,
		UpdatedAt:     time.Now(),
	}
}

// AllModels lists the models of the sync core, for AutoMigrate in tests
func AllModels() []any {
	return []any{
		&ProductModel{},
		&MarketplaceLinkModel{},
		&CategoryModel{},
		&CategoryMappingModel{},
		&OrderModel{},
		&OrderItemModel{},
		&OrderIntegrationModel{},
		&SyncAuditLogModel{},
		&SyncCursorModel{},
	}
}
