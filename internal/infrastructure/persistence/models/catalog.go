package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// ProductModel is the persistence model for the Product domain entity.
type ProductModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	SKU         string          `gorm:"column:sku;type:varchar(100);not null;uniqueIndex:idx_products_sku"`
	Barcode     string          `gorm:"type:varchar(50);index"`
	Name        string          `gorm:"type:varchar(255);not null"`
	Description string          `gorm:"type:text"`
	Price       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Quantity    int             `gorm:"not null;default:0"`
	Attributes  string          `gorm:"type:jsonb"`
	CategoryID  uuid.UUID       `gorm:"type:uuid;index"`
	Version     int             `gorm:"not null;default:1"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`

	Links []MarketplaceLinkModel `gorm:"foreignKey:ProductID"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
// Links are included when they were preloaded.
func (m *ProductModel) ToDomain() *integration.Product {
	p := &integration.Product{
		ID:          m.ID,
		SKU:         m.SKU,
		Barcode:     m.Barcode,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		Quantity:    m.Quantity,
		Attributes:  make(map[string]string),
		CategoryID:  m.CategoryID,
		Links:       make([]integration.MarketplaceLink, 0, len(m.Links)),
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.Attributes != "" {
		_ = json.Unmarshal([]byte(m.Attributes), &p.Attributes)
	}
	for i := range m.Links {
		p.Links = append(p.Links, *m.Links[i].ToDomain())
	}
	return p
}

// FromDomain populates the persistence model from a domain Product entity.
// Links are not copied; they are written separately.
func (m *ProductModel) FromDomain(p *integration.Product) {
	m.ID = p.ID
	m.SKU = p.SKU
	m.Barcode = p.Barcode
	m.Name = p.Name
	m.Description = p.Description
	m.Price = p.Price
	m.Quantity = p.Quantity
	m.CategoryID = p.CategoryID
	m.Version = p.Version
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
	m.Attributes = "{}"
	if len(p.Attributes) > 0 {
		if b, err := json.Marshal(p.Attributes); err == nil {
			m.Attributes = string(b)
		}
	}
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *integration.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// MarketplaceLinkModel is the persistence model for the MarketplaceLink entity.
// One row per (product, marketplace).
type MarketplaceLinkModel struct {
	ID                 uuid.UUID                   `gorm:"type:uuid;primary_key"`
	ProductID          uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:idx_links_product_marketplace,priority:1"`
	Marketplace        integration.MarketplaceCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_links_product_marketplace,priority:2;index:idx_links_remote,priority:1;index:idx_links_status,priority:1"`
	RemoteProductID    string                      `gorm:"type:varchar(100);index:idx_links_remote,priority:2"`
	SyncStatus         integration.LinkSyncStatus  `gorm:"type:varchar(20);not null;default:'pending';index:idx_links_status,priority:2"`
	LastSyncedAt       *time.Time
	LastError          string                `gorm:"type:text"`
	LastErrorKind      integration.ErrorKind `gorm:"type:varchar(32)"`
	RemoteRevisionHash string                `gorm:"type:varchar(128)"`
	SyncedPrice        decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	SyncedQuantity     int                   `gorm:"not null;default:0"`
	SyncedName         string                `gorm:"type:varchar(255)"`
	SyncedDescription  string                `gorm:"type:text"`
	Disabled           bool                  `gorm:"not null;default:false"`
	CreatedAt          time.Time             `gorm:"not null"`
	UpdatedAt          time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MarketplaceLinkModel) TableName() string {
	return "marketplace_links"
}

// ToDomain converts the persistence model to a domain MarketplaceLink
func (m *MarketplaceLinkModel) ToDomain() *integration.MarketplaceLink {
	return &integration.MarketplaceLink{
		ID:                 m.ID,
		ProductID:          m.ProductID,
		Marketplace:        m.Marketplace,
		RemoteProductID:    m.RemoteProductID,
		SyncStatus:         m.SyncStatus,
		LastSyncedAt:       m.LastSyncedAt,
		LastError:          m.LastError,
		LastErrorKind:      m.LastErrorKind,
		RemoteRevisionHash: m.RemoteRevisionHash,
		Synced: integration.ProductSnapshot{
			Price:       m.SyncedPrice,
			Quantity:    m.SyncedQuantity,
			Name:        m.SyncedName,
			Description: m.SyncedDescription,
		},
		Disabled:  m.Disabled,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain MarketplaceLink
func (m *MarketplaceLinkModel) FromDomain(l *integration.MarketplaceLink) {
	m.ID = l.ID
	m.ProductID = l.ProductID
	m.Marketplace = l.Marketplace
	m.RemoteProductID = l.RemoteProductID
	m.SyncStatus = l.SyncStatus
	m.LastSyncedAt = l.LastSyncedAt
	m.LastError = l.LastError
	m.LastErrorKind = l.LastErrorKind
	m.RemoteRevisionHash = l.RemoteRevisionHash
	m.SyncedPrice = l.Synced.Price
	m.SyncedQuantity = l.Synced.Quantity
	m.SyncedName = l.Synced.Name
	m.SyncedDescription = l.Synced.Description
	m.Disabled = l.Disabled
	m.CreatedAt = l.CreatedAt
	m.UpdatedAt = l.UpdatedAt
}

// MarketplaceLinkModelFromDomain creates a new persistence model from a domain MarketplaceLink
func MarketplaceLinkModelFromDomain(l *integration.MarketplaceLink) *MarketplaceLinkModel {
	m := &MarketplaceLinkModel{}
	m.FromDomain(l)
	return m
}

// CategoryModel is a node of the merchant category tree
type CategoryModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key"`
	ParentID  *uuid.UUID `gorm:"type:uuid;index"`
	Name      string     `gorm:"type:varchar(200);not null"`
	CreatedAt time.Time  `gorm:"not null"`
	UpdatedAt time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}
