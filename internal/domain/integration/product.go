package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// LinkSyncStatus
// ---------------------------------------------------------------------------

// LinkSyncStatus represents the sync state of a product on one marketplace
type LinkSyncStatus string

const (
	LinkStatusPending LinkSyncStatus = "pending"
	LinkStatusSyncing LinkSyncStatus = "syncing"
	LinkStatusSynced  LinkSyncStatus = "synced"
	LinkStatusError   LinkSyncStatus = "error"
)

// IsValid returns true if the status is valid
func (s LinkSyncStatus) IsValid() bool {
	switch s {
	case LinkStatusPending, LinkStatusSyncing, LinkStatusSynced, LinkStatusError:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// ProductSnapshot
// ---------------------------------------------------------------------------

// ProductSnapshot holds the synchronizable fields of a product at one point in time
type ProductSnapshot struct {
	Price       decimal.Decimal
	Quantity    int
	Name        string
	Description string
}

// Equal compares two snapshots field by field
func (s ProductSnapshot) Equal(other ProductSnapshot) bool {
	return s.Price.Equal(other.Price) &&
		s.Quantity == other.Quantity &&
		s.Name == other.Name &&
		s.Description == other.Description
}

// ---------------------------------------------------------------------------
// MarketplaceLink Entity
// ---------------------------------------------------------------------------

// MarketplaceLink is the per-marketplace identity and sync state of a local product.
// It is created on the first successful mapping and never deleted while the
// product exists; Disable soft-disables it instead.
type MarketplaceLink struct {
	// ID is the unique identifier of this link
	ID uuid.UUID
	// ProductID is the local product
	ProductID uuid.UUID
	// Marketplace identifies which marketplace this link is for
	Marketplace MarketplaceCode
	// RemoteProductID is the listing id on the marketplace, empty until first upsert
	RemoteProductID string
	// SyncStatus is the current sync state
	SyncStatus LinkSyncStatus
	// LastSyncedAt is when the link last reached synced
	LastSyncedAt *time.Time
	// LastError contains the error of the last failed attempt
	LastError string
	// LastErrorKind classifies LastError
	LastErrorKind ErrorKind
	// RemoteRevisionHash identifies the remote state seen at the last sync
	RemoteRevisionHash string
	// Synced is the field state both sides agreed on at the last sync
	Synced ProductSnapshot
	// Disabled excludes the link from automatic sync
	Disabled bool
	// CreatedAt is when this link was created
	CreatedAt time.Time
	// UpdatedAt is when this link was last updated
	UpdatedAt time.Time
}

// NewMarketplaceLink creates a pending link for a product on a marketplace
func NewMarketplaceLink(productID uuid.UUID, marketplace MarketplaceCode) (*MarketplaceLink, error) {
	if productID == uuid.Nil {
		return nil, ErrInvalidProduct
	}
	if !marketplace.IsValid() {
		return nil, ErrMarketplaceUnknown
	}
	now := time.Now()
	return &MarketplaceLink{
		ID:          uuid.New(),
		ProductID:   productID,
		Marketplace: marketplace,
		SyncStatus:  LinkStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsMapped returns true once the product exists on the marketplace
func (l *MarketplaceLink) IsMapped() bool {
	return l.RemoteProductID != ""
}

// IsSyncable returns true if the link takes part in automatic sync
func (l *MarketplaceLink) IsSyncable() bool {
	return !l.Disabled
}

// MarkSyncing records that a sync attempt started
func (l *MarketplaceLink) MarkSyncing() {
	l.SyncStatus = LinkStatusSyncing
	l.UpdatedAt = time.Now()
}

// MarkSynced records a successful sync with the agreed state
func (l *MarketplaceLink) MarkSynced(remoteProductID, revisionHash string, snapshot ProductSnapshot) {
	now := time.Now()
	if remoteProductID != "" {
		l.RemoteProductID = remoteProductID
	}
	l.SyncStatus = LinkStatusSynced
	l.RemoteRevisionHash = revisionHash
	l.Synced = snapshot
	l.LastSyncedAt = &now
	l.LastError = ""
	l.LastErrorKind = ErrorKindNone
	l.UpdatedAt = now
}

// MarkError records a failed sync attempt
func (l *MarketplaceLink) MarkError(err error) {
	l.SyncStatus = LinkStatusError
	if err != nil {
		l.LastError = err.Error()
		l.LastErrorKind = Classify(err)
	}
	l.UpdatedAt = time.Now()
}

// IsParked returns true if the last attempt failed in a way that only new
// input (a product edit or a category mapping) can fix
func (l *MarketplaceLink) IsParked() bool {
	return l.SyncStatus == LinkStatusError && l.LastErrorKind.Parks()
}

// Release returns a parked link to pending. It reports whether the link was parked.
func (l *MarketplaceLink) Release() bool {
	if !l.IsParked() {
		return false
	}
	l.SyncStatus = LinkStatusPending
	l.LastError = ""
	l.LastErrorKind = ErrorKindNone
	l.UpdatedAt = time.Now()
	return true
}

// Disable soft-disables the link
func (l *MarketplaceLink) Disable() {
	l.Disabled = true
	l.UpdatedAt = time.Now()
}

// Enable re-enables the link for automatic sync
func (l *MarketplaceLink) Enable() {
	l.Disabled = false
	l.UpdatedAt = time.Now()
}

// ---------------------------------------------------------------------------
// Product Entity
// ---------------------------------------------------------------------------

// Product is a merchant catalog entry
type Product struct {
	ID          uuid.UUID
	SKU         string
	Barcode     string
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
	// Attributes are free-form local attributes, translated per marketplace by an AttributeTable
	Attributes map[string]string
	CategoryID uuid.UUID
	// Links holds at most one MarketplaceLink per marketplace
	Links []MarketplaceLink
	// Version is the optimistic concurrency token
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProduct creates a new product
func NewProduct(sku, name string, price decimal.Decimal, quantity int, categoryID uuid.UUID) (*Product, error) {
	now := time.Now()
	p := &Product{
		ID:         uuid.New(),
		SKU:        strings.TrimSpace(sku),
		Name:       strings.TrimSpace(name),
		Price:      price,
		Quantity:   quantity,
		Attributes: make(map[string]string),
		CategoryID: categoryID,
		Links:      make([]MarketplaceLink, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate validates the product
func (p *Product) Validate() error {
	if p.ID == uuid.Nil || p.SKU == "" || p.Name == "" {
		return ErrInvalidProduct
	}
	if p.Price.IsNegative() || p.Quantity < 0 {
		return ErrInvalidProduct
	}
	return nil
}

// LinkFor returns the link for a marketplace, or nil
func (p *Product) LinkFor(marketplace MarketplaceCode) *MarketplaceLink {
	for i := range p.Links {
		if p.Links[i].Marketplace == marketplace {
			return &p.Links[i]
		}
	}
	return nil
}

// EnsureLink returns the existing link for a marketplace or creates a pending one.
// A product never holds two links for the same marketplace.
func (p *Product) EnsureLink(marketplace MarketplaceCode) (*MarketplaceLink, error) {
	if link := p.LinkFor(marketplace); link != nil {
		return link, nil
	}
	link, err := NewMarketplaceLink(p.ID, marketplace)
	if err != nil {
		return nil, err
	}
	p.Links = append(p.Links, *link)
	return &p.Links[len(p.Links)-1], nil
}

// Snapshot returns the current synchronizable state
func (p *Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		Price:       p.Price,
		Quantity:    p.Quantity,
		Name:        p.Name,
		Description: p.Description,
	}
}

// UpdatePrice sets a new local price
func (p *Product) UpdatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidProduct
	}
	p.Price = price
	p.UpdatedAt = time.Now()
	return nil
}

// UpdateQuantity sets a new local quantity
func (p *Product) UpdateQuantity(quantity int) error {
	if quantity < 0 {
		return ErrInvalidProduct
	}
	p.Quantity = quantity
	p.UpdatedAt = time.Now()
	return nil
}

// UpdateDetails sets the descriptive fields
func (p *Product) UpdateDetails(name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidProduct
	}
	p.Name = name
	p.Description = description
	p.UpdatedAt = time.Now()
	return nil
}

// ---------------------------------------------------------------------------
// Repository ports
// ---------------------------------------------------------------------------

// ProductReader reads products from the catalog store
type ProductReader interface {
	// GetProduct returns a product with its links, shared.ErrNotFound if missing
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindBySKU returns a product by SKU
	FindBySKU(ctx context.Context, sku string) (*Product, error)

	// FindByRemoteProductID returns the product linked to a remote listing
	FindByRemoteProductID(ctx context.Context, marketplace MarketplaceCode, remoteProductID string) (*Product, error)
}

// ProductFinder selects products for sync passes
type ProductFinder interface {
	// FindPendingProducts returns products that have no link for the marketplace
	// or whose link is enabled and pending, interrupted or in error. Parked links
	// are left out until the product changes after the failed attempt. Unlinked
	// products come first, then links by least recent attempt.
	FindPendingProducts(ctx context.Context, marketplace MarketplaceCode, limit int) ([]Product, error)

	// FindLinkedProducts returns products with an enabled, mapped link, ordered by ID,
	// starting after afterID (uuid.Nil for the first page)
	FindLinkedProducts(ctx context.Context, marketplace MarketplaceCode, afterID uuid.UUID, limit int) ([]Product, error)
}

// ProductWriter writes products to the catalog store
type ProductWriter interface {
	// Save inserts a new product (Version 0) or updates an existing one guarded by
	// its Version. Returns shared.ErrConcurrencyConflict when the stored version moved.
	Save(ctx context.Context, product *Product) error

	// UpsertMarketplaceLink creates or updates the link for (product, marketplace)
	// without touching the product version
	UpsertMarketplaceLink(ctx context.Context, link *MarketplaceLink) error

	// ReleaseParkedLinks returns links of the marketplace parked on an unresolved
	// mapping to pending, for products of the local category. Returns the count.
	ReleaseParkedLinks(ctx context.Context, marketplace MarketplaceCode, localCategoryID uuid.UUID) (int64, error)
}

// ProductRepository combines all product catalog operations
type ProductRepository interface {
	ProductReader
	ProductFinder
	ProductWriter
}
