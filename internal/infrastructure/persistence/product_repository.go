package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
	"github.com/meschain/marketsync/internal/infrastructure/persistence/models"
)

// linkUpdateColumns are overwritten when a link for (product, marketplace) already exists
var linkUpdateColumns = []string{
	"remote_product_id", "sync_status", "last_synced_at", "last_error", "last_error_kind",
	"remote_revision_hash", "synced_price", "synced_quantity", "synced_name",
	"synced_description", "disabled", "updated_at",
}

// GormProductRepository implements integration.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// GetProduct finds a product by its ID, with its links
func (r *GormProductRepository) GetProduct(ctx context.Context, id uuid.UUID) (*integration.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).Preload("Links").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySKU finds a product by its SKU
func (r *GormProductRepository) FindBySKU(ctx context.Context, sku string) (*integration.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).Preload("Links").Where("sku = ?", sku).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByRemoteProductID finds the product linked to a remote listing
func (r *GormProductRepository) FindByRemoteProductID(ctx context.Context, marketplace integration.MarketplaceCode, remoteProductID string) (*integration.Product, error) {
	if remoteProductID == "" {
		return nil, shared.ErrNotFound
	}
	var link models.MarketplaceLinkModel
	if err := r.db.WithContext(ctx).
		Where("marketplace = ? AND remote_product_id = ?", marketplace, remoteProductID).
		First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return r.GetProduct(ctx, link.ProductID)
}

// FindPendingProducts returns products without a link for the marketplace, or
// whose link is enabled and pending, syncing (an interrupted attempt) or in
// error. A link in error with a parking kind is skipped until the product is
// updated after the failed attempt. Unlinked products come first, then links
// ordered by their last attempt, so failing items rotate behind the rest.
func (r *GormProductRepository) FindPendingProducts(ctx context.Context, marketplace integration.MarketplaceCode, limit int) ([]integration.Product, error) {
	var rows []models.ProductModel
	err := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Select("products.*").
		Joins("LEFT JOIN marketplace_links ml ON ml.product_id = products.id AND ml.marketplace = ?", marketplace).
		Where("ml.id IS NULL OR (ml.disabled = ? AND (ml.sync_status IN ? OR (ml.sync_status = ? AND (COALESCE(ml.last_error_kind, '') NOT IN ? OR products.updated_at > ml.updated_at))))",
			false,
			[]integration.LinkSyncStatus{integration.LinkStatusPending, integration.LinkStatusSyncing},
			integration.LinkStatusError,
			integration.ParkingKinds(),
		).
		Order("CASE WHEN ml.id IS NULL THEN 0 ELSE 1 END, ml.updated_at ASC, products.updated_at ASC, products.id ASC").
		Preload("Links").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainProducts(rows), nil
}

// FindLinkedProducts returns products with an enabled link that carries a remote id, ordered by ID
func (r *GormProductRepository) FindLinkedProducts(ctx context.Context, marketplace integration.MarketplaceCode, afterID uuid.UUID, limit int) ([]integration.Product, error) {
	db := r.db.WithContext(ctx)
	linked := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.MarketplaceLinkModel{}).
		Select("1").
		Where("marketplace_links.product_id = products.id AND marketplace_links.marketplace = ?", marketplace).
		Where("marketplace_links.disabled = ? AND marketplace_links.remote_product_id <> ''", false)

	query := db.Preload("Links").Where("EXISTS (?)", linked)
	if afterID != uuid.Nil {
		query = query.Where("products.id > ?", afterID)
	}

	var rows []models.ProductModel
	if err := query.Order("products.id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainProducts(rows), nil
}

// Save inserts a new product (Version 0) or updates an existing one with an
// optimistic version check. Links carried by the product are upserted in the
// same transaction.
func (r *GormProductRepository) Save(ctx context.Context, product *integration.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	now := time.Now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if product.Version == 0 {
			product.Version = 1
			product.UpdatedAt = now
			model := models.ProductModelFromDomain(product)
			if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
				product.Version = 0
				if isDuplicateKey(err) {
					return shared.ErrAlreadyExists
				}
				return err
			}
		} else {
			model := models.ProductModelFromDomain(product)
			result := tx.Model(&models.ProductModel{}).
				Where("id = ? AND version = ?", product.ID, product.Version).
				Updates(map[string]any{
					"sku":         model.SKU,
					"barcode":     model.Barcode,
					"name":        model.Name,
					"description": model.Description,
					"price":       model.Price,
					"quantity":    model.Quantity,
					"attributes":  model.Attributes,
					"category_id": model.CategoryID,
					"version":     gorm.Expr("version + 1"),
					"updated_at":  now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				var count int64
				if err := tx.Model(&models.ProductModel{}).Where("id = ?", product.ID).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return shared.ErrNotFound
				}
				return shared.ErrConcurrencyConflict
			}
			product.Version++
			product.UpdatedAt = now
			// the edit is new input for links parked on the previous one
			for i := range product.Links {
				product.Links[i].Release()
			}
		}

		for i := range product.Links {
			product.Links[i].ProductID = product.ID
			if err := upsertLink(tx, &product.Links[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReleaseParkedLinks moves links parked on an unresolved mapping back to
// pending for every product of the local category
func (r *GormProductRepository) ReleaseParkedLinks(ctx context.Context, marketplace integration.MarketplaceCode, localCategoryID uuid.UUID) (int64, error) {
	db := r.db.WithContext(ctx)
	inCategory := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.ProductModel{}).
		Select("id").
		Where("category_id = ?", localCategoryID)

	result := db.Model(&models.MarketplaceLinkModel{}).
		Where("marketplace = ? AND sync_status = ? AND last_error_kind = ?",
			marketplace, integration.LinkStatusError, integration.ErrorKindMappingUnresolved).
		Where("product_id IN (?)", inCategory).
		Updates(map[string]any{
			"sync_status":     integration.LinkStatusPending,
			"last_error":      "",
			"last_error_kind": integration.ErrorKindNone,
			"updated_at":      time.Now(),
		})
	return result.RowsAffected, result.Error
}

// UpsertMarketplaceLink creates or updates the link for (product, marketplace)
func (r *GormProductRepository) UpsertMarketplaceLink(ctx context.Context, link *integration.MarketplaceLink) error {
	if link.ProductID == uuid.Nil {
		return shared.ErrInvalidInput.WithMessage("Marketplace link has no product")
	}
	return upsertLink(r.db.WithContext(ctx), link)
}

// CountLinksByStatus returns link counts per sync status for a marketplace
func (r *GormProductRepository) CountLinksByStatus(ctx context.Context, marketplace integration.MarketplaceCode) (map[integration.LinkSyncStatus]int64, error) {
	var rows []struct {
		SyncStatus integration.LinkSyncStatus
		Count      int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.MarketplaceLinkModel{}).
		Select("sync_status, COUNT(*) AS count").
		Where("marketplace = ?", marketplace).
		Group("sync_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[integration.LinkSyncStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.SyncStatus] = row.Count
	}
	return counts, nil
}

// CountAllLinksByStatus returns link counts keyed by marketplace, then status.
// It feeds the periodic link gauges.
func (r *GormProductRepository) CountAllLinksByStatus(ctx context.Context) (map[string]map[string]int64, error) {
	var rows []struct {
		Marketplace string
		SyncStatus  string
		Count       int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.MarketplaceLinkModel{}).
		Select("marketplace, sync_status, COUNT(*) AS count").
		Group("marketplace, sync_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]map[string]int64)
	for _, row := range rows {
		if counts[row.Marketplace] == nil {
			counts[row.Marketplace] = make(map[string]int64)
		}
		counts[row.Marketplace][row.SyncStatus] = row.Count
	}
	return counts, nil
}

func upsertLink(db *gorm.DB, link *integration.MarketplaceLink) error {
	now := time.Now()
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now
	if link.SyncStatus == "" {
		link.SyncStatus = integration.LinkStatusPending
	}

	model := models.MarketplaceLinkModelFromDomain(link)
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "marketplace"}},
		DoUpdates: clause.AssignmentColumns(linkUpdateColumns),
	}).Create(model).Error
}

func toDomainProducts(rows []models.ProductModel) []integration.Product {
	products := make([]integration.Product, len(rows))
	for i := range rows {
		products[i] = *rows[i].ToDomain()
	}
	return products
}
