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

// GormCategoryMappingRepository implements integration.CategoryMappingRepository using GORM
type GormCategoryMappingRepository struct {
	db *gorm.DB
}

// NewGormCategoryMappingRepository creates a new GormCategoryMappingRepository
func NewGormCategoryMappingRepository(db *gorm.DB) *GormCategoryMappingRepository {
	return &GormCategoryMappingRepository{db: db}
}

// FindForCategory returns the preferred mapping: manual first, then highest confidence
func (r *GormCategoryMappingRepository) FindForCategory(ctx context.Context, localCategoryID uuid.UUID, marketplace integration.MarketplaceCode) (*integration.CategoryMapping, error) {
	var model models.CategoryMappingModel
	err := r.db.WithContext(ctx).
		Where("local_category_id = ? AND marketplace = ?", localCategoryID, marketplace).
		Order("auto_mapped ASC").
		Order("confidence_score DESC").
		Order("updated_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByMarketplace returns all mappings of a marketplace
func (r *GormCategoryMappingRepository) ListByMarketplace(ctx context.Context, marketplace integration.MarketplaceCode) ([]integration.CategoryMapping, error) {
	var rows []models.CategoryMappingModel
	if err := r.db.WithContext(ctx).
		Where("marketplace = ?", marketplace).
		Order("local_category_id, auto_mapped ASC, confidence_score DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	mappings := make([]integration.CategoryMapping, len(rows))
	for i := range rows {
		mappings[i] = *rows[i].ToDomain()
	}
	return mappings, nil
}

// Upsert creates or updates the mapping keyed by (local category, marketplace, remote category)
func (r *GormCategoryMappingRepository) Upsert(ctx context.Context, mapping *integration.CategoryMapping) error {
	now := time.Now()
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = now
	}
	mapping.UpdatedAt = now

	model := models.CategoryMappingModelFromDomain(mapping)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "local_category_id"}, {Name: "marketplace"}, {Name: "remote_category_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"remote_category_name", "remote_category_path", "confidence_score",
			"auto_mapped", "source_hash", "updated_at",
		}),
	}).Create(model).Error
}

// DeleteAutoMappings removes automatic mappings of a local category on a marketplace
func (r *GormCategoryMappingRepository) DeleteAutoMappings(ctx context.Context, localCategoryID uuid.UUID, marketplace integration.MarketplaceCode) error {
	return r.db.WithContext(ctx).
		Where("local_category_id = ? AND marketplace = ? AND auto_mapped = ?", localCategoryID, marketplace, true).
		Delete(&models.CategoryMappingModel{}).Error
}
