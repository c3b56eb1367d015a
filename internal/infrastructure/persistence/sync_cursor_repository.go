package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/persistence/models"
)

// GormSyncCursorRepository implements integration.SyncCursorRepository using GORM
type GormSyncCursorRepository struct {
	db *gorm.DB
}

// NewGormSyncCursorRepository creates a new GormSyncCursorRepository
func NewGormSyncCursorRepository(db *gorm.DB) *GormSyncCursorRepository {
	return &GormSyncCursorRepository{db: db}
}

// Get returns the stored cursor, or an empty one when the job never ran
func (r *GormSyncCursorRepository) Get(ctx context.Context, marketplace integration.MarketplaceCode, jobType integration.JobType) (*integration.SyncCursor, error) {
	var model models.SyncCursorModel
	err := r.db.WithContext(ctx).
		Where("marketplace = ? AND job_type = ?", marketplace, jobType).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return integration.NewSyncCursor(marketplace, jobType), nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save upserts the cursor
func (r *GormSyncCursorRepository) Save(ctx context.Context, cursor *integration.SyncCursor) error {
	model := models.SyncCursorModelFromDomain(cursor)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "marketplace"}, {Name: "job_type"}},
		UpdateAll: true,
	}).Create(model).Error
}

// List returns all stored cursors
func (r *GormSyncCursorRepository) List(ctx context.Context) ([]integration.SyncCursor, error) {
	var rows []models.SyncCursorModel
	if err := r.db.WithContext(ctx).Order("marketplace, job_type").Find(&rows).Error; err != nil {
		return nil, err
	}
	cursors := make([]integration.SyncCursor, len(rows))
	for i := range rows {
		cursors[i] = *rows[i].ToDomain()
	}
	return cursors, nil
}
