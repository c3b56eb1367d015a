package persistence

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/infrastructure/persistence/models"
)

// defaultAuditQueryLimit caps FindRecent when the filter sets no limit
const defaultAuditQueryLimit = 100

// GormAuditRepository implements integration.AuditRepository using GORM.
// Records are only ever inserted or deleted after archival.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Append stores a record
func (r *GormAuditRepository) Append(ctx context.Context, record *integration.AuditRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(models.SyncAuditLogModelFromDomain(record)).Error
}

// FindRecent returns records matching the filter, newest first
func (r *GormAuditRepository) FindRecent(ctx context.Context, filter integration.AuditFilter) ([]integration.AuditRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncAuditLogModel{})
	if filter.Marketplace != "" {
		query = query.Where("marketplace = ?", filter.Marketplace)
	}
	if filter.Outcome != "" {
		query = query.Where("outcome = ?", filter.Outcome)
	}
	if filter.Operation != "" {
		query = query.Where("operation = ?", filter.Operation)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.JobID != nil {
		query = query.Where("job_id = ?", *filter.JobID)
	}
	if filter.Since != nil {
		query = query.Where("timestamp >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("timestamp < ?", *filter.Until)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditQueryLimit
	}

	var rows []models.SyncAuditLogModel
	if err := query.Order("timestamp DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainAuditRecords(rows), nil
}

// Stats aggregates records per marketplace since the given time
func (r *GormAuditRepository) Stats(ctx context.Context, since time.Time) ([]integration.AuditStats, error) {
	db := r.db.WithContext(ctx)

	var rows []struct {
		Marketplace integration.MarketplaceCode
		Outcome     integration.AuditOutcome
		Count       int64
	}
	if err := db.Model(&models.SyncAuditLogModel{}).
		Select("marketplace, outcome, COUNT(*) AS count").
		Where("timestamp >= ? AND marketplace <> ''", since).
		Group("marketplace, outcome").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	byMarketplace := make(map[integration.MarketplaceCode]*integration.AuditStats)
	for _, row := range rows {
		s, ok := byMarketplace[row.Marketplace]
		if !ok {
			s = &integration.AuditStats{Marketplace: row.Marketplace}
			byMarketplace[row.Marketplace] = s
		}
		s.Total += row.Count
		switch row.Outcome {
		case integration.AuditOutcomeSuccess:
			s.Success += row.Count
		case integration.AuditOutcomeFailure:
			s.Failure += row.Count
		case integration.AuditOutcomeSkipped:
			s.Skipped += row.Count
		case integration.AuditOutcomeConflict:
			s.Conflict += row.Count
		case integration.AuditOutcomeRejected:
			s.Rejected += row.Count
		}
	}

	stats := make([]integration.AuditStats, 0, len(byMarketplace))
	for mp, s := range byMarketplace {
		var err error
		if s.Success > 0 {
			if s.LastSuccessAt, err = r.lastAt(db, mp, integration.AuditOutcomeSuccess, since); err != nil {
				return nil, err
			}
		}
		if s.Failure > 0 {
			if s.LastFailureAt, err = r.lastAt(db, mp, integration.AuditOutcomeFailure, since); err != nil {
				return nil, err
			}
		}
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Marketplace < stats[j].Marketplace })
	return stats, nil
}

func (r *GormAuditRepository) lastAt(db *gorm.DB, mp integration.MarketplaceCode, outcome integration.AuditOutcome, since time.Time) (*time.Time, error) {
	var latest models.SyncAuditLogModel
	err := db.Select("timestamp").
		Where("marketplace = ? AND outcome = ? AND timestamp >= ?", mp, outcome, since).
		Order("timestamp DESC").
		First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ts := latest.Timestamp
	return &ts, nil
}

// FindBefore returns up to limit records older than cutoff, oldest first
func (r *GormAuditRepository) FindBefore(ctx context.Context, cutoff time.Time, limit int) ([]integration.AuditRecord, error) {
	var rows []models.SyncAuditLogModel
	if err := r.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Order("timestamp ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainAuditRecords(rows), nil
}

// DeleteByIDs removes archived records
func (r *GormAuditRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.SyncAuditLogModel{})
	return result.RowsAffected, result.Error
}

func toDomainAuditRecords(rows []models.SyncAuditLogModel) []integration.AuditRecord {
	records := make([]integration.AuditRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records
}
