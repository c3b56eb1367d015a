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

var orderLinkUpdateColumns = []string{
	"remote_status", "tracking_number", "carrier", "integrated_at", "shipped_at",
	"delivered_at", "cancelled_at", "returned_at", "remote_updated_at", "updated_at",
}

// GormOrderRepository implements integration.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByRemoteID returns the order linked to a remote order
func (r *GormOrderRepository) FindByRemoteID(ctx context.Context, marketplace integration.MarketplaceCode, remoteOrderID string) (*integration.Order, error) {
	var link models.OrderIntegrationModel
	if err := r.db.WithContext(ctx).
		Where("marketplace = ? AND remote_order_id = ?", marketplace, remoteOrderID).
		First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return r.GetOrder(ctx, link.OrderID)
}

// GetOrder returns an order with its lines and links
func (r *GormOrderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*integration.Order, error) {
	var model models.OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("Links").
		First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new order with its lines and links. A remote order that is
// already correlated yields shared.ErrAlreadyExists.
func (r *GormOrderRepository) Create(ctx context.Context, order *integration.Order) error {
	now := time.Now()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	for i := range order.Links {
		prepareOrderLink(&order.Links[i], order.ID, now)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, link := range order.Links {
			var count int64
			if err := tx.Model(&models.OrderIntegrationModel{}).
				Where("marketplace = ? AND remote_order_id = ?", link.Marketplace, link.RemoteOrderID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return shared.ErrAlreadyExists
			}
		}

		model := models.OrderModelFromDomain(order)
		model.Version = 1
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		if len(model.Items) > 0 {
			if err := tx.Create(&model.Items).Error; err != nil {
				return err
			}
		}
		if len(model.Links) > 0 {
			if err := tx.Create(&model.Links).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicateKey(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	order.Version = 1
	return nil
}

// Save updates an order guarded by its Version. Lines are replaced and links upserted.
func (r *GormOrderRepository) Save(ctx context.Context, order *integration.Order) error {
	now := time.Now()
	for i := range order.Links {
		prepareOrderLink(&order.Links[i], order.ID, now)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OrderModel{}).
			Where("id = ? AND version = ?", order.ID, order.Version).
			Updates(map[string]any{
				"status":        order.Status,
				"customer_name": order.CustomerName,
				"total_amount":  order.TotalAmount,
				"currency":      order.Currency,
				"version":       gorm.Expr("version + 1"),
				"updated_at":    now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.OrderModel{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.ErrNotFound
			}
			return shared.ErrConcurrencyConflict
		}

		model := models.OrderModelFromDomain(order)
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItemModel{}).Error; err != nil {
			return err
		}
		if len(model.Items) > 0 {
			if err := tx.Create(&model.Items).Error; err != nil {
				return err
			}
		}
		for i := range model.Links {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "marketplace"}, {Name: "remote_order_id"}},
				DoUpdates: clause.AssignmentColumns(orderLinkUpdateColumns),
			}).Create(&model.Links[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	order.Version++
	order.UpdatedAt = now
	return nil
}

// CountByStatus returns order counts per status. An empty marketplace counts all orders.
func (r *GormOrderRepository) CountByStatus(ctx context.Context, marketplace integration.MarketplaceCode) (map[integration.OrderStatus]int64, error) {
	var rows []struct {
		Status integration.OrderStatus
		Count  int64
	}
	query := r.db.WithContext(ctx).Model(&models.OrderModel{})
	if marketplace != "" {
		query = query.
			Joins("JOIN order_integrations ON order_integrations.order_id = orders.id").
			Where("order_integrations.marketplace = ?", marketplace)
	}
	if err := query.
		Select("orders.status AS status, COUNT(DISTINCT orders.id) AS count").
		Group("orders.status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[integration.OrderStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func prepareOrderLink(link *integration.OrderLink, orderID uuid.UUID, now time.Time) {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	link.OrderID = orderID
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	if link.UpdatedAt.IsZero() {
		link.UpdatedAt = now
	}
}
