package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
	"github.com/meschain/marketsync/internal/infrastructure/persistence/models"
)

// maxCategoryDepth bounds the parent walk so a corrupt cycle cannot loop forever
const maxCategoryDepth = 32

// ErrCategoryCycle is returned when the parent chain of a category loops
var ErrCategoryCycle = errors.New("category parent chain exceeds maximum depth")

// GormCategoryRepository reads the merchant category tree using GORM.
// It implements integration.LocalCategoryReader.
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

// GetCategory returns the category with its full path from the root
func (r *GormCategoryRepository) GetCategory(ctx context.Context, id uuid.UUID) (*integration.LocalCategory, error) {
	db := r.db.WithContext(ctx)

	var leaf models.CategoryModel
	if err := db.First(&leaf, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	path := []string{leaf.Name}
	parentID := leaf.ParentID
	for depth := 0; parentID != nil; depth++ {
		if depth >= maxCategoryDepth {
			return nil, fmt.Errorf("%w: %s", ErrCategoryCycle, id)
		}
		var parent models.CategoryModel
		if err := db.First(&parent, "id = ?", *parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// orphaned subtree: the path starts at the first existing ancestor
				break
			}
			return nil, err
		}
		path = append(path, parent.Name)
		parentID = parent.ParentID
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return &integration.LocalCategory{ID: leaf.ID, Name: leaf.Name, Path: path}, nil
}

// CreateCategory adds a category under parentID (nil for a root)
func (r *GormCategoryRepository) CreateCategory(ctx context.Context, parentID *uuid.UUID, name string) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, shared.ErrInvalidInput.WithMessage("Category name cannot be empty")
	}
	now := time.Now()
	model := &models.CategoryModel{
		ID:        uuid.New(),
		ParentID:  parentID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return uuid.Nil, err
	}
	return model.ID, nil
}
