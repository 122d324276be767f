package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/catalog"
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/pharmacy/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormItemRepository implements catalog.ItemRepository over the items table
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// FindByID finds an item by its ID
func (r *GormItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Item, error) {
	var model models.ItemModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDs returns the items found among ids, keyed by ID. Missing IDs are
// simply absent from the map.
func (r *GormItemRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Item, error) {
	result := make(map[uuid.UUID]catalog.Item, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.ItemModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		result[rows[i].ID] = *rows[i].ToDomain()
	}
	return result, nil
}

// MarkRemoved deactivates the item and flags it permanently removed
func (r *GormItemRepository) MarkRemoved(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.ItemModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"active":              false,
			"permanently_removed": true,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the item record
func (r *GormItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.ItemModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GormPurchaserRepository implements catalog.PurchaserReader over the purchasers table
type GormPurchaserRepository struct {
	db *gorm.DB
}

// NewGormPurchaserRepository creates a new GormPurchaserRepository
func NewGormPurchaserRepository(db *gorm.DB) *GormPurchaserRepository {
	return &GormPurchaserRepository{db: db}
}

// FindByID finds a purchaser by its ID
func (r *GormPurchaserRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Purchaser, error) {
	var model models.PurchaserModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

var (
	_ catalog.ItemRepository  = (*GormItemRepository)(nil)
	_ catalog.PurchaserReader = (*GormPurchaserRepository)(nil)
)
