package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/stock"
	"github.com/pharmacy/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormMovementRepository implements stock.MovementRepository using GORM.
// Rows are only ever inserted, or deleted wholesale when an item is purged.
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Append records a movement
func (r *GormMovementRepository) Append(ctx context.Context, movement *stock.Movement) error {
	return r.db.WithContext(ctx).Create(models.MovementModelFromDomain(movement)).Error
}

// FindByItem returns the item's movements, newest first
func (r *GormMovementRepository) FindByItem(ctx context.Context, itemID uuid.UUID) ([]stock.Movement, error) {
	var rows []models.MovementModel
	if err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("occurred_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	movements := make([]stock.Movement, len(rows))
	for i := range rows {
		movements[i] = *rows[i].ToDomain()
	}
	return movements, nil
}

// DeleteByItem removes the item's whole history
func (r *GormMovementRepository) DeleteByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Where("item_id = ?", itemID).Delete(&models.MovementModel{})
	return result.RowsAffected, result.Error
}

var _ stock.MovementRepository = (*GormMovementRepository)(nil)
