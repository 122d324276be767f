package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/pharmacy/backend/internal/domain/stock"
	"github.com/pharmacy/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// fifoOrder is the canonical depletion order; id breaks exact ties
const fifoOrder = "expires_on ASC, created_at ASC, id ASC"

// GormLotRepository implements stock.LotRepository using GORM
type GormLotRepository struct {
	db *gorm.DB
}

// NewGormLotRepository creates a new GormLotRepository
func NewGormLotRepository(db *gorm.DB) *GormLotRepository {
	return &GormLotRepository{db: db}
}

// FindByID finds a lot by its ID
func (r *GormLotRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.Lot, error) {
	var model models.LotModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByItem returns the item's lots in FIFO order
func (r *GormLotRepository) FindByItem(ctx context.Context, itemID uuid.UUID, filter stock.LotFilter) ([]stock.Lot, error) {
	query := r.db.WithContext(ctx).Where("item_id = ?", itemID)
	if filter.OnlyAvailable {
		query = query.Where("active = ? AND remaining > 0", true)
	}
	return r.find(query.Order(fifoOrder))
}

// FindAvailableForUpdate returns the item's available lots in FIFO order,
// locked with SELECT ... FOR UPDATE. sqlite ignores the locking clause.
func (r *GormLotRepository) FindAvailableForUpdate(ctx context.Context, itemID uuid.UUID) ([]stock.Lot, error) {
	query := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("item_id = ? AND active = ? AND remaining > 0", itemID, true).
		Order(fifoOrder)
	return r.find(query)
}

// LabelExists reports whether the item already has a lot labelled label
func (r *GormLotRepository) LabelExists(ctx context.Context, itemID uuid.UUID, label string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.LotModel{}).
		Where("item_id = ? AND label = ?", itemID, label).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SumRemaining sums the remaining quantity of the item's active lots.
// A non-nil expiredBefore leaves out lots expiring before that date.
func (r *GormLotRepository) SumRemaining(ctx context.Context, itemID uuid.UUID, expiredBefore *time.Time) (int, error) {
	query := r.db.WithContext(ctx).Model(&models.LotModel{}).
		Where("item_id = ? AND active = ?", itemID, true)
	if expiredBefore != nil {
		query = query.Where("expires_on >= ?", shared.DateOf(*expiredBefore))
	}
	var total int64
	if err := query.Select("COALESCE(SUM(remaining), 0)").Row().Scan(&total); err != nil {
		return 0, fmt.Errorf("sum remaining: %w", err)
	}
	return int(total), nil
}

// SumRemainingByItem sums active lots per item, expired lots included
func (r *GormLotRepository) SumRemainingByItem(ctx context.Context) ([]stock.ItemQuantity, error) {
	var rows []struct {
		ItemID   uuid.UUID
		Quantity int64
	}
	if err := r.db.WithContext(ctx).Model(&models.LotModel{}).
		Select("item_id, COALESCE(SUM(remaining), 0) AS quantity").
		Where("active = ?", true).
		Group("item_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]stock.ItemQuantity, len(rows))
	for i, row := range rows {
		result[i] = stock.ItemQuantity{ItemID: row.ItemID, Quantity: int(row.Quantity)}
	}
	return result, nil
}

// FindExpiringBetween returns available lots expiring within [from, to]
func (r *GormLotRepository) FindExpiringBetween(ctx context.Context, from, to time.Time) ([]stock.Lot, error) {
	query := r.db.WithContext(ctx).
		Where("active = ? AND remaining > 0", true).
		Where("expires_on >= ? AND expires_on <= ?", shared.DateOf(from), shared.DateOf(to)).
		Order(fifoOrder)
	return r.find(query)
}

// Create inserts a new lot. A label clash within the item yields stock.ErrDuplicateLabel.
func (r *GormLotRepository) Create(ctx context.Context, lot *stock.Lot) error {
	if err := r.db.WithContext(ctx).Create(models.LotModelFromDomain(lot)).Error; err != nil {
		if isUniqueViolation(err) {
			return stock.ErrDuplicateLabel
		}
		return err
	}
	return nil
}

// SaveWithLock writes the lot's quantity and state if the stored version
// still equals lot.Version, then advances lot.Version
func (r *GormLotRepository) SaveWithLock(ctx context.Context, lot *stock.Lot) error {
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("id = ? AND version = ?", lot.ID, lot.Version).
		Updates(map[string]any{
			"remaining":  lot.Remaining,
			"active":     lot.Active,
			"version":    lot.Version + 1,
			"updated_at": lot.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict,
			fmt.Sprintf("Lot %s was modified by another transaction", lot.Label))
	}
	lot.IncrementVersion()
	return nil
}

// DeactivateByItem deactivates every active lot of the item
func (r *GormLotRepository) DeactivateByItem(ctx context.Context, itemID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("item_id = ? AND active = ?", itemID, true).
		Updates(map[string]any{
			"active":     false,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now.UTC(),
		})
	return result.RowsAffected, result.Error
}

// DeleteByItem removes every lot of the item
func (r *GormLotRepository) DeleteByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Where("item_id = ?", itemID).Delete(&models.LotModel{})
	return result.RowsAffected, result.Error
}

func (r *GormLotRepository) find(query *gorm.DB) ([]stock.Lot, error) {
	var rows []models.LotModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	lots := make([]stock.Lot, len(rows))
	for i := range rows {
		lots[i] = *rows[i].ToDomain()
	}
	return lots, nil
}

var _ stock.LotRepository = (*GormLotRepository)(nil)
