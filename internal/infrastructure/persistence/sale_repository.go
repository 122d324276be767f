package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/sales"
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/pharmacy/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSaleRepository implements sales.SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// Create inserts the sale together with its lines
func (r *GormSaleRepository) Create(ctx context.Context, sale *sales.Sale) error {
	return r.db.WithContext(ctx).Create(models.SaleModelFromDomain(sale)).Error
}

// FindByID loads a sale with its lines
func (r *GormSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	var model models.SaleModel
	if err := r.withLines(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// List returns one page of sales, newest first, with the total count
func (r *GormSaleRepository) List(ctx context.Context, filter shared.Filter) ([]sales.Sale, int64, error) {
	filter = filter.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.SaleModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.SaleModel
	if err := r.withLines(ctx).
		Order("sold_at DESC, id DESC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toDomainSales(rows), total, nil
}

// FindByPurchaser returns the purchaser's sales, newest first
func (r *GormSaleRepository) FindByPurchaser(ctx context.Context, purchaserID uuid.UUID) ([]sales.Sale, error) {
	var rows []models.SaleModel
	if err := r.withLines(ctx).
		Where("purchaser_id = ?", purchaserID).
		Order("sold_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainSales(rows), nil
}

// ExistsForItem reports whether any sale line references the item
func (r *GormSaleRepository) ExistsForItem(ctx context.Context, itemID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.SaleLineModel{}).
		Where("item_id = ?", itemID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormSaleRepository) withLines(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

func toDomainSales(rows []models.SaleModel) []sales.Sale {
	result := make([]sales.Sale, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result
}

var _ sales.SaleRepository = (*GormSaleRepository)(nil)
