package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ItemModel maps the items master table
type ItemModel struct {
	BaseModel
	Name               string          `gorm:"type:varchar(200);not null"`
	Active             bool            `gorm:"not null;default:true"`
	PermanentlyRemoved bool            `gorm:"not null;default:false"`
	Price              decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (ItemModel) TableName() string {
	return "items"
}

// ToDomain converts the model to a catalog Item
func (m *ItemModel) ToDomain() *catalog.Item {
	return &catalog.Item{
		ID:                 m.ID,
		Name:               m.Name,
		Active:             m.Active,
		PermanentlyRemoved: m.PermanentlyRemoved,
		Price:              m.Price,
	}
}

// PurchaserModel maps the purchasers master table
type PurchaserModel struct {
	BaseModel
	Name      string    `gorm:"type:varchar(200);not null"`
	BirthDate time.Time `gorm:"type:date;not null"`
}

// TableName returns the table name for GORM
func (PurchaserModel) TableName() string {
	return "purchasers"
}

// ToDomain converts the model to a catalog Purchaser
func (m *PurchaserModel) ToDomain() *catalog.Purchaser {
	return &catalog.Purchaser{
		ID:        m.ID,
		Name:      m.Name,
		BirthDate: m.BirthDate,
	}
}

// AllModels lists every model in dependency order, for AutoMigrate in
// sqlite-backed tests and development databases
func AllModels() []any {
	return []any{
		&ItemModel{},
		&PurchaserModel{},
		&LotModel{},
		&MovementModel{},
		&SaleModel{},
		&SaleLineModel{},
	}
}

// NewItemModel builds an item row. Used by seeding and tests.
func NewItemModel(id uuid.UUID, name string, price decimal.Decimal, now time.Time) *ItemModel {
	return &ItemModel{
		BaseModel: BaseModel{ID: id, CreatedAt: now, UpdatedAt: now},
		Name:      name,
		Active:    true,
		Price:     price,
	}
}

// NewPurchaserModel builds a purchaser row. Used by seeding and tests.
func NewPurchaserModel(id uuid.UUID, name string, birthDate, now time.Time) *PurchaserModel {
	return &PurchaserModel{
		BaseModel: BaseModel{ID: id, CreatedAt: now, UpdatedAt: now},
		Name:      name,
		BirthDate: birthDate,
	}
}
