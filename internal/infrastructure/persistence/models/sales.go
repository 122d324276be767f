package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/sales"
	"github.com/shopspring/decimal"
)

// SaleModel is the persistence model for the Sale aggregate
type SaleModel struct {
	BaseModel
	PurchaserID uuid.UUID       `gorm:"type:uuid;not null;index"`
	SoldAt      time.Time       `gorm:"not null;index"`
	Total       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Lines       []SaleLineModel `gorm:"foreignKey:SaleID;references:ID"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain converts the model and its loaded lines to a domain Sale
func (m *SaleModel) ToDomain() *sales.Sale {
	sale := &sales.Sale{
		BaseEntity:  m.BaseModel.ToDomain(),
		PurchaserID: m.PurchaserID,
		SoldAt:      m.SoldAt,
		Total:       m.Total,
		Lines:       make([]sales.SaleLine, len(m.Lines)),
	}
	for i := range m.Lines {
		sale.Lines[i] = m.Lines[i].ToDomain()
	}
	return sale
}

// SaleModelFromDomain creates a SaleModel with its lines from a domain Sale.
// Line positions keep the order the lines were added in.
func SaleModelFromDomain(s *sales.Sale) *SaleModel {
	m := &SaleModel{
		PurchaserID: s.PurchaserID,
		SoldAt:      s.SoldAt,
		Total:       s.Total,
		Lines:       make([]SaleLineModel, len(s.Lines)),
	}
	m.FromDomainBaseEntity(s.BaseEntity)
	for i, line := range s.Lines {
		m.Lines[i] = SaleLineModel{
			ID:        line.ID,
			SaleID:    s.ID,
			Position:  i + 1,
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
		}
	}
	return m
}

// SaleLineModel is the persistence model for one sale line
type SaleLineModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position  int             `gorm:"not null"`
	ItemID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity  int             `gorm:"not null;check:quantity > 0"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (SaleLineModel) TableName() string {
	return "sale_lines"
}

// ToDomain converts the model to a domain SaleLine
func (m *SaleLineModel) ToDomain() sales.SaleLine {
	return sales.SaleLine{
		ID:        m.ID,
		SaleID:    m.SaleID,
		ItemID:    m.ItemID,
		Quantity:  m.Quantity,
		UnitPrice: m.UnitPrice,
		Subtotal:  m.Subtotal,
	}
}
