package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/pharmacy/backend/internal/domain/stock"
)

// LotModel is the persistence model for the Lot aggregate root
type LotModel struct {
	AggregateModel
	ItemID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_lot_item_label,priority:1;index:idx_stock_lot_fifo,priority:1"`
	Label     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_stock_lot_item_label,priority:2"`
	Remaining int       `gorm:"not null;default:0;check:remaining >= 0"`
	ExpiresOn time.Time `gorm:"type:date;not null;index:idx_stock_lot_fifo,priority:2"`
	Active    bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (LotModel) TableName() string {
	return "stock_lots"
}

// ToDomain converts the model to a domain Lot
func (m *LotModel) ToDomain() *stock.Lot {
	return &stock.Lot{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ItemID:            m.ItemID,
		Label:             m.Label,
		Remaining:         m.Remaining,
		ExpiresOn:         shared.DateOf(m.ExpiresOn),
		Active:            m.Active,
	}
}

// FromDomain populates the model from a domain Lot
func (m *LotModel) FromDomain(l *stock.Lot) {
	m.FromDomainAggregateRoot(l.BaseAggregateRoot)
	m.ItemID = l.ItemID
	m.Label = l.Label
	m.Remaining = l.Remaining
	m.ExpiresOn = shared.DateOf(l.ExpiresOn)
	m.Active = l.Active
}

// LotModelFromDomain creates a LotModel from a domain Lot
func LotModelFromDomain(l *stock.Lot) *LotModel {
	m := &LotModel{}
	m.FromDomain(l)
	return m
}

// MovementModel is the persistence model for movement log entries
type MovementModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ItemID     uuid.UUID `gorm:"type:uuid;not null;index:idx_stock_movement_item_time,priority:1"`
	Kind       string    `gorm:"type:varchar(20);not null"`
	Quantity   int       `gorm:"not null;check:quantity > 0"`
	Note       string    `gorm:"type:varchar(500)"`
	OccurredAt time.Time `gorm:"not null;index:idx_stock_movement_item_time,priority:2"`
}

// TableName returns the table name for GORM
func (MovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the model to a domain Movement
func (m *MovementModel) ToDomain() *stock.Movement {
	return &stock.Movement{
		ID:         m.ID,
		ItemID:     m.ItemID,
		Kind:       stock.MovementKind(m.Kind),
		Quantity:   m.Quantity,
		Note:       m.Note,
		OccurredAt: m.OccurredAt,
	}
}

// MovementModelFromDomain creates a MovementModel from a domain Movement
func MovementModelFromDomain(mv *stock.Movement) *MovementModel {
	return &MovementModel{
		ID:         mv.ID,
		ItemID:     mv.ItemID,
		Kind:       string(mv.Kind),
		Quantity:   mv.Quantity,
		Note:       mv.Note,
		OccurredAt: mv.OccurredAt,
	}
}
