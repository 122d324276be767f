// Package catalog holds the master data the ledger reads but does not own.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a sellable medication as seen by the stock ledger
type Item struct {
	ID                 uuid.UUID
	Name               string
	Active             bool
	PermanentlyRemoved bool
	Price              decimal.Decimal
}

// IsSellable reports whether the item may appear on a sale
func (i *Item) IsSellable() bool {
	return i.Active && !i.PermanentlyRemoved
}

// Purchaser is a customer as seen by the sale coordinator
type Purchaser struct {
	ID        uuid.UUID
	Name      string
	BirthDate time.Time
}

// ItemReader looks up items. Missing items yield shared.ErrNotFound.
type ItemReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Item, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Item, error)
}

// ItemWriter applies the outcome of retiring an item
type ItemWriter interface {
	// MarkRemoved deactivates the item and flags it permanently removed
	MarkRemoved(ctx context.Context, id uuid.UUID) error
	// Delete removes the item record
	Delete(ctx context.Context, id uuid.UUID) error
}

// ItemRepository combines item reads and retirement writes
type ItemRepository interface {
	ItemReader
	ItemWriter
}

// PurchaserReader looks up purchasers. Missing purchasers yield shared.ErrNotFound.
type PurchaserReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Purchaser, error)
}
