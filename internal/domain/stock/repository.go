package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LotFilter narrows lot listings
type LotFilter struct {
	OnlyAvailable bool
}

// ItemQuantity is the aggregated remaining quantity of one item
type ItemQuantity struct {
	ItemID   uuid.UUID
	Quantity int
}

// LotRepository persists lots. Listings are returned in FIFO order.
type LotRepository interface {
	// FindByID finds a lot by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Lot, error)

	// FindByItem returns the item's lots in FIFO order
	FindByItem(ctx context.Context, itemID uuid.UUID, filter LotFilter) ([]Lot, error)

	// FindAvailableForUpdate returns the item's active lots with remaining > 0
	// in FIFO order, row-locked for the rest of the transaction
	FindAvailableForUpdate(ctx context.Context, itemID uuid.UUID) ([]Lot, error)

	// LabelExists reports whether the item already has a lot with this label
	LabelExists(ctx context.Context, itemID uuid.UUID, label string) (bool, error)

	// SumRemaining sums active lots of the item. When expiredBefore is set,
	// lots expiring before that date are left out.
	SumRemaining(ctx context.Context, itemID uuid.UUID, expiredBefore *time.Time) (int, error)

	// SumRemainingByItem sums active lots grouped by item
	SumRemainingByItem(ctx context.Context) ([]ItemQuantity, error)

	// FindExpiringBetween returns active lots with remaining > 0 whose
	// expiry falls in [from, to], ordered by expiry
	FindExpiringBetween(ctx context.Context, from, to time.Time) ([]Lot, error)

	// Create inserts a new lot
	Create(ctx context.Context, lot *Lot) error

	// SaveWithLock updates a lot if its version still matches and bumps the version
	SaveWithLock(ctx context.Context, lot *Lot) error

	// DeactivateByItem deactivates every lot of the item, stamping now
	DeactivateByItem(ctx context.Context, itemID uuid.UUID, now time.Time) (int64, error)

	// DeleteByItem removes every lot of the item
	DeleteByItem(ctx context.Context, itemID uuid.UUID) (int64, error)
}

// MovementRepository is the append-only movement log
type MovementRepository interface {
	// Append records a movement
	Append(ctx context.Context, movement *Movement) error

	// FindByItem returns the item's movements, newest first
	FindByItem(ctx context.Context, itemID uuid.UUID) ([]Movement, error)

	// DeleteByItem removes the item's whole history
	DeleteByItem(ctx context.Context, itemID uuid.UUID) (int64, error)
}
