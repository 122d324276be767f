package sales

import (
	"context"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/shared"
)

// SaleRepository persists sales with their lines
type SaleRepository interface {
	// Create inserts the sale and all its lines
	Create(ctx context.Context, sale *Sale) error

	// FindByID loads a sale with its lines
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)

	// List returns sales newest first
	List(ctx context.Context, filter shared.Filter) ([]Sale, int64, error)

	// FindByPurchaser returns the purchaser's sales newest first
	FindByPurchaser(ctx context.Context, purchaserID uuid.UUID) ([]Sale, error)

	// ExistsForItem reports whether any sale line references the item
	ExistsForItem(ctx context.Context, itemID uuid.UUID) (bool, error)
}
