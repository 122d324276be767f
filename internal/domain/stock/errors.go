package stock

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/shared"
)

// ShortageReason tells callers why stock was insufficient
type ShortageReason string

const (
	// ShortageExpiredOnly means the item has stock but some of it is expired
	ShortageExpiredOnly ShortageReason = "EXPIRED_ONLY"
	// ShortageOutOfStock means there is not enough stock at all
	ShortageOutOfStock ShortageReason = "OUT_OF_STOCK"
)

// ShortageError is returned when a deduction exceeds eligible stock.
// It matches shared.ErrInsufficientStock under errors.Is.
type ShortageError struct {
	ItemID    uuid.UUID
	ItemName  string
	Requested int
	Available int
	Shortfall int
	Reason    ShortageReason
}

// Error implements the error interface
func (e *ShortageError) Error() string {
	name := e.ItemName
	if name == "" {
		name = e.ItemID.String()
	}
	if e.Reason == ShortageExpiredOnly {
		return fmt.Sprintf("No valid (non-expired) stock sufficient for %s: requested %d, available %d", name, e.Requested, e.Available)
	}
	return fmt.Sprintf("Insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
}

// Is matches INSUFFICIENT_STOCK domain errors
func (e *ShortageError) Is(target error) bool {
	t, ok := target.(*shared.DomainError)
	return ok && t.Code == shared.CodeInsufficientStock
}

// Code returns the machine readable error code
func (e *ShortageError) Code() string {
	return shared.CodeInsufficientStock
}

// WithItemName returns a copy carrying a display name for the message
func (e *ShortageError) WithItemName(name string) *ShortageError {
	c := *e
	c.ItemName = name
	return &c
}

// ErrLotNotFound is returned when a lot lookup misses
var ErrLotNotFound = shared.NewDomainError(shared.CodeNotFound, "Lot not found")

// ErrDuplicateLabel is returned when the label is already used for the item
var ErrDuplicateLabel = shared.NewDomainError(shared.CodeAlreadyExists, "Lot label already exists for this item")
