package stock

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/shared"
)

// MovementKind classifies a ledger event
type MovementKind string

const (
	MovementInbound        MovementKind = "INBOUND"
	MovementManualOutbound MovementKind = "MANUAL_OUTBOUND"
	MovementSale           MovementKind = "SALE"
	MovementAdjustment     MovementKind = "ADJUSTMENT"
)

// IsValid checks if the kind is one of the known kinds
func (k MovementKind) IsValid() bool {
	switch k {
	case MovementInbound, MovementManualOutbound, MovementSale, MovementAdjustment:
		return true
	}
	return false
}

// IsOutbound reports whether the kind removes stock
func (k MovementKind) IsOutbound() bool {
	return k == MovementManualOutbound || k == MovementSale
}

// String returns the string representation
func (k MovementKind) String() string {
	return string(k)
}

const maxNoteLength = 500

// Movement is an immutable record of one quantity change.
// Quantity is always the magnitude; the sign is implied by Kind.
type Movement struct {
	ID         uuid.UUID
	ItemID     uuid.UUID
	Kind       MovementKind
	Quantity   int
	Note       string
	OccurredAt time.Time
}

// NewMovement creates a movement record
func NewMovement(itemID uuid.UUID, kind MovementKind, quantity int, note string, at time.Time) (*Movement, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Item ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown movement kind %q", kind))
	}
	if quantity <= 0 {
		return nil, shared.ErrInvalidQuantity
	}
	if r := []rune(note); len(r) > maxNoteLength {
		note = string(r[:maxNoteLength])
	}
	return &Movement{
		ID:         uuid.New(),
		ItemID:     itemID,
		Kind:       kind,
		Quantity:   quantity,
		Note:       note,
		OccurredAt: at,
	}, nil
}

// InboundNote describes a received lot
func InboundNote(label string, expiresOn time.Time) string {
	return fmt.Sprintf("Lot: %s - Expires: %s", label, expiresOn.Format(DateLayout))
}

// Notes for outbound movements
const (
	SaleNote           = "Automatic deduction for sale (FIFO)"
	ManualOutboundNote = "Manual outbound"
)
