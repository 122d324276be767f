package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/stock"
)

// RegisterInboundRequest receives a new lot of an item
type RegisterInboundRequest struct {
	ItemID    uuid.UUID
	Quantity  int
	ExpiresOn time.Time
	Label     *string // generated when nil or blank
}

// ManualOutboundRequest removes stock outside of a sale
type ManualOutboundRequest struct {
	ItemID   uuid.UUID
	Quantity int
	Note     string
}

// LotResponse represents a lot in API responses. ID is nil for the empty
// snapshot returned when an outbound leaves no available lot.
type LotResponse struct {
	ID        *uuid.UUID `json:"id"`
	ItemID    uuid.UUID  `json:"item_id"`
	ItemName  string     `json:"item_name"`
	Label     string     `json:"label,omitempty"`
	Quantity  int        `json:"quantity"`
	ExpiresOn *string    `json:"expires_on"`
	Active    bool       `json:"active"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// ConsolidatedStockResponse is the stock position of one item
type ConsolidatedStockResponse struct {
	ItemID        uuid.UUID `json:"item_id"`
	ItemName      string    `json:"item_name"`
	Quantity      int       `json:"quantity"`
	NearestExpiry *string   `json:"nearest_expiry"`
}

// MovementResponse represents a movement log entry
type MovementResponse struct {
	ID         uuid.UUID `json:"id"`
	ItemID     uuid.UUID `json:"item_id"`
	Kind       string    `json:"kind"`
	Quantity   int       `json:"quantity"`
	Note       string    `json:"note"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PurgeResult reports what PurgeAllFor removed
type PurgeResult struct {
	Lots      int64 `json:"lots"`
	Movements int64 `json:"movements"`
}

// ToLotResponse converts a lot snapshot
func ToLotResponse(l stock.LotSnapshot, itemName string) LotResponse {
	id := l.ID
	created := l.CreatedAt
	return LotResponse{
		ID:        &id,
		ItemID:    l.ItemID,
		ItemName:  itemName,
		Label:     l.Label,
		Quantity:  l.Remaining,
		ExpiresOn: formatDate(l.ExpiresOn),
		Active:    l.Active,
		CreatedAt: &created,
	}
}

// EmptyLotResponse is the placeholder for an item with no available lot
func EmptyLotResponse(itemID uuid.UUID, itemName string) LotResponse {
	return LotResponse{
		ItemID:   itemID,
		ItemName: itemName,
	}
}

// ToLotResponses converts a list of lots
func ToLotResponses(lots []stock.Lot, itemName string) []LotResponse {
	responses := make([]LotResponse, len(lots))
	for i := range lots {
		responses[i] = ToLotResponse(lots[i].Snapshot(), itemName)
	}
	return responses
}

// ToMovementResponses converts movement log entries
func ToMovementResponses(movements []stock.Movement) []MovementResponse {
	responses := make([]MovementResponse, len(movements))
	for i, m := range movements {
		responses[i] = MovementResponse{
			ID:         m.ID,
			ItemID:     m.ItemID,
			Kind:       m.Kind.String(),
			Quantity:   m.Quantity,
			Note:       m.Note,
			OccurredAt: m.OccurredAt,
		}
	}
	return responses
}

func formatDate(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(stock.DateLayout)
	return &s
}
