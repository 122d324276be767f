package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/catalog"
	"github.com/pharmacy/backend/internal/domain/sales"
	"github.com/shopspring/decimal"
)

// CreateSaleRequest is a basket submitted by a purchaser
type CreateSaleRequest struct {
	PurchaserID uuid.UUID
	Lines       []SaleLineRequest
}

// SaleLineRequest is one requested item and quantity
type SaleLineRequest struct {
	ItemID   uuid.UUID
	Quantity int
}

// SaleResponse represents a committed sale in API responses
type SaleResponse struct {
	ID          uuid.UUID          `json:"id"`
	PurchaserID uuid.UUID          `json:"purchaser_id"`
	SoldAt      time.Time          `json:"sold_at"`
	Total       decimal.Decimal    `json:"total"`
	ItemCount   int                `json:"item_count"`
	Lines       []SaleLineResponse `json:"lines"`
}

// SaleLineResponse represents a sale line in API responses
type SaleLineResponse struct {
	ID        uuid.UUID       `json:"id"`
	ItemID    uuid.UUID       `json:"item_id"`
	ItemName  string          `json:"item_name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// ToSaleResponse converts a sale. names maps item IDs to display names and may be nil.
func ToSaleResponse(s *sales.Sale, names map[uuid.UUID]catalog.Item) SaleResponse {
	lines := make([]SaleLineResponse, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = SaleLineResponse{
			ID:        l.ID,
			ItemID:    l.ItemID,
			ItemName:  names[l.ItemID].Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		}
	}
	return SaleResponse{
		ID:          s.ID,
		PurchaserID: s.PurchaserID,
		SoldAt:      s.SoldAt,
		Total:       s.Total,
		ItemCount:   s.ItemCount(),
		Lines:       lines,
	}
}

// ToSaleResponses converts a list of sales
func ToSaleResponses(list []sales.Sale, names map[uuid.UUID]catalog.Item) []SaleResponse {
	responses := make([]SaleResponse, len(list))
	for i := range list {
		responses[i] = ToSaleResponse(&list[i], names)
	}
	return responses
}
