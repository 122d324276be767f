package alert

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LowStockQuery selects items whose stock is running low.
// A nil Threshold uses the configured limit.
type LowStockQuery struct {
	Threshold *int
}

// NearExpiryQuery selects lots expiring soon.
// A nil Days uses the configured window.
type NearExpiryQuery struct {
	Days *int
}

// LowStockAlert reports an item with 0 < quantity < threshold
type LowStockAlert struct {
	ItemID    uuid.UUID       `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Threshold int             `json:"threshold"`
	Price     decimal.Decimal `json:"price"`
}

// NearExpiryAlert reports a lot expiring within the window
type NearExpiryAlert struct {
	ItemID          uuid.UUID `json:"item_id"`
	Name            string    `json:"name"`
	LotID           uuid.UUID `json:"lot_id"`
	Label           string    `json:"label"`
	Quantity        int       `json:"quantity"`
	ExpiresOn       string    `json:"expires_on"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
}
