package sales

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MinimumAge is the age a purchaser must have reached to buy
const MinimumAge = 18

// SaleLine is one item entry of a sale with its frozen unit price
type SaleLine struct {
	ID        uuid.UUID
	SaleID    uuid.UUID
	ItemID    uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Sale is a completed transaction. It is built line by line during
// allocation and becomes immutable once persisted.
type Sale struct {
	shared.BaseEntity
	PurchaserID uuid.UUID
	SoldAt      time.Time
	Total       decimal.Decimal
	Lines       []SaleLine
}

// NewSale starts an empty sale for a purchaser
func NewSale(purchaserID uuid.UUID, now time.Time) (*Sale, error) {
	if purchaserID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Purchaser ID cannot be empty")
	}
	return &Sale{
		BaseEntity:  shared.NewBaseEntityAt(now),
		PurchaserID: purchaserID,
		SoldAt:      now,
		Total:       decimal.Zero,
		Lines:       make([]SaleLine, 0),
	}, nil
}

// AddLine appends a line priced at unitPrice and adds its subtotal to the total
func (s *Sale) AddLine(itemID uuid.UUID, quantity int, unitPrice decimal.Decimal) (*SaleLine, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Item ID cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unit price cannot be negative")
	}

	line := SaleLine{
		ID:        uuid.New(),
		SaleID:    s.ID,
		ItemID:    itemID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
	s.Lines = append(s.Lines, line)
	s.Total = s.Total.Add(line.Subtotal)
	return &s.Lines[len(s.Lines)-1], nil
}

// Validate checks the sale is ready to be persisted
func (s *Sale) Validate() error {
	if len(s.Lines) == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "A sale must have at least one line")
	}
	sum := decimal.Zero
	for _, l := range s.Lines {
		sum = sum.Add(l.Subtotal)
	}
	if !sum.Equal(s.Total) {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Sale total %s does not match line subtotals %s", s.Total, sum))
	}
	return nil
}

// ItemCount returns the number of units across all lines
func (s *Sale) ItemCount() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

// AgeOn returns the whole years between birthDate and the day of now
func AgeOn(birthDate, now time.Time) int {
	birth := shared.DateOf(birthDate)
	today := shared.DateOf(now)
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age
}

// CheckPurchaserAge rejects purchasers younger than MinimumAge
func CheckPurchaserAge(birthDate, now time.Time) error {
	if birthDate.IsZero() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Purchaser birth date is unknown")
	}
	if AgeOn(birthDate, now) < MinimumAge {
		return shared.ErrUnderageCustomer
	}
	return nil
}
