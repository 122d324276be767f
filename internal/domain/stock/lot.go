package stock

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/shared"
)

// Lot is one dated batch of one item. It is the unit of depletion:
// Remaining only goes down through Deplete and never below zero.
type Lot struct {
	shared.BaseAggregateRoot
	ItemID    uuid.UUID
	Label     string
	Remaining int
	ExpiresOn time.Time // calendar date, midnight UTC
	Active    bool
}

// NewLot creates an active lot holding the received quantity.
// The expiry date must fall strictly after the day of now.
func NewLot(itemID uuid.UUID, label string, quantity int, expiresOn, now time.Time) (*Lot, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Item ID cannot be empty")
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Lot label cannot be empty")
	}
	if len(label) > 64 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Lot label cannot exceed 64 characters")
	}
	if err := ValidateReceipt(quantity, expiresOn, now); err != nil {
		return nil, err
	}

	return &Lot{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(now),
		ItemID:            itemID,
		Label:             label,
		Remaining:         quantity,
		ExpiresOn:         shared.DateOf(expiresOn),
		Active:            true,
	}, nil
}

// ValidateReceipt checks the quantity and expiry of incoming stock
func ValidateReceipt(quantity int, expiresOn, now time.Time) error {
	if quantity <= 0 {
		return shared.ErrInvalidQuantity
	}
	expiry := shared.DateOf(expiresOn)
	today := shared.DateOf(now)
	if !expiry.After(today) {
		return shared.NewDomainError(shared.CodeInvalidExpiry,
			fmt.Sprintf("Expiry date %s must be after %s", expiry.Format(DateLayout), today.Format(DateLayout)))
	}
	return nil
}

// DateLayout is the calendar date format used in notes and APIs
const DateLayout = "2006-01-02"

// IsExpired reports whether the lot expired before today.
// A lot expiring today is still sellable.
func (l *Lot) IsExpired(today time.Time) bool {
	return l.ExpiresOn.Before(shared.DateOf(today))
}

// IsAvailable reports whether the lot can be depleted at all
func (l *Lot) IsAvailable() bool {
	return l.Active && l.Remaining > 0
}

// ExpiresWithin reports whether the expiry falls in [today, today+days]
func (l *Lot) ExpiresWithin(today time.Time, days int) bool {
	from := shared.DateOf(today)
	to := from.AddDate(0, 0, days)
	return !l.ExpiresOn.Before(from) && !l.ExpiresOn.After(to)
}

// DaysUntilExpiry returns the calendar days from today to the expiry date
func (l *Lot) DaysUntilExpiry(today time.Time) int {
	return shared.DaysBetween(today, l.ExpiresOn)
}

// Deplete removes quantity from the lot
func (l *Lot) Deplete(quantity int, now time.Time) error {
	if quantity <= 0 {
		return shared.ErrInvalidQuantity
	}
	if !l.Active {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot deplete an inactive lot")
	}
	if quantity > l.Remaining {
		return shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("Lot %s holds %d, cannot deplete %d", l.Label, l.Remaining, quantity))
	}
	l.Remaining -= quantity
	l.Touch(now)
	return nil
}

// Deactivate takes the lot out of circulation without touching its quantity
func (l *Lot) Deactivate(now time.Time) {
	l.Active = false
	l.Touch(now)
}

// LotSnapshot is a read-only copy of a lot's state
type LotSnapshot struct {
	ID        uuid.UUID
	ItemID    uuid.UUID
	Label     string
	Remaining int
	ExpiresOn time.Time
	Active    bool
	CreatedAt time.Time
}

// Snapshot returns a copy of the lot's state
func (l *Lot) Snapshot() LotSnapshot {
	return LotSnapshot{
		ID:        l.ID,
		ItemID:    l.ItemID,
		Label:     l.Label,
		Remaining: l.Remaining,
		ExpiresOn: l.ExpiresOn,
		Active:    l.Active,
		CreatedAt: l.CreatedAt,
	}
}

// SortFIFO orders lots by expiry date, then creation time. This is the
// canonical depletion order; lot ID breaks exact ties so the order is total.
func SortFIFO(lots []Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		return fifoLess(&lots[i], &lots[j])
	})
}

func fifoLess(a, b *Lot) bool {
	if !a.ExpiresOn.Equal(b.ExpiresOn) {
		return a.ExpiresOn.Before(b.ExpiresOn)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// SumRemaining adds up the remaining quantity of active lots,
// skipping expired ones when excludeExpired is set
func SumRemaining(lots []Lot, excludeExpired bool, today time.Time) int {
	total := 0
	for i := range lots {
		l := &lots[i]
		if !l.Active {
			continue
		}
		if excludeExpired && l.IsExpired(today) {
			continue
		}
		total += l.Remaining
	}
	return total
}
