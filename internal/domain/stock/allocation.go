package stock

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/shared"
)

// AllocationPolicy decides which lots may take part in an allocation
type AllocationPolicy struct {
	// ExcludeExpired leaves out lots that expired before Today
	ExcludeExpired bool
	Today          time.Time
}

// eligible reports whether a lot can contribute to the allocation
func (p AllocationPolicy) eligible(l *Lot) bool {
	if !l.IsAvailable() {
		return false
	}
	return !p.ExcludeExpired || !l.IsExpired(p.Today)
}

// AllocationStep is a single (lot, amount) pair of a plan
type AllocationStep struct {
	LotID     uuid.UUID
	Label     string
	ExpiresOn time.Time
	Before    int
	Take      int
}

// After returns the remaining quantity once the step is applied
func (s AllocationStep) After() int {
	return s.Before - s.Take
}

// AllocationPlan is the full list of deductions needed to satisfy a request.
// Building a plan has no side effects; Apply performs the mutation.
type AllocationPlan struct {
	ItemID    uuid.UUID
	Requested int
	Steps     []AllocationStep
}

// Total returns the quantity the plan deducts
func (p *AllocationPlan) Total() int {
	total := 0
	for _, s := range p.Steps {
		total += s.Take
	}
	return total
}

// PlanAllocation computes the FIFO deduction plan for requested units of
// an item. Feasibility is checked before any step is produced, so a plan
// is either complete or an error is returned.
func PlanAllocation(itemID uuid.UUID, requested int, lots []Lot, policy AllocationPolicy) (*AllocationPlan, error) {
	if requested <= 0 {
		return nil, shared.ErrInvalidQuantity
	}

	ordered := make([]Lot, 0, len(lots))
	expiredHeld := 0
	for i := range lots {
		l := lots[i]
		if l.ItemID != itemID {
			continue
		}
		if policy.eligible(&l) {
			ordered = append(ordered, l)
			continue
		}
		if l.IsAvailable() && l.IsExpired(policy.Today) {
			expiredHeld += l.Remaining
		}
	}
	SortFIFO(ordered)

	available := 0
	for i := range ordered {
		available += ordered[i].Remaining
	}
	if available < requested {
		reason := ShortageOutOfStock
		if expiredHeld > 0 {
			reason = ShortageExpiredOnly
		}
		return nil, &ShortageError{
			ItemID:    itemID,
			Requested: requested,
			Available: available,
			Shortfall: requested - available,
			Reason:    reason,
		}
	}

	plan := &AllocationPlan{ItemID: itemID, Requested: requested}
	needed := requested
	for i := range ordered {
		if needed == 0 {
			break
		}
		l := &ordered[i]
		take := min(l.Remaining, needed)
		plan.Steps = append(plan.Steps, AllocationStep{
			LotID:     l.ID,
			Label:     l.Label,
			ExpiresOn: l.ExpiresOn,
			Before:    l.Remaining,
			Take:      take,
		})
		needed -= take
	}
	return plan, nil
}

// Apply depletes the given lots according to the plan and returns the
// touched lots in plan order. Every step is verified against the current
// lot state first; on any mismatch nothing is mutated.
func (p *AllocationPlan) Apply(lots []*Lot, now time.Time) ([]*Lot, error) {
	byID := make(map[uuid.UUID]*Lot, len(lots))
	for _, l := range lots {
		byID[l.ID] = l
	}

	touched := make([]*Lot, 0, len(p.Steps))
	for _, s := range p.Steps {
		l, ok := byID[s.LotID]
		if !ok {
			return nil, fmt.Errorf("lot %s of plan not loaded: %w", s.LotID, ErrLotNotFound)
		}
		if !l.Active || l.Remaining != s.Before {
			return nil, shared.ErrConcurrencyConflict
		}
		touched = append(touched, l)
	}

	for i, s := range p.Steps {
		if err := touched[i].Deplete(s.Take, now); err != nil {
			return nil, err
		}
	}
	return touched, nil
}
