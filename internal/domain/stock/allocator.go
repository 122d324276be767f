package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/shared"
)

// AllocationRequest describes one deduction against an item
type AllocationRequest struct {
	ItemID         uuid.UUID
	Quantity       int
	Kind           MovementKind
	Note           string
	ExcludeExpired bool
}

// AllocationResult is what an allocation did to the ledger
type AllocationResult struct {
	Plan     *AllocationPlan
	Lots     []LotSnapshot
	Movement *Movement
}

// Allocator is a domain service that turns a plan into ledger writes.
// It must run inside a transaction: the lots it loads are row-locked and
// every write is version-checked, so a failure anywhere leaves the
// transaction to roll back every touched lot.
type Allocator struct {
	clock shared.Clock
}

// NewAllocator creates an allocator
func NewAllocator(clock shared.Clock) *Allocator {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Allocator{clock: clock}
}

// Allocate deducts req.Quantity from the item's lots in FIFO order and
// appends one movement of req.Kind for the total
func (a *Allocator) Allocate(ctx context.Context, lots LotRepository, movements MovementRepository, req AllocationRequest) (*AllocationResult, error) {
	if !req.Kind.IsOutbound() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Movement kind %s does not deduct stock", req.Kind))
	}
	now := a.clock.Now()

	loaded, err := lots.FindAvailableForUpdate(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}

	plan, err := PlanAllocation(req.ItemID, req.Quantity, loaded, AllocationPolicy{
		ExcludeExpired: req.ExcludeExpired,
		Today:          now,
	})
	if err != nil {
		return nil, err
	}

	ptrs := make([]*Lot, len(loaded))
	for i := range loaded {
		ptrs[i] = &loaded[i]
	}
	touched, err := plan.Apply(ptrs, now)
	if err != nil {
		return nil, err
	}

	snapshots := make([]LotSnapshot, 0, len(touched))
	for _, l := range touched {
		if err := lots.SaveWithLock(ctx, l); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, l.Snapshot())
	}

	movement, err := NewMovement(req.ItemID, req.Kind, plan.Total(), req.Note, now)
	if err != nil {
		return nil, err
	}
	if err := movements.Append(ctx, movement); err != nil {
		return nil, err
	}

	return &AllocationResult{
		Plan:     plan,
		Lots:     snapshots,
		Movement: movement,
	}, nil
}
