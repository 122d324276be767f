package sales

import (
	"fmt"

	"github.com/pharmacy/backend/internal/domain/shared"
)

// SaleState is the lifecycle of a sale request inside the coordinator
type SaleState string

const (
	SaleStateValidating SaleState = "VALIDATING"
	SaleStateAllocating SaleState = "ALLOCATING"
	SaleStateCommitted  SaleState = "COMMITTED"
	SaleStateRejected   SaleState = "REJECTED"
)

var saleTransitions = map[SaleState][]SaleState{
	SaleStateValidating: {SaleStateAllocating, SaleStateRejected},
	SaleStateAllocating: {SaleStateCommitted, SaleStateRejected},
}

// CanTransitionTo reports whether next is reachable from s
func (s SaleState) CanTransitionTo(next SaleState) bool {
	for _, allowed := range saleTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s SaleState) IsTerminal() bool {
	return s == SaleStateCommitted || s == SaleStateRejected
}

// String returns the string representation
func (s SaleState) String() string {
	return string(s)
}

// SaleAttempt tracks one pass of a sale request through the state machine
type SaleAttempt struct {
	state SaleState
}

// NewSaleAttempt starts in VALIDATING
func NewSaleAttempt() *SaleAttempt {
	return &SaleAttempt{state: SaleStateValidating}
}

// State returns the current state
func (a *SaleAttempt) State() SaleState {
	return a.state
}

// MoveTo transitions to next or fails if the transition is not allowed
func (a *SaleAttempt) MoveTo(next SaleState) error {
	if !a.state.CanTransitionTo(next) {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Sale cannot move from %s to %s", a.state, next))
	}
	a.state = next
	return nil
}

// Reject moves to REJECTED unless the attempt already finished
func (a *SaleAttempt) Reject() {
	if !a.state.IsTerminal() {
		a.state = SaleStateRejected
	}
}
