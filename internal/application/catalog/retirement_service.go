// Package catalog handles item lifecycle changes that touch the stock ledger.
package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/application/ledger"
	"github.com/pharmacy/backend/internal/domain/catalog"
	"github.com/pharmacy/backend/internal/infrastructure/logger"
	"github.com/pharmacy/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// RetirementOutcome tells what retiring an item did
type RetirementOutcome string

const (
	// RetirementDeactivated keeps the item and its lots for sale history
	RetirementDeactivated RetirementOutcome = "DEACTIVATED"
	// RetirementDeleted removes the never-sold item with its stock
	RetirementDeleted RetirementOutcome = "DELETED"
)

// RetirementResult reports the effect of RetireItem
type RetirementResult struct {
	ItemID           uuid.UUID         `json:"item_id"`
	Outcome          RetirementOutcome `json:"outcome"`
	Lots             int64             `json:"lots"`
	MovementsDeleted int64             `json:"movements_deleted"`
}

// RetirementService takes items out of the catalog
type RetirementService struct {
	items    catalog.ItemReader
	txScope  ledger.TransactionScope
	locker   ledger.ItemLocker
	settings ledger.Settings
}

// NewRetirementService creates a new RetirementService
func NewRetirementService(
	items catalog.ItemReader,
	txScope ledger.TransactionScope,
	locker ledger.ItemLocker,
	opts ...ledger.Option,
) *RetirementService {
	return &RetirementService{
		items:    items,
		txScope:  txScope,
		locker:   locker,
		settings: ledger.NewSettings(opts...),
	}
}

// RetireItem removes an item. An item referenced by any sale is kept,
// flagged permanently removed, and its lots are deactivated. An item that
// was never sold is deleted together with its movements and lots.
func (s *RetirementService) RetireItem(ctx context.Context, itemID uuid.UUID) (*RetirementResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "retire_item")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrItemID, itemID.String())

	if _, err := s.items.FindByID(ctx, itemID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, itemID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	result := &RetirementResult{ItemID: itemID}
	err = s.txScope.Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		sold, err := repos.SaleRepo().ExistsForItem(ctx, itemID)
		if err != nil {
			return err
		}

		if sold {
			result.Outcome = RetirementDeactivated
			if result.Lots, err = repos.LotRepo().DeactivateByItem(ctx, itemID, s.settings.Clock.Now()); err != nil {
				return err
			}
			return repos.ItemRepo().MarkRemoved(ctx, itemID)
		}

		result.Outcome = RetirementDeleted
		if result.MovementsDeleted, err = repos.MovementRepo().DeleteByItem(ctx, itemID); err != nil {
			return err
		}
		if result.Lots, err = repos.LotRepo().DeleteByItem(ctx, itemID); err != nil {
			return err
		}
		return repos.ItemRepo().Delete(ctx, itemID)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.L(ctx).Info("Item retired",
		zap.String("item_id", itemID.String()),
		zap.String("outcome", string(result.Outcome)),
		zap.Int64("lots", result.Lots),
		zap.Int64("movements_deleted", result.MovementsDeleted),
	)
	return result, nil
}
