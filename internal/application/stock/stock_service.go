// Package stock implements the lot store use cases: receiving lots,
// manual write-offs and stock position queries.
package stock

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/application/ledger"
	"github.com/pharmacy/backend/internal/domain/catalog"
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/pharmacy/backend/internal/domain/stock"
	"github.com/pharmacy/backend/internal/infrastructure/logger"
	"github.com/pharmacy/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// StockService handles lot intake, manual outbound and stock reads
type StockService struct {
	items     catalog.ItemReader
	lots      stock.LotRepository
	movements stock.MovementRepository
	txScope   ledger.TransactionScope
	locker    ledger.ItemLocker
	allocator *stock.Allocator
	labels    *stock.LabelGenerator
	settings  ledger.Settings
}

// NewStockService creates a new StockService
func NewStockService(
	items catalog.ItemReader,
	lots stock.LotRepository,
	movements stock.MovementRepository,
	txScope ledger.TransactionScope,
	locker ledger.ItemLocker,
	opts ...ledger.Option,
) *StockService {
	settings := ledger.NewSettings(opts...)
	return &StockService{
		items:     items,
		lots:      lots,
		movements: movements,
		txScope:   txScope,
		locker:    locker,
		allocator: stock.NewAllocator(settings.Clock),
		labels:    stock.NewLabelGenerator(settings.LabelAttempts),
		settings:  settings,
	}
}

// RegisterInbound receives a new lot and logs an INBOUND movement
func (s *StockService) RegisterInbound(ctx context.Context, req RegisterInboundRequest) (*LotResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "register_inbound")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemID, req.ItemID.String(),
		telemetry.SpanAttrQuantity, req.Quantity,
	)

	item, err := s.items.FindByID(ctx, req.ItemID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.settings.Clock.Now()
	if err := stock.ValidateReceipt(req.Quantity, req.ExpiresOn, now); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, req.ItemID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	var lot *stock.Lot
	err = s.txScope.Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		label, err := s.labels.Resolve(ctx, repos.LotRepo(), req.ItemID, req.Label, now)
		if err != nil {
			return err
		}
		lot, err = stock.NewLot(req.ItemID, label, req.Quantity, req.ExpiresOn, now)
		if err != nil {
			return err
		}
		if err := repos.LotRepo().Create(ctx, lot); err != nil {
			return err
		}
		movement, err := stock.NewMovement(req.ItemID, stock.MovementInbound, req.Quantity,
			stock.InboundNote(lot.Label, lot.ExpiresOn), now)
		if err != nil {
			return err
		}
		return repos.MovementRepo().Append(ctx, movement)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.settings.Metrics.UnitsMoved(ctx, stock.MovementInbound.String(), req.Quantity)
	telemetry.SetAttributes(span, telemetry.SpanAttrLotID, lot.ID.String(), telemetry.SpanAttrLotLabel, lot.Label)
	logger.L(ctx).Info("Lot received",
		zap.String("item_id", req.ItemID.String()),
		zap.String("lot_id", lot.ID.String()),
		zap.String("label", lot.Label),
		zap.Int("quantity", req.Quantity),
	)

	response := ToLotResponse(lot.Snapshot(), item.Name)
	return &response, nil
}

// RegisterManualOutbound deducts stock in FIFO order, expired lots included,
// and returns the first lot still available afterwards
func (s *StockService) RegisterManualOutbound(ctx context.Context, req ManualOutboundRequest) (*LotResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "manual_outbound")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemID, req.ItemID.String(),
		telemetry.SpanAttrQuantity, req.Quantity,
	)

	item, err := s.items.FindByID(ctx, req.ItemID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if req.Quantity <= 0 {
		telemetry.RecordError(span, shared.ErrInvalidQuantity)
		return nil, shared.ErrInvalidQuantity
	}
	note := strings.TrimSpace(req.Note)
	if note == "" {
		note = stock.ManualOutboundNote
	}

	unlock, err := s.locker.Lock(ctx, req.ItemID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	var response LotResponse
	err = ledger.RetryOnConflict(ctx, s.settings.MaxConflictRetries, s.onRetry(ctx, "manual_outbound"), func() error {
		return s.txScope.Execute(ctx, func(repos ledger.TransactionalRepositories) error {
			if _, err := s.allocator.Allocate(ctx, repos.LotRepo(), repos.MovementRepo(), stock.AllocationRequest{
				ItemID:         req.ItemID,
				Quantity:       req.Quantity,
				Kind:           stock.MovementManualOutbound,
				Note:           note,
				ExcludeExpired: false,
			}); err != nil {
				return err
			}

			available, err := repos.LotRepo().FindByItem(ctx, req.ItemID, stock.LotFilter{OnlyAvailable: true})
			if err != nil {
				return err
			}
			if len(available) == 0 {
				response = EmptyLotResponse(req.ItemID, item.Name)
				return nil
			}
			response = ToLotResponse(available[0].Snapshot(), item.Name)
			return nil
		})
	})
	if err != nil {
		err = withItemName(err, item.Name)
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.settings.Metrics.UnitsMoved(ctx, stock.MovementManualOutbound.String(), req.Quantity)
	logger.L(ctx).Info("Manual outbound recorded",
		zap.String("item_id", req.ItemID.String()),
		zap.Int("quantity", req.Quantity),
	)
	return &response, nil
}

// ConsolidatedStock returns the item's total active stock, expired lots
// included, and the expiry of the next lot to be consumed
func (s *StockService) ConsolidatedStock(ctx context.Context, itemID uuid.UUID) (*ConsolidatedStockResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "consolidated")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrItemID, itemID.String())

	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	total, err := s.lots.SumRemaining(ctx, itemID, nil)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	available, err := s.lots.FindByItem(ctx, itemID, stock.LotFilter{OnlyAvailable: true})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	response := &ConsolidatedStockResponse{
		ItemID:   item.ID,
		ItemName: item.Name,
		Quantity: total,
	}
	if len(available) > 0 {
		response.NearestExpiry = formatDate(available[0].ExpiresOn)
	}
	return response, nil
}

// TotalAvailable sums the item's active lots. With excludeExpired, lots that
// expired before today are left out; a lot expiring today still counts.
func (s *StockService) TotalAvailable(ctx context.Context, itemID uuid.UUID, excludeExpired bool) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "total_available")
	defer span.End()

	if !excludeExpired {
		return s.lots.SumRemaining(ctx, itemID, nil)
	}
	today := shared.DateOf(s.settings.Clock.Now())
	return s.lots.SumRemaining(ctx, itemID, &today)
}

// LotsOf lists the item's lots in FIFO order
func (s *StockService) LotsOf(ctx context.Context, itemID uuid.UUID, onlyAvailable bool) ([]LotResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "lots_of")
	defer span.End()

	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	lots, err := s.lots.FindByItem(ctx, itemID, stock.LotFilter{OnlyAvailable: onlyAvailable})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return ToLotResponses(lots, item.Name), nil
}

// MovementsOf returns the item's movement history, newest first
func (s *StockService) MovementsOf(ctx context.Context, itemID uuid.UUID) ([]MovementResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "movements_of")
	defer span.End()

	if _, err := s.items.FindByID(ctx, itemID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	movements, err := s.movements.FindByItem(ctx, itemID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return ToMovementResponses(movements), nil
}

// DeactivateAllFor takes every lot of the item out of circulation and
// returns how many lots were deactivated
func (s *StockService) DeactivateAllFor(ctx context.Context, itemID uuid.UUID) (int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "deactivate_all")
	defer span.End()

	unlock, err := s.locker.Lock(ctx, itemID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	var count int64
	err = s.txScope.Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		count, err = repos.LotRepo().DeactivateByItem(ctx, itemID, s.settings.Clock.Now())
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}
	logger.L(ctx).Info("Lots deactivated", zap.String("item_id", itemID.String()), zap.Int64("lots", count))
	return count, nil
}

// PurgeAllFor deletes the item's movements and then its lots in one transaction
func (s *StockService) PurgeAllFor(ctx context.Context, itemID uuid.UUID) (*PurgeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "purge_all")
	defer span.End()

	unlock, err := s.locker.Lock(ctx, itemID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &PurgeResult{}
	err = s.txScope.Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		var err error
		if result.Movements, err = repos.MovementRepo().DeleteByItem(ctx, itemID); err != nil {
			return err
		}
		result.Lots, err = repos.LotRepo().DeleteByItem(ctx, itemID)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	logger.L(ctx).Warn("Stock purged",
		zap.String("item_id", itemID.String()),
		zap.Int64("lots", result.Lots),
		zap.Int64("movements", result.Movements),
	)
	return result, nil
}

func (s *StockService) onRetry(ctx context.Context, operation string) func(int) {
	return func(attempt int) {
		s.settings.Metrics.ConflictRetried(ctx, operation)
		logger.L(ctx).Warn("Retrying after concurrency conflict",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
		)
	}
}

// withItemName decorates shortage errors with the item's display name
func withItemName(err error, name string) error {
	var shortage *stock.ShortageError
	if errors.As(err, &shortage) {
		return shortage.WithItemName(name)
	}
	return err
}
