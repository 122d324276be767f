// Package sales implements the sale transaction coordinator and sale reads.
package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/application/ledger"
	"github.com/pharmacy/backend/internal/domain/catalog"
	"github.com/pharmacy/backend/internal/domain/sales"
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/pharmacy/backend/internal/domain/stock"
	"github.com/pharmacy/backend/internal/infrastructure/logger"
	"github.com/pharmacy/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SaleService coordinates multi-item sales against the stock ledger
type SaleService struct {
	items      catalog.ItemReader
	purchasers catalog.PurchaserReader
	saleRepo   sales.SaleRepository
	txScope    ledger.TransactionScope
	locker     ledger.ItemLocker
	allocator  *stock.Allocator
	settings   ledger.Settings
}

// NewSaleService creates a new SaleService
func NewSaleService(
	items catalog.ItemReader,
	purchasers catalog.PurchaserReader,
	saleRepo sales.SaleRepository,
	txScope ledger.TransactionScope,
	locker ledger.ItemLocker,
	opts ...ledger.Option,
) *SaleService {
	settings := ledger.NewSettings(opts...)
	return &SaleService{
		items:      items,
		purchasers: purchasers,
		saleRepo:   saleRepo,
		txScope:    txScope,
		locker:     locker,
		allocator:  stock.NewAllocator(settings.Clock),
		settings:   settings,
	}
}

// validatedBasket is the outcome of the VALIDATING state
type validatedBasket struct {
	items     map[uuid.UUID]catalog.Item
	requested map[uuid.UUID]int
	itemIDs   []uuid.UUID
}

// CreateSale validates the basket, deducts every line in FIFO order from
// non-expired lots and persists the sale, all in one transaction.
// On any failure nothing is written.
func (s *SaleService) CreateSale(ctx context.Context, req CreateSaleRequest) (*SaleResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sales", "create_sale")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPurchaserID, req.PurchaserID.String(),
		telemetry.SpanAttrLineCount, len(req.Lines),
	)

	started := time.Now()
	attempt := sales.NewSaleAttempt()
	now := s.settings.Clock.Now()

	sale, basketItems, err := s.runSale(ctx, attempt, req, now)
	telemetry.SetAttributes(span, telemetry.SpanAttrSaleState, attempt.State().String())
	if err != nil {
		attempt.Reject()
		s.settings.Metrics.SaleRejected(ctx, errorCode(err))
		telemetry.RecordError(span, err)
		logger.L(ctx).Info("Sale rejected",
			zap.String("purchaser_id", req.PurchaserID.String()),
			zap.String("state", attempt.State().String()),
			zap.String("reason", errorCode(err)),
			zap.Error(err),
		)
		return nil, err
	}

	s.settings.Metrics.SaleCommitted(ctx, time.Since(started))
	telemetry.SetAttributes(span, telemetry.SpanAttrSaleID, sale.ID.String())
	logger.L(ctx).Info("Sale committed",
		zap.String("sale_id", sale.ID.String()),
		zap.String("purchaser_id", sale.PurchaserID.String()),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.Int("lines", len(sale.Lines)),
	)

	response := ToSaleResponse(sale, basketItems)
	return &response, nil
}

func (s *SaleService) runSale(ctx context.Context, attempt *sales.SaleAttempt, req CreateSaleRequest, now time.Time) (*sales.Sale, map[uuid.UUID]catalog.Item, error) {
	basket, err := s.validate(ctx, req, now)
	if err != nil {
		return nil, nil, err
	}

	unlock, err := s.locker.Lock(ctx, basket.itemIDs...)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	var sale *sales.Sale
	err = ledger.RetryOnConflict(ctx, s.settings.MaxConflictRetries, s.onRetry(ctx), func() error {
		return s.txScope.Execute(ctx, func(repos ledger.TransactionalRepositories) error {
			if err := s.checkAvailability(ctx, repos, basket, now); err != nil {
				return err
			}
			if attempt.State() == sales.SaleStateValidating {
				if err := attempt.MoveTo(sales.SaleStateAllocating); err != nil {
					return err
				}
			}

			sale, err = s.allocate(ctx, repos, req, basket, now)
			if err != nil {
				return err
			}
			if err := sale.Validate(); err != nil {
				return err
			}
			return repos.SaleRepo().Create(ctx, sale)
		})
	})
	if err != nil {
		return nil, nil, err
	}
	if err := attempt.MoveTo(sales.SaleStateCommitted); err != nil {
		return nil, nil, err
	}
	return sale, basket.items, nil
}

// validate runs every check that needs no lock: basket shape, purchaser
// age and item status
func (s *SaleService) validate(ctx context.Context, req CreateSaleRequest, now time.Time) (*validatedBasket, error) {
	if len(req.Lines) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "A sale must have at least one line")
	}
	basket := &validatedBasket{requested: make(map[uuid.UUID]int, len(req.Lines))}
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, shared.ErrInvalidQuantity
		}
		if _, seen := basket.requested[line.ItemID]; !seen {
			basket.itemIDs = append(basket.itemIDs, line.ItemID)
		}
		basket.requested[line.ItemID] += line.Quantity
	}

	purchaser, err := s.purchasers.FindByID(ctx, req.PurchaserID)
	if err != nil {
		return nil, err
	}
	if err := sales.CheckPurchaserAge(purchaser.BirthDate, now); err != nil {
		return nil, err
	}

	basket.items = make(map[uuid.UUID]catalog.Item, len(basket.itemIDs))
	for _, id := range basket.itemIDs {
		item, err := s.items.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !item.IsSellable() {
			return nil, inactiveItemError(item.Name)
		}
		basket.items[id] = *item
	}
	return basket, nil
}

// checkAvailability re-reads item status under the item locks, then confirms
// every item's non-expired stock covers the quantity requested for it across
// the whole basket. An item retired after validate is reported as inactive.
func (s *SaleService) checkAvailability(ctx context.Context, repos ledger.TransactionalRepositories, basket *validatedBasket, now time.Time) error {
	current, err := repos.ItemRepo().FindByIDs(ctx, basket.itemIDs)
	if err != nil {
		return err
	}
	for _, id := range basket.itemIDs {
		item, ok := current[id]
		if !ok {
			return shared.NewDomainError(shared.CodeNotFound,
				fmt.Sprintf("Item %s no longer exists", basket.items[id].Name))
		}
		if !item.IsSellable() {
			return inactiveItemError(item.Name)
		}
	}

	policy := stock.AllocationPolicy{ExcludeExpired: true, Today: now}
	for _, id := range basket.itemIDs {
		available, err := repos.LotRepo().FindAvailableForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := stock.PlanAllocation(id, basket.requested[id], available, policy); err != nil {
			return withItemName(err, basket.items[id].Name)
		}
	}
	return nil
}

func inactiveItemError(name string) error {
	return shared.NewDomainError(shared.CodeInactiveItem,
		fmt.Sprintf("Item %s is inactive or removed", name))
}

// allocate deducts each line and builds the sale with frozen unit prices
func (s *SaleService) allocate(ctx context.Context, repos ledger.TransactionalRepositories, req CreateSaleRequest, basket *validatedBasket, now time.Time) (*sales.Sale, error) {
	sale, err := sales.NewSale(req.PurchaserID, now)
	if err != nil {
		return nil, err
	}
	for _, line := range req.Lines {
		item := basket.items[line.ItemID]
		if _, err := s.allocator.Allocate(ctx, repos.LotRepo(), repos.MovementRepo(), stock.AllocationRequest{
			ItemID:         line.ItemID,
			Quantity:       line.Quantity,
			Kind:           stock.MovementSale,
			Note:           stock.SaleNote,
			ExcludeExpired: true,
		}); err != nil {
			return nil, withItemName(err, item.Name)
		}
		if _, err := sale.AddLine(line.ItemID, line.Quantity, item.Price); err != nil {
			return nil, err
		}
	}
	return sale, nil
}

// GetSale loads a committed sale
func (s *SaleService) GetSale(ctx context.Context, id uuid.UUID) (*SaleResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sales", "get_sale")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrSaleID, id.String())

	sale, err := s.saleRepo.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	names, err := s.items.FindByIDs(ctx, lineItemIDs([]sales.Sale{*sale}))
	if err != nil {
		return nil, err
	}
	response := ToSaleResponse(sale, names)
	return &response, nil
}

// ListSales returns committed sales newest first
func (s *SaleService) ListSales(ctx context.Context, filter shared.Filter) (*shared.Paginated[SaleResponse], error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sales", "list_sales")
	defer span.End()

	filter = filter.Normalize()
	list, total, err := s.saleRepo.List(ctx, filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	names, err := s.items.FindByIDs(ctx, lineItemIDs(list))
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToSaleResponses(list, names), total, filter.Page, filter.PageSize)
	return &page, nil
}

// ListByPurchaser returns the purchaser's sales newest first
func (s *SaleService) ListByPurchaser(ctx context.Context, purchaserID uuid.UUID) ([]SaleResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sales", "list_by_purchaser")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrPurchaserID, purchaserID.String())

	if _, err := s.purchasers.FindByID(ctx, purchaserID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	list, err := s.saleRepo.FindByPurchaser(ctx, purchaserID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	names, err := s.items.FindByIDs(ctx, lineItemIDs(list))
	if err != nil {
		return nil, err
	}
	return ToSaleResponses(list, names), nil
}

func (s *SaleService) onRetry(ctx context.Context) func(int) {
	return func(attempt int) {
		s.settings.Metrics.ConflictRetried(ctx, "create_sale")
		logger.L(ctx).Warn("Retrying sale after concurrency conflict", zap.Int("attempt", attempt))
	}
}

func lineItemIDs(list []sales.Sale) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for _, s := range list {
		for _, l := range s.Lines {
			if _, ok := seen[l.ItemID]; !ok {
				seen[l.ItemID] = struct{}{}
				ids = append(ids, l.ItemID)
			}
		}
	}
	return ids
}

func withItemName(err error, name string) error {
	var shortage *stock.ShortageError
	if errors.As(err, &shortage) {
		return shortage.WithItemName(name)
	}
	return err
}

// errorCode extracts the machine readable code used as the rejection reason
func errorCode(err error) string {
	var shortage *stock.ShortageError
	if errors.As(err, &shortage) {
		return shortage.Code()
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CANCELLED"
	}
	return "INTERNAL_ERROR"
}
