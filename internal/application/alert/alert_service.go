// Package alert computes low stock and near expiry reports on demand.
package alert

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/application/ledger"
	"github.com/pharmacy/backend/internal/domain/catalog"
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/pharmacy/backend/internal/domain/stock"
	"github.com/pharmacy/backend/internal/infrastructure/telemetry"
)

// Limits are the configured alert defaults
type Limits struct {
	LowStockLimit  int
	NearExpiryDays int
}

// AlertService derives alerts from the current lot store
type AlertService struct {
	items    catalog.ItemReader
	lots     stock.LotRepository
	limits   Limits
	settings ledger.Settings
}

// NewAlertService creates a new AlertService
func NewAlertService(items catalog.ItemReader, lots stock.LotRepository, limits Limits, opts ...ledger.Option) *AlertService {
	return &AlertService{
		items:    items,
		lots:     lots,
		limits:   limits,
		settings: ledger.NewSettings(opts...),
	}
}

// LowStock lists sellable items whose active stock, expired lots included,
// is above zero and below the threshold. Sorted by quantity, then name.
func (s *AlertService) LowStock(ctx context.Context, query LowStockQuery) ([]LowStockAlert, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "alert", "low_stock")
	defer span.End()

	threshold := s.limits.LowStockLimit
	if query.Threshold != nil {
		threshold = *query.Threshold
	}
	if threshold < 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Threshold cannot be negative, got %d", threshold))
	}
	telemetry.SetAttributes(span, "alert.threshold", threshold)

	totals, err := s.lots.SumRemainingByItem(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	candidates := make(map[uuid.UUID]int)
	ids := make([]uuid.UUID, 0)
	for _, t := range totals {
		if t.Quantity > 0 && t.Quantity < threshold {
			candidates[t.ItemID] = t.Quantity
			ids = append(ids, t.ItemID)
		}
	}

	items, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	alerts := make([]LowStockAlert, 0, len(candidates))
	for id, qty := range candidates {
		item, ok := items[id]
		if !ok || !item.IsSellable() {
			continue
		}
		alerts = append(alerts, LowStockAlert{
			ItemID:    id,
			Name:      item.Name,
			Quantity:  qty,
			Threshold: threshold,
			Price:     item.Price,
		})
	}
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Quantity != alerts[j].Quantity {
			return alerts[i].Quantity < alerts[j].Quantity
		}
		return alerts[i].Name < alerts[j].Name
	})
	return alerts, nil
}

// NearExpiry lists available lots of sellable items expiring between today
// and today+days inclusive, soonest first
func (s *AlertService) NearExpiry(ctx context.Context, query NearExpiryQuery) ([]NearExpiryAlert, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "alert", "near_expiry")
	defer span.End()

	days := s.limits.NearExpiryDays
	if query.Days != nil {
		days = *query.Days
	}
	if days < 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Days cannot be negative, got %d", days))
	}
	telemetry.SetAttributes(span, "alert.days", days)

	today := shared.DateOf(s.settings.Clock.Now())
	lots, err := s.lots.FindExpiringBetween(ctx, today, today.AddDate(0, 0, days))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(lots))
	for _, l := range lots {
		ids = append(ids, l.ItemID)
	}
	items, err := s.items.FindByIDs(ctx, ledger.SortedUnique(ids))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	alerts := make([]NearExpiryAlert, 0, len(lots))
	for i := range lots {
		l := &lots[i]
		item, ok := items[l.ItemID]
		if !ok || !item.IsSellable() {
			continue
		}
		alerts = append(alerts, NearExpiryAlert{
			ItemID:          l.ItemID,
			Name:            item.Name,
			LotID:           l.ID,
			Label:           l.Label,
			Quantity:        l.Remaining,
			ExpiresOn:       l.ExpiresOn.Format(stock.DateLayout),
			DaysUntilExpiry: l.DaysUntilExpiry(today),
		})
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].ExpiresOn < alerts[j].ExpiresOn
	})
	return alerts, nil
}
