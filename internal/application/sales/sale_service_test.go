package sales_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/application/ledger"
	salesapp "github.com/pharmacy/backend/internal/application/sales"
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/pharmacy/backend/internal/domain/stock"
	"github.com/pharmacy/backend/internal/infrastructure/lock"
	"github.com/pharmacy/backend/internal/infrastructure/persistence"
	"github.com/pharmacy/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	clock     *shared.FixedClock
	lots      *persistence.GormLotRepository
	movements *persistence.GormMovementRepository
	service   *salesapp.SaleService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	clock := testutil.Clock()
	f := &fixture{
		db:        db,
		clock:     clock,
		lots:      persistence.NewGormLotRepository(db),
		movements: persistence.NewGormMovementRepository(db),
	}
	f.service = salesapp.NewSaleService(
		persistence.NewGormItemRepository(db),
		persistence.NewGormPurchaserRepository(db),
		persistence.NewGormSaleRepository(db),
		persistence.NewGormTransactionScope(db),
		lock.NewLocalItemLocker(),
		ledger.WithClock(clock),
	)
	return f
}

// seedLot stores a lot directly, so expired lots can be created too
func (f *fixture) seedLot(t *testing.T, itemID uuid.UUID, label string, qty int, expiry time.Time) {
	t.Helper()
	lot, err := stock.NewLot(itemID, label, qty, expiry, expiry.AddDate(0, 0, -90))
	require.NoError(t, err)
	require.NoError(t, f.lots.Create(context.Background(), lot))
}

func (f *fixture) remaining(t *testing.T, itemID uuid.UUID) int {
	t.Helper()
	total, err := f.lots.SumRemaining(context.Background(), itemID, nil)
	require.NoError(t, err)
	return total
}

func (f *fixture) lotQuantities(t *testing.T, itemID uuid.UUID) map[string]int {
	t.Helper()
	lots, err := f.lots.FindByItem(context.Background(), itemID, stock.LotFilter{})
	require.NoError(t, err)
	out := make(map[string]int, len(lots))
	for _, l := range lots {
		out[l.Label] = l.Remaining
	}
	return out
}

func (f *fixture) saleCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Table("sales").Count(&n).Error)
	return n
}

func TestCreateSale_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer := testutil.SeedAdult(t, f.db)
	amox := testutil.SeedItem(t, f.db, "Amoxicillin", "12.50")
	ibu := testutil.SeedItem(t, f.db, "Ibuprofen", "4.00")
	f.seedLot(t, amox, "A1", 3, testutil.Date(2025, 4, 1))
	f.seedLot(t, amox, "A2", 10, testutil.Date(2025, 8, 1))
	f.seedLot(t, ibu, "I1", 5, testutil.Date(2025, 5, 1))

	sale, err := f.service.CreateSale(ctx, salesapp.CreateSaleRequest{
		PurchaserID: buyer,
		Lines: []salesapp.SaleLineRequest{
			{ItemID: amox, Quantity: 5},
			{ItemID: ibu, Quantity: 2},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, buyer, sale.PurchaserID)
	assert.True(t, decimal.RequireFromString("70.50").Equal(sale.Total), sale.Total.String())
	assert.Equal(t, 7, sale.ItemCount)
	require.Len(t, sale.Lines, 2)
	assert.Equal(t, "Amoxicillin", sale.Lines[0].ItemName)
	assert.True(t, decimal.RequireFromString("12.50").Equal(sale.Lines[0].UnitPrice))
	assert.True(t, decimal.RequireFromString("62.50").Equal(sale.Lines[0].Subtotal))

	assert.Equal(t, map[string]int{"A1": 0, "A2": 8}, f.lotQuantities(t, amox))
	assert.Equal(t, 3, f.remaining(t, ibu))

	movements, err := f.movements.FindByItem(ctx, amox)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, stock.MovementSale, movements[0].Kind)
	assert.Equal(t, 5, movements[0].Quantity)
	assert.Equal(t, stock.SaleNote, movements[0].Note)

	loaded, err := f.service.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(loaded.Total))
	require.Len(t, loaded.Lines, 2)
	assert.Equal(t, amox, loaded.Lines[0].ItemID)
	assert.Equal(t, "Ibuprofen", loaded.Lines[1].ItemName)
}

func TestCreateSale_PriceIsFrozen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer := testutil.SeedAdult(t, f.db)
	item := testutil.SeedItem(t, f.db, "Vitamin C", "2.00")
	f.seedLot(t, item, "V1", 10, testutil.Date(2025, 12, 1))

	sale, err := f.service.CreateSale(ctx, salesapp.CreateSaleRequest{
		PurchaserID: buyer,
		Lines:       []salesapp.SaleLineRequest{{ItemID: item, Quantity: 2}},
	})
	require.NoError(t, err)

	require.NoError(t, f.db.Table("items").Where("id = ?", item).Update("price", decimal.RequireFromString("9.99")).Error)

	loaded, err := f.service.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("2.00").Equal(loaded.Lines[0].UnitPrice))
	assert.True(t, decimal.RequireFromString("4.00").Equal(loaded.Total))
}

func TestCreateSale_ValidationFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	adult := testutil.SeedAdult(t, f.db)
	item := testutil.SeedItem(t, f.db, "Aspirin", "1.50")
	inactive := testutil.SeedInactiveItem(t, f.db, "Old Syrup")
	f.seedLot(t, item, "S1", 10, testutil.Date(2025, 12, 1))
	f.seedLot(t, inactive, "O1", 10, testutil.Date(2025, 12, 1))

	tests := []struct {
		name    string
		req     salesapp.CreateSaleRequest
		wantErr error
	}{
		{
			name:    "empty basket",
			req:     salesapp.CreateSaleRequest{PurchaserID: adult},
			wantErr: shared.ErrInvalidInput,
		},
		{
			name: "zero quantity",
			req: salesapp.CreateSaleRequest{PurchaserID: adult, Lines: []salesapp.SaleLineRequest{
				{ItemID: item, Quantity: 1}, {ItemID: item, Quantity: 0},
			}},
			wantErr: shared.ErrInvalidQuantity,
		},
		{
			name:    "unknown purchaser",
			req:     salesapp.CreateSaleRequest{PurchaserID: uuid.New(), Lines: []salesapp.SaleLineRequest{{ItemID: item, Quantity: 1}}},
			wantErr: shared.ErrNotFound,
		},
		{
			name:    "unknown item",
			req:     salesapp.CreateSaleRequest{PurchaserID: adult, Lines: []salesapp.SaleLineRequest{{ItemID: uuid.New(), Quantity: 1}}},
			wantErr: shared.ErrNotFound,
		},
		{
			name: "inactive item",
			req: salesapp.CreateSaleRequest{PurchaserID: adult, Lines: []salesapp.SaleLineRequest{
				{ItemID: item, Quantity: 1}, {ItemID: inactive, Quantity: 1},
			}},
			wantErr: shared.ErrInactiveItem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreateSale(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, 10, f.remaining(t, item))
	assert.Equal(t, 10, f.remaining(t, inactive))
	assert.Zero(t, f.saleCount(t))
}

func TestCreateSale_PurchaserAge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := testutil.SeedItem(t, f.db, "Aspirin", "1.50")
	f.seedLot(t, item, "S1", 10, testutil.Date(2025, 12, 1))

	turnsEighteenToday := testutil.SeedPurchaser(t, f.db, "Birthday", testutil.Date(2007, 3, 10))
	turnsEighteenTomorrow := testutil.SeedPurchaser(t, f.db, "Almost", testutil.Date(2007, 3, 11))

	_, err := f.service.CreateSale(ctx, salesapp.CreateSaleRequest{
		PurchaserID: turnsEighteenTomorrow,
		Lines:       []salesapp.SaleLineRequest{{ItemID: item, Quantity: 1}},
	})
	assert.ErrorIs(t, err, shared.ErrUnderageCustomer)
	assert.Equal(t, 10, f.remaining(t, item))

	_, err = f.service.CreateSale(ctx, salesapp.CreateSaleRequest{
		PurchaserID: turnsEighteenToday,
		Lines:       []salesapp.SaleLineRequest{{ItemID: item, Quantity: 1}},
	})
	assert.NoError(t, err)
	assert.Equal(t, 9, f.remaining(t, item))
}

func TestCreateSale_Shortages(t *testing.T) {
	ctx := context.Background()

	t.Run("only expired stock reports EXPIRED_ONLY", func(t *testing.T) {
		f := newFixture(t)
		buyer := testutil.SeedAdult(t, f.db)
		item := testutil.SeedItem(t, f.db, "Insulin", "30.00")
		f.seedLot(t, item, "EXP", 10, testutil.Date(2025, 3, 1))

		_, err := f.service.CreateSale(ctx, salesapp.CreateSaleRequest{
			PurchaserID: buyer,
			Lines:       []salesapp.SaleLineRequest{{ItemID: item, Quantity: 1}},
		})
		require.ErrorIs(t, err, shared.ErrInsufficientStock)
		var shortage *stock.ShortageError
		require.ErrorAs(t, err, &shortage)
		assert.Equal(t, stock.ShortageExpiredOnly, shortage.Reason)
		assert.Contains(t, err.Error(), "No valid (non-expired) stock sufficient for Insulin")
		assert.Equal(t, 10, f.remaining(t, item))
	})

	t.Run("a lot expiring today is sellable", func(t *testing.T) {
		f := newFixture(t)
		buyer := testutil.SeedAdult(t, f.db)
		item := testutil.SeedItem(t, f.db, "Insulin", "30.00")
		f.seedLot(t, item, "TODAY", 2, testutil.Date(2025, 3, 10))

		_, err := f.service.CreateSale(ctx, salesapp.CreateSaleRequest{
			PurchaserID: buyer,
			Lines:       []salesapp.SaleLineRequest{{ItemID: item, Quantity: 2}},
		})
		require.NoError(t, err)
		assert.Zero(t, f.remaining(t, item))
	})

	t.Run("basket quantities are summed per item", func(t *testing.T) {
		f := newFixture(t)
		buyer := testutil.SeedAdult(t, f.db)
		item := testutil.SeedItem(t, f.db, "Saline", "1.00")
		f.seedLot(t, item, "S", 5, testutil.Date(2025, 12, 1))

		_, err := f.service.CreateSale(ctx, salesapp.CreateSaleRequest{
			PurchaserID: buyer,
			Lines: []salesapp.SaleLineRequest{
				{ItemID: item, Quantity: 3},
				{ItemID: item, Quantity: 3},
			},
		})
		var shortage *stock.ShortageError
		require.ErrorAs(t, err, &shortage)
		assert.Equal(t, stock.ShortageOutOfStock, shortage.Reason)
		assert.Equal(t, 6, shortage.Requested)
		assert.Equal(t, 5, shortage.Available)
		assert.Contains(t, err.Error(), "Insufficient stock for Saline")
		assert.Equal(t, 5, f.remaining(t, item))
	})

	t.Run("failure on a later line rolls back earlier lines", func(t *testing.T) {
		f := newFixture(t)
		buyer := testutil.SeedAdult(t, f.db)
		plenty := testutil.SeedItem(t, f.db, "Plenty", "1.00")
		scarce := testutil.SeedItem(t, f.db, "Scarce", "1.00")
		f.seedLot(t, plenty, "P1", 4, testutil.Date(2025, 6, 1))
		f.seedLot(t, plenty, "P2", 4, testutil.Date(2025, 7, 1))
		f.seedLot(t, scarce, "S1", 1, testutil.Date(2025, 6, 1))

		_, err := f.service.CreateSale(ctx, salesapp.CreateSaleRequest{
			PurchaserID: buyer,
			Lines: []salesapp.SaleLineRequest{
				{ItemID: plenty, Quantity: 6},
				{ItemID: scarce, Quantity: 2},
			},
		})
		require.ErrorIs(t, err, shared.ErrInsufficientStock)

		assert.Equal(t, map[string]int{"P1": 4, "P2": 4}, f.lotQuantities(t, plenty))
		movements, err := f.movements.FindByItem(ctx, plenty)
		require.NoError(t, err)
		assert.Empty(t, movements)
		assert.Zero(t, f.saleCount(t))
	})
}

func TestCreateSale_ConcurrentBuyersNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer := testutil.SeedAdult(t, f.db)
	item := testutil.SeedItem(t, f.db, "Popular", "5.00")
	f.seedLot(t, item, "L1", 4, testutil.Date(2025, 6, 1))
	f.seedLot(t, item, "L2", 6, testutil.Date(2025, 7, 1))

	var succeeded, rejected int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.CreateSale(ctx, salesapp.CreateSaleRequest{
				PurchaserID: buyer,
				Lines:       []salesapp.SaleLineRequest{{ItemID: item, Quantity: 1}},
			})
			if err == nil {
				atomic.AddInt32(&succeeded, 1)
				return
			}
			assert.ErrorIs(t, err, shared.ErrInsufficientStock)
			atomic.AddInt32(&rejected, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), succeeded)
	assert.Equal(t, int32(6), rejected)
	assert.Zero(t, f.remaining(t, item))
	assert.Equal(t, int64(10), f.saleCount(t))
}

func TestSaleReads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := testutil.SeedAdult(t, f.db)
	bob := testutil.SeedPurchaser(t, f.db, "Bob", testutil.Date(1980, 1, 1))
	item := testutil.SeedItem(t, f.db, "Gauze", "1.00")
	f.seedLot(t, item, "G", 100, testutil.Date(2026, 1, 1))

	sell := func(buyer uuid.UUID, qty int, at time.Time) uuid.UUID {
		f.clock.At = at
		sale, err := f.service.CreateSale(ctx, salesapp.CreateSaleRequest{
			PurchaserID: buyer,
			Lines:       []salesapp.SaleLineRequest{{ItemID: item, Quantity: qty}},
		})
		require.NoError(t, err)
		return sale.ID
	}
	first := sell(alice, 1, testutil.Today)
	second := sell(bob, 2, testutil.Today.Add(time.Hour))
	third := sell(alice, 3, testutil.Today.Add(2*time.Hour))

	t.Run("list is newest first and paged", func(t *testing.T) {
		page, err := f.service.ListSales(ctx, shared.Filter{Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
		assert.Equal(t, 2, page.TotalPages)
		require.Len(t, page.Items, 2)
		assert.Equal(t, third, page.Items[0].ID)
		assert.Equal(t, second, page.Items[1].ID)

		page2, err := f.service.ListSales(ctx, shared.Filter{Page: 2, PageSize: 2})
		require.NoError(t, err)
		require.Len(t, page2.Items, 1)
		assert.Equal(t, first, page2.Items[0].ID)
	})

	t.Run("by purchaser", func(t *testing.T) {
		list, err := f.service.ListByPurchaser(ctx, alice)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, third, list[0].ID)
		assert.Equal(t, first, list[1].ID)

		_, err = f.service.ListByPurchaser(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("unknown sale", func(t *testing.T) {
		_, err := f.service.GetSale(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

// retiringLocker marks items removed just before granting the lock, as a
// concurrent RetireItem holding the lock first would
type retiringLocker struct {
	ledger.ItemLocker
	items *persistence.GormItemRepository
}

func (l *retiringLocker) Lock(ctx context.Context, itemIDs ...uuid.UUID) (func(), error) {
	for _, id := range itemIDs {
		if err := l.items.MarkRemoved(ctx, id); err != nil {
			return nil, err
		}
	}
	return l.ItemLocker.Lock(ctx, itemIDs...)
}

func TestCreateSale_ItemRetiredBeforeLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer := testutil.SeedAdult(t, f.db)
	itemID := testutil.SeedItem(t, f.db, "Cetirizine", "2.10")
	f.seedLot(t, itemID, "C1", 5, testutil.Date(2025, 9, 1))

	items := persistence.NewGormItemRepository(f.db)
	service := salesapp.NewSaleService(
		items,
		persistence.NewGormPurchaserRepository(f.db),
		persistence.NewGormSaleRepository(f.db),
		persistence.NewGormTransactionScope(f.db),
		&retiringLocker{ItemLocker: lock.NewLocalItemLocker(), items: items},
		ledger.WithClock(f.clock),
	)

	_, err := service.CreateSale(ctx, salesapp.CreateSaleRequest{
		PurchaserID: buyer,
		Lines:       []salesapp.SaleLineRequest{{ItemID: itemID, Quantity: 1}},
	})

	require.ErrorIs(t, err, shared.ErrInactiveItem)
	assert.Equal(t, 5, f.remaining(t, itemID))
	assert.Equal(t, int64(0), f.saleCount(t))
}
