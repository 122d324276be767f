package alert_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/application/alert"
	"github.com/pharmacy/backend/internal/application/ledger"
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/pharmacy/backend/internal/domain/stock"
	"github.com/pharmacy/backend/internal/infrastructure/persistence"
	"github.com/pharmacy/backend/internal/infrastructure/persistence/models"
	"github.com/pharmacy/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	lots    *persistence.GormLotRepository
	service *alert.AlertService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	lots := persistence.NewGormLotRepository(db)
	return &fixture{
		db:   db,
		lots: lots,
		service: alert.NewAlertService(
			persistence.NewGormItemRepository(db),
			lots,
			alert.Limits{LowStockLimit: 10, NearExpiryDays: 30},
			ledger.WithClock(testutil.Clock()),
		),
	}
}

func (f *fixture) seedLot(t *testing.T, itemID uuid.UUID, label string, qty int, expiry time.Time) uuid.UUID {
	t.Helper()
	lot, err := stock.NewLot(itemID, label, qty, expiry, expiry.AddDate(0, 0, -90))
	require.NoError(t, err)
	require.NoError(t, f.lots.Create(context.Background(), lot))
	return lot.ID
}

func intPtr(v int) *int { return &v }

func TestLowStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	low := testutil.SeedItem(t, f.db, "Low", "2.00")
	f.seedLot(t, low, "L1", 3, testutil.Date(2025, 6, 1))
	f.seedLot(t, low, "L2", 2, testutil.Date(2025, 3, 1)) // expired still counts

	lower := testutil.SeedItem(t, f.db, "Lower", "1.00")
	f.seedLot(t, lower, "L1", 1, testutil.Date(2025, 6, 1))

	tieB := testutil.SeedItem(t, f.db, "B Tie", "1.00")
	f.seedLot(t, tieB, "T", 5, testutil.Date(2025, 6, 1))

	plenty := testutil.SeedItem(t, f.db, "Plenty", "1.00")
	f.seedLot(t, plenty, "P", 10, testutil.Date(2025, 6, 1))

	empty := testutil.SeedItem(t, f.db, "Empty", "1.00")
	f.seedLot(t, empty, "E", 1, testutil.Date(2025, 6, 1))
	require.NoError(t, f.db.Model(&models.LotModel{}).Where("item_id = ?", empty).Update("remaining", 0).Error)

	inactive := testutil.SeedInactiveItem(t, f.db, "Inactive")
	f.seedLot(t, inactive, "I", 1, testutil.Date(2025, 6, 1))

	t.Run("default threshold", func(t *testing.T) {
		alerts, err := f.service.LowStock(ctx, alert.LowStockQuery{})
		require.NoError(t, err)
		require.Len(t, alerts, 3)

		assert.Equal(t, "Lower", alerts[0].Name)
		assert.Equal(t, 1, alerts[0].Quantity)
		assert.Equal(t, "B Tie", alerts[1].Name)
		assert.Equal(t, "Low", alerts[2].Name)
		assert.Equal(t, 5, alerts[2].Quantity)
		assert.Equal(t, 10, alerts[2].Threshold)
		assert.True(t, decimal.RequireFromString("2.00").Equal(alerts[2].Price))
	})

	t.Run("explicit threshold", func(t *testing.T) {
		alerts, err := f.service.LowStock(ctx, alert.LowStockQuery{Threshold: intPtr(2)})
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, lower, alerts[0].ItemID)

		alerts, err = f.service.LowStock(ctx, alert.LowStockQuery{Threshold: intPtr(0)})
		require.NoError(t, err)
		assert.Empty(t, alerts)
	})

	t.Run("negative threshold", func(t *testing.T) {
		_, err := f.service.LowStock(ctx, alert.LowStockQuery{Threshold: intPtr(-1)})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestNearExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	item := testutil.SeedItem(t, f.db, "Drops", "3.00")
	f.seedLot(t, item, "PAST", 5, testutil.Date(2025, 3, 9))
	todayLot := f.seedLot(t, item, "TODAY", 5, testutil.Date(2025, 3, 10))
	f.seedLot(t, item, "EDGE", 5, testutil.Date(2025, 4, 9))
	f.seedLot(t, item, "FAR", 5, testutil.Date(2025, 4, 10))
	f.seedLot(t, item, "SOON", 2, testutil.Date(2025, 3, 20))
	emptyLot := f.seedLot(t, item, "EMPTY", 1, testutil.Date(2025, 3, 15))
	require.NoError(t, f.db.Model(&models.LotModel{}).Where("id = ?", emptyLot).Update("remaining", 0).Error)

	inactive := testutil.SeedInactiveItem(t, f.db, "Inactive")
	f.seedLot(t, inactive, "X", 5, testutil.Date(2025, 3, 12))

	t.Run("default window", func(t *testing.T) {
		alerts, err := f.service.NearExpiry(ctx, alert.NearExpiryQuery{})
		require.NoError(t, err)
		require.Len(t, alerts, 3)

		assert.Equal(t, todayLot, alerts[0].LotID)
		assert.Equal(t, 0, alerts[0].DaysUntilExpiry)
		assert.Equal(t, "SOON", alerts[1].Label)
		assert.Equal(t, 10, alerts[1].DaysUntilExpiry)
		assert.Equal(t, 2, alerts[1].Quantity)
		assert.Equal(t, "EDGE", alerts[2].Label)
		assert.Equal(t, "2025-04-09", alerts[2].ExpiresOn)
		assert.Equal(t, 30, alerts[2].DaysUntilExpiry)
		assert.Equal(t, "Drops", alerts[2].Name)
	})

	t.Run("zero days is today only", func(t *testing.T) {
		alerts, err := f.service.NearExpiry(ctx, alert.NearExpiryQuery{Days: intPtr(0)})
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, "TODAY", alerts[0].Label)
	})

	t.Run("negative days", func(t *testing.T) {
		_, err := f.service.NearExpiry(ctx, alert.NearExpiryQuery{Days: intPtr(-3)})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}
