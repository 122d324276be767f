// Package testutil provides shared fixtures for ledger tests: a migrated
// sqlite database, master data seeding and deterministic IDs.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/pharmacy/backend/internal/infrastructure/config"
	"github.com/pharmacy/backend/internal/infrastructure/persistence"
	"github.com/pharmacy/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Today is the reference instant used by ledger tests
var Today = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

// Clock returns a clock frozen at Today
func Clock() *shared.FixedClock {
	return &shared.FixedClock{At: Today}
}

// Date returns midnight UTC of the given calendar day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NewSQLiteDB opens a file-backed sqlite database in a temp dir with every
// ledger table created. It is closed when the test ends.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
		LogLevel:   "silent",
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate())

	t.Cleanup(func() { _ = database.Close() })
	return database.DB
}

// SeedItem inserts an active item priced at price and returns its ID
func SeedItem(t *testing.T, db *gorm.DB, name string, price string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, db.Create(models.NewItemModel(id, name, decimal.RequireFromString(price), Today)).Error)
	return id
}

// SeedInactiveItem inserts an item that can no longer be sold
func SeedInactiveItem(t *testing.T, db *gorm.DB, name string) uuid.UUID {
	t.Helper()
	id := SeedItem(t, db, name, "1.00")
	require.NoError(t, db.Model(&models.ItemModel{}).Where("id = ?", id).Update("active", false).Error)
	return id
}

// SeedPurchaser inserts a purchaser born on birthDate and returns its ID
func SeedPurchaser(t *testing.T, db *gorm.DB, name string, birthDate time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, db.Create(models.NewPurchaserModel(id, name, birthDate, Today)).Error)
	return id
}

// SeedAdult inserts a purchaser who is 30 years old on Today
func SeedAdult(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	return SeedPurchaser(t, db, "Adult Buyer", Today.AddDate(-30, 0, 0))
}

// NewTestUUID generates a deterministic UUID from seed
func NewTestUUID(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// RequireEventually polls condition until it holds or fails the test after timeout
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}
	t.Fatalf("Condition not met within %v: %v", timeout, msgAndArgs)
}
