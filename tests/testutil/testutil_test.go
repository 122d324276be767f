package testutil

import (
	"testing"

	"github.com/pharmacy/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTestUUID_Deterministic(t *testing.T) {
	assert.Equal(t, NewTestUUID("a"), NewTestUUID("a"))
	assert.NotEqual(t, NewTestUUID("a"), NewTestUUID("b"))
}

func TestSeeding(t *testing.T) {
	db := NewSQLiteDB(t)

	itemID := SeedItem(t, db, "Ibuprofen", "4.50")
	var item models.ItemModel
	require.NoError(t, db.First(&item, "id = ?", itemID).Error)
	assert.Equal(t, "Ibuprofen", item.Name)
	assert.True(t, item.Active)
	assert.Equal(t, "4.5", item.Price.String())

	inactive := SeedInactiveItem(t, db, "Old")
	require.NoError(t, db.First(&item, "id = ?", inactive).Error)
	assert.False(t, item.Active)

	purchaserID := SeedAdult(t, db)
	var purchaser models.PurchaserModel
	require.NoError(t, db.First(&purchaser, "id = ?", purchaserID).Error)
	assert.Equal(t, Today.Year()-30, purchaser.BirthDate.Year())
}
