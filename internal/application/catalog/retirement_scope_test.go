package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/application/catalog"
	"github.com/pharmacy/backend/internal/application/ledger"
	catalogdomain "github.com/pharmacy/backend/internal/domain/catalog"
	"github.com/pharmacy/backend/internal/domain/sales"
	"github.com/pharmacy/backend/internal/domain/stock"
	"github.com/pharmacy/backend/internal/infrastructure/lock"
	"github.com/pharmacy/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockItemRepository struct {
	catalogdomain.ItemRepository
	mock.Mock
}

func (m *mockItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalogdomain.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogdomain.Item), args.Error(1)
}

func (m *mockItemRepository) MarkRemoved(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockLotRepository struct {
	stock.LotRepository
	mock.Mock
}

func (m *mockLotRepository) DeactivateByItem(ctx context.Context, itemID uuid.UUID, now time.Time) (int64, error) {
	args := m.Called(ctx, itemID, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLotRepository) DeleteByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).(int64), args.Error(1)
}

type mockMovementRepository struct {
	stock.MovementRepository
	mock.Mock
}

func (m *mockMovementRepository) DeleteByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).(int64), args.Error(1)
}

type mockSaleRepository struct {
	sales.SaleRepository
	mock.Mock
}

func (m *mockSaleRepository) ExistsForItem(ctx context.Context, itemID uuid.UUID) (bool, error) {
	args := m.Called(ctx, itemID)
	return args.Bool(0), args.Error(1)
}

type retirementRepos struct {
	items     *mockItemRepository
	lots      *mockLotRepository
	movements *mockMovementRepository
	sales     *mockSaleRepository
}

func newRetirementRepos() retirementRepos {
	return retirementRepos{
		items:     new(mockItemRepository),
		lots:      new(mockLotRepository),
		movements: new(mockMovementRepository),
		sales:     new(mockSaleRepository),
	}
}

func (r retirementRepos) service() *catalog.RetirementService {
	scope := ledger.NewNoOpTransactionScope(r.lots, r.movements, r.sales, r.items)
	return catalog.NewRetirementService(r.items, scope, lock.NewLocalItemLocker(), ledger.WithClock(testutil.Clock()))
}

func (r retirementRepos) assertExpectations(t *testing.T) {
	r.items.AssertExpectations(t)
	r.lots.AssertExpectations(t)
	r.movements.AssertExpectations(t)
	r.sales.AssertExpectations(t)
}

func TestRetireItem_SoldItemStampsClock(t *testing.T) {
	ctx := context.Background()
	itemID := uuid.New()
	repos := newRetirementRepos()

	repos.items.On("FindByID", mock.Anything, itemID).Return(&catalogdomain.Item{ID: itemID, Active: true}, nil)
	repos.sales.On("ExistsForItem", mock.Anything, itemID).Return(true, nil)
	repos.lots.On("DeactivateByItem", mock.Anything, itemID, testutil.Today).Return(int64(2), nil)
	repos.items.On("MarkRemoved", mock.Anything, itemID).Return(nil)

	result, err := repos.service().RetireItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, catalog.RetirementDeactivated, result.Outcome)
	assert.Equal(t, int64(2), result.Lots)
	assert.Zero(t, result.MovementsDeleted)

	repos.assertExpectations(t)
	repos.movements.AssertNotCalled(t, "DeleteByItem", mock.Anything, mock.Anything)
	repos.items.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRetireItem_DeactivationFailureStopsRetirement(t *testing.T) {
	ctx := context.Background()
	itemID := uuid.New()
	repos := newRetirementRepos()
	boom := errors.New("lots table locked")

	repos.items.On("FindByID", mock.Anything, itemID).Return(&catalogdomain.Item{ID: itemID, Active: true}, nil)
	repos.sales.On("ExistsForItem", mock.Anything, itemID).Return(true, nil)
	repos.lots.On("DeactivateByItem", mock.Anything, itemID, testutil.Today).Return(int64(0), boom)

	result, err := repos.service().RetireItem(ctx, itemID)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, result)

	repos.assertExpectations(t)
	repos.items.AssertNotCalled(t, "MarkRemoved", mock.Anything, mock.Anything)
}

func TestRetireItem_UnsoldItemIsDeleted(t *testing.T) {
	ctx := context.Background()
	itemID := uuid.New()
	repos := newRetirementRepos()

	repos.items.On("FindByID", mock.Anything, itemID).Return(&catalogdomain.Item{ID: itemID}, nil)
	repos.sales.On("ExistsForItem", mock.Anything, itemID).Return(false, nil)
	repos.movements.On("DeleteByItem", mock.Anything, itemID).Return(int64(3), nil)
	repos.lots.On("DeleteByItem", mock.Anything, itemID).Return(int64(1), nil)
	repos.items.On("Delete", mock.Anything, itemID).Return(nil)

	result, err := repos.service().RetireItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, catalog.RetirementDeleted, result.Outcome)
	assert.Equal(t, int64(1), result.Lots)
	assert.Equal(t, int64(3), result.MovementsDeleted)

	repos.assertExpectations(t)
	repos.lots.AssertNotCalled(t, "DeactivateByItem", mock.Anything, mock.Anything, mock.Anything)
}
