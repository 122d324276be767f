package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestSortedUnique(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	c := uuid.MustParse("ffffffff-0000-0000-0000-000000000000")

	assert.Equal(t, []uuid.UUID{a, b, c}, SortedUnique([]uuid.UUID{c, a, b, a, c}))
	assert.Empty(t, SortedUnique(nil))
}

func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("retries conflicts until success", func(t *testing.T) {
		calls := 0
		var retries []int
		err := RetryOnConflict(ctx, 3, func(n int) { retries = append(retries, n) }, func() error {
			calls++
			if calls < 3 {
				return shared.ErrConcurrencyConflict
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, retries)
	})

	t.Run("surfaces conflict after max retries", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(ctx, 2, nil, func() error {
			calls++
			return shared.ErrConcurrencyConflict
		})

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := RetryOnConflict(ctx, 5, nil, func() error {
			calls++
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when context is done", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		err := RetryOnConflict(cctx, 5, nil, func() error {
			calls++
			cancel()
			return shared.ErrConcurrencyConflict
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestNewSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s := NewSettings()
		assert.IsType(t, shared.SystemClock{}, s.Clock)
		assert.NotNil(t, s.Metrics)
		assert.Equal(t, DefaultMaxConflictRetries, s.MaxConflictRetries)
		assert.Zero(t, s.LabelAttempts)
	})

	t.Run("options override defaults", func(t *testing.T) {
		clock := shared.FixedClock{}
		s := NewSettings(WithClock(clock), WithMaxConflictRetries(0), WithLabelAttempts(9), WithMetrics(nil))
		assert.Equal(t, clock, s.Clock)
		assert.Equal(t, 0, s.MaxConflictRetries)
		assert.Equal(t, 9, s.LabelAttempts)
		assert.NotNil(t, s.Metrics)
	})
}
