package ledger

import (
	"context"
	"errors"

	"github.com/pharmacy/backend/internal/domain/shared"
)

// RetryOnConflict runs fn and re-runs it while it fails with a concurrency
// conflict, up to maxRetries extra attempts. onRetry is called before each
// retry with the attempt number (1-based). Any other error returns at once.
func RetryOnConflict(ctx context.Context, maxRetries int, onRetry func(attempt int), fn func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if onRetry != nil {
				onRetry(attempt)
			}
		}
		err = fn()
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
	}
	return err
}
