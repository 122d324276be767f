package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/pharmacy/backend/internal/infrastructure/logger"
	"github.com/pharmacy/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// MaxIdempotencyKeyLength bounds client supplied idempotency keys
const MaxIdempotencyKeyLength = 128

// DefaultIdempotencyTTL is how long a key keeps answering with its sale
const DefaultIdempotencyTTL = 24 * time.Hour

// idempotencyWriteTimeout bounds Complete and Release, which run on a
// context detached from the request
const idempotencyWriteTimeout = 5 * time.Second

// IdempotencyStore remembers which sale answered a client request key.
type IdempotencyStore interface {
	// Claim reserves key for a new sale. When the key is already known it
	// returns claimed=false and the recorded sale ID, which is empty while
	// the first request is still running.
	Claim(ctx context.Context, key string, ttl time.Duration) (saleID string, claimed bool, err error)
	// Complete records the sale that answered key
	Complete(ctx context.Context, key, saleID string, ttl time.Duration) error
	// Release forgets a claimed key whose sale was not committed
	Release(ctx context.Context, key string) error
	Close() error
}

// IdempotentSaleService replays the original sale when a client resubmits
// a basket with the same idempotency key
type IdempotentSaleService struct {
	sales *SaleService
	store IdempotencyStore
	ttl   time.Duration
}

// NewIdempotentSaleService wraps sales with key based deduplication.
// A non-positive ttl uses DefaultIdempotencyTTL.
func NewIdempotentSaleService(sales *SaleService, store IdempotencyStore, ttl time.Duration) *IdempotentSaleService {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotentSaleService{
		sales: sales,
		store: store,
		ttl:   ttl,
	}
}

// CreateSale creates the sale once per key. replayed reports that the
// response is the sale committed by an earlier request with the same key.
// An empty key disables deduplication.
func (s *IdempotentSaleService) CreateSale(ctx context.Context, key string, req CreateSaleRequest) (resp *SaleResponse, replayed bool, err error) {
	if key == "" {
		resp, err = s.sales.CreateSale(ctx, req)
		return resp, false, err
	}
	if len(key) > MaxIdempotencyKeyLength {
		return nil, false, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Idempotency key must be at most %d characters", MaxIdempotencyKeyLength))
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "sales", "create_sale_idempotent")
	defer span.End()

	saleID, claimed, err := s.store.Claim(ctx, key, s.ttl)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if !claimed {
		return s.replay(ctx, key, saleID)
	}

	resp, err = s.sales.CreateSale(ctx, req)

	// A timed out or cancelled request must still settle the key, or every
	// retry would see it pending until the ttl runs out.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idempotencyWriteTimeout)
	defer cancel()

	if err != nil {
		if releaseErr := s.store.Release(writeCtx, key); releaseErr != nil {
			logger.L(ctx).Warn("Failed to release idempotency key", zap.Error(releaseErr))
		}
		return nil, false, err
	}

	if err := s.store.Complete(writeCtx, key, resp.ID.String(), s.ttl); err != nil {
		// The sale is committed; only replays of this key are affected.
		logger.L(ctx).Error("Failed to record idempotency key",
			zap.String("sale_id", resp.ID.String()),
			zap.Error(err),
		)
	}
	return resp, false, nil
}

func (s *IdempotentSaleService) replay(ctx context.Context, key, saleID string) (*SaleResponse, bool, error) {
	if saleID == "" {
		return nil, false, shared.NewDomainError(shared.CodeConcurrencyConflict,
			"A sale with this idempotency key is still being processed")
	}
	id, err := uuid.Parse(saleID)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt idempotency record for key %q: %w", key, err)
	}

	logger.L(ctx).Info("Replaying sale for idempotency key", zap.String("sale_id", saleID))
	resp, err := s.sales.GetSale(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return resp, true, nil
}
