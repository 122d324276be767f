// Package scheduler runs the periodic alert sweep. Each sweep evaluates the
// low stock and near expiry reports with the configured defaults, logs what
// it found and counts the alerts in the ledger metrics.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	alertapp "github.com/pharmacy/backend/internal/application/alert"
	"github.com/pharmacy/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Alert kinds reported to metrics
const (
	KindLowStock   = "low_stock"
	KindNearExpiry = "near_expiry"
)

// AlertSource produces the alert reports
type AlertSource interface {
	LowStock(ctx context.Context, query alertapp.LowStockQuery) ([]alertapp.LowStockAlert, error)
	NearExpiry(ctx context.Context, query alertapp.NearExpiryQuery) ([]alertapp.NearExpiryAlert, error)
}

// SweepConfig holds sweep configuration
type SweepConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultSweepConfig returns default sweep configuration
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Interval: time.Hour,
		Timeout:  time.Minute,
	}
}

// SweepResult summarizes one sweep
type SweepResult struct {
	StartedAt  time.Time
	LowStock   int
	NearExpiry int
}

// AlertSweeper evaluates alerts on a fixed interval
type AlertSweeper struct {
	config  SweepConfig
	source  AlertSource
	metrics *telemetry.LedgerMetrics
	logger  *zap.Logger
	now     func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	last      *SweepResult
}

// NewAlertSweeper creates a new sweeper. metrics may be nil.
func NewAlertSweeper(config SweepConfig, source AlertSource, metrics *telemetry.LedgerMetrics, logger *zap.Logger) *AlertSweeper {
	if config.Timeout <= 0 {
		config.Timeout = DefaultSweepConfig().Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertSweeper{
		config:  config,
		source:  source,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Start launches the sweep loop. The first sweep runs one interval after Start.
// Starting a running sweeper is a no-op.
func (s *AlertSweeper) Start(ctx context.Context) error {
	if s.config.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidConfig, s.config.Interval)
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Alert sweeper started", zap.Duration("interval", s.config.Interval))
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (s *AlertSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Alert sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Alert sweeper stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (s *AlertSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// LastResult returns the most recent successful sweep
func (s *AlertSweeper) LastResult() (SweepResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return SweepResult{}, false
	}
	return *s.last, true
}

func (s *AlertSweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Alert sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single sweep with the configured defaults
func (s *AlertSweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	result := SweepResult{StartedAt: s.now()}

	low, err := s.source.LowStock(ctx, alertapp.LowStockQuery{})
	if err != nil {
		return result, fmt.Errorf("%w: low stock: %v", ErrSweepFailed, err)
	}
	expiring, err := s.source.NearExpiry(ctx, alertapp.NearExpiryQuery{})
	if err != nil {
		return result, fmt.Errorf("%w: near expiry: %v", ErrSweepFailed, err)
	}
	result.LowStock = len(low)
	result.NearExpiry = len(expiring)

	for _, a := range low {
		s.logger.Debug("Low stock",
			zap.String("item_id", a.ItemID.String()),
			zap.String("name", a.Name),
			zap.Int("quantity", a.Quantity),
			zap.Int("threshold", a.Threshold),
		)
	}
	for _, a := range expiring {
		s.logger.Debug("Lot near expiry",
			zap.String("lot_id", a.LotID.String()),
			zap.String("name", a.Name),
			zap.String("expires_on", a.ExpiresOn),
			zap.Int("quantity", a.Quantity),
		)
	}

	s.metrics.AlertsRaised(ctx, KindLowStock, result.LowStock)
	s.metrics.AlertsRaised(ctx, KindNearExpiry, result.NearExpiry)

	fields := []zap.Field{
		zap.Int("low_stock", result.LowStock),
		zap.Int("near_expiry", result.NearExpiry),
	}
	if result.LowStock+result.NearExpiry > 0 {
		s.logger.Warn("Stock alerts pending", fields...)
	} else {
		s.logger.Info("Alert sweep clean", fields...)
	}

	s.mu.Lock()
	s.last = &result
	s.mu.Unlock()
	return result, nil
}
