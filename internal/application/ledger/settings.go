package ledger

import (
	"github.com/pharmacy/backend/internal/domain/shared"
	"github.com/pharmacy/backend/internal/infrastructure/telemetry"
)

// DefaultMaxConflictRetries is how often an operation is re-run after
// losing a version race before the conflict is surfaced
const DefaultMaxConflictRetries = 3

// Settings carries the cross-cutting dependencies of the ledger services
type Settings struct {
	Clock              shared.Clock
	Metrics            *telemetry.LedgerMetrics
	MaxConflictRetries int
	LabelAttempts      int
}

// Option configures Settings
type Option func(*Settings)

// WithClock sets the clock used for expiry, age and timestamps
func WithClock(clock shared.Clock) Option {
	return func(s *Settings) { s.Clock = clock }
}

// WithMetrics sets the ledger metrics sink
func WithMetrics(metrics *telemetry.LedgerMetrics) Option {
	return func(s *Settings) { s.Metrics = metrics }
}

// WithMaxConflictRetries sets the conflict retry budget; negative values mean no retry
func WithMaxConflictRetries(n int) Option {
	return func(s *Settings) { s.MaxConflictRetries = n }
}

// WithLabelAttempts bounds generated lot label attempts
func WithLabelAttempts(n int) Option {
	return func(s *Settings) { s.LabelAttempts = n }
}

// NewSettings applies opts over the defaults
func NewSettings(opts ...Option) Settings {
	s := Settings{
		Clock:              shared.SystemClock{},
		MaxConflictRetries: DefaultMaxConflictRetries,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.Clock == nil {
		s.Clock = shared.SystemClock{}
	}
	if s.Metrics == nil {
		s.Metrics = telemetry.NewNoopLedgerMetrics()
	}
	return s
}
