package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// ErrMeterNil is returned when metrics are built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Metric attribute keys
var (
	AttrMovementKind = attribute.Key("movement_kind")
	AttrReason       = attribute.Key("reason")
	AttrOperation    = attribute.Key("operation")
	AttrAlertKind    = attribute.Key("alert_kind")
)

// LedgerMetrics counts what the stock ledger does. A nil *LedgerMetrics
// is valid and records nothing.
type LedgerMetrics struct {
	salesCommitted *Counter
	salesRejected  *Counter
	conflictRetry  *Counter
	unitsMoved     *Counter
	alertsRaised   *Counter
	saleDuration   *Histogram
}

// NewLedgerMetrics registers the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &LedgerMetrics{}
	var err error
	if m.salesCommitted, err = NewCounter(meter, "ledger_sales_committed_total", "Sales committed", "{sales}"); err != nil {
		return nil, err
	}
	if m.salesRejected, err = NewCounter(meter, "ledger_sales_rejected_total", "Sales rejected", "{sales}"); err != nil {
		return nil, err
	}
	if m.conflictRetry, err = NewCounter(meter, "ledger_conflict_retries_total", "Operations retried after a concurrency conflict", "{retries}"); err != nil {
		return nil, err
	}
	if m.unitsMoved, err = NewCounter(meter, "ledger_units_moved_total", "Units recorded in the movement log", "{units}"); err != nil {
		return nil, err
	}
	if m.alertsRaised, err = NewCounter(meter, "ledger_alerts_raised_total", "Alerts found by the background sweep", "{alerts}"); err != nil {
		return nil, err
	}
	if m.saleDuration, err = NewHistogram(meter, "ledger_sale_duration_seconds", "Time to commit a sale", "s", DurationBuckets...); err != nil {
		return nil, err
	}
	return m, nil
}

// NewNoopLedgerMetrics returns metrics backed by a no-op meter
func NewNoopLedgerMetrics() *LedgerMetrics {
	m, _ := NewLedgerMetrics(noop.NewMeterProvider().Meter(TracerName))
	return m
}

// SaleCommitted records a committed sale and how long it took
func (m *LedgerMetrics) SaleCommitted(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.salesCommitted.Inc(ctx)
	m.saleDuration.RecordDuration(ctx, d)
}

// SaleRejected records a rejected sale by error code
func (m *LedgerMetrics) SaleRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.salesRejected.Inc(ctx, AttrReason.String(reason))
}

// ConflictRetried records one retry of operation after a lost race
func (m *LedgerMetrics) ConflictRetried(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.conflictRetry.Inc(ctx, AttrOperation.String(operation))
}

// UnitsMoved records quantity units logged under a movement kind
func (m *LedgerMetrics) UnitsMoved(ctx context.Context, kind string, quantity int) {
	if m == nil || quantity <= 0 {
		return
	}
	m.unitsMoved.Add(ctx, int64(quantity), AttrMovementKind.String(kind))
}

// AlertsRaised records count alerts of kind found by one sweep
func (m *LedgerMetrics) AlertsRaised(ctx context.Context, kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.alertsRaised.Add(ctx, int64(count), AttrAlertKind.String(kind))
}
