// Package observability provides a metrics extension for Settle that records
// lifecycle event counts through an injected MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/settle/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnSettlementSubmitted = (*MetricsExtension)(nil)
	_ plugin.OnSettlementFailed    = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRecorded     = (*MetricsExtension)(nil)
	_ plugin.OnPaymentConflict     = (*MetricsExtension)(nil)
	_ plugin.OnTokenIssued         = (*MetricsExtension)(nil)
	_ plugin.OnTokenConsumed       = (*MetricsExtension)(nil)
	_ plugin.OnRateLocked          = (*MetricsExtension)(nil)
	_ plugin.OnRateUnavailable     = (*MetricsExtension)(nil)
	_ plugin.OnSyncCompleted       = (*MetricsExtension)(nil)
	_ plugin.OnDriftRepaired       = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Settle plugin to automatically track settlement metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Settlement metrics
	SettlementSubmitted Counter
	SettlementFailed    Counter

	// Payment metrics
	PaymentRecorded Counter
	PaymentConflict Counter

	// Access token metrics
	TokenIssued   Counter
	TokenConsumed Counter

	// Exchange rate metrics
	RateLocked      Counter
	RateUnavailable Counter

	// Sync metrics
	SyncCompleted  Counter
	DriftRepaired  Counter
	SyncBatchSize  Histogram
	SyncFailedDocs Histogram

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Settlement metrics
		SettlementSubmitted: factory.Counter("settle.settlement.submitted"),
		SettlementFailed:    factory.Counter("settle.settlement.failed"),

		// Payment metrics
		PaymentRecorded: factory.Counter("settle.payment.recorded"),
		PaymentConflict: factory.Counter("settle.payment.conflict"),

		// Access token metrics
		TokenIssued:   factory.Counter("settle.token.issued"),
		TokenConsumed: factory.Counter("settle.token.consumed"),

		// Exchange rate metrics
		RateLocked:      factory.Counter("settle.rate.locked"),
		RateUnavailable: factory.Counter("settle.rate.unavailable"),

		// Sync metrics
		SyncCompleted:  factory.Counter("settle.sync.completed"),
		DriftRepaired:  factory.Counter("settle.sync.drift_repaired"),
		SyncBatchSize:  factory.Histogram("settle.sync.batch.size"),
		SyncFailedDocs: factory.Histogram("settle.sync.failed.docs"),

		// Error metrics
		StoreErrors:  factory.Counter("settle.store.errors"),
		PluginErrors: factory.Counter("settle.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettlementSubmitted implements plugin.OnSettlementSubmitted.
func (m *MetricsExtension) OnSettlementSubmitted(_ context.Context, _ interface{}, _, _ string) error {
	m.SettlementSubmitted.Inc()
	return nil
}

// OnSettlementFailed implements plugin.OnSettlementFailed.
func (m *MetricsExtension) OnSettlementFailed(_ context.Context, _ interface{}, _ error) error {
	m.SettlementFailed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (m *MetricsExtension) OnPaymentRecorded(_ context.Context, _ interface{}) error {
	m.PaymentRecorded.Inc()
	return nil
}

// OnPaymentConflict implements plugin.OnPaymentConflict.
func (m *MetricsExtension) OnPaymentConflict(_ context.Context, _ interface{}, _ string) error {
	m.PaymentConflict.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Access token hooks
// ──────────────────────────────────────────────────

// OnTokenIssued implements plugin.OnTokenIssued.
func (m *MetricsExtension) OnTokenIssued(_ context.Context, _ interface{}) error {
	m.TokenIssued.Inc()
	return nil
}

// OnTokenConsumed implements plugin.OnTokenConsumed.
func (m *MetricsExtension) OnTokenConsumed(_ context.Context, _ interface{}) error {
	m.TokenConsumed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Exchange rate hooks
// ──────────────────────────────────────────────────

// OnRateLocked implements plugin.OnRateLocked.
func (m *MetricsExtension) OnRateLocked(_ context.Context, _ interface{}) error {
	m.RateLocked.Inc()
	return nil
}

// OnRateUnavailable implements plugin.OnRateUnavailable.
func (m *MetricsExtension) OnRateUnavailable(_ context.Context, _ string, _ error) error {
	m.RateUnavailable.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Ledger sync hooks
// ──────────────────────────────────────────────────

// syncReport is the subset of the sync report the extension inspects.
// Defined locally to avoid importing the root package.
type syncReport interface {
	Counts() (processed, fixed, failed int)
}

// OnSyncCompleted implements plugin.OnSyncCompleted.
func (m *MetricsExtension) OnSyncCompleted(_ context.Context, report interface{}) error {
	m.SyncCompleted.Inc()
	if r, ok := report.(syncReport); ok {
		processed, _, failed := r.Counts()
		m.SyncBatchSize.Observe(float64(processed))
		m.SyncFailedDocs.Observe(float64(failed))
	}
	return nil
}

// OnDriftRepaired implements plugin.OnDriftRepaired.
func (m *MetricsExtension) OnDriftRepaired(_ context.Context, _, _ string) error {
	m.DriftRepaired.Inc()
	return nil
}
