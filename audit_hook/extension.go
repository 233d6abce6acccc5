// Package audithook bridges Settle lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/settle/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnSettlementSubmitted = (*Extension)(nil)
	_ plugin.OnSettlementFailed    = (*Extension)(nil)
	_ plugin.OnPaymentRecorded     = (*Extension)(nil)
	_ plugin.OnPaymentConflict     = (*Extension)(nil)
	_ plugin.OnTokenIssued         = (*Extension)(nil)
	_ plugin.OnTokenConsumed       = (*Extension)(nil)
	_ plugin.OnRateUnavailable     = (*Extension)(nil)
	_ plugin.OnSyncCompleted       = (*Extension)(nil)
	_ plugin.OnDriftRepaired       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Settle lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettlementSubmitted implements plugin.OnSettlementSubmitted.
func (e *Extension) OnSettlementSubmitted(ctx context.Context, _ interface{}, txHash, chainID string) error {
	return e.record(ctx, ActionSettlementSubmitted, SeverityInfo, OutcomeSuccess,
		ResourceSettlement, txHash, CategoryPayment, nil,
		"tx_hash", txHash,
		"chain_id", chainID,
	)
}

// OnSettlementFailed implements plugin.OnSettlementFailed.
func (e *Extension) OnSettlementFailed(ctx context.Context, _ interface{}, err error) error {
	return e.record(ctx, ActionSettlementFailed, SeverityCritical, OutcomeFailure,
		ResourceSettlement, "", CategoryPayment, err,
		"event", "settlement_failed",
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (e *Extension) OnPaymentRecorded(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionPaymentRecorded, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, "", CategoryPayment, nil,
		"event", "payment_recorded",
	)
}

// OnPaymentConflict implements plugin.OnPaymentConflict.
func (e *Extension) OnPaymentConflict(ctx context.Context, _ interface{}, txHash string) error {
	return e.record(ctx, ActionPaymentConflict, SeverityCritical, OutcomeFailure,
		ResourceInvoice, "", CategoryPayment, nil,
		"event", "payment_conflict",
		"conflicting_tx_hash", txHash,
	)
}

// ──────────────────────────────────────────────────
// Access token hooks
// ──────────────────────────────────────────────────

// OnTokenIssued implements plugin.OnTokenIssued.
func (e *Extension) OnTokenIssued(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionTokenIssued, SeverityInfo, OutcomeSuccess,
		ResourceToken, "", CategoryAccess, nil,
		"event", "token_issued",
	)
}

// OnTokenConsumed implements plugin.OnTokenConsumed.
func (e *Extension) OnTokenConsumed(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionTokenConsumed, SeverityInfo, OutcomeSuccess,
		ResourceToken, "", CategoryAccess, nil,
		"event", "token_consumed",
	)
}

// ──────────────────────────────────────────────────
// Exchange rate hooks
// ──────────────────────────────────────────────────

// OnRateUnavailable implements plugin.OnRateUnavailable.
func (e *Extension) OnRateUnavailable(ctx context.Context, pair string, err error) error {
	return e.record(ctx, ActionRateUnavailable, SeverityWarning, OutcomeFailure,
		ResourceRate, pair, CategoryPayment, err,
		"pair", pair,
	)
}

// ──────────────────────────────────────────────────
// Ledger sync hooks
// ──────────────────────────────────────────────────

// OnSyncCompleted implements plugin.OnSyncCompleted.
func (e *Extension) OnSyncCompleted(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionSyncCompleted, SeverityInfo, OutcomeSuccess,
		ResourceLedgerEntry, "", CategoryReconciliation, nil,
		"event", "sync_completed",
	)
}

// OnDriftRepaired implements plugin.OnDriftRepaired.
func (e *Extension) OnDriftRepaired(ctx context.Context, documentID, field string) error {
	return e.record(ctx, ActionDriftRepaired, SeverityWarning, OutcomeSuccess,
		ResourceLedgerEntry, documentID, CategoryReconciliation, nil,
		"document_id", documentID,
		"field", field,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
