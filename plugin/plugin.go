// Package plugin provides an extensible plugin system for Settle.
// Plugins can hook into settlement, payment and sync lifecycle events to
// extend functionality.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettlementSubmitted is called when a settlement transaction is broadcast.
type OnSettlementSubmitted interface {
	Plugin
	OnSettlementSubmitted(ctx context.Context, inv interface{}, txHash, chainID string) error
}

// OnSettlementFailed is called when a settlement attempt fails.
type OnSettlementFailed interface {
	Plugin
	OnSettlementFailed(ctx context.Context, inv interface{}, err error) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded is called when a payment is durably recorded against an
// invoice.
type OnPaymentRecorded interface {
	Plugin
	OnPaymentRecorded(ctx context.Context, inv interface{}) error
}

// OnPaymentConflict is called when payment evidence contradicts an already
// recorded payment.
type OnPaymentConflict interface {
	Plugin
	OnPaymentConflict(ctx context.Context, inv interface{}, txHash string) error
}

// ──────────────────────────────────────────────────
// Access token hooks
// ──────────────────────────────────────────────────

// OnTokenIssued is called when an invoice access token is minted.
type OnTokenIssued interface {
	Plugin
	OnTokenIssued(ctx context.Context, token interface{}) error
}

// OnTokenConsumed is called when an access token is consumed.
type OnTokenConsumed interface {
	Plugin
	OnTokenConsumed(ctx context.Context, token interface{}) error
}

// ──────────────────────────────────────────────────
// Exchange rate hooks
// ──────────────────────────────────────────────────

// OnRateLocked is called when an exchange rate snapshot is locked.
type OnRateLocked interface {
	Plugin
	OnRateLocked(ctx context.Context, snapshot interface{}) error
}

// OnRateUnavailable is called when rate resolution fails.
type OnRateUnavailable interface {
	Plugin
	OnRateUnavailable(ctx context.Context, pair string, err error) error
}

// ──────────────────────────────────────────────────
// Ledger sync hooks
// ──────────────────────────────────────────────────

// OnSyncCompleted is called after a ledger sync pass finishes.
type OnSyncCompleted interface {
	Plugin
	OnSyncCompleted(ctx context.Context, report interface{}) error
}

// OnDriftRepaired is called when a sync pass fixes a drifted document.
type OnDriftRepaired interface {
	Plugin
	OnDriftRepaired(ctx context.Context, documentID string, field string) error
}
