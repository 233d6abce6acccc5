package audithook

// Action constants for audit events.
const (
	// Settlement actions
	ActionSettlementSubmitted = "settlement.submitted"
	ActionSettlementFailed    = "settlement.failed"

	// Payment actions
	ActionPaymentRecorded = "payment.recorded"
	ActionPaymentConflict = "payment.conflict"

	// Access token actions
	ActionTokenIssued   = "token.issued"
	ActionTokenConsumed = "token.consumed"

	// Exchange rate actions
	ActionRateLocked      = "rate.locked"
	ActionRateUnavailable = "rate.unavailable"

	// Ledger sync actions
	ActionSyncCompleted = "sync.completed"
	ActionDriftRepaired = "sync.drift_repaired"
)

// Resource constants for audit events.
const (
	ResourceInvoice     = "invoice"
	ResourceSettlement  = "settlement"
	ResourceToken       = "access_token"
	ResourceRate        = "exchange_rate"
	ResourceLedgerEntry = "ledger_entry"
)

// Category constants for audit events.
const (
	CategoryPayment        = "payment"
	CategoryAccess         = "access"
	CategoryReconciliation = "reconciliation"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
