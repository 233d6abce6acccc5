// Package settle provides an embeddable settlement and reconciliation engine
// for invoicing platforms that accept on-chain token payments.
//
// Settle is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - Platform fee computation in integer basis points, bit-for-bit
//     compatible with on-chain contract arithmetic
//   - Single-use payment-link access tokens with race-safe consumption
//   - Stateless ERC-20 settlement execution across multiple networks
//   - Exchange rate locking: fiat valuations frozen at payment time
//   - Exactly-once payment recording safe under concurrent retries
//   - Full-ledger synchronization with ownership drift repair
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/settle"
//	    "github.com/xraph/settle/store/postgres"
//	)
//
//	st := postgres.New(db)
//
//	engine := settle.New(st,
//	    settle.WithFeePolicy(fee.Policy{BasisPoints: 150}),
//	    settle.WithRateLocker(rate.NewLocker(coingecko.New())),
//	    settle.WithSyncInterval(15*time.Minute),
//	)
//
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// Invoices are receivables settled by on-chain token transfers. The fee
// policy splits each gross total into a platform fee and a net payout,
// flooring in favor of the payee exactly as the settlement contract does.
//
// Access tokens let a non-authenticated recipient view and pay one invoice
// through a shareable link. Tokens are single-use: consumption is a
// conditional update with exactly one winner under concurrency.
//
// Payment recording is exactly-once. Retrying a recorded payment with the
// same transaction hash is idempotent; contradictory evidence is rejected
// and never overwrites the record. The exchange rate snapshot locked at
// payment time is the valuation of record forever after.
//
// The ledger sync engine materializes normalized entries from invoices and
// payables for organization-level reporting, repairing ownership drift as
// it walks. Failures are isolated per document and surfaced in the sync
// report.
package settle
