// Package settlement executes on-chain payment of invoices.
//
// The Executor is stateless: it validates, resolves the target network and
// broadcasts a token transfer, but never writes to storage. Recording the
// outcome is the caller's job, which keeps retries safe — a failed write
// never leaves a half-settled invoice behind.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/xraph/settle/chain"
	"github.com/xraph/settle/invoice"
)

var (
	// ErrIncompleteInvoice is returned when the invoice is missing the
	// on-chain details needed to settle it.
	ErrIncompleteInvoice = errors.New("settlement: invoice missing settlement details")

	// ErrInvalidAmount is returned for a non-positive transfer amount.
	ErrInvalidAmount = errors.New("settlement: non-positive amount")
)

// BroadcastState records how far a failed settlement got.
type BroadcastState int

const (
	// BroadcastNone means the transaction was never sent; a retry is safe.
	BroadcastNone BroadcastState = iota
	// BroadcastUnknown means the transaction may have reached the network.
	// Callers must confirm via the chain before retrying.
	BroadcastUnknown
)

// String implements fmt.Stringer.
func (s BroadcastState) String() string {
	if s == BroadcastUnknown {
		return "unknown"
	}
	return "none"
}

// Error wraps a settlement failure with its broadcast state.
type Error struct {
	Broadcast BroadcastState
	// TxHash is set when a hash was produced before the failure.
	TxHash string
	Cause  error
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("settlement failed (broadcast=%s): %v", e.Broadcast, e.Cause)
}

// Unwrap implements errors.Unwrap.
func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the failure can be retried without first
// confirming on-chain state.
func (e *Error) Retryable() bool { return e.Broadcast == BroadcastNone }

// Request describes one settlement to execute.
type Request struct {
	Invoice *invoice.Invoice
	// Signer funds and authorizes the transfer.
	Signer chain.Signer
	// Amount is the value to transfer in token base units, typically the
	// net after fee deduction.
	Amount *big.Int
	// ChainOverride forces a network, taking precedence over the
	// invoice's own chain and the registry default.
	ChainOverride string
}

// Result is a successful settlement.
type Result struct {
	TxHash  string
	ChainID string
}

// Executor submits invoice settlements through a chain registry.
type Executor struct {
	chains *chain.Registry
	logger *slog.Logger
}

// NewExecutor creates an Executor over the given registry.
func NewExecutor(chains *chain.Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{chains: chains, logger: logger}
}

// Execute validates req, resolves the target network and broadcasts the
// transfer. Validation and resolution failures carry BroadcastNone; any
// failure once submission starts carries BroadcastUnknown.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	inv := req.Invoice
	if inv == nil || !inv.Settleable() {
		return nil, &Error{Broadcast: BroadcastNone, Cause: ErrIncompleteInvoice}
	}
	if req.Signer == nil {
		return nil, &Error{Broadcast: BroadcastNone, Cause: errors.New("settlement: nil signer")}
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, &Error{Broadcast: BroadcastNone, Cause: ErrInvalidAmount}
	}

	client, err := e.chains.Resolve(req.ChainOverride, inv.ChainID)
	if err != nil {
		return nil, &Error{Broadcast: BroadcastNone, Cause: err}
	}

	e.logger.Info("submitting settlement",
		"invoice_id", inv.ID,
		"chain_id", client.ChainID(),
		"token", inv.TokenAddress,
		"payee", inv.PayeeAddress,
	)

	txHash, err := client.Transfer(ctx, chain.TransferRequest{
		Signer:       req.Signer,
		TokenAddress: inv.TokenAddress,
		To:           inv.PayeeAddress,
		Amount:       req.Amount,
	})
	if err != nil {
		// The node may have accepted the transaction before the call
		// failed; without confirmation we cannot assume it did not.
		e.logger.Error("settlement submission failed",
			"invoice_id", inv.ID,
			"chain_id", client.ChainID(),
			"tx_hash", txHash,
			"error", err,
		)
		return nil, &Error{Broadcast: BroadcastUnknown, TxHash: txHash, Cause: err}
	}

	e.logger.Info("settlement broadcast",
		"invoice_id", inv.ID,
		"chain_id", client.ChainID(),
		"tx_hash", txHash,
	)
	return &Result{TxHash: txHash, ChainID: client.ChainID()}, nil
}

// Confirm reports whether txHash is known to the given chain. It is used
// after a BroadcastUnknown failure to decide whether retrying is safe.
func (e *Executor) Confirm(ctx context.Context, chainID, txHash string) (bool, error) {
	client, err := e.chains.Get(chainID)
	if err != nil {
		return false, err
	}
	return client.TransactionExists(ctx, txHash)
}
