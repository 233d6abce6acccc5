package settle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/settle/chain"
	"github.com/xraph/settle/fee"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/rate"
	"github.com/xraph/settle/settlement"
)

// PayRequest describes one payment to execute and record.
type PayRequest struct {
	InvoiceID id.InvoiceID

	// Signer funds the transfer; the engine default is used when nil.
	Signer chain.Signer

	// ChainOverride forces the target network, beating the invoice's own
	// chain and the registry default.
	ChainOverride string

	// FiatCurrency for the locked valuation; the locker default when empty.
	FiatCurrency string

	// AccessToken, when set, is consumed after the payment is recorded.
	AccessToken string

	// PaidBy identifies who triggered the payment, for the audit trail.
	PaidBy string
}

// PreviewFee computes the platform fee split for an invoice without touching
// the chain, using the same floor arithmetic the settlement contract
// applies on-chain.
func (e *Engine) PreviewFee(ctx context.Context, invID id.InvoiceID) (fee.Split, error) {
	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return fee.Split{}, err
	}
	split, err := e.feePolicy.ComputeSplit(inv.Total.BaseUnits())
	if err != nil {
		return fee.Split{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return split, nil
}

// Pay settles an invoice on-chain and records the payment. The flow is:
// validate, compute the fee split, lock the exchange rate, broadcast the net
// transfer, then record exactly once. A repeat call for an invoice already
// paid with the same transaction returns the recorded invoice.
func (e *Engine) Pay(ctx context.Context, req PayRequest) (*invoice.Invoice, error) {
	inv, err := e.store.GetInvoice(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv.IsPaid() {
		return nil, ErrAlreadyPaid
	}
	if inv.Status == invoice.StatusVoid {
		return nil, ErrInvoiceVoided
	}
	if !inv.Settleable() {
		return nil, ErrIncompleteInvoice
	}

	split, err := e.feePolicy.ComputeSplit(inv.Total.BaseUnits())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	signer := req.Signer
	if signer == nil {
		signer = e.signer
	}

	// The rate is locked before anything touches the chain: under
	// RateRequired an unavailable rate must abort the payment, and aborting
	// after broadcast would strand an unrecorded transfer.
	snapshot, err := e.lockRate(ctx, inv, req.FiatCurrency)
	if err != nil {
		return nil, err
	}

	res, err := e.executor.Execute(ctx, settlement.Request{
		Invoice:       inv,
		Signer:        signer,
		Amount:        split.Net,
		ChainOverride: req.ChainOverride,
	})
	if err != nil {
		e.plugins.EmitSettlementFailed(ctx, inv, err)
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}
	e.plugins.EmitSettlementSubmitted(ctx, inv, res.TxHash, res.ChainID)

	recorded, err := e.RecordPayment(ctx, req.InvoiceID, res.TxHash, snapshot, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if req.AccessToken != "" {
		// Best effort: a consumption failure never rolls back a recorded
		// payment.
		if err := e.ConsumeAccessToken(ctx, req.AccessToken, req.PaidBy); err != nil {
			e.logger.Warn("access token consumption failed after payment",
				"invoice_id", inv.ID,
				"error", err,
			)
		}
	}
	e.invalidateAccessTokens(ctx, inv.ID, req.PaidBy)

	return recorded, nil
}

// invalidateAccessTokens consumes every remaining unused token for a paid
// invoice, best-effort. A paid invoice has no further use for payment links.
func (e *Engine) invalidateAccessTokens(ctx context.Context, invID id.InvoiceID, usedBy string) {
	tokens, err := e.store.ListAccessTokens(ctx, invID)
	if err != nil {
		e.logger.Warn("token invalidation listing failed", "invoice_id", invID, "error", err)
		return
	}
	now := time.Now().UTC()
	for _, t := range tokens {
		if t.Used || t.Expired(now) {
			continue
		}
		if err := e.store.ConsumeAccessToken(ctx, t.Token, usedBy, now); err != nil && !errors.Is(err, ErrTokenUsed) {
			e.logger.Warn("token invalidation failed",
				"invoice_id", invID,
				"token_id", t.ID,
				"error", err,
			)
		}
	}
}

// RecordPayment durably marks an invoice paid, exactly once. Retrying with
// the txHash already recorded is idempotent and returns the stored invoice;
// a different txHash against a paid invoice is a conflict and is never
// overwritten.
func (e *Engine) RecordPayment(ctx context.Context, invID id.InvoiceID, txHash string, snapshot *rate.Snapshot, paidAt time.Time) (*invoice.Invoice, error) {
	if txHash == "" {
		return nil, fmt.Errorf("%w: empty transaction hash", ErrInvalidInput)
	}

	err := e.store.MarkInvoicePaid(ctx, invID, txHash, snapshot, paidAt)
	if err == nil {
		inv, err := e.store.GetInvoice(ctx, invID)
		if err != nil {
			return nil, err
		}
		e.plugins.EmitPaymentRecorded(ctx, inv)

		// Refresh the ledger entry immediately; the next sync pass would
		// catch it anyway, so a failure here only costs freshness.
		if err := e.upsertInvoiceEntry(ctx, inv, inv.Owner); err != nil {
			e.logger.Warn("ledger entry refresh failed after payment",
				"invoice_id", inv.ID,
				"error", err,
			)
		}
		return inv, nil
	}
	if !errors.Is(err, ErrAlreadyPaid) {
		return nil, err
	}

	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if inv.TxHash == txHash {
		// Idempotent retry of a payment already recorded.
		return inv, nil
	}

	e.plugins.EmitPaymentConflict(ctx, inv, txHash)
	return nil, fmt.Errorf("%w: invoice %s paid by %s, got %s",
		ErrConflictingPayment, invID, inv.TxHash, txHash)
}

// lockRate freezes the fiat valuation of the invoice total. Under
// RateBestEffort a resolution failure yields a nil snapshot; under
// RateRequired it is an error.
func (e *Engine) lockRate(ctx context.Context, inv *invoice.Invoice, fiatCurrency string) (*rate.Snapshot, error) {
	if e.rates == nil {
		return nil, nil
	}

	amount, err := decimal.NewFromString(inv.Total.Format())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}

	snapshot, err := e.rates.Lock(ctx, amount, inv.Currency, fiatCurrency)
	if err != nil {
		e.plugins.EmitRateUnavailable(ctx, inv.Currency, err)
		if e.ratePolicy == RateRequired {
			return nil, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
		}
		return nil, nil
	}

	e.plugins.EmitRateLocked(ctx, snapshot)
	return snapshot, nil
}

// BackfillRates locks valuations for paid invoices recorded without one.
// It returns the number of invoices updated; per-invoice failures are
// logged and skipped so one bad pair cannot stall the rest.
func (e *Engine) BackfillRates(ctx context.Context, limit int) (int, error) {
	if e.rates == nil {
		return 0, nil
	}

	invoices, err := e.store.ListInvoices(ctx, invoice.ListOpts{
		MissingRate: true,
		Limit:       limit,
	})
	if err != nil {
		return 0, err
	}

	filled := 0
	for _, inv := range invoices {
		amount, err := decimal.NewFromString(inv.Total.Format())
		if err != nil {
			e.logger.Warn("rate backfill skipped invoice", "invoice_id", inv.ID, "error", err)
			continue
		}
		snapshot, err := e.rates.Lock(ctx, amount, inv.Currency, "")
		if err != nil {
			e.logger.Warn("rate backfill skipped invoice", "invoice_id", inv.ID, "error", err)
			continue
		}

		if err := e.store.SetInvoiceRate(ctx, inv.ID, snapshot); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				// Lost a race with Pay locking its own rate; nothing to do.
				continue
			}
			e.logger.Warn("rate backfill update failed", "invoice_id", inv.ID, "error", err)
			continue
		}
		e.plugins.EmitRateLocked(ctx, snapshot)
		filled++
	}
	return filled, nil
}

// InvoiceValuation returns the fiat valuation of record for an invoice: the
// locked snapshot when one exists, a freshly resolved spot valuation
// otherwise. Spot valuations are not persisted.
func (e *Engine) InvoiceValuation(ctx context.Context, invID id.InvoiceID) (*rate.Snapshot, error) {
	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if inv.ExchangeRate != nil {
		return inv.ExchangeRate, nil
	}
	if e.rates == nil {
		return nil, ErrRateUnavailable
	}

	amount, err := decimal.NewFromString(inv.Total.Format())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	snapshot, err := e.rates.Lock(ctx, amount, inv.Currency, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	return snapshot, nil
}
