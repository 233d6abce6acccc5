package settle

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/settle/entry"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payable"
	"github.com/xraph/settle/types"
)

// syncPageSize is the batch size for the stable-ID paging sync walks with.
const syncPageSize = 100

// Failure records one document a sync pass could not process.
type Failure struct {
	DocumentID id.ID  `json:"document_id"`
	Kind       string `json:"kind"`
	Reason     string `json:"reason"`
}

// Report summarizes one ledger sync pass.
type Report struct {
	Processed int           `json:"processed"`
	Fixed     int           `json:"fixed"`
	Failed    []Failure     `json:"failed,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Counts returns the processed, fixed and failed document counts.
func (r *Report) Counts() (processed, fixed, failed int) {
	return r.Processed, r.Fixed, len(r.Failed)
}

// SyncLedger walks every invoice and payable, materializes its normalized
// ledger entry and repairs ownership drift. One bad document never stops
// the pass: its failure is recorded in the report and the walk continues.
func (e *Engine) SyncLedger(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: time.Now().UTC()}

	if err := e.syncInvoices(ctx, report); err != nil {
		return nil, err
	}
	if err := e.syncPayables(ctx, report); err != nil {
		return nil, err
	}

	report.Elapsed = time.Since(report.StartedAt)

	e.plugins.EmitSyncCompleted(ctx, report)
	e.logger.Info("ledger sync completed",
		"processed", report.Processed,
		"fixed", report.Fixed,
		"failed", len(report.Failed),
		"elapsed", report.Elapsed,
	)
	return report, nil
}

func (e *Engine) syncInvoices(ctx context.Context, report *Report) error {
	var after id.InvoiceID
	for {
		page, err := e.store.ListInvoices(ctx, invoice.ListOpts{AfterID: after, Limit: syncPageSize})
		if err != nil {
			return fmt.Errorf("sync: list invoices: %w", err)
		}
		if len(page) == 0 {
			return nil
		}

		for _, inv := range page {
			report.Processed++
			if err := e.syncInvoice(ctx, inv, report); err != nil {
				report.Failed = append(report.Failed, Failure{
					DocumentID: inv.ID,
					Kind:       string(entry.SourceInvoice),
					Reason:     err.Error(),
				})
			}
		}
		after = page[len(page)-1].ID
	}
}

func (e *Engine) syncInvoice(ctx context.Context, inv *invoice.Invoice, report *Report) error {
	owner := inv.Owner
	if !inv.IssuerID.IsNil() {
		expected, err := e.resolveOwner(ctx, inv.IssuerID)
		if err != nil {
			return err
		}
		if !owner.Equal(expected) {
			if err := e.store.UpdateInvoiceOwner(ctx, inv.ID, expected); err != nil {
				return err
			}
			owner = expected
			report.Fixed++
			e.plugins.EmitDriftRepaired(ctx, inv.ID.String(), "owner")
			e.logger.Info("repaired invoice ownership drift",
				"invoice_id", inv.ID,
				"owner", expected,
			)
		}
	}

	return e.upsertInvoiceEntry(ctx, inv, owner)
}

// upsertInvoiceEntry materializes the receivable entry for an invoice. It is
// shared by the sync walk and by payment recording, which refreshes the
// entry as soon as the invoice turns paid.
func (e *Engine) upsertInvoiceEntry(ctx context.Context, inv *invoice.Invoice, owner types.Owner) error {
	amount, currency := invoiceValue(inv)

	return e.store.UpsertEntry(ctx, &entry.Entry{
		ID:    id.NewLedgerEntryID(),
		Owner: owner,
		Source: entry.Source{
			Kind:       entry.SourceInvoice,
			DocumentID: inv.ID,
		},
		Direction:         entry.DirectionReceivable,
		Amount:            amount,
		Currency:          currency,
		Status:            string(inv.Status),
		CounterpartyName:  inv.ClientName,
		CounterpartyEmail: inv.ClientEmail,
		LastSyncedAt:      time.Now().UTC(),
	})
}

func (e *Engine) syncPayables(ctx context.Context, report *Report) error {
	var after id.PayableID
	for {
		page, err := e.store.ListPayables(ctx, payable.ListOpts{AfterID: after, Limit: syncPageSize})
		if err != nil {
			return fmt.Errorf("sync: list payables: %w", err)
		}
		if len(page) == 0 {
			return nil
		}

		for _, p := range page {
			report.Processed++
			if err := e.syncPayable(ctx, p, report); err != nil {
				report.Failed = append(report.Failed, Failure{
					DocumentID: p.ID,
					Kind:       string(entry.SourcePayable),
					Reason:     err.Error(),
				})
			}
		}
		after = page[len(page)-1].ID
	}
}

func (e *Engine) syncPayable(ctx context.Context, p *payable.Payable, report *Report) error {
	owner := p.Owner
	if !p.IssuerID.IsNil() {
		expected, err := e.resolveOwner(ctx, p.IssuerID)
		if err != nil {
			return err
		}
		if !owner.Equal(expected) {
			if err := e.store.UpdatePayableOwner(ctx, p.ID, expected); err != nil {
				return err
			}
			owner = expected
			report.Fixed++
			e.plugins.EmitDriftRepaired(ctx, p.ID.String(), "owner")
			e.logger.Info("repaired payable ownership drift",
				"payable_id", p.ID,
				"owner", expected,
			)
		}
	}

	return e.store.UpsertEntry(ctx, &entry.Entry{
		ID:    id.NewLedgerEntryID(),
		Owner: owner,
		Source: entry.Source{
			Kind:       entry.SourcePayable,
			DocumentID: p.ID,
		},
		Direction:         entry.DirectionPayable,
		Amount:            p.Amount,
		Currency:          p.Currency,
		Status:            string(p.Status),
		CounterpartyName:  p.VendorName,
		CounterpartyEmail: p.VendorEmail,
		LastSyncedAt:      time.Now().UTC(),
	})
}

// invoiceValue picks the amount an invoice contributes to the ledger: the
// locked fiat valuation when one exists, the token-denominated total
// otherwise.
func invoiceValue(inv *invoice.Invoice) (decimal.Decimal, string) {
	if inv.ExchangeRate != nil {
		return inv.ExchangeRate.Converted, inv.ExchangeRate.ToCurrency
	}
	amount, err := decimal.NewFromString(inv.Total.Format())
	if err != nil {
		amount = decimal.Zero
	}
	return amount, inv.Currency
}
