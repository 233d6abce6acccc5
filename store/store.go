package store

import (
	"context"
	"time"

	"github.com/xraph/settle/accesstoken"
	"github.com/xraph/settle/entry"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payable"
	"github.com/xraph/settle/rate"
	"github.com/xraph/settle/types"
)

// Store is the unified storage interface for all Settle entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Invoice methods. UpdateInvoice is conditional on the invoice not
	// being paid: paid invoices are immutable and drivers refuse the
	// write atomically. SetInvoiceRate attaches a valuation snapshot,
	// write-once, to an invoice recorded without one.
	CreateInvoice(ctx context.Context, inv *invoice.Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error)
	ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error
	MarkInvoicePaid(ctx context.Context, invID id.InvoiceID, txHash string, snapshot *rate.Snapshot, paidAt time.Time) error
	SetInvoiceRate(ctx context.Context, invID id.InvoiceID, snapshot *rate.Snapshot) error
	UpdateInvoiceOwner(ctx context.Context, invID id.InvoiceID, owner types.Owner) error

	// Payable methods
	CreatePayable(ctx context.Context, p *payable.Payable) error
	GetPayable(ctx context.Context, pblID id.PayableID) (*payable.Payable, error)
	ListPayables(ctx context.Context, opts payable.ListOpts) ([]*payable.Payable, error)
	UpdatePayable(ctx context.Context, p *payable.Payable) error
	UpdatePayableOwner(ctx context.Context, pblID id.PayableID, owner types.Owner) error

	// Access token methods
	CreateAccessToken(ctx context.Context, t *accesstoken.Token) error
	GetAccessToken(ctx context.Context, token string) (*accesstoken.Token, error)
	ListAccessTokens(ctx context.Context, invID id.InvoiceID) ([]*accesstoken.Token, error)
	ConsumeAccessToken(ctx context.Context, token, usedBy string, usedAt time.Time) error

	// Ledger entry methods
	UpsertEntry(ctx context.Context, e *entry.Entry) error
	GetEntryBySource(ctx context.Context, src entry.Source) (*entry.Entry, error)
	ListEntries(ctx context.Context, opts entry.ListOpts) ([]*entry.Entry, error)

	// Membership methods. GetMembership returns the organization a user
	// belongs to, or the nil ID when the user acts as an individual.
	GetMembership(ctx context.Context, userID id.UserID) (id.OrganizationID, error)
	SetMembership(ctx context.Context, userID id.UserID, orgID id.OrganizationID) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
