package invoice

import (
	"context"
	"time"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/rate"
	"github.com/xraph/settle/types"
)

type Store interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	List(ctx context.Context, opts ListOpts) ([]*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error

	// MarkPaid transitions the invoice to paid only if it is not already
	// paid (single-document compare-and-swap). Implementations must report
	// a no-op via ErrAlreadyPaid so callers can distinguish an idempotent
	// retry from a double settlement.
	MarkPaid(ctx context.Context, invID id.InvoiceID, txHash string, snapshot *rate.Snapshot, paidAt time.Time) error

	// UpdateOwner rewrites the ownership fields during drift repair.
	UpdateOwner(ctx context.Context, invID id.InvoiceID, owner types.Owner) error
}

type ListOpts struct {
	Status Status
	Owner  types.Owner

	// MissingRate restricts the listing to paid invoices that carry a
	// txHash but no locked exchange rate snapshot (backfill candidates).
	MissingRate bool

	// AfterID pages with a stable ID ordering; results are sorted by ID
	// ascending and start strictly after this value.
	AfterID id.InvoiceID
	Limit   int
}
