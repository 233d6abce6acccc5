// Package entry models the normalized ledger entries materialized from
// invoices and payables for organization-level reporting.
package entry

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

// Direction classifies an entry as money owed to the owner or by the owner.
type Direction string

const (
	DirectionReceivable Direction = "receivable"
	DirectionPayable    Direction = "payable"
)

// SourceKind identifies the document an entry was materialized from.
type SourceKind string

const (
	SourceInvoice SourceKind = "invoice"
	SourcePayable SourceKind = "payable"
)

// Source references the document an entry derives from. Entries are keyed by
// source, so re-running a sync upserts rather than duplicates.
type Source struct {
	Kind       SourceKind `json:"kind"`
	DocumentID id.ID      `json:"document_id"`
}

type Entry struct {
	types.Entity
	ID        id.LedgerEntryID `json:"id"`
	Owner     types.Owner      `json:"owner"`
	Source    Source           `json:"source"`
	Direction Direction        `json:"direction"`

	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`

	CounterpartyName  string `json:"counterparty_name,omitempty"`
	CounterpartyEmail string `json:"counterparty_email,omitempty"`

	LastSyncedAt time.Time `json:"last_synced_at"`
}
