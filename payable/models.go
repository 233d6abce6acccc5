package payable

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPaid      Status = "paid"
	StatusVoid      Status = "void"
)

// Payable is a bill owed by the owner, mirrored into the ledger as a
// payable-direction entry. Amounts are fiat-side decimals rather than token
// base units: payables may settle off-chain.
type Payable struct {
	types.Entity
	ID       id.PayableID `json:"id"`
	Number   string       `json:"number"`
	IssuerID id.UserID    `json:"issuer_id"`
	Owner    types.Owner  `json:"owner"`
	Status   Status       `json:"status"`

	VendorName  string `json:"vendor_name,omitempty"`
	VendorEmail string `json:"vendor_email,omitempty"`

	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`

	DueDate *time.Time `json:"due_date,omitempty"`
	PaidAt  *time.Time `json:"paid_at,omitempty"`
	TxHash  string     `json:"tx_hash,omitempty"`
	Memo    string     `json:"memo,omitempty"`
}
