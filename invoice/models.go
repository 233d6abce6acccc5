package invoice

import (
	"time"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/rate"
	"github.com/xraph/settle/types"
)

type Status string

const (
	StatusDraft           Status = "draft"
	StatusSent            Status = "sent"
	StatusPendingApproval Status = "pending_approval"
	StatusPaid            Status = "paid"
	StatusVoid            Status = "void"
)

type Invoice struct {
	types.Entity
	ID       id.InvoiceID `json:"id"`
	Number   string       `json:"number"`
	IssuerID id.UserID    `json:"issuer_id"`
	Owner    types.Owner  `json:"owner"`
	Status   Status       `json:"status"`

	ClientName  string `json:"client_name,omitempty"`
	ClientEmail string `json:"client_email,omitempty"`

	// Settlement fields. Total is denominated in base units of the token
	// at TokenAddress.
	Total         types.Amount `json:"total"`
	Currency      string       `json:"currency"` // token symbol, e.g. "USDC"
	TokenAddress  string       `json:"token_address"`
	TokenDecimals uint8        `json:"token_decimals"`
	PayeeAddress  string       `json:"payee_address"`
	ChainID       string       `json:"chain_id,omitempty"`

	// Payment evidence. TxHash is set only when Status is paid.
	// ExchangeRate is the valuation locked at payment time and is
	// immutable once set.
	TxHash       string         `json:"tx_hash,omitempty"`
	ExchangeRate *rate.Snapshot `json:"exchange_rate,omitempty"`
	PaidAt       *time.Time     `json:"paid_at,omitempty"`

	IssueDate time.Time  `json:"issue_date"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Memo      string     `json:"memo,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Settleable reports whether the invoice carries every field a token
// transfer needs.
func (i *Invoice) Settleable() bool {
	return i.TokenAddress != "" && i.PayeeAddress != "" && i.TokenDecimals > 0
}

// IsPaid reports whether the invoice has reached its terminal paid state.
func (i *Invoice) IsPaid() bool { return i.Status == StatusPaid }
