package postgres

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/grove"

	"github.com/xraph/settle/accesstoken"
	"github.com/xraph/settle/entry"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payable"
	"github.com/xraph/settle/rate"
	"github.com/xraph/settle/types"
)

// ==================== Invoice models ====================

type invoiceModel struct {
	grove.BaseModel `grove:"table:settle_invoices"`

	ID        string `grove:"id,pk"`
	Number    string `grove:"number"`
	IssuerID  string `grove:"issuer_id"`
	OwnerKind string `grove:"owner_kind"`
	OwnerID   string `grove:"owner_id"`
	Status    string `grove:"status"`

	ClientName  string `grove:"client_name"`
	ClientEmail string `grove:"client_email"`

	// Total is a NUMERIC base-unit string; token amounts exceed BIGINT.
	Total         string `grove:"total"`
	Currency      string `grove:"currency"`
	TokenAddress  string `grove:"token_address"`
	TokenDecimals uint8  `grove:"token_decimals"`
	PayeeAddress  string `grove:"payee_address"`
	ChainID       string `grove:"chain_id"`

	TxHash       string          `grove:"tx_hash"`
	ExchangeRate json.RawMessage `grove:"exchange_rate,type:jsonb"`
	PaidAt       *time.Time      `grove:"paid_at"`

	IssueDate time.Time  `grove:"issue_date"`
	DueDate   *time.Time `grove:"due_date"`
	Memo      string     `grove:"memo"`

	Metadata  map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt time.Time         `grove:"created_at"`
	UpdatedAt time.Time         `grove:"updated_at"`
}

func marshalSnapshot(s *rate.Snapshot) json.RawMessage {
	if s == nil {
		return nil
	}
	raw, _ := json.Marshal(s) //nolint:errcheck // fixed field set
	return raw
}

func unmarshalSnapshot(raw json.RawMessage) (*rate.Snapshot, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s rate.Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("settle/postgres: exchange rate: %w", err)
	}
	return &s, nil
}

func toOwnerFields(o types.Owner) (kind, ownerID string) {
	if o.IsZero() {
		return "", ""
	}
	return string(o.Kind()), o.ID().String()
}

func fromOwnerFields(kind, ownerID string) (types.Owner, error) {
	if kind == "" {
		return types.Owner{}, nil
	}
	oid, err := id.ParseAny(ownerID)
	if err != nil {
		return types.Owner{}, fmt.Errorf("settle/postgres: owner id: %w", err)
	}
	switch types.OwnerKind(kind) {
	case types.OwnerIndividual:
		return types.IndividualOwner(oid), nil
	case types.OwnerOrganization:
		return types.OrganizationOwner(oid), nil
	}
	return types.Owner{}, fmt.Errorf("settle/postgres: unknown owner kind %q", kind)
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	kind, ownerID := toOwnerFields(inv.Owner)
	return &invoiceModel{
		ID:            inv.ID.String(),
		Number:        inv.Number,
		IssuerID:      inv.IssuerID.String(),
		OwnerKind:     kind,
		OwnerID:       ownerID,
		Status:        string(inv.Status),
		ClientName:    inv.ClientName,
		ClientEmail:   inv.ClientEmail,
		Total:         inv.Total.BaseUnits().String(),
		Currency:      inv.Currency,
		TokenAddress:  inv.TokenAddress,
		TokenDecimals: inv.TokenDecimals,
		PayeeAddress:  inv.PayeeAddress,
		ChainID:       inv.ChainID,
		TxHash:        inv.TxHash,
		ExchangeRate:  marshalSnapshot(inv.ExchangeRate),
		PaidAt:        inv.PaidAt,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		Memo:          inv.Memo,
		Metadata:      inv.Metadata,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: invoice id: %w", err)
	}
	owner, err := fromOwnerFields(m.OwnerKind, m.OwnerID)
	if err != nil {
		return nil, err
	}
	snapshot, err := unmarshalSnapshot(m.ExchangeRate)
	if err != nil {
		return nil, err
	}

	var issuerID id.UserID
	if m.IssuerID != "" {
		issuerID, err = id.ParseUserID(m.IssuerID)
		if err != nil {
			return nil, fmt.Errorf("settle/postgres: issuer id: %w", err)
		}
	}

	baseUnits, ok := new(big.Int).SetString(m.Total, 10)
	if !ok {
		return nil, fmt.Errorf("settle/postgres: invoice total %q not an integer", m.Total)
	}

	return &invoice.Invoice{
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:            invID,
		Number:        m.Number,
		IssuerID:      issuerID,
		Owner:         owner,
		Status:        invoice.Status(m.Status),
		ClientName:    m.ClientName,
		ClientEmail:   m.ClientEmail,
		Total:         types.NewAmount(baseUnits, m.TokenDecimals),
		Currency:      m.Currency,
		TokenAddress:  m.TokenAddress,
		TokenDecimals: m.TokenDecimals,
		PayeeAddress:  m.PayeeAddress,
		ChainID:       m.ChainID,
		TxHash:        m.TxHash,
		ExchangeRate:  snapshot,
		PaidAt:        m.PaidAt,
		IssueDate:     m.IssueDate,
		DueDate:       m.DueDate,
		Memo:          m.Memo,
		Metadata:      m.Metadata,
	}, nil
}

// ==================== Payable models ====================

type payableModel struct {
	grove.BaseModel `grove:"table:settle_payables"`

	ID        string `grove:"id,pk"`
	Number    string `grove:"number"`
	IssuerID  string `grove:"issuer_id"`
	OwnerKind string `grove:"owner_kind"`
	OwnerID   string `grove:"owner_id"`
	Status    string `grove:"status"`

	VendorName  string `grove:"vendor_name"`
	VendorEmail string `grove:"vendor_email"`

	Amount   string `grove:"amount"`
	Currency string `grove:"currency"`

	DueDate *time.Time `grove:"due_date"`
	PaidAt  *time.Time `grove:"paid_at"`
	TxHash  string     `grove:"tx_hash"`
	Memo    string     `grove:"memo"`

	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toPayableModel(p *payable.Payable) *payableModel {
	kind, ownerID := toOwnerFields(p.Owner)
	return &payableModel{
		ID:          p.ID.String(),
		Number:      p.Number,
		IssuerID:    p.IssuerID.String(),
		OwnerKind:   kind,
		OwnerID:     ownerID,
		Status:      string(p.Status),
		VendorName:  p.VendorName,
		VendorEmail: p.VendorEmail,
		Amount:      p.Amount.String(),
		Currency:    p.Currency,
		DueDate:     p.DueDate,
		PaidAt:      p.PaidAt,
		TxHash:      p.TxHash,
		Memo:        p.Memo,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPayableModel(m *payableModel) (*payable.Payable, error) {
	pblID, err := id.ParsePayableID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: payable id: %w", err)
	}
	owner, err := fromOwnerFields(m.OwnerKind, m.OwnerID)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: payable amount: %w", err)
	}

	var issuerID id.UserID
	if m.IssuerID != "" {
		issuerID, err = id.ParseUserID(m.IssuerID)
		if err != nil {
			return nil, fmt.Errorf("settle/postgres: issuer id: %w", err)
		}
	}

	return &payable.Payable{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:          pblID,
		Number:      m.Number,
		IssuerID:    issuerID,
		Owner:       owner,
		Status:      payable.Status(m.Status),
		VendorName:  m.VendorName,
		VendorEmail: m.VendorEmail,
		Amount:      amount,
		Currency:    m.Currency,
		DueDate:     m.DueDate,
		PaidAt:      m.PaidAt,
		TxHash:      m.TxHash,
		Memo:        m.Memo,
	}, nil
}

// ==================== Access token models ====================

type accessTokenModel struct {
	grove.BaseModel `grove:"table:settle_access_tokens"`

	ID             string     `grove:"id,pk"`
	Token          string     `grove:"token"`
	InvoiceID      string     `grove:"invoice_id"`
	RecipientEmail string     `grove:"recipient_email"`
	IssuerID       string     `grove:"issuer_id"`
	OrganizationID string     `grove:"organization_id"`
	ExpiresAt      time.Time  `grove:"expires_at"`
	Used           bool       `grove:"used"`
	UsedAt         *time.Time `grove:"used_at"`
	UsedBy         string     `grove:"used_by"`
	CreatedAt      time.Time  `grove:"created_at"`
	UpdatedAt      time.Time  `grove:"updated_at"`
}

func toAccessTokenModel(t *accesstoken.Token) *accessTokenModel {
	return &accessTokenModel{
		ID:             t.ID.String(),
		Token:          t.Token,
		InvoiceID:      t.InvoiceID.String(),
		RecipientEmail: t.RecipientEmail,
		IssuerID:       t.IssuerID.String(),
		OrganizationID: t.OrganizationID.String(),
		ExpiresAt:      t.ExpiresAt,
		Used:           t.Used,
		UsedAt:         t.UsedAt,
		UsedBy:         t.UsedBy,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func fromAccessTokenModel(m *accessTokenModel) (*accesstoken.Token, error) {
	tokID, err := id.ParseAccessTokenID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: token id: %w", err)
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: token invoice id: %w", err)
	}

	var issuerID id.UserID
	if m.IssuerID != "" {
		issuerID, err = id.ParseUserID(m.IssuerID)
		if err != nil {
			return nil, fmt.Errorf("settle/postgres: token issuer id: %w", err)
		}
	}
	var orgID id.OrganizationID
	if m.OrganizationID != "" {
		orgID, err = id.ParseOrganizationID(m.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("settle/postgres: token organization id: %w", err)
		}
	}

	return &accesstoken.Token{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             tokID,
		Token:          m.Token,
		InvoiceID:      invID,
		RecipientEmail: m.RecipientEmail,
		IssuerID:       issuerID,
		OrganizationID: orgID,
		ExpiresAt:      m.ExpiresAt,
		Used:           m.Used,
		UsedAt:         m.UsedAt,
		UsedBy:         m.UsedBy,
	}, nil
}

// ==================== Ledger entry models ====================

type entryModel struct {
	grove.BaseModel `grove:"table:settle_ledger_entries"`

	ID         string `grove:"id,pk"`
	OwnerKind  string `grove:"owner_kind"`
	OwnerID    string `grove:"owner_id"`
	SourceKind string `grove:"source_kind"`
	SourceID   string `grove:"source_id"`
	Direction  string `grove:"direction"`

	Amount   string `grove:"amount"`
	Currency string `grove:"currency"`
	Status   string `grove:"status"`

	CounterpartyName  string `grove:"counterparty_name"`
	CounterpartyEmail string `grove:"counterparty_email"`

	LastSyncedAt time.Time `grove:"last_synced_at"`
	CreatedAt    time.Time `grove:"created_at"`
	UpdatedAt    time.Time `grove:"updated_at"`
}

func toEntryModel(e *entry.Entry) *entryModel {
	kind, ownerID := toOwnerFields(e.Owner)
	return &entryModel{
		ID:                e.ID.String(),
		OwnerKind:         kind,
		OwnerID:           ownerID,
		SourceKind:        string(e.Source.Kind),
		SourceID:          e.Source.DocumentID.String(),
		Direction:         string(e.Direction),
		Amount:            e.Amount.String(),
		Currency:          e.Currency,
		Status:            e.Status,
		CounterpartyName:  e.CounterpartyName,
		CounterpartyEmail: e.CounterpartyEmail,
		LastSyncedAt:      e.LastSyncedAt,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func fromEntryModel(m *entryModel) (*entry.Entry, error) {
	entID, err := id.ParseLedgerEntryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: entry id: %w", err)
	}
	owner, err := fromOwnerFields(m.OwnerKind, m.OwnerID)
	if err != nil {
		return nil, err
	}
	srcID, err := id.ParseAny(m.SourceID)
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: entry source id: %w", err)
	}
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return nil, fmt.Errorf("settle/postgres: entry amount: %w", err)
	}

	return &entry.Entry{
		Entity:            types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                entID,
		Owner:             owner,
		Source:            entry.Source{Kind: entry.SourceKind(m.SourceKind), DocumentID: srcID},
		Direction:         entry.Direction(m.Direction),
		Amount:            amount,
		Currency:          m.Currency,
		Status:            m.Status,
		CounterpartyName:  m.CounterpartyName,
		CounterpartyEmail: m.CounterpartyEmail,
		LastSyncedAt:      m.LastSyncedAt,
	}, nil
}

// ==================== Membership models ====================

type membershipModel struct {
	grove.BaseModel `grove:"table:settle_memberships"`

	ID             string    `grove:"id,pk"` // user id
	OrganizationID string    `grove:"organization_id"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}
