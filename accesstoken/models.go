// Package accesstoken models single-use tokens that grant a non-authenticated
// recipient the right to view and pay one invoice.
package accesstoken

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

// DefaultTTL is the validity window for newly issued tokens.
const DefaultTTL = 30 * 24 * time.Hour

// tokenBytes is the raw entropy per token; 32 bytes is well above the
// 128-bit minimum the payment-link threat model requires.
const tokenBytes = 32

// Token is an invoice access grant. Records are never deleted — consumed and
// expired tokens are kept for audit.
type Token struct {
	types.Entity
	ID             id.AccessTokenID  `json:"id"`
	Token          string            `json:"token"`
	InvoiceID      id.InvoiceID      `json:"invoice_id"`
	RecipientEmail string            `json:"recipient_email,omitempty"`
	IssuerID       id.UserID         `json:"issuer_id"`
	OrganizationID id.OrganizationID `json:"organization_id,omitempty"`
	ExpiresAt      time.Time         `json:"expires_at"`
	Used           bool              `json:"used"`
	UsedAt         *time.Time        `json:"used_at,omitempty"`
	UsedBy         string            `json:"used_by,omitempty"`
}

// New mints a Token for the given invoice with fresh random token material
// and the provided validity window.
func New(invoiceID id.InvoiceID, recipientEmail string, issuerID id.UserID, orgID id.OrganizationID, ttl time.Duration) *Token {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Token{
		Entity:         types.NewEntity(),
		ID:             id.NewAccessTokenID(),
		Token:          generate(),
		InvoiceID:      invoiceID,
		RecipientEmail: recipientEmail,
		IssuerID:       issuerID,
		OrganizationID: orgID,
		ExpiresAt:      time.Now().UTC().Add(ttl),
	}
}

// Expired reports whether the token is past its validity window at now.
func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// generate returns hex-encoded random token material.
func generate() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; an error here
		// means the process cannot continue safely.
		panic("accesstoken: entropy source unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
