// Package id defines TypeID-based identity types for all Settle entities.
//
// Every entity in Settle uses a single ID struct with a prefix that identifies
// the entity type. IDs are K-sortable (UUIDv7-based), globally unique,
// and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Settle entity types.
const (
	PrefixInvoice      Prefix = "inv" // Invoice
	PrefixPayable      Prefix = "pbl" // Payable
	PrefixAccessToken  Prefix = "tok" // Invoice access token record
	PrefixLedgerEntry  Prefix = "led" // Materialized ledger entry
	PrefixUser         Prefix = "usr" // Individual issuer/payer
	PrefixOrganization Prefix = "org" // Organization
)

// ID is the primary identifier type for all Settle entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "inv_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// InvoiceID is a type-safe identifier for invoices (prefix: "inv").
type InvoiceID = ID

// PayableID is a type-safe identifier for payables (prefix: "pbl").
type PayableID = ID

// AccessTokenID is a type-safe identifier for access token records (prefix: "tok").
type AccessTokenID = ID

// LedgerEntryID is a type-safe identifier for ledger entries (prefix: "led").
type LedgerEntryID = ID

// UserID is a type-safe identifier for individual users (prefix: "usr").
type UserID = ID

// OrganizationID is a type-safe identifier for organizations (prefix: "org").
type OrganizationID = ID

// AnyID is a type alias that accepts any valid prefix.
type AnyID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewInvoiceID generates a new unique invoice ID.
func NewInvoiceID() ID { return New(PrefixInvoice) }

// NewPayableID generates a new unique payable ID.
func NewPayableID() ID { return New(PrefixPayable) }

// NewAccessTokenID generates a new unique access token record ID.
func NewAccessTokenID() ID { return New(PrefixAccessToken) }

// NewLedgerEntryID generates a new unique ledger entry ID.
func NewLedgerEntryID() ID { return New(PrefixLedgerEntry) }

// NewUserID generates a new unique user ID.
func NewUserID() ID { return New(PrefixUser) }

// NewOrganizationID generates a new unique organization ID.
func NewOrganizationID() ID { return New(PrefixOrganization) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseInvoiceID parses a string and validates the "inv" prefix.
func ParseInvoiceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixInvoice) }

// ParsePayableID parses a string and validates the "pbl" prefix.
func ParsePayableID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPayable) }

// ParseAccessTokenID parses a string and validates the "tok" prefix.
func ParseAccessTokenID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAccessToken) }

// ParseLedgerEntryID parses a string and validates the "led" prefix.
func ParseLedgerEntryID(s string) (ID, error) { return ParseWithPrefix(s, PrefixLedgerEntry) }

// ParseUserID parses a string and validates the "usr" prefix.
func ParseUserID(s string) (ID, error) { return ParseWithPrefix(s, PrefixUser) }

// ParseOrganizationID parses a string and validates the "org" prefix.
func ParseOrganizationID(s string) (ID, error) { return ParseWithPrefix(s, PrefixOrganization) }

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
