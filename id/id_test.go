package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/settle/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"InvoiceID", id.NewInvoiceID, "inv_"},
		{"PayableID", id.NewPayableID, "pbl_"},
		{"AccessTokenID", id.NewAccessTokenID, "tok_"},
		{"LedgerEntryID", id.NewLedgerEntryID, "led_"},
		{"UserID", id.NewUserID, "usr_"},
		{"OrganizationID", id.NewOrganizationID, "org_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixInvoice)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixInvoice {
		t.Errorf("expected prefix %q, got %q", id.PrefixInvoice, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"InvoiceID", id.NewInvoiceID, id.ParseInvoiceID},
		{"PayableID", id.NewPayableID, id.ParsePayableID},
		{"AccessTokenID", id.NewAccessTokenID, id.ParseAccessTokenID},
		{"LedgerEntryID", id.NewLedgerEntryID, id.ParseLedgerEntryID},
		{"UserID", id.NewUserID, id.ParseUserID},
		{"OrganizationID", id.NewOrganizationID, id.ParseOrganizationID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseInvoiceID rejects pbl_", id.NewPayableID().String(), id.ParseInvoiceID},
		{"ParsePayableID rejects tok_", id.NewAccessTokenID().String(), id.ParsePayableID},
		{"ParseAccessTokenID rejects led_", id.NewLedgerEntryID().String(), id.ParseAccessTokenID},
		{"ParseLedgerEntryID rejects usr_", id.NewUserID().String(), id.ParseLedgerEntryID},
		{"ParseUserID rejects org_", id.NewOrganizationID().String(), id.ParseUserID},
		{"ParseOrganizationID rejects inv_", id.NewInvoiceID().String(), id.ParseOrganizationID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parseFn(tt.input)
			if err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseAny(t *testing.T) {
	ids := []id.ID{
		id.NewInvoiceID(),
		id.NewPayableID(),
		id.NewAccessTokenID(),
		id.NewLedgerEntryID(),
		id.NewUserID(),
		id.NewOrganizationID(),
	}

	for _, original := range ids {
		parsed, err := id.ParseAny(original.String())
		if err != nil {
			t.Fatalf("ParseAny(%q) failed: %v", original.String(), err)
		}
		if parsed.String() != original.String() {
			t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"no separator", "invoice"},
		{"bad suffix", "inv_notvalid!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := id.Parse(tt.input); err == nil {
				t.Errorf("expected error parsing %q, got nil", tt.input)
			}
		})
	}
}

func TestNilID(t *testing.T) {
	var nilID id.ID

	if !nilID.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if nilID.String() != "" {
		t.Errorf("nil ID should stringify to empty, got %q", nilID.String())
	}
	if nilID.Prefix() != "" {
		t.Errorf("nil ID should have empty prefix, got %q", nilID.Prefix())
	}
}

func TestTextMarshaling(t *testing.T) {
	original := id.NewInvoiceID()

	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if err := restored.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if restored.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", restored.String(), original.String())
	}

	var empty id.ID
	if err := empty.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !empty.IsNil() {
		t.Error("unmarshaling empty text should produce nil ID")
	}
}

func TestSQLValueScan(t *testing.T) {
	original := id.NewLedgerEntryID()

	v, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", scanned.String(), original.String())
	}

	var nilID id.ID
	nv, err := nilID.Value()
	if err != nil {
		t.Fatalf("Value on nil ID failed: %v", err)
	}
	if nv != nil {
		t.Errorf("nil ID should Value() to NULL, got %v", nv)
	}

	var fromNull id.ID
	if err := fromNull.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !fromNull.IsNil() {
		t.Error("scanning NULL should produce nil ID")
	}
}
