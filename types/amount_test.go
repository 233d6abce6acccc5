package types

import (
	"encoding/json"
	"math/big"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		decimals uint8
		want     string // expected base units
	}{
		{"whole tokens", "100", 6, "100000000"},
		{"fractional", "1.5", 6, "1500000"},
		{"full precision", "0.000001", 6, "1"},
		{"eighteen decimals", "1", 18, "1000000000000000000"},
		{"leading dot", ".5", 2, "50"},
		{"trailing dot", "5.", 2, "500"},
		{"negative", "-2.25", 2, "-225"},
		{"zero", "0", 18, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAmount(tt.input, tt.decimals)
			if err != nil {
				t.Fatalf("ParseAmount(%q, %d) failed: %v", tt.input, tt.decimals, err)
			}
			if got := a.BaseUnits().String(); got != tt.want {
				t.Errorf("base units: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseAmountErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		decimals uint8
	}{
		{"empty", "", 6},
		{"too many fractional digits", "1.1234567", 6},
		{"not a number", "abc", 6},
		{"double dot", "1.2.3", 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAmount(tt.input, tt.decimals); err == nil {
				t.Errorf("expected error for %q, got nil", tt.input)
			}
		})
	}
}

func TestAmountFormat(t *testing.T) {
	tests := []struct {
		name     string
		base     int64
		decimals uint8
		want     string
	}{
		{"whole", 100000000, 6, "100"},
		{"fractional", 1500000, 6, "1.5"},
		{"sub-unit", 1, 6, "0.000001"},
		{"trimmed zeros", 1500000000000000000, 18, "1.5"},
		{"zero", 0, 18, "0"},
		{"negative", -225, 2, "-2.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAmountFromInt64(tt.base, tt.decimals)
			if got := a.Format(); got != tt.want {
				t.Errorf("Format: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAmountRoundTrip(t *testing.T) {
	inputs := []struct {
		s        string
		decimals uint8
	}{
		{"123.456", 6},
		{"0.000000000000000001", 18},
		{"98.5", 2},
	}

	for _, in := range inputs {
		a, err := ParseAmount(in.s, in.decimals)
		if err != nil {
			t.Fatalf("parse %q: %v", in.s, err)
		}
		back, err := ParseAmount(a.Format(), in.decimals)
		if err != nil {
			t.Fatalf("reparse %q: %v", a.Format(), err)
		}
		if !a.Equal(back) {
			t.Errorf("round-trip mismatch for %q: %s != %s", in.s, a, back)
		}
	}
}

func TestAmountArithmetic(t *testing.T) {
	a := NewAmountFromInt64(100, 6)
	b := NewAmountFromInt64(250, 6)

	if got := a.Add(b).BaseUnits().Int64(); got != 350 {
		t.Errorf("Add: got %d, want 350", got)
	}
	if got := b.Subtract(a).BaseUnits().Int64(); got != 150 {
		t.Errorf("Subtract: got %d, want 150", got)
	}
	if a.Cmp(b) != -1 || b.Cmp(a) != 1 || a.Cmp(a) != 0 {
		t.Error("Cmp ordering wrong")
	}
}

func TestAmountScaleMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for decimals mismatch")
		}
	}()

	_ = NewAmountFromInt64(1, 6).Add(NewAmountFromInt64(1, 18))
}

func TestAmountZeroValue(t *testing.T) {
	var a Amount

	if !a.IsZero() {
		t.Error("zero-value Amount should be zero")
	}
	if a.BaseUnits().Sign() != 0 {
		t.Error("zero-value Amount should have zero base units")
	}
	if a.Format() != "0" {
		t.Errorf("zero-value Amount should format as 0, got %q", a.Format())
	}
}

func TestAmountJSON(t *testing.T) {
	original := NewAmount(big.NewInt(1500000), 6)

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored Amount
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !restored.Equal(original) {
		t.Errorf("round-trip mismatch: %s != %s", restored, original)
	}
}
