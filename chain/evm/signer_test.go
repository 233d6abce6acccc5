package evm

import (
	"strings"
	"testing"
)

// Well-known throwaway dev key (hardhat account #0).
const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestNewSigner(t *testing.T) {
	s, err := NewSigner(devKey)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	if got := s.Address(); got != "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266" {
		t.Errorf("address: got %s", got)
	}
}

func TestNewSignerHexPrefix(t *testing.T) {
	a, err := NewSigner(devKey)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSigner("0x" + devKey)
	if err != nil {
		t.Fatal(err)
	}
	if a.Address() != b.Address() {
		t.Error("0x-prefixed key should parse to the same address")
	}
}

func TestNewSignerInvalid(t *testing.T) {
	for _, key := range []string{"", "zz", strings.Repeat("0", 10)} {
		if _, err := NewSigner(key); err == nil {
			t.Errorf("NewSigner(%q) should fail", key)
		}
	}
}
