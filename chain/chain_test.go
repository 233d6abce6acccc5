package chain

import (
	"context"
	"errors"
	"testing"
)

type stubClient struct {
	id string
}

func (c *stubClient) ChainID() string { return c.id }

func (c *stubClient) Transfer(context.Context, TransferRequest) (string, error) {
	return "0xstub", nil
}

func (c *stubClient) TransactionExists(context.Context, string) (bool, error) {
	return false, nil
}

func TestRegistryResolve(t *testing.T) {
	celo := &stubClient{id: "42220"}
	eth := &stubClient{id: "1"}

	r := NewRegistry()
	r.Register(celo)
	r.Register(eth)

	tests := []struct {
		name          string
		override      string
		documentChain string
		want          string
		wantErr       bool
	}{
		{name: "default when nothing specified", want: "42220"},
		{name: "document chain beats default", documentChain: "1", want: "1"},
		{name: "override beats document chain", override: "42220", documentChain: "1", want: "42220"},
		{name: "unregistered chain", documentChain: "137", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := r.Resolve(tt.override, tt.documentChain)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownChain) {
					t.Fatalf("got %v, want ErrUnknownChain", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if c.ChainID() != tt.want {
				t.Errorf("resolved %s, want %s", c.ChainID(), tt.want)
			}
		})
	}
}

func TestRegistryFirstClientIsDefault(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubClient{id: "1"})
	r.Register(&stubClient{id: "42220"})

	if got := r.DefaultChainID(); got != "1" {
		t.Errorf("default: got %s, want 1", got)
	}

	r.SetDefault("42220")
	if got := r.DefaultChainID(); got != "42220" {
		t.Errorf("default after SetDefault: got %s, want 42220", got)
	}
}

func TestRegistryEmptyResolve(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Resolve("", ""); !errors.Is(err, ErrUnknownChain) {
		t.Fatalf("got %v, want ErrUnknownChain", err)
	}
}
