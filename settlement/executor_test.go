package settlement

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/xraph/settle/chain"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
)

type fakeSigner struct{}

func (fakeSigner) Address() string { return "0xsigner" }

type fakeClient struct {
	id          string
	txHash      string
	transferErr error
	exists      bool

	gotReq chain.TransferRequest
}

func (c *fakeClient) ChainID() string { return c.id }

func (c *fakeClient) Transfer(_ context.Context, req chain.TransferRequest) (string, error) {
	c.gotReq = req
	return c.txHash, c.transferErr
}

func (c *fakeClient) TransactionExists(context.Context, string) (bool, error) {
	return c.exists, nil
}

func settleableInvoice() *invoice.Invoice {
	return &invoice.Invoice{
		ID:            id.NewInvoiceID(),
		TokenAddress:  "0xtoken",
		TokenDecimals: 18,
		PayeeAddress:  "0xpayee",
		ChainID:       "42220",
	}
}

func newExecutor(clients ...chain.Client) *Executor {
	r := chain.NewRegistry()
	for _, c := range clients {
		r.Register(c)
	}
	return NewExecutor(r, nil)
}

func TestExecute(t *testing.T) {
	client := &fakeClient{id: "42220", txHash: "0xabc"}
	e := newExecutor(client)

	res, err := e.Execute(context.Background(), Request{
		Invoice: settleableInvoice(),
		Signer:  fakeSigner{},
		Amount:  big.NewInt(9850),
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.TxHash != "0xabc" || res.ChainID != "42220" {
		t.Errorf("result: %+v", res)
	}
	if client.gotReq.To != "0xpayee" || client.gotReq.TokenAddress != "0xtoken" {
		t.Errorf("transfer request: %+v", client.gotReq)
	}
	if client.gotReq.Amount.Cmp(big.NewInt(9850)) != 0 {
		t.Errorf("amount: got %s", client.gotReq.Amount)
	}
}

func TestExecuteChainOverride(t *testing.T) {
	celo := &fakeClient{id: "42220", txHash: "0xcelo"}
	eth := &fakeClient{id: "1", txHash: "0xeth"}
	e := newExecutor(celo, eth)

	res, err := e.Execute(context.Background(), Request{
		Invoice:       settleableInvoice(), // invoice names 42220
		Signer:        fakeSigner{},
		Amount:        big.NewInt(1),
		ChainOverride: "1",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.ChainID != "1" {
		t.Errorf("override ignored, settled on %s", res.ChainID)
	}
}

func TestExecuteValidation(t *testing.T) {
	e := newExecutor(&fakeClient{id: "42220"})

	incomplete := settleableInvoice()
	incomplete.PayeeAddress = ""

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{
			name: "nil invoice",
			req:  Request{Signer: fakeSigner{}, Amount: big.NewInt(1)},
			want: ErrIncompleteInvoice,
		},
		{
			name: "missing payee",
			req:  Request{Invoice: incomplete, Signer: fakeSigner{}, Amount: big.NewInt(1)},
			want: ErrIncompleteInvoice,
		},
		{
			name: "zero amount",
			req:  Request{Invoice: settleableInvoice(), Signer: fakeSigner{}, Amount: big.NewInt(0)},
			want: ErrInvalidAmount,
		},
		{
			name: "nil amount",
			req:  Request{Invoice: settleableInvoice(), Signer: fakeSigner{}},
			want: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Execute(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			var se *Error
			if !errors.As(err, &se) {
				t.Fatal("expected *settlement.Error")
			}
			if se.Broadcast != BroadcastNone {
				t.Errorf("validation failure should be BroadcastNone, got %s", se.Broadcast)
			}
			if !se.Retryable() {
				t.Error("pre-broadcast failure should be retryable")
			}
		})
	}
}

func TestExecuteUnknownChain(t *testing.T) {
	e := newExecutor(&fakeClient{id: "42220"})

	inv := settleableInvoice()
	inv.ChainID = "137"

	_, err := e.Execute(context.Background(), Request{
		Invoice: inv, Signer: fakeSigner{}, Amount: big.NewInt(1),
	})
	if !errors.Is(err, chain.ErrUnknownChain) {
		t.Fatalf("got %v, want ErrUnknownChain", err)
	}
	var se *Error
	if !errors.As(err, &se) || se.Broadcast != BroadcastNone {
		t.Error("resolution failure should be BroadcastNone")
	}
}

func TestExecuteBroadcastFailure(t *testing.T) {
	client := &fakeClient{id: "42220", txHash: "0xmaybe", transferErr: errors.New("rpc timeout")}
	e := newExecutor(client)

	_, err := e.Execute(context.Background(), Request{
		Invoice: settleableInvoice(), Signer: fakeSigner{}, Amount: big.NewInt(1),
	})
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *settlement.Error, got %v", err)
	}
	if se.Broadcast != BroadcastUnknown {
		t.Errorf("submission failure should be BroadcastUnknown, got %s", se.Broadcast)
	}
	if se.TxHash != "0xmaybe" {
		t.Errorf("tx hash not carried: %q", se.TxHash)
	}
	if se.Retryable() {
		t.Error("BroadcastUnknown must not be retryable without confirmation")
	}
}

func TestConfirm(t *testing.T) {
	client := &fakeClient{id: "42220", exists: true}
	e := newExecutor(client)

	found, err := e.Confirm(context.Background(), "42220", "0xabc")
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if !found {
		t.Error("expected transaction to be found")
	}

	if _, err := e.Confirm(context.Background(), "1", "0xabc"); !errors.Is(err, chain.ErrUnknownChain) {
		t.Errorf("got %v, want ErrUnknownChain", err)
	}
}
