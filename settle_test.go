package settle_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	settle "github.com/xraph/settle"
	"github.com/xraph/settle/chain"
	"github.com/xraph/settle/fee"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payable"
	"github.com/xraph/settle/rate"
	"github.com/xraph/settle/store/memory"
	"github.com/xraph/settle/types"
)

type fakeSigner struct{ addr string }

func (s fakeSigner) Address() string { return s.addr }

// fakeClient is an in-memory chain.Client that records transfers.
type fakeClient struct {
	chainID string

	mu        sync.Mutex
	transfers []chain.TransferRequest
	err       error
}

func (c *fakeClient) ChainID() string { return c.chainID }

func (c *fakeClient) Transfer(_ context.Context, req chain.TransferRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.transfers = append(c.transfers, req)
	return fmt.Sprintf("0xtx%04d", len(c.transfers)), nil
}

func (c *fakeClient) TransactionExists(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (c *fakeClient) transferCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.transfers)
}

func newTestEngine(t *testing.T, opts ...settle.Option) (*settle.Engine, *memory.Store, *fakeClient) {
	t.Helper()

	st := memory.New()
	client := &fakeClient{chainID: "42220"}
	reg := chain.NewRegistry()
	reg.Register(client)

	base := []settle.Option{
		settle.WithChainRegistry(reg),
		settle.WithSigner(fakeSigner{addr: "0x1111111111111111111111111111111111111111"}),
		settle.WithFeePolicy(fee.Policy{BasisPoints: 150}),
	}
	eng := settle.New(st, append(base, opts...)...)
	return eng, st, client
}

func testInvoice() *invoice.Invoice {
	return &invoice.Invoice{
		Number:        "INV-001",
		ClientName:    "Acme Corp",
		ClientEmail:   "billing@acme.test",
		Total:         types.NewAmountFromInt64(1_000_000, 6),
		Currency:      "USDC",
		TokenAddress:  "0x765DE816845861e75A25fCA122bb6898B8B1282a",
		TokenDecimals: 6,
		PayeeAddress:  "0x2222222222222222222222222222222222222222",
		ChainID:       "42220",
	}
}

func fixedRateLocker(r float64) *rate.Locker {
	return rate.NewLocker(rate.SourceFunc(
		func(_ context.Context, _, _ string) (decimal.Decimal, error) {
			return decimal.NewFromFloat(r), nil
		},
	))
}

func sourceErr(err error) *rate.Locker {
	return rate.NewLocker(rate.SourceFunc(
		func(_ context.Context, _, _ string) (decimal.Decimal, error) {
			return decimal.Zero, err
		},
	))
}

func TestStartStop(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := eng.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestCreateInvoiceDefaults(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	issuer := id.NewUserID()
	inv := testInvoice()
	inv.IssuerID = issuer

	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if inv.ID.IsNil() {
		t.Fatal("expected an ID to be assigned")
	}
	if inv.Status != invoice.StatusDraft {
		t.Fatalf("status = %q, want draft", inv.Status)
	}
	if inv.IssueDate.IsZero() {
		t.Fatal("expected an issue date to be assigned")
	}

	// With no organization membership the issuer owns the invoice.
	if !inv.Owner.Equal(types.IndividualOwner(issuer)) {
		t.Fatalf("owner = %v, want individual %s", inv.Owner, issuer)
	}

	got, err := eng.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.Number != "INV-001" {
		t.Fatalf("number = %q, want INV-001", got.Number)
	}
}

func TestCreateInvoiceOrganizationOwner(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	issuer := id.NewUserID()
	orgID := id.NewOrganizationID()
	if err := st.SetMembership(ctx, issuer, orgID); err != nil {
		t.Fatalf("SetMembership: %v", err)
	}

	inv := testInvoice()
	inv.IssuerID = issuer
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	if !inv.Owner.Equal(types.OrganizationOwner(orgID)) {
		t.Fatalf("owner = %v, want organization %s", inv.Owner, orgID)
	}
}

func TestUpdateInvoicePaidImmutable(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	inv := testInvoice()
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if _, err := eng.Pay(ctx, settle.PayRequest{InvoiceID: inv.ID}); err != nil {
		t.Fatalf("Pay: %v", err)
	}

	inv.Memo = "updated after payment"
	err := eng.UpdateInvoice(ctx, inv)
	if !settle.IsConflict(err) {
		t.Fatalf("UpdateInvoice after payment: got %v, want conflict", err)
	}
}

func TestUpdateInvoiceStaleCopyCannotRevertPayment(t *testing.T) {
	eng, _, _ := newTestEngine(t, settle.WithRateLocker(fixedRateLocker(1.0)))
	ctx := context.Background()

	inv := testInvoice()
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	// Snapshot the invoice as a concurrent editor would see it, then let a
	// payment land before the editor writes back.
	stale, err := eng.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	paid, err := eng.Pay(ctx, settle.PayRequest{InvoiceID: inv.ID})
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}

	stale.Memo = "stale edit"
	err = eng.UpdateInvoice(ctx, stale)
	if !errors.Is(err, settle.ErrAlreadyPaid) {
		t.Fatalf("UpdateInvoice stale copy: got %v, want ErrAlreadyPaid", err)
	}

	// The payment evidence survives the rejected write.
	got, err := eng.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if !got.IsPaid() {
		t.Fatalf("status = %q, want paid", got.Status)
	}
	if got.TxHash != paid.TxHash {
		t.Fatalf("tx hash = %q, want %q", got.TxHash, paid.TxHash)
	}
	if got.ExchangeRate == nil {
		t.Fatal("expected the locked rate to survive")
	}
	if got.Memo == "stale edit" {
		t.Fatal("stale write must not land")
	}
}

func TestCreatePayableDefaults(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	issuer := id.NewUserID()
	p := &payable.Payable{
		Number:     "BILL-007",
		IssuerID:   issuer,
		VendorName: "Hosting Inc",
		Amount:     decimal.NewFromInt(120),
		Currency:   "USD",
	}
	if err := eng.CreatePayable(ctx, p); err != nil {
		t.Fatalf("CreatePayable: %v", err)
	}
	if p.ID.IsNil() {
		t.Fatal("expected an ID to be assigned")
	}
	if p.Status != payable.StatusDraft {
		t.Fatalf("status = %q, want draft", p.Status)
	}
	if !p.Owner.Equal(types.IndividualOwner(issuer)) {
		t.Fatalf("owner = %v, want individual %s", p.Owner, issuer)
	}
}
