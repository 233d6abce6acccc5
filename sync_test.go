package settle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	settle "github.com/xraph/settle"
	"github.com/xraph/settle/chain"
	"github.com/xraph/settle/entry"
	"github.com/xraph/settle/fee"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/payable"
	"github.com/xraph/settle/store"
	"github.com/xraph/settle/store/memory"
	"github.com/xraph/settle/types"
)

func TestSyncLedgerMaterializesEntries(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	issuer := id.NewUserID()
	inv := testInvoice()
	inv.IssuerID = issuer
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	p := &payable.Payable{
		Number:     "BILL-001",
		IssuerID:   issuer,
		VendorName: "Hosting Inc",
		Amount:     decimal.NewFromInt(120),
		Currency:   "USD",
	}
	if err := eng.CreatePayable(ctx, p); err != nil {
		t.Fatalf("CreatePayable: %v", err)
	}

	report, err := eng.SyncLedger(ctx)
	if err != nil {
		t.Fatalf("SyncLedger: %v", err)
	}
	if report.Processed != 2 {
		t.Fatalf("processed = %d, want 2", report.Processed)
	}
	if len(report.Failed) != 0 {
		t.Fatalf("failed = %v, want none", report.Failed)
	}

	entries, err := st.ListEntries(ctx, entry.ListOpts{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(entries))
	}

	byKind := map[entry.SourceKind]*entry.Entry{}
	for _, e := range entries {
		byKind[e.Source.Kind] = e
	}

	rec := byKind[entry.SourceInvoice]
	if rec == nil || rec.Direction != entry.DirectionReceivable {
		t.Fatalf("invoice entry = %+v, want receivable", rec)
	}
	if rec.CounterpartyName != "Acme Corp" {
		t.Fatalf("counterparty = %q, want Acme Corp", rec.CounterpartyName)
	}

	pay := byKind[entry.SourcePayable]
	if pay == nil || pay.Direction != entry.DirectionPayable {
		t.Fatalf("payable entry = %+v, want payable", pay)
	}
	if pay.Amount.String() != "120" {
		t.Fatalf("payable amount = %s, want 120", pay.Amount)
	}
}

func TestSyncLedgerIdempotent(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	inv := testInvoice()
	inv.IssuerID = id.NewUserID()
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := eng.SyncLedger(ctx); err != nil {
			t.Fatalf("SyncLedger #%d: %v", i+1, err)
		}
	}

	entries, err := st.ListEntries(ctx, entry.ListOpts{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entry count = %d, want 1 after repeated syncs", len(entries))
	}
}

func TestSyncRepairsOwnerDrift(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	issuer := id.NewUserID()
	inv := testInvoice()
	inv.IssuerID = issuer
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	// The issuer joins an organization after the invoice was created:
	// the stored individual owner is now stale.
	orgID := id.NewOrganizationID()
	if err := st.SetMembership(ctx, issuer, orgID); err != nil {
		t.Fatalf("SetMembership: %v", err)
	}

	report, err := eng.SyncLedger(ctx)
	if err != nil {
		t.Fatalf("SyncLedger: %v", err)
	}
	if report.Fixed != 1 {
		t.Fatalf("fixed = %d, want 1", report.Fixed)
	}

	got, err := eng.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if !got.Owner.Equal(types.OrganizationOwner(orgID)) {
		t.Fatalf("owner = %v, want organization %s", got.Owner, orgID)
	}

	ent, err := st.GetEntryBySource(ctx, entry.Source{
		Kind:       entry.SourceInvoice,
		DocumentID: inv.ID,
	})
	if err != nil {
		t.Fatalf("GetEntryBySource: %v", err)
	}
	if !ent.Owner.Equal(types.OrganizationOwner(orgID)) {
		t.Fatalf("entry owner = %v, want organization %s", ent.Owner, orgID)
	}

	// A second pass finds nothing left to fix.
	report, err = eng.SyncLedger(ctx)
	if err != nil {
		t.Fatalf("SyncLedger: %v", err)
	}
	if report.Fixed != 0 {
		t.Fatalf("fixed = %d, want 0", report.Fixed)
	}
}

// upsertFailStore fails entry upserts for one document to exercise
// per-document failure isolation.
type upsertFailStore struct {
	store.Store
	failDoc id.ID
}

func (s *upsertFailStore) UpsertEntry(ctx context.Context, e *entry.Entry) error {
	if e.Source.DocumentID.String() == s.failDoc.String() {
		return errors.New("simulated write failure")
	}
	return s.Store.UpsertEntry(ctx, e)
}

func TestSyncFailureIsolation(t *testing.T) {
	ctx := context.Background()

	mem := memory.New()
	bad := testInvoice()
	good := testInvoice()
	good.Number = "INV-002"

	wrapped := &upsertFailStore{Store: mem}
	client := &fakeClient{chainID: "42220"}
	reg := chain.NewRegistry()
	reg.Register(client)
	eng := settle.New(wrapped,
		settle.WithChainRegistry(reg),
		settle.WithFeePolicy(fee.Policy{BasisPoints: 150}),
	)

	if err := eng.CreateInvoice(ctx, bad); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if err := eng.CreateInvoice(ctx, good); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	wrapped.failDoc = bad.ID

	report, err := eng.SyncLedger(ctx)
	if err != nil {
		t.Fatalf("SyncLedger: %v", err)
	}
	if report.Processed != 2 {
		t.Fatalf("processed = %d, want 2", report.Processed)
	}
	if len(report.Failed) != 1 {
		t.Fatalf("failed = %v, want exactly 1", report.Failed)
	}
	if report.Failed[0].DocumentID.String() != bad.ID.String() {
		t.Fatalf("failed document = %s, want %s", report.Failed[0].DocumentID, bad.ID)
	}

	// The healthy document still synced.
	if _, err := mem.GetEntryBySource(ctx, entry.Source{
		Kind:       entry.SourceInvoice,
		DocumentID: good.ID,
	}); err != nil {
		t.Fatalf("GetEntryBySource: %v", err)
	}
}
