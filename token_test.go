package settle_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	settle "github.com/xraph/settle"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
)

func TestIssueAndValidateAccessToken(t *testing.T) {
	eng, _, _ := newTestEngine(t,
		settle.WithAccessBaseURL("https://pay.example.com/"),
	)
	ctx := context.Background()

	issuer := id.NewUserID()
	inv := testInvoice()
	inv.IssuerID = issuer
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	tok, err := eng.IssueAccessToken(ctx, inv.ID, "client@acme.test", issuer)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if tok.Token == "" {
		t.Fatal("expected token material")
	}
	if tok.Used {
		t.Fatal("freshly issued token must not be used")
	}

	link := eng.AccessLink(tok)
	want := fmt.Sprintf("https://pay.example.com/pay/%s?token=%s", inv.ID, tok.Token)
	if link != want {
		t.Fatalf("link = %q, want %q", link, want)
	}

	gotTok, gotInv, err := eng.ValidateAccessToken(ctx, tok.Token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if gotTok.ID.String() != tok.ID.String() {
		t.Fatalf("token ID = %s, want %s", gotTok.ID, tok.ID)
	}
	if gotInv.ID.String() != inv.ID.String() {
		t.Fatalf("invoice ID = %s, want %s", gotInv.ID, inv.ID)
	}
}

func TestIssueAccessTokenUnauthorized(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	inv := testInvoice()
	inv.IssuerID = id.NewUserID()
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	// A user unrelated to the invoice cannot mint links to it.
	_, err := eng.IssueAccessToken(ctx, inv.ID, "client@acme.test", id.NewUserID())
	if !errors.Is(err, settle.ErrUnauthorized) {
		t.Fatalf("stranger issuance: got %v, want ErrUnauthorized", err)
	}

	tokens, err := eng.ListAccessTokens(ctx, inv.ID)
	if err != nil {
		t.Fatalf("ListAccessTokens: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("token count = %d, want 0", len(tokens))
	}
}

func TestIssueAccessTokenCustomAuthorizerDenies(t *testing.T) {
	denyAll := settle.AuthorizerFunc(
		func(context.Context, settle.Identity, *invoice.Invoice) (bool, error) {
			return false, nil
		},
	)
	eng, _, _ := newTestEngine(t, settle.WithAuthorizer(denyAll))
	ctx := context.Background()

	inv := testInvoice()
	inv.IssuerID = id.NewUserID()
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	// Even the issuer is subject to a configured authorizer.
	_, err := eng.IssueAccessToken(ctx, inv.ID, "client@acme.test", inv.IssuerID)
	if !errors.Is(err, settle.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}

func TestAccessTokenSingleUse(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	issuer := id.NewUserID()
	inv := testInvoice()
	inv.IssuerID = issuer
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	tok, err := eng.IssueAccessToken(ctx, inv.ID, "client@acme.test", issuer)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	if err := eng.ConsumeAccessToken(ctx, tok.Token, "payer@acme.test"); err != nil {
		t.Fatalf("ConsumeAccessToken: %v", err)
	}

	err = eng.ConsumeAccessToken(ctx, tok.Token, "payer@acme.test")
	if !errors.Is(err, settle.ErrTokenUsed) {
		t.Fatalf("second consume: got %v, want ErrTokenUsed", err)
	}

	// Validation of a consumed token fails without touching it.
	_, _, err = eng.ValidateAccessToken(ctx, tok.Token)
	if !errors.Is(err, settle.ErrTokenUsed) {
		t.Fatalf("validate consumed: got %v, want ErrTokenUsed", err)
	}
}

func TestAccessTokenConcurrentConsume(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	issuer := id.NewUserID()
	inv := testInvoice()
	inv.IssuerID = issuer
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	tok, err := eng.IssueAccessToken(ctx, inv.ID, "client@acme.test", issuer)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = eng.ConsumeAccessToken(ctx, tok.Token, "payer")
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, settle.ErrTokenUsed):
		default:
			t.Fatalf("worker %d: unexpected error %v", i, err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestAccessTokenExpiry(t *testing.T) {
	eng, _, _ := newTestEngine(t, settle.WithTokenTTL(time.Nanosecond))
	ctx := context.Background()

	issuer := id.NewUserID()
	inv := testInvoice()
	inv.IssuerID = issuer
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	tok, err := eng.IssueAccessToken(ctx, inv.ID, "client@acme.test", issuer)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	_, _, err = eng.ValidateAccessToken(ctx, tok.Token)
	if !errors.Is(err, settle.ErrTokenExpired) {
		t.Fatalf("validate expired: got %v, want ErrTokenExpired", err)
	}
	err = eng.ConsumeAccessToken(ctx, tok.Token, "payer")
	if !errors.Is(err, settle.ErrTokenExpired) {
		t.Fatalf("consume expired: got %v, want ErrTokenExpired", err)
	}
}

func TestPayConsumesAccessToken(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	issuer := id.NewUserID()
	inv := testInvoice()
	inv.IssuerID = issuer
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	tok, err := eng.IssueAccessToken(ctx, inv.ID, "client@acme.test", issuer)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	if _, err := eng.Pay(ctx, settle.PayRequest{
		InvoiceID:   inv.ID,
		AccessToken: tok.Token,
		PaidBy:      "client@acme.test",
	}); err != nil {
		t.Fatalf("Pay: %v", err)
	}

	tokens, err := eng.ListAccessTokens(ctx, inv.ID)
	if err != nil {
		t.Fatalf("ListAccessTokens: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("token count = %d, want 1", len(tokens))
	}
	if !tokens[0].Used {
		t.Fatal("expected token to be consumed by payment")
	}
	if tokens[0].UsedBy != "client@acme.test" {
		t.Fatalf("used by = %q, want client@acme.test", tokens[0].UsedBy)
	}
}

func TestPayInvalidatesOutstandingTokens(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	issuer := id.NewUserID()
	inv := testInvoice()
	inv.IssuerID = issuer
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	// Two links were sent out; the payer uses neither.
	for i := 0; i < 2; i++ {
		if _, err := eng.IssueAccessToken(ctx, inv.ID, "client@acme.test", issuer); err != nil {
			t.Fatalf("IssueAccessToken: %v", err)
		}
	}

	if _, err := eng.Pay(ctx, settle.PayRequest{InvoiceID: inv.ID}); err != nil {
		t.Fatalf("Pay: %v", err)
	}

	tokens, err := eng.ListAccessTokens(ctx, inv.ID)
	if err != nil {
		t.Fatalf("ListAccessTokens: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("token count = %d, want 2", len(tokens))
	}
	for _, tok := range tokens {
		if !tok.Used {
			t.Fatalf("token %s still usable after payment", tok.ID)
		}
	}
}

func TestAuthorizeInvoiceAccess(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	issuer := id.NewUserID()
	member := id.NewUserID()
	stranger := id.NewUserID()
	orgID := id.NewOrganizationID()
	if err := st.SetMembership(ctx, issuer, orgID); err != nil {
		t.Fatalf("SetMembership: %v", err)
	}
	if err := st.SetMembership(ctx, member, orgID); err != nil {
		t.Fatalf("SetMembership: %v", err)
	}

	inv := testInvoice()
	inv.IssuerID = issuer
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	cases := []struct {
		name     string
		identity settle.Identity
		wantErr  error
	}{
		{"issuer", settle.Identity{UserID: issuer}, nil},
		{"org member", settle.Identity{UserID: member}, nil},
		{"stranger", settle.Identity{UserID: stranger}, settle.ErrUnauthorized},
		{"anonymous", settle.Identity{}, settle.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := eng.AuthorizeInvoiceAccess(ctx, tc.identity, inv)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestAuthorizeInvoiceAccessCustomAuthorizer(t *testing.T) {
	allowDomain := settle.AuthorizerFunc(
		func(_ context.Context, identity settle.Identity, _ *invoice.Invoice) (bool, error) {
			return strings.HasSuffix(identity.Email, "@acme.test"), nil
		},
	)
	eng, _, _ := newTestEngine(t, settle.WithAuthorizer(allowDomain))
	ctx := context.Background()

	inv := testInvoice()
	if err := eng.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	if err := eng.AuthorizeInvoiceAccess(ctx, settle.Identity{Email: "ap@acme.test"}, inv); err != nil {
		t.Fatalf("expected access for acme.test email, got %v", err)
	}
	err := eng.AuthorizeInvoiceAccess(ctx, settle.Identity{Email: "x@evil.test"}, inv)
	if !errors.Is(err, settle.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}
