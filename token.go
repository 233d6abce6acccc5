package settle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/settle/accesstoken"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
)

// Identity is the caller on whose behalf an invoice is accessed. A zero
// Identity is an anonymous payment-link visitor.
type Identity struct {
	UserID id.UserID
	Email  string
}

// IsAnonymous reports whether the identity carries no authenticated user.
func (i Identity) IsAnonymous() bool { return i.UserID.IsNil() }

// Authorizer decides whether an identity may access an invoice without a
// token. The default allows the issuer and members of the owning
// organization.
type Authorizer interface {
	CanAccess(ctx context.Context, identity Identity, inv *invoice.Invoice) (bool, error)
}

// AuthorizerFunc adapts a plain function to an Authorizer.
type AuthorizerFunc func(ctx context.Context, identity Identity, inv *invoice.Invoice) (bool, error)

// CanAccess implements Authorizer.
func (f AuthorizerFunc) CanAccess(ctx context.Context, identity Identity, inv *invoice.Invoice) (bool, error) {
	return f(ctx, identity, inv)
}

// IssueAccessToken mints a single-use token granting its bearer access to
// one invoice for the configured validity window. The issuing user must be
// authorized for the invoice; minting a link is granting access, so it is
// gated the same way direct access is.
func (e *Engine) IssueAccessToken(ctx context.Context, invID id.InvoiceID, recipientEmail string, issuerID id.UserID) (*accesstoken.Token, error) {
	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if err := e.AuthorizeInvoiceAccess(ctx, Identity{UserID: issuerID}, inv); err != nil {
		return nil, err
	}

	orgID, err := e.store.GetMembership(ctx, issuerID)
	if err != nil {
		return nil, err
	}

	t := accesstoken.New(invID, recipientEmail, issuerID, orgID, e.tokenTTL)
	if err := e.store.CreateAccessToken(ctx, t); err != nil {
		return nil, err
	}

	e.plugins.EmitTokenIssued(ctx, t)
	e.logger.Info("access token issued",
		"invoice_id", invID,
		"token_id", t.ID,
		"expires_at", t.ExpiresAt,
	)
	return t, nil
}

// AccessLink builds the shareable payment URL for a token.
func (e *Engine) AccessLink(t *accesstoken.Token) string {
	base := strings.TrimSuffix(e.accessBaseURL, "/")
	return fmt.Sprintf("%s/pay/%s?token=%s", base, t.InvoiceID, t.Token)
}

// ValidateAccessToken checks a bearer token and returns it with the invoice
// it grants access to. Expired tokens return ErrTokenExpired, consumed ones
// ErrTokenUsed; validation never consumes the token.
func (e *Engine) ValidateAccessToken(ctx context.Context, token string) (*accesstoken.Token, *invoice.Invoice, error) {
	t, err := e.store.GetAccessToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if t.Expired(time.Now().UTC()) {
		return nil, nil, ErrTokenExpired
	}
	if t.Used {
		return nil, nil, ErrTokenUsed
	}

	inv, err := e.store.GetInvoice(ctx, t.InvoiceID)
	if err != nil {
		return nil, nil, err
	}
	return t, inv, nil
}

// ConsumeAccessToken marks a token used. Concurrent consumers resolve to
// exactly one winner; the losers observe ErrTokenUsed.
func (e *Engine) ConsumeAccessToken(ctx context.Context, token, usedBy string) error {
	t, err := e.store.GetAccessToken(ctx, token)
	if err != nil {
		return err
	}
	if t.Expired(time.Now().UTC()) {
		return ErrTokenExpired
	}

	if err := e.store.ConsumeAccessToken(ctx, token, usedBy, time.Now().UTC()); err != nil {
		return err
	}

	e.plugins.EmitTokenConsumed(ctx, t)
	return nil
}

// ListAccessTokens returns every token ever issued for an invoice, consumed
// and expired ones included.
func (e *Engine) ListAccessTokens(ctx context.Context, invID id.InvoiceID) ([]*accesstoken.Token, error) {
	return e.store.ListAccessTokens(ctx, invID)
}

// AuthorizeInvoiceAccess decides whether identity may view inv without a
// bearer token: the issuer always may, organization members may for
// organization-owned invoices, and a configured Authorizer can extend or
// restrict this further.
func (e *Engine) AuthorizeInvoiceAccess(ctx context.Context, identity Identity, inv *invoice.Invoice) error {
	if e.authorizer != nil {
		ok, err := e.authorizer.CanAccess(ctx, identity, inv)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnauthorized
		}
		return nil
	}

	if identity.IsAnonymous() {
		return ErrUnauthorized
	}
	if identity.UserID.String() == inv.IssuerID.String() {
		return nil
	}
	if inv.Owner.IsOrganization() {
		orgID, err := e.store.GetMembership(ctx, identity.UserID)
		if err != nil {
			return err
		}
		if !orgID.IsNil() && orgID.String() == inv.Owner.ID().String() {
			return nil
		}
	}
	return ErrUnauthorized
}
