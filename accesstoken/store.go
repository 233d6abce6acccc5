package accesstoken

import (
	"context"
	"time"

	"github.com/xraph/settle/id"
)

type Store interface {
	Create(ctx context.Context, t *Token) error
	Get(ctx context.Context, token string) (*Token, error)
	ListByInvoice(ctx context.Context, invID id.InvoiceID) ([]*Token, error)

	// Consume flips used=false to used=true as a single conditional
	// update. Under concurrent attempts exactly one caller wins; the rest
	// observe the already-used failure.
	Consume(ctx context.Context, token, usedBy string, usedAt time.Time) error
}
