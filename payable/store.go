package payable

import (
	"context"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

type Store interface {
	Create(ctx context.Context, p *Payable) error
	Get(ctx context.Context, pblID id.PayableID) (*Payable, error)
	List(ctx context.Context, opts ListOpts) ([]*Payable, error)
	Update(ctx context.Context, p *Payable) error
	UpdateOwner(ctx context.Context, pblID id.PayableID, owner types.Owner) error
}

type ListOpts struct {
	Status  Status
	Owner   types.Owner
	AfterID id.PayableID
	Limit   int
}
