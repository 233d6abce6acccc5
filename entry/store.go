package entry

import (
	"context"

	"github.com/xraph/settle/id"
	"github.com/xraph/settle/types"
)

type Store interface {
	// Upsert writes the entry keyed by its Source; an existing entry for
	// the same source document is replaced, never duplicated.
	Upsert(ctx context.Context, e *Entry) error
	GetBySource(ctx context.Context, src Source) (*Entry, error)
	List(ctx context.Context, opts ListOpts) ([]*Entry, error)
}

type ListOpts struct {
	Owner     types.Owner
	Direction Direction
	AfterID   id.LedgerEntryID
	Limit     int
}
