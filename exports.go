package settle

import "github.com/xraph/settle/types"

// Re-export common types for convenience so users don't have to import types package.

// Amount is re-exported from types package.
type Amount = types.Amount

// Owner is re-exported from types package.
type Owner = types.Owner

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Amount constructors
var (
	NewAmount          = types.NewAmount
	NewAmountFromInt64 = types.NewAmountFromInt64
	ParseAmount        = types.ParseAmount
	MustParseAmount    = types.MustParseAmount
)

// Re-export Owner constructors
var (
	IndividualOwner   = types.IndividualOwner
	OrganizationOwner = types.OrganizationOwner
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
