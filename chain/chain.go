// Package chain abstracts the blockchain networks settlement executes on.
//
// A Client is a thin submission surface over one network; the Registry maps
// chain identifiers to clients and resolves which network a given payment
// should use.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// ErrUnknownChain is returned when no client is registered for a chain id.
var ErrUnknownChain = errors.New("chain: unknown chain")

// Signer authorizes outbound transfers. Implementations hold key material;
// the engine only ever sees this interface.
type Signer interface {
	// Address returns the signer's on-chain address in the chain's
	// canonical encoding.
	Address() string
}

// TransferRequest describes a single token transfer to submit.
type TransferRequest struct {
	// Signer authorizes and funds the transfer.
	Signer Signer
	// TokenAddress is the token contract to move.
	TokenAddress string
	// To is the recipient address.
	To string
	// Amount is the transfer value in the token's base units.
	Amount *big.Int
}

// Client submits transfers to one blockchain network.
type Client interface {
	// ChainID returns the network identifier this client is bound to.
	ChainID() string

	// Transfer broadcasts a token transfer and returns its transaction
	// hash. A returned error does not guarantee the transaction was not
	// broadcast; callers distinguish pre- and post-broadcast failures.
	Transfer(ctx context.Context, req TransferRequest) (txHash string, err error)

	// TransactionExists reports whether the network knows txHash, pending
	// or mined. Used to confirm outcome after an ambiguous submission.
	TransactionExists(ctx context.Context, txHash string) (bool, error)
}

// Registry holds the configured chain clients and the default network.
type Registry struct {
	mu        sync.RWMutex
	clients   map[string]Client
	defaultID string
}

// NewRegistry creates a Registry. The first registered client becomes the
// default unless SetDefault is called.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds a client under its own chain id.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[c.ChainID()] = c
	if r.defaultID == "" {
		r.defaultID = c.ChainID()
	}
}

// SetDefault sets the network used when neither the caller nor the document
// names one.
func (r *Registry) SetDefault(chainID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.defaultID = chainID
}

// DefaultChainID returns the configured default network identifier.
func (r *Registry) DefaultChainID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.defaultID
}

// Get returns the client for chainID.
func (r *Registry) Get(chainID string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChain, chainID)
	}
	return c, nil
}

// Resolve picks the network for a payment: the caller's override wins, then
// the document's own chain, then the registry default.
func (r *Registry) Resolve(override, documentChain string) (Client, error) {
	r.mu.RLock()
	defaultID := r.defaultID
	r.mu.RUnlock()

	chainID := defaultID
	if documentChain != "" {
		chainID = documentChain
	}
	if override != "" {
		chainID = override
	}
	if chainID == "" {
		return nil, fmt.Errorf("%w: no chain specified and no default configured", ErrUnknownChain)
	}
	return r.Get(chainID)
}
