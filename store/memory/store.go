// Package memory provides an in-memory Store for tests and embedded use.
// All conditional transitions (MarkInvoicePaid, ConsumeAccessToken) run
// under the write lock, so the compare-and-swap guarantees hold under
// concurrent callers.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/settle"
	"github.com/xraph/settle/accesstoken"
	"github.com/xraph/settle/entry"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/payable"
	"github.com/xraph/settle/rate"
	"github.com/xraph/settle/types"
)

type Store struct {
	mu sync.RWMutex

	// Invoice storage
	invoices map[string]*invoice.Invoice

	// Payable storage
	payables map[string]*payable.Payable

	// Access token storage, keyed by token material
	tokens map[string]*accesstoken.Token

	// Ledger entry storage, keyed by source kind + document id
	entries map[string]*entry.Entry

	// user -> organization membership
	memberships map[string]id.OrganizationID

	closed bool
}

func New() *Store {
	return &Store{
		invoices:    make(map[string]*invoice.Invoice),
		payables:    make(map[string]*payable.Payable),
		tokens:      make(map[string]*accesstoken.Token),
		entries:     make(map[string]*entry.Entry),
		memberships: make(map[string]id.OrganizationID),
	}
}

// Invoice Store implementation

func (s *Store) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return settle.ErrStoreClosed
	}
	if _, exists := s.invoices[inv.ID.String()]; exists {
		return settle.ErrAlreadyExists
	}
	cp := *inv
	s.invoices[inv.ID.String()] = &cp
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inv, ok := s.invoices[invID.String()]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, settle.ErrInvoiceNotFound
}

func (s *Store) ListInvoices(_ context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.Invoice, 0)
	for _, inv := range s.invoices {
		if opts.Status != "" && inv.Status != opts.Status {
			continue
		}
		if !opts.Owner.IsZero() && !inv.Owner.Equal(opts.Owner) {
			continue
		}
		if opts.MissingRate {
			if inv.Status != invoice.StatusPaid || inv.TxHash == "" || inv.ExchangeRate != nil {
				continue
			}
		}
		if !opts.AfterID.IsNil() && inv.ID.String() <= opts.AfterID.String() {
			continue
		}
		cp := *inv
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (s *Store) UpdateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.invoices[inv.ID.String()]
	if !ok {
		return settle.ErrInvoiceNotFound
	}
	// Paid invoices are immutable; the check shares the write lock with
	// MarkInvoicePaid so a racing payment cannot be overwritten.
	if existing.Status == invoice.StatusPaid {
		return settle.ErrAlreadyPaid
	}
	cp := *inv
	cp.Touch()
	s.invoices[inv.ID.String()] = &cp
	return nil
}

func (s *Store) SetInvoiceRate(_ context.Context, invID id.InvoiceID, snapshot *rate.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invID.String()]
	if !ok {
		return settle.ErrInvoiceNotFound
	}
	if inv.ExchangeRate != nil {
		return settle.ErrAlreadyExists
	}
	inv.ExchangeRate = snapshot
	inv.Touch()
	return nil
}

func (s *Store) MarkInvoicePaid(_ context.Context, invID id.InvoiceID, txHash string, snapshot *rate.Snapshot, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invID.String()]
	if !ok {
		return settle.ErrInvoiceNotFound
	}
	if inv.Status == invoice.StatusPaid {
		return settle.ErrAlreadyPaid
	}

	inv.Status = invoice.StatusPaid
	inv.TxHash = txHash
	inv.ExchangeRate = snapshot
	inv.PaidAt = &paidAt
	inv.Touch()
	return nil
}

func (s *Store) UpdateInvoiceOwner(_ context.Context, invID id.InvoiceID, owner types.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invID.String()]
	if !ok {
		return settle.ErrInvoiceNotFound
	}
	inv.Owner = owner
	inv.Touch()
	return nil
}

// Payable Store implementation

func (s *Store) CreatePayable(_ context.Context, p *payable.Payable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payables[p.ID.String()]; exists {
		return settle.ErrAlreadyExists
	}
	cp := *p
	s.payables[p.ID.String()] = &cp
	return nil
}

func (s *Store) GetPayable(_ context.Context, pblID id.PayableID) (*payable.Payable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.payables[pblID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, settle.ErrPayableNotFound
}

func (s *Store) ListPayables(_ context.Context, opts payable.ListOpts) ([]*payable.Payable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payable.Payable, 0)
	for _, p := range s.payables {
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		if !opts.Owner.IsZero() && !p.Owner.Equal(opts.Owner) {
			continue
		}
		if !opts.AfterID.IsNil() && p.ID.String() <= opts.AfterID.String() {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (s *Store) UpdatePayable(_ context.Context, p *payable.Payable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payables[p.ID.String()]; !exists {
		return settle.ErrPayableNotFound
	}
	cp := *p
	cp.Touch()
	s.payables[p.ID.String()] = &cp
	return nil
}

func (s *Store) UpdatePayableOwner(_ context.Context, pblID id.PayableID, owner types.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payables[pblID.String()]
	if !ok {
		return settle.ErrPayableNotFound
	}
	p.Owner = owner
	p.Touch()
	return nil
}

// Access token Store implementation

func (s *Store) CreateAccessToken(_ context.Context, t *accesstoken.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[t.Token]; exists {
		return settle.ErrAlreadyExists
	}
	cp := *t
	s.tokens[t.Token] = &cp
	return nil
}

func (s *Store) GetAccessToken(_ context.Context, token string) (*accesstoken.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tokens[token]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, settle.ErrTokenNotFound
}

func (s *Store) ListAccessTokens(_ context.Context, invID id.InvoiceID) ([]*accesstoken.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*accesstoken.Token, 0)
	for _, t := range s.tokens {
		if t.InvoiceID.String() == invID.String() {
			cp := *t
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (s *Store) ConsumeAccessToken(_ context.Context, token, usedBy string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok {
		return settle.ErrTokenNotFound
	}
	if t.Used {
		return settle.ErrTokenUsed
	}

	t.Used = true
	t.UsedAt = &usedAt
	t.UsedBy = usedBy
	t.Touch()
	return nil
}

// Ledger entry Store implementation

func entryKey(src entry.Source) string {
	return string(src.Kind) + ":" + src.DocumentID.String()
}

func (s *Store) UpsertEntry(_ context.Context, e *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryKey(e.Source)
	cp := *e
	if existing, ok := s.entries[key]; ok {
		// Keep the original identity and creation time.
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	}
	cp.Touch()
	s.entries[key] = &cp
	return nil
}

func (s *Store) GetEntryBySource(_ context.Context, src entry.Source) (*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[entryKey(src)]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, settle.ErrNotFound
}

func (s *Store) ListEntries(_ context.Context, opts entry.ListOpts) ([]*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entry.Entry, 0)
	for _, e := range s.entries {
		if !opts.Owner.IsZero() && !e.Owner.Equal(opts.Owner) {
			continue
		}
		if opts.Direction != "" && e.Direction != opts.Direction {
			continue
		}
		if !opts.AfterID.IsNil() && e.ID.String() <= opts.AfterID.String() {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// Membership Store implementation

func (s *Store) GetMembership(_ context.Context, userID id.UserID) (id.OrganizationID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if orgID, ok := s.memberships[userID.String()]; ok {
		return orgID, nil
	}
	return id.Nil, nil
}

func (s *Store) SetMembership(_ context.Context, userID id.UserID, orgID id.OrganizationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.memberships[userID.String()] = orgID
	return nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return settle.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
