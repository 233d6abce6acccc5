// Package rate resolves and freezes fiat-equivalent valuations for
// crypto-denominated amounts.
//
// A Snapshot is taken at transaction time and attached to the paid invoice;
// from then on it is the valuation of record, immune to later market drift.
// The spot source and the TTL cache are both injected — there is no hidden
// package-level rate state.
package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when no rate could be resolved.
var ErrUnavailable = errors.New("rate: unavailable")

// Snapshot is a locked valuation: amount of FromCurrency valued in
// ToCurrency at the resolved rate, frozen at LockedAt.
type Snapshot struct {
	Amount       decimal.Decimal `json:"amount"`
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	Rate         decimal.Decimal `json:"rate"`
	Converted    decimal.Decimal `json:"converted"`
	LockedAt     time.Time       `json:"locked_at"`
}

// Source resolves the current spot rate from one currency to another.
// Implementations are external collaborators (market data APIs).
type Source interface {
	Rate(ctx context.Context, fromCurrency, toCurrency string) (decimal.Decimal, error)
}

// SourceFunc adapts a plain function to a Source.
type SourceFunc func(ctx context.Context, fromCurrency, toCurrency string) (decimal.Decimal, error)

// Rate implements Source.
func (f SourceFunc) Rate(ctx context.Context, fromCurrency, toCurrency string) (decimal.Decimal, error) {
	return f(ctx, fromCurrency, toCurrency)
}

// Locker resolves spot rates through an injected Source, consulting an
// explicit TTL cache first.
type Locker struct {
	source      Source
	cache       *Cache
	defaultFiat string
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithCache sets the TTL cache consulted before the source.
func WithCache(c *Cache) LockerOption {
	return func(l *Locker) { l.cache = c }
}

// WithDefaultFiat sets the fiat currency used when the caller omits one.
func WithDefaultFiat(currency string) LockerOption {
	return func(l *Locker) { l.defaultFiat = strings.ToUpper(currency) }
}

// NewLocker creates a Locker over the given spot source.
func NewLocker(source Source, opts ...LockerOption) *Locker {
	l := &Locker{
		source:      source,
		cache:       NewCache(DefaultCacheTTL),
		defaultFiat: "USD",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock resolves the current rate for amount of cryptoCurrency in
// fiatCurrency (the configured default when empty) and freezes it into a
// Snapshot. Resolution failure returns ErrUnavailable wrapping the cause —
// unless the cache holds a stale rate, which is then served as a fallback,
// matching the behavior payment flows have historically relied on.
func (l *Locker) Lock(ctx context.Context, amount decimal.Decimal, cryptoCurrency, fiatCurrency string) (*Snapshot, error) {
	from := strings.ToUpper(cryptoCurrency)
	to := strings.ToUpper(fiatCurrency)
	if to == "" {
		to = l.defaultFiat
	}

	key := from + "/" + to

	r, ok := l.cache.Get(key)
	if !ok {
		var err error
		r, err = l.source.Rate(ctx, from, to)
		if err != nil {
			// Stale fallback: an expired cached rate beats no rate.
			if stale, found := l.cache.GetStale(key); found {
				r = stale
			} else {
				return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, key, err)
			}
		} else {
			l.cache.Set(key, r)
		}
	}

	return &Snapshot{
		Amount:       amount,
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         r,
		Converted:    amount.Mul(r),
		LockedAt:     time.Now().UTC(),
	}, nil
}
