// Package coingecko provides a rate.Source backed by the CoinGecko spot
// price API, with exchangerate.host supplying USD-to-fiat cross rates for
// non-USD targets.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/settle/rate"
)

const (
	defaultPriceURL = "https://api.coingecko.com/api/v3/simple/price"
	defaultCrossURL = "https://api.exchangerate.host/latest"
	defaultTimeout  = 10 * time.Second
)

// symbolToID maps ticker symbols to CoinGecko coin identifiers. Tokens
// outside this map are passed through lowercased, which works for coins
// whose id matches their symbol.
var symbolToID = map[string]string{
	"CELO":  "celo",
	"CUSD":  "celo-dollar",
	"CEUR":  "celo-euro",
	"ETH":   "ethereum",
	"BTC":   "bitcoin",
	"USDC":  "usd-coin",
	"USDT":  "tether",
	"DAI":   "dai",
	"MATIC": "matic-network",
}

// Source resolves crypto spot prices via CoinGecko. USD is resolved in a
// single call; other fiat targets multiply the USD price by an
// exchangerate.host cross rate.
type Source struct {
	client   *http.Client
	priceURL string
	crossURL string
	apiKey   string
}

// Option configures a Source.
type Option func(*Source)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

// WithPriceURL overrides the CoinGecko simple-price endpoint.
func WithPriceURL(u string) Option {
	return func(s *Source) { s.priceURL = u }
}

// WithCrossURL overrides the exchangerate.host endpoint.
func WithCrossURL(u string) Option {
	return func(s *Source) { s.crossURL = u }
}

// WithAPIKey sets a CoinGecko API key, sent as the x-cg-demo-api-key header.
func WithAPIKey(key string) Option {
	return func(s *Source) { s.apiKey = key }
}

// New creates a CoinGecko-backed Source.
func New(opts ...Option) *Source {
	s := &Source{
		client:   &http.Client{Timeout: defaultTimeout},
		priceURL: defaultPriceURL,
		crossURL: defaultCrossURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ rate.Source = (*Source)(nil)

// Rate implements rate.Source.
func (s *Source) Rate(ctx context.Context, fromCurrency, toCurrency string) (decimal.Decimal, error) {
	from := strings.ToUpper(fromCurrency)
	to := strings.ToUpper(toCurrency)

	usd, err := s.usdPrice(ctx, from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if to == "USD" {
		return usd, nil
	}

	cross, err := s.crossRate(ctx, to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return usd.Mul(cross), nil
}

func (s *Source) usdPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	id, ok := symbolToID[symbol]
	if !ok {
		id = strings.ToLower(symbol)
	}

	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.priceURL+"?"+q.Encode(), nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if s.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("coingecko: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("coingecko: status %d for %s", resp.StatusCode, id)
	}

	// {"celo":{"usd":0.52}}
	var body map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Decimal{}, fmt.Errorf("coingecko: decode: %w", err)
	}

	price, ok := body[id]["usd"]
	if !ok || price.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("coingecko: no usd price for %s", id)
	}
	return price, nil
}

func (s *Source) crossRate(ctx context.Context, fiat string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("base", "USD")
	q.Set("symbols", fiat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.crossURL+"?"+q.Encode(), nil)
	if err != nil {
		return decimal.Decimal{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("exchangerate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("exchangerate: status %d for %s", resp.StatusCode, fiat)
	}

	var body struct {
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Decimal{}, fmt.Errorf("exchangerate: decode: %w", err)
	}

	r, ok := body.Rates[fiat]
	if !ok || r.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("exchangerate: no rate for %s", fiat)
	}
	return r, nil
}
