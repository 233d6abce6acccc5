package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRateUSD(t *testing.T) {
	gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "celo" {
			t.Errorf("ids: got %q, want celo", got)
		}
		w.Write([]byte(`{"celo":{"usd":0.52}}`))
	}))
	defer gecko.Close()

	s := New(WithPriceURL(gecko.URL))

	r, err := s.Rate(context.Background(), "CELO", "USD")
	if err != nil {
		t.Fatalf("Rate failed: %v", err)
	}
	if !r.Equal(decimal.RequireFromString("0.52")) {
		t.Errorf("rate: got %s, want 0.52", r)
	}
}

func TestRateCrossFiat(t *testing.T) {
	gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ethereum":{"usd":2000}}`))
	}))
	defer gecko.Close()

	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbols"); got != "EUR" {
			t.Errorf("symbols: got %q, want EUR", got)
		}
		w.Write([]byte(`{"rates":{"EUR":0.9}}`))
	}))
	defer host.Close()

	s := New(WithPriceURL(gecko.URL), WithCrossURL(host.URL))

	r, err := s.Rate(context.Background(), "ETH", "EUR")
	if err != nil {
		t.Fatalf("Rate failed: %v", err)
	}
	if !r.Equal(decimal.RequireFromString("1800")) {
		t.Errorf("rate: got %s, want 1800", r)
	}
}

func TestRateUpstreamError(t *testing.T) {
	gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer gecko.Close()

	s := New(WithPriceURL(gecko.URL))

	if _, err := s.Rate(context.Background(), "BTC", "USD"); err == nil {
		t.Fatal("expected error on 429 upstream")
	}
}

func TestRateMissingPrice(t *testing.T) {
	gecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer gecko.Close()

	s := New(WithPriceURL(gecko.URL))

	if _, err := s.Rate(context.Background(), "UNKNOWNCOIN", "USD"); err == nil {
		t.Fatal("expected error when price is absent")
	}
}
