package fx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func rateServer(t *testing.T, rate float64, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		to := r.URL.Query().Get("to")
		_, _ = w.Write([]byte(`{"base":"` + r.URL.Query().Get("from") + `","date":"2024-06-01","rates":{"` + to + `":` + decimal.NewFromFloat(rate).String() + `}}`))
	}))
}

func TestConvertUsesCachedRate(t *testing.T) {
	var calls atomic.Int64
	server := rateServer(t, 1.1, &calls)
	defer server.Close()

	cv := NewConverter(NewClient(server.URL, nil), "USD", time.Hour)
	for i := 0; i < 5; i++ {
		got, err := cv.Convert(context.Background(), "100.00", "EUR")
		if err != nil {
			t.Fatalf("convert %d: %v", i, err)
		}
		if !got.Equal(decimal.NewFromFloat(110)) {
			t.Fatalf("expected 110, got %s", got)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single rate fetch, got %d", calls.Load())
	}
}

func TestConvertSameCurrencyPassesThrough(t *testing.T) {
	var calls atomic.Int64
	server := rateServer(t, 1.1, &calls)
	defer server.Close()

	cv := NewConverter(NewClient(server.URL, nil), "USD", time.Hour)
	got, err := cv.Convert(context.Background(), "123.456", "usd")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("123.456")) {
		t.Fatalf("expected passthrough value, got %s", got)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no rate fetch for same currency, got %d", calls.Load())
	}
}

func TestConvertRoundsToTwoPlaces(t *testing.T) {
	var calls atomic.Int64
	server := rateServer(t, 1.2345, &calls)
	defer server.Close()

	cv := NewConverter(NewClient(server.URL, nil), "USD", time.Hour)
	got, err := cv.Convert(context.Background(), "10.00", "EUR")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.String() != "12.35" {
		t.Fatalf("expected 12.35, got %s", got)
	}
}

func TestConvertRejectsBadAmount(t *testing.T) {
	cv := NewConverter(NewClient("http://127.0.0.1:0", nil), "USD", time.Hour)
	if _, err := cv.Convert(context.Background(), "not-a-number", "EUR"); err == nil {
		t.Fatal("expected error for unparseable amount")
	}
}

func TestClearCacheForcesRefetch(t *testing.T) {
	var calls atomic.Int64
	server := rateServer(t, 2, &calls)
	defer server.Close()

	cv := NewConverter(NewClient(server.URL, nil), "USD", time.Hour)
	if _, err := cv.Rate(context.Background(), "GBP"); err != nil {
		t.Fatalf("rate: %v", err)
	}
	cv.ClearCache()
	if _, err := cv.Rate(context.Background(), "GBP"); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 fetches after cache clear, got %d", calls.Load())
	}
}

func TestLatestRateMissingCurrency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"base":"EUR","date":"2024-06-01","rates":{}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	if _, err := client.LatestRate(context.Background(), "EUR", "USD"); err == nil {
		t.Fatal("expected error when rate is missing")
	}
}

func TestLatestRateUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	if _, err := client.LatestRate(context.Background(), "EUR", "USD"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
