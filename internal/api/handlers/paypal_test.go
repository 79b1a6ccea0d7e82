package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/router-for-me/PayPalProxyAPI/internal/paypal"
)

type stubReporter struct {
	balances        []byte
	balancesErr     error
	transactions    []byte
	transactionsErr error
	lastQuery       paypal.TransactionsQuery
	calls           int
}

func (s *stubReporter) GetBalances(ctx context.Context) ([]byte, error) {
	return s.balances, s.balancesErr
}

func (s *stubReporter) GetTransactions(ctx context.Context, q paypal.TransactionsQuery) ([]byte, error) {
	s.calls++
	s.lastQuery = q
	return s.transactions, s.transactionsErr
}

type stubConverter struct {
	rate decimal.Decimal
	err  error
}

func (s *stubConverter) Convert(ctx context.Context, amount, from string) (decimal.Decimal, error) {
	if s.err != nil {
		return decimal.Zero, s.err
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, err
	}
	if from == "USD" {
		return value, nil
	}
	return value.Mul(s.rate).Round(2), nil
}

func (s *stubConverter) Reference() string { return "USD" }

func newTestRouter(h *PayPalHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/balance", h.Balance)
	engine.GET("/transactions", h.Transactions)
	return engine
}

func TestBalanceEnrichesWithConvertedValues(t *testing.T) {
	reporter := &stubReporter{
		balances: []byte(`{"balances":[{"currency":"EUR","totalBalance":{"currencyCode":"EUR","value":"100.00"},"availableBalance":{"currencyCode":"EUR","value":"80.00"}}]}`),
	}
	h := NewPayPalHandler(reporter, &stubConverter{rate: decimal.NewFromFloat(1.1)})
	engine := newTestRouter(h)

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/balance", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	body := recorder.Body.String()
	if got := gjson.Get(body, "balances.0.total_balance.value_usd").Float(); got != 110 {
		t.Fatalf("expected total_balance.value_usd 110, got %v", got)
	}
	if got := gjson.Get(body, "balances.0.available_balance.value_usd").Float(); got != 88 {
		t.Fatalf("expected available_balance.value_usd 88, got %v", got)
	}
	if got := gjson.Get(body, "balances.0.total_balance.original_currency").String(); got != "EUR" {
		t.Fatalf("expected original_currency EUR, got %q", got)
	}
	if !gjson.Get(body, "_usd_conversion_enabled").Bool() {
		t.Fatal("expected _usd_conversion_enabled true")
	}
	if gjson.Get(body, "balances.0.totalBalance").Exists() {
		t.Fatal("expected camelCase keys to be normalized away")
	}
}

func TestBalanceConversionDisabledByQuery(t *testing.T) {
	reporter := &stubReporter{
		balances: []byte(`{"balances":[{"total_balance":{"currency_code":"EUR","value":"100.00"}}]}`),
	}
	h := NewPayPalHandler(reporter, &stubConverter{rate: decimal.NewFromFloat(1.1)})
	engine := newTestRouter(h)

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/balance?convert_to_usd=false", nil))

	body := recorder.Body.String()
	if gjson.Get(body, "balances.0.total_balance.value_usd").Exists() {
		t.Fatal("expected no value_usd when conversion is disabled")
	}
	if gjson.Get(body, "_usd_conversion_enabled").Bool() {
		t.Fatal("expected _usd_conversion_enabled false")
	}
}

func TestBalanceConversionFailureDegradesToNull(t *testing.T) {
	reporter := &stubReporter{
		balances: []byte(`{"balances":[{"total_balance":{"currency_code":"EUR","value":"100.00"}}]}`),
	}
	h := NewPayPalHandler(reporter, &stubConverter{err: errors.New("rate service down")})
	engine := newTestRouter(h)

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/balance", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 despite conversion failure, got %d", recorder.Code)
	}

	field := gjson.Get(recorder.Body.String(), "balances.0.total_balance.value_usd")
	if !field.Exists() || field.Type != gjson.Null {
		t.Fatalf("expected null value_usd, got %v", field)
	}
}

func TestTransactionsMasksIDsAndEnriches(t *testing.T) {
	reporter := &stubReporter{
		transactions: []byte(`{"transaction_details":[{"transaction_info":{"transaction_id":"TX1234567890","transaction_amount":{"currency_code":"EUR","value":"50.00"}}}],"total_items":1}`),
	}
	h := NewPayPalHandler(reporter, &stubConverter{rate: decimal.NewFromFloat(2)})
	engine := newTestRouter(h)

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/transactions?start_date=2024-01-01T00:00:00Z&end_date=2024-01-15T00:00:00Z", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	body := recorder.Body.String()
	if got := gjson.Get(body, "transaction_details.0.transaction_info.transaction_id").String(); got != "TX12345*****" {
		t.Fatalf("expected masked transaction id, got %q", got)
	}
	if got := gjson.Get(body, "transaction_details.0.transaction_info.transaction_amount.value_usd").Float(); got != 100 {
		t.Fatalf("expected value_usd 100, got %v", got)
	}
	if reporter.lastQuery.Page != 1 || reporter.lastQuery.PageSize != 20 {
		t.Fatalf("expected default pagination 1/20, got %d/%d", reporter.lastQuery.Page, reporter.lastQuery.PageSize)
	}
	if !gjson.Get(body, "_usd_conversion_enabled").Bool() {
		t.Fatal("expected _usd_conversion_enabled true on enriched transactions")
	}
}

func TestTransactionsConversionDisabledByQuery(t *testing.T) {
	reporter := &stubReporter{
		transactions: []byte(`{"transaction_details":[{"transaction_info":{"transaction_amount":{"currency_code":"EUR","value":"50.00"}}}],"total_items":1}`),
	}
	h := NewPayPalHandler(reporter, &stubConverter{rate: decimal.NewFromFloat(2)})
	engine := newTestRouter(h)

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/transactions?start_date=2024-01-01T00:00:00Z&end_date=2024-01-15T00:00:00Z&convert_to_usd=false", nil))

	body := recorder.Body.String()
	if gjson.Get(body, "transaction_details.0.transaction_info.transaction_amount.value_usd").Exists() {
		t.Fatal("expected no value_usd when conversion is disabled")
	}
	if gjson.Get(body, "_usd_conversion_enabled").Bool() {
		t.Fatal("expected _usd_conversion_enabled false")
	}
}

func TestTransactionsRejectsBadPagination(t *testing.T) {
	reporter := &stubReporter{}
	h := NewPayPalHandler(reporter, nil)
	engine := newTestRouter(h)

	for _, target := range []string{
		"/transactions?page=0",
		"/transactions?page=abc",
		"/transactions?page_size=0",
		"/transactions?page_size=101",
	} {
		recorder := httptest.NewRecorder()
		engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, recorder.Code)
		}
	}
	if reporter.calls != 0 {
		t.Fatalf("expected no upstream calls for invalid pagination, got %d", reporter.calls)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation",
			err:        &paypal.ValidationError{Message: "start_date must be before end_date"},
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid_request",
		},
		{
			name:       "upstream status passthrough",
			err:        &paypal.UpstreamStatusError{StatusCode: http.StatusForbidden, Body: []byte(`{"name":"NOT_AUTHORIZED"}`)},
			wantStatus: http.StatusForbidden,
			wantBody:   "NOT_AUTHORIZED",
		},
		{
			name:       "authentication",
			err:        &paypal.AuthenticationError{StatusCode: 401, Body: "bad credentials"},
			wantStatus: http.StatusBadGateway,
			wantBody:   "upstream_authentication_failed",
		},
		{
			name:       "transient network",
			err:        &paypal.TransientNetworkError{Attempts: 3, Err: errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "service_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPayPalHandler(&stubReporter{transactionsErr: tt.err}, nil)
			engine := newTestRouter(h)

			recorder := httptest.NewRecorder()
			engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/transactions?start_date=2024-01-01T00:00:00Z&end_date=2024-01-15T00:00:00Z", nil))
			if recorder.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, recorder.Code)
			}
			if body := recorder.Body.String(); !strings.Contains(body, tt.wantBody) {
				t.Fatalf("expected body to contain %q, got %q", tt.wantBody, body)
			}
		})
	}
}
