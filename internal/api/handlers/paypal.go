// Package handlers implements the HTTP handlers for the PayPal proxy API.
// Handlers forward requests to the upstream reporting client, then apply
// read-only post-processing to the response document: key normalization,
// transaction ID masking, and optional currency conversion enrichment.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/router-for-me/PayPalProxyAPI/internal/paypal"
	"github.com/router-for-me/PayPalProxyAPI/internal/util"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// Reporter is the upstream client surface the handlers depend on.
type Reporter interface {
	GetBalances(ctx context.Context) ([]byte, error)
	GetTransactions(ctx context.Context, q paypal.TransactionsQuery) ([]byte, error)
}

// CurrencyConverter converts an amount string into the reference currency.
type CurrencyConverter interface {
	Convert(ctx context.Context, amount, from string) (decimal.Decimal, error)
	Reference() string
}

// PayPalHandler serves the read-only reporting endpoints.
type PayPalHandler struct {
	reporter  Reporter
	converter CurrencyConverter
}

// NewPayPalHandler builds a handler. The converter may be nil, in which case
// conversion enrichment is disabled regardless of query parameters.
func NewPayPalHandler(reporter Reporter, converter CurrencyConverter) *PayPalHandler {
	return &PayPalHandler{reporter: reporter, converter: converter}
}

// Balance handles GET /balance. It proxies the upstream balances document,
// normalizes its keys, and unless convert_to_usd=false enriches each balance
// with its value in the reference currency.
func (h *PayPalHandler) Balance(c *gin.Context) {
	body, err := h.reporter.GetBalances(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	body = util.SnakeCaseKeys(body)

	convert := h.converter != nil && c.DefaultQuery("convert_to_usd", "true") != "false"
	if convert {
		body = h.enrichBalances(c.Request.Context(), body)
	}
	if updated, errSet := sjson.SetBytes(body, "_usd_conversion_enabled", convert); errSet == nil {
		body = updated
	}

	c.Data(http.StatusOK, "application/json", body)
}

// Transactions handles GET /transactions. Date range partitioning and
// merging happen inside the client; this handler validates pagination,
// optionally enriches amounts, masks transaction IDs, and normalizes keys.
func (h *PayPalHandler) Transactions(c *gin.Context) {
	q := paypal.TransactionsQuery{
		StartDate:         c.Query("start_date"),
		EndDate:           c.Query("end_date"),
		TransactionStatus: c.Query("transaction_status"),
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if err != nil || page < 1 {
		writeError(c, &paypal.ValidationError{Message: "page must be a positive integer"})
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		writeError(c, &paypal.ValidationError{Message: fmt.Sprintf("page_size must be between 1 and %d", maxPageSize)})
		return
	}
	q.Page = page
	q.PageSize = pageSize

	body, err := h.reporter.GetTransactions(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}

	body = util.SnakeCaseKeys(body)

	convert := h.converter != nil && c.DefaultQuery("convert_to_usd", "true") != "false"
	if convert {
		body = h.enrichTransactions(c.Request.Context(), body)
	}
	if updated, errSet := sjson.SetBytes(body, "_usd_conversion_enabled", convert); errSet == nil {
		body = updated
	}
	body = util.MaskTransactionIDs(body)

	c.Data(http.StatusOK, "application/json", body)
}

// enrichBalances adds a value in the reference currency to the total and
// available balance of every account in the balances document. A failed
// conversion degrades that single field to null instead of failing the
// request.
func (h *PayPalHandler) enrichBalances(ctx context.Context, body []byte) []byte {
	balances := gjson.GetBytes(body, "balances")
	if !balances.IsArray() {
		return body
	}
	field := "value_" + lowerReference(h.converter)
	for i := range balances.Array() {
		for _, name := range []string{"total_balance", "available_balance"} {
			base := fmt.Sprintf("balances.%d.%s", i, name)
			amount := gjson.GetBytes(body, base+".value")
			if !amount.Exists() {
				continue
			}
			currency := currencyOrReference(body, base, h.converter)
			body = h.setConverted(ctx, body, base+"."+field, amount.String(), currency)
			if updated, errSet := sjson.SetBytes(body, base+".original_currency", currency); errSet == nil {
				body = updated
			}
		}
	}
	return body
}

// enrichTransactions adds a converted amount to each transaction record's
// transaction_amount. Per-record conversion failures degrade to null.
func (h *PayPalHandler) enrichTransactions(ctx context.Context, body []byte) []byte {
	details := gjson.GetBytes(body, "transaction_details")
	if !details.IsArray() {
		return body
	}
	field := "value_" + lowerReference(h.converter)
	for i := range details.Array() {
		base := fmt.Sprintf("transaction_details.%d.transaction_info.transaction_amount", i)
		amount := gjson.GetBytes(body, base+".value")
		if !amount.Exists() {
			continue
		}
		currency := currencyOrReference(body, base, h.converter)
		body = h.setConverted(ctx, body, base+"."+field, amount.String(), currency)
		if updated, errSet := sjson.SetBytes(body, base+".original_currency", currency); errSet == nil {
			body = updated
		}
	}
	return body
}

// currencyOrReference reads the currency_code next to an amount, assuming the
// reference currency when the field is absent.
func currencyOrReference(body []byte, base string, cv CurrencyConverter) string {
	if currency := gjson.GetBytes(body, base+".currency_code"); currency.Exists() {
		return currency.String()
	}
	return cv.Reference()
}

// setConverted writes the converted amount at path, or null when the
// conversion fails.
func (h *PayPalHandler) setConverted(ctx context.Context, body []byte, path, amount, currency string) []byte {
	converted, err := h.converter.Convert(ctx, amount, currency)
	if err != nil {
		log.WithField("currency", currency).Warnf("conversion failed, degrading to null: %v", err)
		if updated, errSet := sjson.SetBytes(body, path, nil); errSet == nil {
			return updated
		}
		return body
	}
	value, _ := converted.Float64()
	if updated, errSet := sjson.SetBytes(body, path, value); errSet == nil {
		return updated
	}
	return body
}

func lowerReference(cv CurrencyConverter) string {
	return strings.ToLower(cv.Reference())
}

// writeError maps client errors onto HTTP responses. Upstream status errors
// pass through with their original status and body; everything else gets a
// stable JSON error shape.
func writeError(c *gin.Context, err error) {
	var validationErr *paypal.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": validationErr.Message})
		return
	}

	var upstreamErr *paypal.UpstreamStatusError
	if errors.As(err, &upstreamErr) {
		c.Data(upstreamErr.StatusCode, "application/json", upstreamErr.Body)
		return
	}

	var authErr *paypal.AuthenticationError
	if errors.As(err, &authErr) {
		log.Errorf("upstream authentication failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream_authentication_failed"})
		return
	}

	var transientErr *paypal.TransientNetworkError
	var exhaustedErr *paypal.RetriesExhaustedError
	if errors.As(err, &transientErr) || errors.As(err, &exhaustedErr) {
		log.Errorf("upstream unreachable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service_unavailable"})
		return
	}

	log.Errorf("unexpected handler error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
