// Package fx provides currency conversion into a reference currency using
// the Frankfurter exchange rate API, with an in-memory rate cache so
// per-transaction enrichment does not hammer the rate provider.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// defaultBaseURL is the public Frankfurter endpoint. It is free and needs no
// API key.
const defaultBaseURL = "https://api.frankfurter.app"

const defaultRequestTimeout = 5 * time.Second

// Client fetches spot exchange rates from Frankfurter.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a rate client. An empty baseURL selects the public
// Frankfurter endpoint; a nil httpClient gets a default with a 5s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// latestResponse is the Frankfurter /latest payload.
type latestResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// LatestRate fetches the current rate from one currency into another.
func (c *Client) LatestRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	query := url.Values{}
	query.Set("from", from)
	query.Set("to", to)
	reqURL := fmt.Sprintf("%s/latest?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fx: rate request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, err
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("fx: rate request returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed latestResponse
	if err = json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, fmt.Errorf("fx: failed to parse rate response: %w", err)
	}
	rate, ok := parsed.Rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("fx: rate for %s not found in response", to)
	}
	return decimal.NewFromFloat(rate), nil
}
