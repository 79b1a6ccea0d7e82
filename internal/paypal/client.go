// Package paypal implements the upstream client for the PayPal reporting
// API: OAuth2 client-credentials token acquisition with in-memory caching,
// authenticated request execution with retry and backoff, and automatic
// date-range partitioning with bounded-concurrency fetch and merge for
// queries wider than the upstream's per-request window.
package paypal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"

	balancesPath     = "/v1/reporting/balances"
	transactionsPath = "/v1/reporting/transactions"

	// ModeSandbox selects the PayPal sandbox environment.
	ModeSandbox = "sandbox"
	// ModeLive selects the PayPal production environment.
	ModeLive = "live"

	defaultRequestTimeout   = 5 * time.Second
	defaultChunkConcurrency = 4

	maxAttempts        = 3
	defaultBackoffBase = 500 * time.Millisecond
)

// Credentials is the single client-credentials set the proxy holds for the
// process lifetime. Mode selects the upstream base URL.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Mode         string
}

// BaseURL returns the upstream base URL for the credential mode.
func (c Credentials) BaseURL() string {
	if c.Mode == ModeLive {
		return liveBaseURL
	}
	return sandboxBaseURL
}

// Options tunes a Client. Zero values fall back to defaults.
type Options struct {
	// RequestTimeout bounds each individual network call. There is no
	// overall deadline across retries.
	RequestTimeout time.Duration
	// ChunkConcurrency caps in-flight chunk requests during a partitioned
	// transaction fetch.
	ChunkConcurrency int
	// HTTPClient overrides the transport, e.g. to route through a proxy.
	// Its timeout is set from RequestTimeout.
	HTTPClient *http.Client
	// BaseURL overrides the mode-derived upstream base URL. Tests point it
	// at a local server.
	BaseURL string
}

// Client is the upstream API client facade. It is safe for concurrent use;
// the token cache is the only shared mutable state.
type Client struct {
	creds      Credentials
	baseURL    string
	httpClient *http.Client
	tokens     *tokenCache

	chunkConcurrency atomic.Int64

	// backoffBase is the first retry delay; it doubles per attempt.
	// Tests shrink it.
	backoffBase time.Duration
}

// NewClient validates the credentials and builds a client.
func NewClient(creds Credentials, opts Options) (*Client, error) {
	if creds.Mode != ModeSandbox && creds.Mode != ModeLive {
		return nil, fmt.Errorf("paypal: invalid mode %q (must be %q or %q)", creds.Mode, ModeSandbox, ModeLive)
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, errors.New("paypal: client id and secret are required")
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = timeout

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = creds.BaseURL()
	}

	c := &Client{
		creds:       creds,
		baseURL:     baseURL,
		httpClient:  httpClient,
		tokens:      newTokenCache(),
		backoffBase: defaultBackoffBase,
	}
	c.SetChunkConcurrency(opts.ChunkConcurrency)
	return c, nil
}

// SetChunkConcurrency adjusts the fan-out cap, e.g. after a config reload.
// Values below one reset it to the default.
func (c *Client) SetChunkConcurrency(n int) {
	if n < 1 {
		n = defaultChunkConcurrency
	}
	c.chunkConcurrency.Store(int64(n))
}

// GetBalances fetches the account balances document and returns the upstream
// body unmodified.
func (c *Client) GetBalances(ctx context.Context) ([]byte, error) {
	return c.execute(ctx, http.MethodGet, balancesPath, nil)
}

// attemptOutcome classifies one request attempt for the retry loop.
type attemptOutcome int

const (
	attemptSuccess attemptOutcome = iota
	// attemptRetryAuth is the one-shot 401 path: the cached token has been
	// invalidated and the attempt is repeated immediately, without backoff.
	attemptRetryAuth
	// attemptRetryBackoff is a transport failure worth retrying after an
	// exponential delay.
	attemptRetryBackoff
	attemptFatal
)

// execute performs one authenticated call against the reporting API, driving
// an explicit state machine over {attempt, refreshed}: up to three attempts,
// a single 401-triggered token refresh, exponential backoff for network
// failures, and immediate failure for any other non-2xx status.
func (c *Client) execute(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	refreshed := false
	for attempt := 0; attempt < maxAttempts; attempt++ {
		// Only a 401 on the very first attempt may trigger a token refresh;
		// a 401 after a retry of any kind is terminal.
		allowRefresh := attempt == 0 && !refreshed
		body, outcome, err := c.attempt(ctx, method, path, query, allowRefresh)
		switch outcome {
		case attemptSuccess:
			return body, nil
		case attemptRetryAuth:
			// The refresh consumes an attempt but skips the backoff delay.
			refreshed = true
			continue
		case attemptRetryBackoff:
			if attempt == maxAttempts-1 {
				return nil, &TransientNetworkError{Attempts: maxAttempts, Err: err}
			}
			delay := c.backoffBase << attempt
			log.Warnf("paypal: %s %s attempt %d/%d failed (%v), retrying in %s", method, path, attempt+1, maxAttempts, err, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		case attemptFatal:
			return nil, err
		}
	}
	return nil, &RetriesExhaustedError{Attempts: maxAttempts}
}

// attempt runs a single token-then-request cycle and classifies the result.
func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, allowRefresh bool) ([]byte, attemptOutcome, error) {
	tok, err := c.token(ctx)
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return nil, attemptFatal, err
		}
		// Could not reach the token endpoint; retry with backoff.
		return nil, attemptRetryBackoff, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, attemptFatal, err
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, attemptRetryBackoff, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, attemptRetryBackoff, err
	}

	if resp.StatusCode == http.StatusUnauthorized && allowRefresh {
		log.Warnf("paypal: got 401 on %s %s, invalidating cached token and retrying", method, path)
		c.tokens.invalidate(c.creds.Mode)
		return nil, attemptRetryAuth, nil
	}

	if resp.StatusCode >= 400 {
		log.Errorf("paypal: upstream error %d on %s %s: %s", resp.StatusCode, method, path, truncateForLog(body))
		return nil, attemptFatal, &UpstreamStatusError{StatusCode: resp.StatusCode, Body: body}
	}

	return body, attemptSuccess, nil
}
