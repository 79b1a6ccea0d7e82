package paypal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	tokenEndpointPath = "/v1/oauth2/token"

	// defaultTokenTTL is applied when the token response omits expires_in.
	// PayPal issues nine hour tokens.
	defaultTokenTTL = 32400 * time.Second

	// tokenExpiryMargin is subtracted from the advertised lifetime when the
	// token is cached, so a token is never presented right at its expiry.
	tokenExpiryMargin = 60 * time.Second
)

// cachedToken is one cache entry. The margin is already applied to ExpiresAt
// when the entry is written; readers compare against the wall clock directly.
type cachedToken struct {
	token     string
	expiresAt time.Time
}

// tokenCache holds at most one bearer token per operating mode. It is shared
// by every in-flight request; duplicate concurrent refreshes are tolerated
// (last writer wins) rather than deduplicated.
type tokenCache struct {
	mu      sync.Mutex
	entries map[string]cachedToken
}

func newTokenCache() *tokenCache {
	return &tokenCache{entries: make(map[string]cachedToken)}
}

// get returns the cached token for mode when it is still valid.
func (tc *tokenCache) get(mode string, now time.Time) (string, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	entry, ok := tc.entries[mode]
	if !ok || !now.Before(entry.expiresAt) {
		return "", false
	}
	return entry.token, true
}

// put stores a freshly issued token, overwriting any prior entry for mode.
func (tc *tokenCache) put(mode, token string, ttl time.Duration, now time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.entries[mode] = cachedToken{
		token:     token,
		expiresAt: now.Add(ttl - tokenExpiryMargin),
	}
}

// invalidate removes the entry for mode unconditionally. Called by the
// executor when the upstream rejects a token with 401.
func (tc *tokenCache) invalidate(mode string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	delete(tc.entries, mode)
}

// tokenResponse is the OAuth2 client-credentials grant response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a valid bearer token for the client's mode, fetching a new
// one from the token endpoint on a cache miss. A non-2xx token response or a
// body without an access token surfaces as *AuthenticationError; transport
// failures are returned as-is so the executor can classify them as
// retryable.
func (c *Client) token(ctx context.Context) (string, error) {
	mode := c.creds.Mode
	if tok, ok := c.tokens.get(mode, time.Now()); ok {
		log.Debugf("paypal: token cache hit (mode: %s)", mode)
		return tok, nil
	}

	log.Infof("paypal: fetching new token (mode: %s)", mode)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenEndpointPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Errorf("paypal: token request failed: %d %s", resp.StatusCode, truncateForLog(body))
		return "", &AuthenticationError{StatusCode: resp.StatusCode, Body: truncateForLog(body)}
	}

	var tok tokenResponse
	if err = json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		return "", &AuthenticationError{Body: truncateForLog(body)}
	}

	ttl := defaultTokenTTL
	if tok.ExpiresIn > 0 {
		ttl = time.Duration(tok.ExpiresIn) * time.Second
	}
	c.tokens.put(mode, tok.AccessToken, ttl, time.Now())
	log.Infof("paypal: token obtained, expires in %s", ttl)

	return tok.AccessToken, nil
}

// truncateForLog bounds response bodies embedded in errors and log lines.
func truncateForLog(body []byte) string {
	const limit = 1000
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
