package fx

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// defaultRateTTL is how long a fetched rate is reused before a refresh.
const defaultRateTTL = time.Hour

// cachedRate is one cache entry per source currency.
type cachedRate struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// Converter converts amounts into a reference currency, caching rates
// in-memory for the configured TTL. It is safe for concurrent use.
type Converter struct {
	client    *Client
	reference string
	ttl       time.Duration

	mu    sync.Mutex
	rates map[string]cachedRate
}

// NewConverter builds a converter targeting the given reference currency
// (defaults to USD). A non-positive ttl selects the one hour default.
func NewConverter(client *Client, reference string, ttl time.Duration) *Converter {
	if reference == "" {
		reference = "USD"
	}
	if ttl <= 0 {
		ttl = defaultRateTTL
	}
	return &Converter{
		client:    client,
		reference: strings.ToUpper(reference),
		ttl:       ttl,
		rates:     make(map[string]cachedRate),
	}
}

// Reference returns the target currency code.
func (cv *Converter) Reference() string { return cv.reference }

// Rate returns the conversion rate from a currency into the reference
// currency, served from cache when fresh.
func (cv *Converter) Rate(ctx context.Context, from string) (decimal.Decimal, error) {
	from = strings.ToUpper(from)

	cv.mu.Lock()
	entry, ok := cv.rates[from]
	cv.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < cv.ttl {
		log.Debugf("fx: rate cache hit for %s", from)
		return entry.rate, nil
	}

	rate, err := cv.client.LatestRate(ctx, from, cv.reference)
	if err != nil {
		return decimal.Zero, err
	}
	log.Infof("fx: fetched rate %s -> %s = %s", from, cv.reference, rate)

	cv.mu.Lock()
	cv.rates[from] = cachedRate{rate: rate, fetchedAt: time.Now()}
	cv.mu.Unlock()

	return rate, nil
}

// Convert converts a decimal amount string from the given currency into the
// reference currency, rounded to 2 decimal places. Amounts already in the
// reference currency pass through unconverted.
func (cv *Converter) Convert(ctx context.Context, amount, from string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, err
	}
	if strings.ToUpper(from) == cv.reference {
		return value, nil
	}
	rate, err := cv.Rate(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	return value.Mul(rate).Round(2), nil
}

// ClearCache drops all cached rates.
func (cv *Converter) ClearCache() {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.rates = make(map[string]cachedRate)
}
