// Package middleware provides Gin middleware for the PayPal proxy server.
package middleware

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	rateLimitWindow        = time.Minute
	rateLimitJanitorPeriod = 5 * time.Minute
)

// RateLimiter enforces a per-client sliding window request budget. A limit
// of zero or below disables enforcement. It is safe for concurrent use and
// the limit can be changed at runtime.
type RateLimiter struct {
	limit atomic.Int64

	mu      sync.Mutex
	windows map[string][]time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRateLimiter builds a limiter allowing limit requests per client per
// minute and starts a background janitor that drops idle client windows.
func NewRateLimiter(limit int) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string][]time.Time),
		stop:    make(chan struct{}),
	}
	rl.limit.Store(int64(limit))
	go rl.janitor()
	return rl
}

// SetLimit replaces the per-minute budget. Used on configuration reload.
func (rl *RateLimiter) SetLimit(limit int) {
	old := rl.limit.Swap(int64(limit))
	if old != int64(limit) {
		log.Infof("rate limit changed from %d to %d requests per minute", old, limit)
	}
}

// Allow records a request for the given key and reports whether it fits the
// current window.
func (rl *RateLimiter) Allow(key string) bool {
	limit := rl.limit.Load()
	if limit <= 0 {
		return true
	}

	now := time.Now()
	cutoff := now.Add(-rateLimitWindow)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	window := rl.windows[key]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if int64(len(kept)) >= limit {
		rl.windows[key] = kept
		return false
	}

	rl.windows[key] = append(kept, now)
	return true
}

// Middleware returns a Gin handler rejecting over-budget clients with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "too many requests, retry later",
			})
			return
		}
		c.Next()
	}
}

// Stop terminates the background janitor.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) janitor() {
	ticker := time.NewTicker(rateLimitJanitorPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// sweep drops windows whose every entry is older than the rate window.
func (rl *RateLimiter) sweep() {
	cutoff := time.Now().Add(-rateLimitWindow)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, window := range rl.windows {
		stale := true
		for _, ts := range window {
			if ts.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(rl.windows, key)
		}
	}
}
