package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRateLimiterAllowWithinBudget(t *testing.T) {
	rl := NewRateLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d unexpectedly rejected", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("expected fourth request to be rejected")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("expected different client to have its own budget")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	defer rl.Stop()

	for i := 0; i < 100; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected with limiting disabled", i+1)
		}
	}
}

func TestRateLimiterSetLimit(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Stop()

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first request rejected")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("expected second request to be rejected at limit 1")
	}

	rl.SetLimit(5)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("expected request to pass after raising the limit")
	}
}

func TestRateLimiterMiddlewareReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(1)
	defer rl.Stop()

	engine := gin.New()
	engine.Use(rl.Middleware())
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", recorder.Code)
	}
}
