// Package api assembles the HTTP surface of the PayPal proxy server: the
// Gin engine, middleware chain, reporting routes, health probe, and the
// static frontend.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/router-for-me/PayPalProxyAPI/internal/api/handlers"
	"github.com/router-for-me/PayPalProxyAPI/internal/api/middleware"
	"github.com/router-for-me/PayPalProxyAPI/internal/config"
	"github.com/router-for-me/PayPalProxyAPI/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// frontendPages are the HTML entry points served from the static directory.
var frontendPages = []string{"index.html", "finance.html", "journey.html"}

// Server owns the Gin engine and the underlying HTTP listener.
type Server struct {
	cfg         *config.Config
	engine      *gin.Engine
	httpServer  *http.Server
	rateLimiter *middleware.RateLimiter
}

// NewServer builds the engine, middleware chain and routes.
func NewServer(cfg *config.Config, handler *handlers.PayPalHandler) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger())
	engine.Use(logging.GinLogrusRecovery())

	s := &Server{
		cfg:         cfg,
		engine:      engine,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitPerMinute),
	}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	group := engine.Group("/api/v1/paypal", s.rateLimiter.Middleware())
	group.GET("/balance", handler.Balance)
	group.GET("/transactions", handler.Transactions)

	s.registerStaticRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// registerStaticRoutes serves the frontend when the static directory exists.
// The server stays API-only otherwise.
func (s *Server) registerStaticRoutes() {
	dir := s.cfg.StaticDir
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Debugf("static directory %q not found, serving API only", dir)
		return
	}

	for _, sub := range []string{"assets", "data"} {
		subDir := filepath.Join(dir, sub)
		if st, errStat := os.Stat(subDir); errStat == nil && st.IsDir() {
			s.engine.Static("/"+sub, subDir)
		}
	}
	s.engine.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(dir, "index.html"))
	})
	for _, page := range frontendPages {
		s.engine.GET("/"+page, func(c *gin.Context) {
			c.File(filepath.Join(dir, page))
		})
	}
	log.Infof("serving static frontend from %q", dir)
}

// Start runs the listener until the context is cancelled, then drains
// in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("server starting on %s", s.httpServer.Addr)
		if errServe := s.httpServer.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.Shutdown(context.Background())
}

// Shutdown stops the listener gracefully and releases server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()

	stopCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(stopCtx); err != nil {
		log.Errorf("server stop failed: %v", err)
		return err
	}
	log.Info("server stopped")
	return nil
}

// OnConfigUpdated applies the reloadable parts of a new configuration.
func (s *Server) OnConfigUpdated(cfg *config.Config) {
	s.rateLimiter.SetLimit(cfg.RateLimitPerMinute)
}
