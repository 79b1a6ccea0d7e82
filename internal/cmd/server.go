// Package cmd wires the configuration, upstream client, currency converter,
// HTTP server and config watcher together and runs the service until a
// shutdown signal arrives.
package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/router-for-me/PayPalProxyAPI/internal/api"
	"github.com/router-for-me/PayPalProxyAPI/internal/api/handlers"
	"github.com/router-for-me/PayPalProxyAPI/internal/config"
	"github.com/router-for-me/PayPalProxyAPI/internal/fx"
	"github.com/router-for-me/PayPalProxyAPI/internal/paypal"
	"github.com/router-for-me/PayPalProxyAPI/internal/util"
	"github.com/router-for-me/PayPalProxyAPI/internal/watcher"
)

// StartService builds the full service from the configuration and blocks
// until SIGINT or SIGTERM. The config file at configFilePath is watched for
// changes; reloadable settings are applied without a restart.
func StartService(cfg *config.Config, configFilePath string) {
	httpClient := util.SetProxy(cfg.ProxyURL, &http.Client{})

	client, err := paypal.NewClient(
		paypal.Credentials{
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			Mode:         cfg.PayPal.Mode,
		},
		paypal.Options{
			RequestTimeout:   time.Duration(cfg.PayPal.RequestTimeoutSeconds) * time.Second,
			ChunkConcurrency: cfg.PayPal.ChunkConcurrency,
			HTTPClient:       httpClient,
		},
	)
	if err != nil {
		log.Errorf("failed to create upstream client: %v", err)
		return
	}

	converter := fx.NewConverter(
		fx.NewClient("", util.SetProxy(cfg.ProxyURL, &http.Client{Timeout: 10 * time.Second})),
		cfg.Conversion.ReferenceCurrency,
		time.Duration(cfg.Conversion.RateTTLMinutes)*time.Minute,
	)

	handler := handlers.NewPayPalHandler(client, converter)
	server := api.NewServer(cfg, handler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watcher.NewWatcher(configFilePath, func(newCfg *config.Config) {
		util.SetLogLevel(newCfg)
		client.SetChunkConcurrency(newCfg.PayPal.ChunkConcurrency)
		server.OnConfigUpdated(newCfg)
	})
	if err != nil {
		log.Warnf("config watcher unavailable, hot reload disabled: %v", err)
	} else {
		if errStart := w.Start(ctx); errStart != nil {
			log.Warnf("failed to start config watcher: %v", errStart)
		}
		defer func() { _ = w.Stop() }()
	}

	log.Infof("starting in %s mode on port %d", cfg.PayPal.Mode, cfg.Port)
	if err = server.Start(ctx); err != nil {
		log.Errorf("server exited with error: %v", err)
	}
}
