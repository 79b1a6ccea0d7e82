// Package util provides utility functions for the PayPal proxy server.
// It includes helper functions for proxy configuration, log level
// management, and JSON document transformations applied to upstream
// responses before they are returned to callers.
package util

import (
	"github.com/router-for-me/PayPalProxyAPI/internal/config"
	log "github.com/sirupsen/logrus"
)

// SetLogLevel applies the configured log level to the global logger.
func SetLogLevel(cfg *config.Config) {
	currentLevel := log.GetLevel()
	var newLevel log.Level
	if cfg.Debug {
		newLevel = log.DebugLevel
	} else {
		newLevel = log.InfoLevel
	}

	if currentLevel != newLevel {
		log.SetLevel(newLevel)
		log.Infof("log level changed from %s to %s (debug=%t)", currentLevel, newLevel, cfg.Debug)
	}
}
