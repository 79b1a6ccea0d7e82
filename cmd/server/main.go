// Package main provides the entry point for the PayPal proxy server.
// The server exposes a small read-only API in front of the PayPal reporting
// endpoints, handling authentication, retries, wide date ranges and response
// post-processing so frontends do not have to.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/router-for-me/PayPalProxyAPI/internal/buildinfo"
	"github.com/router-for-me/PayPalProxyAPI/internal/cmd"
	"github.com/router-for-me/PayPalProxyAPI/internal/config"
	"github.com/router-for-me/PayPalProxyAPI/internal/logging"
	"github.com/router-for-me/PayPalProxyAPI/internal/misc"
	"github.com/router-for-me/PayPalProxyAPI/internal/util"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	fmt.Printf("PayPalProxyAPI Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	var configPath string
	flag.StringVar(&configPath, "config", "", "Configure File Path")
	flag.Parse()

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	if configPath == "" {
		configPath = filepath.Join(wd, "config.yaml")
	}

	// Bootstrap a fresh install from the example template.
	if _, errStat := os.Stat(configPath); errors.Is(errStat, os.ErrNotExist) {
		examplePath := filepath.Join(wd, "config.example.yaml")
		if _, errExample := os.Stat(examplePath); errExample == nil {
			if errCopy := misc.CopyConfigTemplate(examplePath, configPath); errCopy != nil {
				log.Warnf("failed to bootstrap config from template: %v", errCopy)
			} else {
				log.Infof("config initialized from template: %s", configPath)
			}
		}
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return
	}

	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		return
	}

	log.Infof("PayPalProxyAPI Version: %s, Commit: %s, BuiltAt: %s", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	// Set the log level based on the configuration.
	util.SetLogLevel(cfg)

	cmd.StartService(cfg, configPath)
}
