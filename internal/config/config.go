// Package config provides configuration management for the PayPal proxy
// server. It handles loading and parsing the YAML configuration file,
// applies environment variable overrides for credentials, and validates
// settings before the server starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PayPalConfig holds the upstream credential set and client tuning.
type PayPalConfig struct {
	// ClientID is the OAuth2 client id for the reporting API. Overridable
	// via the PAYPAL_CLIENT_ID environment variable.
	ClientID string `yaml:"client-id"`

	// ClientSecret is the OAuth2 client secret. Overridable via
	// PAYPAL_CLIENT_SECRET.
	ClientSecret string `yaml:"client-secret"`

	// Mode selects the upstream environment: "sandbox" or "live".
	// Overridable via PAYPAL_MODE.
	Mode string `yaml:"mode"`

	// RequestTimeoutSeconds bounds each individual upstream call. Default 5.
	RequestTimeoutSeconds int `yaml:"request-timeout-seconds,omitempty"`

	// ChunkConcurrency caps concurrent chunk requests when a transactions
	// query is partitioned. Default 4.
	ChunkConcurrency int `yaml:"chunk-concurrency,omitempty"`
}

// ConversionConfig tunes the currency conversion enrichment.
type ConversionConfig struct {
	// ReferenceCurrency is the target currency for enrichment. Default USD.
	ReferenceCurrency string `yaml:"reference-currency,omitempty"`

	// RateTTLMinutes is how long fetched exchange rates are cached.
	// Default 60.
	RateTTLMinutes int `yaml:"rate-ttl-minutes,omitempty"`
}

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Overridable via PORT.
	Port int `yaml:"port"`

	// Debug enables debug-level logging and Gin debug mode.
	Debug bool `yaml:"debug"`

	// LoggingToFile switches log output from stdout to rotating files.
	LoggingToFile bool `yaml:"logging-to-file"`

	// LogsMaxTotalSizeMB bounds the total size of the logs directory.
	// <= 0 disables the cleaner.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb,omitempty"`

	// ProxyURL is the URL of an optional proxy server for outbound requests
	// (http, https or socks5).
	ProxyURL string `yaml:"proxy-url,omitempty"`

	// RateLimitPerMinute is the per-IP request budget on the API routes.
	// Default 60; a negative value disables rate limiting (unset and 0 both
	// select the default).
	RateLimitPerMinute int `yaml:"rate-limit-per-minute,omitempty"`

	// StaticDir is the directory served for the frontend assets. Routes are
	// registered only when the directory exists. Default "static".
	StaticDir string `yaml:"static-dir,omitempty"`

	// PayPal holds the upstream credential set and client tuning.
	PayPal PayPalConfig `yaml:"paypal"`

	// Conversion tunes the currency conversion enrichment.
	Conversion ConversionConfig `yaml:"conversion,omitempty"`
}

// LoadConfig reads the YAML file at path, applies environment overrides,
// defaults and validation. A missing file is not an error: the configuration
// is then assembled from defaults and environment variables alone.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, errUnmarshal)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values, so
// credentials never need to live in the YAML file.
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("PAYPAL_CLIENT_ID")); v != "" {
		c.PayPal.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv("PAYPAL_CLIENT_SECRET")); v != "" {
		c.PayPal.ClientSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("PAYPAL_MODE")); v != "" {
		c.PayPal.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.PayPal.Mode == "" {
		c.PayPal.Mode = "sandbox"
	}
	if c.PayPal.RequestTimeoutSeconds <= 0 {
		c.PayPal.RequestTimeoutSeconds = 5
	}
	if c.PayPal.ChunkConcurrency <= 0 {
		c.PayPal.ChunkConcurrency = 4
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.StaticDir == "" {
		c.StaticDir = "static"
	}
	if c.Conversion.ReferenceCurrency == "" {
		c.Conversion.ReferenceCurrency = "USD"
	}
	if c.Conversion.RateTTLMinutes <= 0 {
		c.Conversion.RateTTLMinutes = 60
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.PayPal.Mode != "sandbox" && c.PayPal.Mode != "live" {
		return fmt.Errorf("config: paypal mode must be \"sandbox\" or \"live\", got %q", c.PayPal.Mode)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d is out of range", c.Port)
	}
	return nil
}
