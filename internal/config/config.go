package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is assembled from environment variables plus an optional YAML
// tunables file named by PRICEFOLIO_TUNABLES. Every tunable has a code
// default so both sources are optional.
type Config struct {
	Port        string
	PostgresURL string

	FinnhubKey       string
	FinnhubBaseURL   string
	YahooBaseURL     string
	CoinGeckoBaseURL string
	MetalsBaseURL    string

	HTTPTimeout       time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	ForbiddenCooldown time.Duration

	EquityTTL  time.Duration
	CryptoTTL  time.Duration
	MetalTTL   time.Duration
	HistoryTTL time.Duration

	EquityBatchSize  int
	EquityBatchDelay time.Duration
	RefreshTimeout   time.Duration

	ResolverCacheSize int
}

// tunables mirrors the YAML file. Durations are plain integers in the
// unit named by the field so the file needs no custom parsing.
type tunables struct {
	HTTPTimeoutSeconds       int `yaml:"http_timeout_seconds"`
	MaxRetries               int `yaml:"max_retries"`
	RetryBackoffMs           int `yaml:"retry_backoff_ms"`
	ForbiddenCooldownSeconds int `yaml:"forbidden_cooldown_seconds"`
	EquityTTLSeconds         int `yaml:"equity_ttl_seconds"`
	CryptoTTLSeconds         int `yaml:"crypto_ttl_seconds"`
	MetalTTLSeconds          int `yaml:"metal_ttl_seconds"`
	HistoryTTLSeconds        int `yaml:"history_ttl_seconds"`
	EquityBatchSize          int `yaml:"equity_batch_size"`
	EquityBatchDelayMs       int `yaml:"equity_batch_delay_ms"`
	RefreshTimeoutSeconds    int `yaml:"refresh_timeout_seconds"`
	ResolverCacheSize        int `yaml:"resolver_cache_size"`
}

func Load() (Config, error) {
	cfg := Config{
		Port:        getenv("PORT", "8080"),
		PostgresURL: os.Getenv("POSTGRES_URL"),

		FinnhubKey:       os.Getenv("FINNHUB_API_KEY"),
		FinnhubBaseURL:   getenv("FINNHUB_BASE_URL", "https://finnhub.io/api/v1"),
		YahooBaseURL:     getenv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		CoinGeckoBaseURL: getenv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
		MetalsBaseURL:    getenv("METALS_BASE_URL", "https://api.gold-api.com"),

		HTTPTimeout:       10 * time.Second,
		MaxRetries:        2,
		RetryBackoff:      500 * time.Millisecond,
		ForbiddenCooldown: 5 * time.Minute,

		EquityTTL:  60 * time.Second,
		CryptoTTL:  5 * time.Minute,
		MetalTTL:   60 * time.Minute,
		HistoryTTL: 5 * time.Minute,

		EquityBatchSize:  10,
		EquityBatchDelay: time.Second,
		RefreshTimeout:   30 * time.Second,

		ResolverCacheSize: 512,
	}

	path := os.Getenv("PRICEFOLIO_TUNABLES")
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read tunables %s: %w", path, err)
	}
	var t tunables
	if err := yaml.Unmarshal(b, &t); err != nil {
		return cfg, fmt.Errorf("parse tunables %s: %w", path, err)
	}
	cfg.apply(t)
	return cfg, nil
}

func (c *Config) apply(t tunables) {
	if t.HTTPTimeoutSeconds > 0 {
		c.HTTPTimeout = time.Duration(t.HTTPTimeoutSeconds) * time.Second
	}
	if t.MaxRetries > 0 {
		c.MaxRetries = t.MaxRetries
	}
	if t.RetryBackoffMs > 0 {
		c.RetryBackoff = time.Duration(t.RetryBackoffMs) * time.Millisecond
	}
	if t.ForbiddenCooldownSeconds > 0 {
		c.ForbiddenCooldown = time.Duration(t.ForbiddenCooldownSeconds) * time.Second
	}
	if t.EquityTTLSeconds > 0 {
		c.EquityTTL = time.Duration(t.EquityTTLSeconds) * time.Second
	}
	if t.CryptoTTLSeconds > 0 {
		c.CryptoTTL = time.Duration(t.CryptoTTLSeconds) * time.Second
	}
	if t.MetalTTLSeconds > 0 {
		c.MetalTTL = time.Duration(t.MetalTTLSeconds) * time.Second
	}
	if t.HistoryTTLSeconds > 0 {
		c.HistoryTTL = time.Duration(t.HistoryTTLSeconds) * time.Second
	}
	if t.EquityBatchSize > 0 {
		c.EquityBatchSize = t.EquityBatchSize
	}
	if t.EquityBatchDelayMs > 0 {
		c.EquityBatchDelay = time.Duration(t.EquityBatchDelayMs) * time.Millisecond
	}
	if t.RefreshTimeoutSeconds > 0 {
		c.RefreshTimeout = time.Duration(t.RefreshTimeoutSeconds) * time.Second
	}
	if t.ResolverCacheSize > 0 {
		c.ResolverCacheSize = t.ResolverCacheSize
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
