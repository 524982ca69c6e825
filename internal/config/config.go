// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/dlmm-tracker/internal/dlmm"
	"github.com/rovshanmuradov/dlmm-tracker/internal/oracle"
	"github.com/rovshanmuradov/dlmm-tracker/internal/source"
	"github.com/rovshanmuradov/dlmm-tracker/internal/tracker"
	"github.com/rovshanmuradov/dlmm-tracker/internal/utils/logger"
)

const EnvPrefix = "DLMM_TRACKER"

type Config struct {
	DataSourceMode     string  `mapstructure:"data_source_mode"`
	PositionsAPIURL    string  `mapstructure:"positions_api_url"`
	PriceAPIURL        string  `mapstructure:"price_api_url"`
	PriceAPIKey        string  `mapstructure:"price_api_key"`
	HTTPTimeoutMs      int     `mapstructure:"http_timeout_ms"`
	PageSize           int     `mapstructure:"page_size"`
	PairID             string  `mapstructure:"pair_id"`
	RefreshIntervalMs  int     `mapstructure:"refresh_interval_ms"`
	RetryDelayMs       int     `mapstructure:"retry_delay_ms"`
	FetchAttempts      int     `mapstructure:"fetch_attempts"`
	BackgroundAttempts int     `mapstructure:"background_attempts"`
	PriceRatePerSec    float64 `mapstructure:"price_rate_per_sec"`
	PriceCacheTTLMs    int     `mapstructure:"price_cache_ttl_ms"`
	EnrichConcurrency  int     `mapstructure:"enrich_concurrency"`
	DemoLatencyMs      int     `mapstructure:"demo_latency_ms"`
	LogFile            string  `mapstructure:"log_file"`
	DebugLogging       bool    `mapstructure:"debug_logging"`
}

const (
	DefaultMode               = string(dlmm.ModeDemo)
	DefaultPositionsAPIURL    = source.DefaultBaseURL
	DefaultPriceAPIURL        = oracle.DefaultBaseURL
	DefaultHTTPTimeoutMs      = 15000
	DefaultPageSize           = 100
	DefaultRefreshIntervalMs  = 30000
	DefaultRetryDelayMs       = 2000
	DefaultFetchAttempts      = tracker.DefaultAttempts
	DefaultBackgroundAttempts = tracker.DefaultBackgroundAttempts
	DefaultPriceRatePerSec    = 10
	DefaultPriceCacheTTLMs    = 60000
	DefaultEnrichConcurrency  = 8
)

// LoadConfig reads path (optional), then .env and DLMM_TRACKER_* variables
// on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"data_source_mode":    DefaultMode,
		"positions_api_url":   DefaultPositionsAPIURL,
		"price_api_url":       DefaultPriceAPIURL,
		"price_api_key":       "",
		"http_timeout_ms":     DefaultHTTPTimeoutMs,
		"page_size":           DefaultPageSize,
		"pair_id":             "",
		"refresh_interval_ms": DefaultRefreshIntervalMs,
		"retry_delay_ms":      DefaultRetryDelayMs,
		"fetch_attempts":      DefaultFetchAttempts,
		"background_attempts": DefaultBackgroundAttempts,
		"price_rate_per_sec":  DefaultPriceRatePerSec,
		"price_cache_ttl_ms":  DefaultPriceCacheTTLMs,
		"enrich_concurrency":  DefaultEnrichConcurrency,
		"demo_latency_ms":     0,
		"log_file":            "",
		"debug_logging":       false,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	loadEnvironmentVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.DataSourceMode = strings.ToLower(strings.TrimSpace(cfg.DataSourceMode))

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if _, err := dlmm.ParseMode(cfg.DataSourceMode); err != nil {
		return fmt.Errorf("invalid data_source_mode: %w", err)
	}
	if err := validateURLWithCache(cfg.PositionsAPIURL, "http"); err != nil {
		return fmt.Errorf("invalid positions_api_url: %w", err)
	}
	if err := validateURLWithCache(cfg.PriceAPIURL, "http"); err != nil {
		return fmt.Errorf("invalid price_api_url: %w", err)
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.HTTPTimeoutMs <= 0 {
		return errors.New("invalid http_timeout_ms")
	}
	if cfg.PageSize <= 0 {
		return errors.New("invalid page_size")
	}
	if cfg.RefreshIntervalMs <= 0 {
		return errors.New("invalid refresh_interval_ms")
	}
	if cfg.RetryDelayMs < 0 {
		return errors.New("invalid retry_delay_ms")
	}
	if cfg.FetchAttempts <= 0 {
		return errors.New("invalid fetch_attempts count")
	}
	if cfg.BackgroundAttempts <= 0 {
		return errors.New("invalid background_attempts count")
	}
	if cfg.PriceRatePerSec <= 0 {
		return errors.New("invalid price_rate_per_sec")
	}
	if cfg.PriceCacheTTLMs < 0 {
		return errors.New("invalid price_cache_ttl_ms")
	}
	if cfg.EnrichConcurrency <= 0 {
		return errors.New("invalid enrich_concurrency")
	}
	if cfg.DemoLatencyMs < 0 {
		return errors.New("invalid demo_latency_ms")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

// loadEnvironmentVariables maps DLMM_TRACKER_<KEY> onto every config key.
// A .env file in the working directory is loaded first when present.
func loadEnvironmentVariables(v *viper.Viper) {
	_ = godotenv.Load()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Mode returns the parsed data source mode. Call after LoadConfig.
func (c *Config) Mode() dlmm.Mode {
	mode, err := dlmm.ParseMode(c.DataSourceMode)
	if err != nil {
		return dlmm.ModeDemo
	}
	return mode
}

// Source projects the position source settings.
func (c *Config) Source() source.Options {
	return source.Options{
		Mode:        c.Mode(),
		BaseURL:     c.PositionsAPIURL,
		Timeout:     ms(c.HTTPTimeoutMs),
		PageSize:    c.PageSize,
		PairID:      c.PairID,
		DemoLatency: ms(c.DemoLatencyMs),
	}
}

// Oracle projects the price client settings.
func (c *Config) Oracle() oracle.Options {
	return oracle.Options{
		Mode:       c.Mode(),
		BaseURL:    c.PriceAPIURL,
		APIKey:     c.PriceAPIKey,
		Timeout:    ms(c.HTTPTimeoutMs),
		RatePerSec: c.PriceRatePerSec,
		CacheTTL:   ms(c.PriceCacheTTLMs),
	}
}

// Tracker projects the refresh policy.
func (c *Config) Tracker() tracker.Options {
	return tracker.Options{
		Interval:           ms(c.RefreshIntervalMs),
		RetryDelay:         ms(c.RetryDelayMs),
		Attempts:           c.FetchAttempts,
		BackgroundAttempts: c.BackgroundAttempts,
	}
}

// Logger projects the logging settings.
func (c *Config) Logger() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.LogFile = c.LogFile
	cfg.Development = c.DebugLogging
	return cfg
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
