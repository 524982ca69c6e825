// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/dlmm-tracker/internal/dlmm"
)

var validConfigJSON = `{
    "data_source_mode": "live",
    "positions_api_url": "https://positions.example.com",
    "price_api_url": "https://prices.example.com",
    "price_api_key": "secret",
    "http_timeout_ms": 5000,
    "page_size": 50,
    "pair_id": "pair-1",
    "refresh_interval_ms": 10000,
    "retry_delay_ms": 500,
    "fetch_attempts": 4,
    "background_attempts": 2,
    "price_rate_per_sec": 2.5,
    "price_cache_ttl_ms": 30000,
    "enrich_concurrency": 4,
    "debug_logging": true
}`

var invalidConfigJSON = `{
    "data_source_mode": "mainnet",
    "refresh_interval_ms": -1
}`

func setupTestConfig(t *testing.T, content string) string {
	t.Helper()
	// Создаем временный конфиг файл с безопасными правами доступа
	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	return configPath
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "Valid config",
			content: validConfigJSON,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, dlmm.ModeLive, cfg.Mode())
				assert.Equal(t, "https://positions.example.com", cfg.PositionsAPIURL)
				assert.Equal(t, "secret", cfg.PriceAPIKey)
				assert.Equal(t, 4, cfg.FetchAttempts)
				assert.Equal(t, 2.5, cfg.PriceRatePerSec)
				assert.True(t, cfg.DebugLogging)
			},
		},
		{
			name:    "Defaults fill missing keys",
			content: `{"pair_id": "abc"}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, dlmm.ModeDemo, cfg.Mode())
				assert.Equal(t, DefaultPositionsAPIURL, cfg.PositionsAPIURL)
				assert.Equal(t, DefaultRefreshIntervalMs, cfg.RefreshIntervalMs)
				assert.Equal(t, DefaultFetchAttempts, cfg.FetchAttempts)
				assert.Equal(t, DefaultBackgroundAttempts, cfg.BackgroundAttempts)
				assert.Equal(t, "abc", cfg.PairID)
			},
		},
		{
			name:    "Invalid config - unknown mode",
			content: invalidConfigJSON,
			wantErr: true,
		},
		{
			name:    "Invalid JSON syntax",
			content: "{invalid json",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(setupTestConfig(t, tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultMode, cfg.DataSourceMode)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DLMM_TRACKER_DATA_SOURCE_MODE", "LIVE")
	t.Setenv("DLMM_TRACKER_FETCH_ATTEMPTS", "5")
	t.Setenv("DLMM_TRACKER_PRICE_API_KEY", "from-env")

	cfg, err := LoadConfig(setupTestConfig(t, validConfigJSON))
	require.NoError(t, err)
	assert.Equal(t, "live", cfg.DataSourceMode)
	assert.Equal(t, 5, cfg.FetchAttempts)
	assert.Equal(t, "from-env", cfg.PriceAPIKey)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "Valid configuration", mutate: func(*Config) {}},
		{name: "Unknown mode", mutate: func(c *Config) { c.DataSourceMode = "test" }, wantErr: true},
		{name: "Bad positions URL", mutate: func(c *Config) { c.PositionsAPIURL = "ftp://x" }, wantErr: true},
		{name: "Price URL without host", mutate: func(c *Config) { c.PriceAPIURL = "https://" }, wantErr: true},
		{name: "Zero attempts", mutate: func(c *Config) { c.FetchAttempts = 0 }, wantErr: true},
		{name: "Zero background attempts", mutate: func(c *Config) { c.BackgroundAttempts = 0 }, wantErr: true},
		{name: "Negative retry delay", mutate: func(c *Config) { c.RetryDelayMs = -1 }, wantErr: true},
		{name: "Zero retry delay", mutate: func(c *Config) { c.RetryDelayMs = 0 }},
		{name: "Zero page size", mutate: func(c *Config) { c.PageSize = 0 }, wantErr: true},
		{name: "Zero rate", mutate: func(c *Config) { c.PriceRatePerSec = 0 }, wantErr: true},
		{name: "Zero concurrency", mutate: func(c *Config) { c.EnrichConcurrency = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProjections(t *testing.T) {
	cfg, err := LoadConfig(setupTestConfig(t, validConfigJSON))
	require.NoError(t, err)

	to := cfg.Tracker()
	assert.Equal(t, 10*time.Second, to.Interval)
	assert.Equal(t, 500*time.Millisecond, to.RetryDelay)
	assert.Equal(t, 4, to.Attempts)
	assert.Equal(t, 2, to.BackgroundAttempts)

	so := cfg.Source()
	assert.Equal(t, dlmm.ModeLive, so.Mode)
	assert.Equal(t, 5*time.Second, so.Timeout)
	assert.Equal(t, 50, so.PageSize)
	assert.Equal(t, "pair-1", so.PairID)

	oo := cfg.Oracle()
	assert.Equal(t, "secret", oo.APIKey)
	assert.Equal(t, 30*time.Second, oo.CacheTTL)
	assert.Equal(t, 2.5, oo.RatePerSec)

	lc := cfg.Logger()
	assert.True(t, lc.Development)
	assert.Empty(t, lc.LogFile)
}
