// internal/oracle/client.go
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rovshanmuradov/dlmm-tracker/internal/dlmm"
)

const (
	DefaultBaseURL    = "https://public-api.birdeye.so"
	defaultTimeout    = 15 * time.Second
	defaultRatePerSec = 10
	defaultCacheTTL   = time.Minute
	defaultMaxTries   = 3
	defaultRetryDelay = 250 * time.Millisecond
)

// DemoPrices is the fixed price table used in demo mode and as the last
// live fallback.
var DemoPrices = map[string]decimal.Decimal{
	dlmm.SOLMint.String():  decimal.NewFromInt(100),
	dlmm.USDCMint.String(): decimal.NewFromInt(1),
	dlmm.USDTMint.String(): decimal.NewFromInt(1),
}

// Options configures the price client.
type Options struct {
	Mode       dlmm.Mode
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
	CacheTTL   time.Duration
	MaxTries   uint
	RetryDelay time.Duration
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client resolves token prices. GetPrice never fails on transport errors:
// it falls back to the last known price, then the demo table, then zero.
type Client struct {
	mode       dlmm.Mode
	baseURL    string
	apiKey     string
	http       *http.Client
	limiter    *rate.Limiter
	cache      *priceCache
	maxTries   uint
	retryDelay time.Duration
	logger     *zap.Logger
}

type priceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		Value decimal.Decimal `json:"value"`
	} `json:"data"`
}

// NewClient creates a price client.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Mode == "" {
		opts.Mode = dlmm.ModeDemo
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = defaultRatePerSec
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.MaxTries == 0 {
		opts.MaxTries = defaultMaxTries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		mode:       opts.Mode,
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		http:       httpClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSec), int(opts.RatePerSec)+1),
		cache:      newPriceCache(opts.CacheTTL, opts.Now),
		maxTries:   opts.MaxTries,
		retryDelay: opts.RetryDelay,
		logger:     logger.Named("price_oracle"),
	}
}

// GetPrice returns the unit price for mint. The only error is a cancelled
// context.
func (c *Client) GetPrice(ctx context.Context, mint string) (decimal.Decimal, error) {
	if c.mode == dlmm.ModeDemo {
		return fallbackPrice(mint), nil
	}

	if price, ok := c.cache.fresh(mint); ok {
		return price, nil
	}

	price, err := c.fetchWithRetry(ctx, mint)
	if err == nil {
		c.cache.set(mint, price)
		return price, nil
	}

	if ctx.Err() != nil {
		return decimal.Zero, ctx.Err()
	}

	if last, ok := c.cache.last(mint); ok {
		c.logger.Warn("Price lookup failed, using last known price",
			zap.String("mint", mint),
			zap.String("price", last.String()),
			zap.Error(err))
		return last, nil
	}

	fallback := fallbackPrice(mint)
	c.logger.Warn("Price lookup failed, using fallback price",
		zap.String("mint", mint),
		zap.String("price", fallback.String()),
		zap.Error(err))
	return fallback, nil
}

// Stats returns cache counters.
func (c *Client) Stats() CacheStats {
	return c.cache.stats()
}

func (c *Client) fetchWithRetry(ctx context.Context, mint string) (decimal.Decimal, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.MaxInterval = c.retryDelay * 10

	notify := func(err error, wait time.Duration) {
		c.logger.Debug("Retrying price request",
			zap.String("mint", mint),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	operation := func() (decimal.Decimal, error) {
		return c.fetch(ctx, mint)
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(notify))
}

// fetch performs one rate-limited request. Client errors other than 429 are
// permanent.
func (c *Client) fetch(ctx context.Context, mint string) (decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
	}

	endpoint := fmt.Sprintf("%s/defi/price?%s", c.baseURL, url.Values{"address": {mint}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-chain", "solana")
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return decimal.Zero, backoff.Permanent(err)
		}
		return decimal.Zero, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return decimal.Zero, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, backoff.Permanent(fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body)))
	}

	var payload priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if !payload.Success {
		return decimal.Zero, backoff.Permanent(fmt.Errorf("price request rejected for %s: %s", mint, payload.Message))
	}
	if payload.Data == nil {
		return decimal.Zero, backoff.Permanent(fmt.Errorf("no price data for %s", mint))
	}
	if payload.Data.Value.IsNegative() {
		return decimal.Zero, backoff.Permanent(fmt.Errorf("negative price %s for %s", payload.Data.Value, mint))
	}

	return payload.Data.Value, nil
}

func fallbackPrice(mint string) decimal.Decimal {
	if price, ok := DemoPrices[mint]; ok {
		return price
	}
	return decimal.Zero
}
