// internal/source/client.go
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/dlmm-tracker/internal/dlmm"
)

const (
	DefaultBaseURL  = "https://api.saros.finance"
	defaultTimeout  = 15 * time.Second
	defaultPageSize = 100

	poolPositionPath = "/api/pool-position"
	binPositionPath  = "/api/bin-position"
)

// ErrNotFound is returned by the transport for a 404 response.
var ErrNotFound = errors.New("endpoint not found")

// Options configures the position source client.
type Options struct {
	Mode        dlmm.Mode
	BaseURL     string
	Timeout     time.Duration
	PageSize    int
	PairID      string
	DemoLatency time.Duration
	HTTPClient  *http.Client
}

// Result is the combined output of FetchAll.
// Success is false when either collection was substituted with demo data
// because the live source failed; Err then joins the failures.
type Result struct {
	PoolAggregates []dlmm.PoolAggregate
	BinPositions   []dlmm.RawBinPosition
	Success        bool
	Demo           bool
	Err            error
}

// Client fetches pool-level and bin-level positions for an account.
type Client struct {
	mode        dlmm.Mode
	baseURL     string
	pageSize    int
	pairID      string
	demoLatency time.Duration
	http        *http.Client
	logger      *zap.Logger
}

// NewClient creates a position source client.
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
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		mode:        opts.Mode,
		baseURL:     opts.BaseURL,
		pageSize:    opts.PageSize,
		pairID:      opts.PairID,
		demoLatency: opts.DemoLatency,
		http:        httpClient,
		logger:      logger.Named("position_source"),
	}
}

// Mode returns the configured data source mode.
func (c *Client) Mode() dlmm.Mode {
	return c.mode
}

// FetchPoolAggregates returns pool-level aggregates. ok is false when the
// live source failed and demo data was substituted.
func (c *Client) FetchPoolAggregates(ctx context.Context, accountID, pairID string) ([]dlmm.PoolAggregate, bool, error) {
	if c.mode == dlmm.ModeDemo {
		c.simulateLatency(ctx)
		return DemoPools(), true, nil
	}

	var pools []dlmm.PoolAggregate
	if err := c.get(ctx, poolPositionPath, accountID, pairID, &pools); err != nil {
		c.logFallback("pool positions", accountID, err)
		return DemoPools(), false, err
	}

	c.logger.Debug("Fetched pool positions",
		zap.String("account", accountID),
		zap.Int("count", len(pools)))
	return pools, true, nil
}

// FetchBinPositions returns bin-level positions, with the same fallback rules
// as FetchPoolAggregates.
func (c *Client) FetchBinPositions(ctx context.Context, accountID, pairID string) ([]dlmm.RawBinPosition, bool, error) {
	if c.mode == dlmm.ModeDemo {
		c.simulateLatency(ctx)
		return DemoBins(), true, nil
	}

	var bins []dlmm.RawBinPosition
	if err := c.get(ctx, binPositionPath, accountID, pairID, &bins); err != nil {
		c.logFallback("bin positions", accountID, err)
		return DemoBins(), false, err
	}

	c.logger.Debug("Fetched bin positions",
		zap.String("account", accountID),
		zap.Int("count", len(bins)))
	return bins, true, nil
}

// FetchAll fetches both collections in parallel using the configured pair filter.
func (c *Client) FetchAll(ctx context.Context, accountID string) Result {
	var (
		res             Result
		poolOK, binOK   bool
		poolErr, binErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		res.PoolAggregates, poolOK, poolErr = c.FetchPoolAggregates(ctx, accountID, c.pairID)
		return nil
	})
	g.Go(func() error {
		res.BinPositions, binOK, binErr = c.FetchBinPositions(ctx, accountID, c.pairID)
		return nil
	})
	_ = g.Wait()

	res.Success = poolOK && binOK
	res.Demo = c.mode == dlmm.ModeDemo || !res.Success
	res.Err = errors.Join(poolErr, binErr)
	return res
}

func (c *Client) get(ctx context.Context, path, accountID, pairID string, out any) error {
	params := url.Values{
		"user_id":   {accountID},
		"page_num":  {"1"},
		"page_size": {strconv.Itoa(c.pageSize)},
	}
	if pairID != "" {
		params.Set("pair_id", pairID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) logFallback(what, accountID string, err error) {
	var netErr net.Error
	reason := "request failed"
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		reason = "request timeout"
	case errors.Is(err, ErrNotFound):
		reason = "endpoint not found"
	case errors.As(err, &netErr):
		reason = "network error"
	}

	c.logger.Warn("Position source unavailable, using demo data",
		zap.String("what", what),
		zap.String("reason", reason),
		zap.String("account", accountID),
		zap.Error(err))
}

func (c *Client) simulateLatency(ctx context.Context) {
	if c.demoLatency <= 0 {
		return
	}
	select {
	case <-time.After(c.demoLatency):
	case <-ctx.Done():
	}
}
