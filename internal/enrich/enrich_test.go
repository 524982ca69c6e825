package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/dlmm-tracker/internal/dlmm"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	usdtMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// MockPriceSource реализует PriceSource поверх testify/mock
type MockPriceSource struct {
	mock.Mock
}

func (m *MockPriceSource) GetPrice(ctx context.Context, mint string) (decimal.Decimal, error) {
	args := m.Called(ctx, mint)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// tablePrices is a lock-free read-only price table.
type tablePrices map[string]float64

func (p tablePrices) GetPrice(_ context.Context, mint string) (decimal.Decimal, error) {
	return decimal.NewFromFloat(p[mint]), nil
}

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func position(id string, shares []float64, tokens ...dlmm.Token) dlmm.Position {
	p := dlmm.Position{RawBinPosition: dlmm.RawBinPosition{ID: dlmm.Ref(id), Tokens: tokens}}
	for _, s := range shares {
		p.LiquidityShares = append(p.LiquidityShares, d(s))
	}
	return p
}

func token(mint, symbol string, amount float64) dlmm.Token {
	return dlmm.Token{Mint: mint, Symbol: symbol, Amount: d(amount)}
}

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func TestEnrich_ComputesValueAndPnL(t *testing.T) {
	prices := tablePrices{solMint: 100, usdcMint: 1, usdtMint: 1}
	e := NewEnricher(prices, zaptest.NewLogger(t), WithClock(func() time.Time { return fixedNow }))

	in := []dlmm.Position{
		position("1", []float64{1000, 1500}, token(solMint, "SOL", 25), token(usdcMint, "USDC", 1000)),
		position("2", []float64{600, 600}, token(solMint, "SOL", 12), token(usdtMint, "USDT", 500)),
	}

	out, err := e.Enrich(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out, 2)

	first := out[0]
	assert.True(t, first.TotalValue.Equal(d(3500)), "total value %s", first.TotalValue)
	assert.True(t, first.PnL.Equal(d(1000)))
	assert.True(t, first.PnLPercentage.Equal(d(40)))
	require.Len(t, first.TokenValues, 2)
	assert.True(t, first.TokenValues[0].Equal(d(2500)))
	assert.True(t, first.TokenValues[1].Equal(d(1000)))
	assert.Equal(t, fixedNow, first.LastUpdated)

	second := out[1]
	assert.True(t, second.TotalValue.Equal(d(1700)))
	assert.True(t, second.PnL.Equal(d(500)))
}

func TestEnrich_PnLIdentities(t *testing.T) {
	prices := tablePrices{solMint: 87.3, usdcMint: 0.999}
	e := NewEnricher(prices, zaptest.NewLogger(t))

	in := []dlmm.Position{
		position("a", []float64{100, 250.5}, token(solMint, "SOL", 1.7), token(usdcMint, "USDC", 33)),
		position("b", nil, token(solMint, "SOL", 2)),
		position("c", []float64{0, 0}, token(usdcMint, "USDC", 10)),
		position("d", []float64{10}),
	}

	out, err := e.Enrich(context.Background(), in)
	require.NoError(t, err)

	for _, p := range out {
		assert.Len(t, p.TokenValues, len(p.Tokens), "position %s", p.ID)

		liquidity := p.LiquidityValue()
		assert.True(t, p.PnL.Equal(p.TotalValue.Sub(liquidity)), "position %s", p.ID)

		if liquidity.IsZero() {
			assert.True(t, p.PnLPercentage.IsZero(), "position %s", p.ID)
			continue
		}
		want, _ := p.PnL.Div(liquidity).Mul(d(100)).Float64()
		got, _ := p.PnLPercentage.Float64()
		assert.InDelta(t, want, got, 1e-9, "position %s", p.ID)
	}
}

func TestEnrich_MissingPriceIsZero(t *testing.T) {
	e := NewEnricher(tablePrices{}, zaptest.NewLogger(t))

	out, err := e.Enrich(context.Background(), []dlmm.Position{
		position("1", []float64{50}, token("unknown", "???", 10)),
	})
	require.NoError(t, err)
	assert.True(t, out[0].TotalValue.IsZero())
	assert.True(t, out[0].PnL.Equal(d(-50)))
	assert.Empty(t, out[0].PriceError)
}

func TestEnrich_PriceFailureIsIsolated(t *testing.T) {
	prices := new(MockPriceSource)
	prices.On("GetPrice", mock.Anything, solMint).Return(d(100), nil)
	prices.On("GetPrice", mock.Anything, usdcMint).Return(d(1), nil)
	prices.On("GetPrice", mock.Anything, "broken").Return(decimal.Zero, errors.New("oracle down"))

	e := NewEnricher(prices, zaptest.NewLogger(t), WithClock(func() time.Time { return fixedNow }))

	good := position("good", []float64{1000, 1500}, token(solMint, "SOL", 25), token(usdcMint, "USDC", 1000))
	bad := position("bad", []float64{600}, token(solMint, "SOL", 12), token("broken", "BRK", 5))

	out, err := e.Enrich(context.Background(), []dlmm.Position{good, bad})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.True(t, out[0].TotalValue.Equal(d(3500)))
	assert.True(t, out[0].PnL.Equal(d(1000)))
	assert.Empty(t, out[0].PriceError)

	downgraded := out[1]
	assert.Equal(t, dlmm.Ref("bad"), downgraded.ID)
	assert.True(t, downgraded.TotalValue.IsZero())
	assert.True(t, downgraded.PnL.IsZero())
	assert.True(t, downgraded.PnLPercentage.IsZero())
	require.Len(t, downgraded.TokenValues, 2)
	for _, v := range downgraded.TokenValues {
		assert.True(t, v.IsZero())
	}
	assert.Equal(t, fixedNow, downgraded.LastUpdated)
	assert.Contains(t, downgraded.PriceError, "oracle down")
}

// countingPrices records concurrent lookups.
type countingPrices struct {
	mu      sync.Mutex
	active  int
	maxSeen int
	delay   time.Duration
}

func (c *countingPrices) GetPrice(ctx context.Context, _ string) (decimal.Decimal, error) {
	c.mu.Lock()
	c.active++
	if c.active > c.maxSeen {
		c.maxSeen = c.active
	}
	c.mu.Unlock()

	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
	}

	c.mu.Lock()
	c.active--
	c.mu.Unlock()
	return d(1), nil
}

func TestEnrich_TokensPricedInParallel(t *testing.T) {
	prices := &countingPrices{delay: 100 * time.Millisecond}
	e := NewEnricher(prices, zaptest.NewLogger(t), WithConcurrency(1))

	_, err := e.Enrich(context.Background(), []dlmm.Position{
		position("1", nil, token("a", "A", 1), token("b", "B", 1), token("c", "C", 1)),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, prices.maxSeen)
}

func TestEnrich_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prices := new(MockPriceSource)
	prices.On("GetPrice", mock.Anything, mock.Anything).Return(decimal.Zero, context.Canceled)
	e := NewEnricher(prices, zaptest.NewLogger(t))

	_, err := e.Enrich(ctx, []dlmm.Position{position("1", nil, token("a", "A", 1))})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompute_ZeroLiquidity(t *testing.T) {
	p := Compute(position("x", []float64{0}), []decimal.Decimal{}, fixedNow)
	assert.True(t, p.PnLPercentage.IsZero())
	assert.True(t, p.TotalValue.IsZero())
}
