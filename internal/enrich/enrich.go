// internal/enrich/enrich.go
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/dlmm-tracker/internal/dlmm"
)

const defaultConcurrency = 8

var hundred = decimal.NewFromInt(100)

// PriceSource returns the unit price of a token mint.
type PriceSource interface {
	GetPrice(ctx context.Context, mint string) (decimal.Decimal, error)
}

// Enricher prices merged positions and derives value and P&L.
type Enricher struct {
	prices      PriceSource
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithConcurrency bounds how many positions are priced at once.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) { e.now = now }
}

// NewEnricher creates an Enricher.
func NewEnricher(prices PriceSource, logger *zap.Logger, opts ...Option) *Enricher {
	e := &Enricher{
		prices:      prices,
		logger:      logger.Named("enricher"),
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich prices every position independently. The returned slice has the same
// length and order as the input. A pricing failure downgrades only the
// affected position; the only error returned is a cancelled context.
func (e *Enricher) Enrich(ctx context.Context, positions []dlmm.Position) ([]dlmm.EnrichedPosition, error) {
	out := make([]dlmm.EnrichedPosition, len(positions))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range positions {
		g.Go(func() error {
			enriched, err := e.enrichOne(gCtx, positions[i])
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Warn("Failed to price position, zeroing values",
					zap.Int("index", i),
					zap.String("position_id", positions[i].ID.String()),
					zap.String("pool", positions[i].PoolID.String()),
					zap.Error(err))
				enriched = e.downgrade(positions[i], err)
			}
			out[i] = enriched
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// enrichOne fetches one price per token in parallel.
func (e *Enricher) enrichOne(ctx context.Context, pos dlmm.Position) (dlmm.EnrichedPosition, error) {
	prices := make([]decimal.Decimal, len(pos.Tokens))

	g, gCtx := errgroup.WithContext(ctx)
	for i, token := range pos.Tokens {
		g.Go(func() error {
			price, err := e.prices.GetPrice(gCtx, token.Mint)
			if err != nil {
				return fmt.Errorf("price %s (%s): %w", token.Symbol, token.Mint, err)
			}
			prices[i] = price
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return dlmm.EnrichedPosition{}, err
	}

	tokenValues := lo.Map(pos.Tokens, func(t dlmm.Token, i int) decimal.Decimal {
		return t.Amount.Mul(prices[i])
	})
	return Compute(pos, tokenValues, e.now()), nil
}

func (e *Enricher) downgrade(pos dlmm.Position, cause error) dlmm.EnrichedPosition {
	return dlmm.EnrichedPosition{
		Position:      pos,
		TokenValues:   lo.Map(pos.Tokens, func(dlmm.Token, int) decimal.Decimal { return decimal.Zero }),
		TotalValue:    decimal.Zero,
		PnL:           decimal.Zero,
		PnLPercentage: decimal.Zero,
		LastUpdated:   e.now(),
		PriceError:    cause.Error(),
	}
}

// Compute derives value and P&L for a position from per-token values.
func Compute(pos dlmm.Position, tokenValues []decimal.Decimal, at time.Time) dlmm.EnrichedPosition {
	total := decimal.Sum(decimal.Zero, tokenValues...)
	liquidity := pos.LiquidityValue()
	pnl := total.Sub(liquidity)

	pct := decimal.Zero
	if liquidity.IsPositive() {
		pct = pnl.Div(liquidity).Mul(hundred)
	}

	return dlmm.EnrichedPosition{
		Position:      pos,
		TokenValues:   tokenValues,
		TotalValue:    total,
		PnL:           pnl,
		PnLPercentage: pct,
		LastUpdated:   at,
	}
}
