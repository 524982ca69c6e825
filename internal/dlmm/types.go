// internal/dlmm/types.go
package dlmm

import (
	"time"

	"github.com/shopspring/decimal"
)

// Token is a single token balance inside a pool or a bin position.
type Token struct {
	Mint     string          `json:"mint"`
	Symbol   string          `json:"symbol"`
	Amount   decimal.Decimal `json:"amount"`
	Decimals *int            `json:"decimals,omitempty"`
}

// RawBinPosition is one discrete liquidity range as returned by the bin-position endpoint.
type RawBinPosition struct {
	ID              Ref               `json:"id"`
	Pool            Ref               `json:"pool"`
	LowerBinID      int               `json:"lowerBinId"`
	UpperBinID      int               `json:"upperBinId"`
	LiquidityShares []decimal.Decimal `json:"liquidityShares"`
	Tokens          []Token           `json:"tokens"`
	Fees            decimal.Decimal   `json:"fees"`
}

// PoolAggregate holds coarse per-pool totals from the pool-position endpoint.
type PoolAggregate struct {
	PoolID         Ref             `json:"poolId"`
	TotalLiquidity decimal.Decimal `json:"totalLiquidity"`
	TotalTokens    []Token         `json:"totalTokens"`
}

// Position is a bin position after reconciliation with its owning pool.
// Summary is set when the position was synthesized from pool totals because
// the pool had no bin-level detail.
type Position struct {
	RawBinPosition
	PoolID      Ref     `json:"poolId"`
	PoolName    string  `json:"poolName"`
	TotalTokens []Token `json:"totalTokens"`
	Summary     bool    `json:"summary"`
}

// LiquidityValue is the sum of liquidity shares, the P&L baseline.
func (p Position) LiquidityValue() decimal.Decimal {
	return decimal.Sum(decimal.Zero, p.LiquidityShares...)
}

// EnrichedPosition is a Position with prices applied.
// TokenValues is parallel to Tokens.
type EnrichedPosition struct {
	Position
	TokenValues   []decimal.Decimal `json:"tokenValues"`
	TotalValue    decimal.Decimal   `json:"totalValue"`
	PnL           decimal.Decimal   `json:"pnl"`
	PnLPercentage decimal.Decimal   `json:"pnlPercentage"`
	LastUpdated   time.Time         `json:"lastUpdated"`
	// PriceError is set when pricing failed and the position was zeroed.
	PriceError string `json:"priceError,omitempty"`
}

// PortfolioSummary is a reduction over the current enriched positions.
type PortfolioSummary struct {
	TotalValue       decimal.Decimal `json:"totalValue"`
	TotalPnL         decimal.Decimal `json:"totalPnl"`
	TotalPositions   int             `json:"totalPositions"`
	TotalFees        decimal.Decimal `json:"totalFees"`
	AvgPnLPercentage decimal.Decimal `json:"avgPnlPercentage"`
}
