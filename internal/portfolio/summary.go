// internal/portfolio/summary.go
package portfolio

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/dlmm-tracker/internal/dlmm"
)

// Summarize reduces positions into a portfolio summary. It is always computed
// from scratch; the average P&L percentage is an unweighted mean.
func Summarize(positions []dlmm.EnrichedPosition) dlmm.PortfolioSummary {
	summary := dlmm.PortfolioSummary{
		TotalValue:       sum(positions, func(p dlmm.EnrichedPosition) decimal.Decimal { return p.TotalValue }),
		TotalPnL:         sum(positions, func(p dlmm.EnrichedPosition) decimal.Decimal { return p.PnL }),
		TotalFees:        sum(positions, func(p dlmm.EnrichedPosition) decimal.Decimal { return p.Fees }),
		TotalPositions:   len(positions),
		AvgPnLPercentage: decimal.Zero,
	}

	if len(positions) > 0 {
		pct := sum(positions, func(p dlmm.EnrichedPosition) decimal.Decimal { return p.PnLPercentage })
		summary.AvgPnLPercentage = pct.Div(decimal.NewFromInt(int64(len(positions))))
	}

	return summary
}

func sum(positions []dlmm.EnrichedPosition, field func(dlmm.EnrichedPosition) decimal.Decimal) decimal.Decimal {
	return lo.Reduce(positions, func(acc decimal.Decimal, p dlmm.EnrichedPosition, _ int) decimal.Decimal {
		return acc.Add(field(p))
	}, decimal.Zero)
}
