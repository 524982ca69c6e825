// internal/source/demo.go
package source

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/dlmm-tracker/internal/dlmm"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func tok(mint fmt.Stringer, symbol string, amount float64) dlmm.Token {
	return dlmm.Token{Mint: mint.String(), Symbol: symbol, Amount: dec(amount)}
}

// DemoPools returns the fixed demo pool aggregates. A fresh copy is built on
// every call.
func DemoPools() []dlmm.PoolAggregate {
	return []dlmm.PoolAggregate{
		{
			PoolID:         "123456789",
			TotalLiquidity: dec(10000),
			TotalTokens: []dlmm.Token{
				tok(dlmm.SOLMint, "SOL", 50),
				tok(dlmm.USDCMint, "USDC", 2000),
			},
		},
		{
			PoolID:         "987654321",
			TotalLiquidity: dec(5000),
			TotalTokens: []dlmm.Token{
				tok(dlmm.SOLMint, "SOL", 25),
				tok(dlmm.USDTMint, "USDT", 1000),
			},
		},
	}
}

// DemoBins returns the fixed demo bin positions, one per demo pool.
func DemoBins() []dlmm.RawBinPosition {
	return []dlmm.RawBinPosition{
		{
			ID:              "1",
			Pool:            "123456789",
			LowerBinID:      100,
			UpperBinID:      200,
			LiquidityShares: []decimal.Decimal{dec(1000), dec(1500)},
			Tokens: []dlmm.Token{
				tok(dlmm.SOLMint, "SOL", 25),
				tok(dlmm.USDCMint, "USDC", 1000),
			},
			Fees: dec(12.5),
		},
		{
			ID:              "2",
			Pool:            "987654321",
			LowerBinID:      150,
			UpperBinID:      250,
			LiquidityShares: []decimal.Decimal{dec(600), dec(600)},
			Tokens: []dlmm.Token{
				tok(dlmm.SOLMint, "SOL", 12),
				tok(dlmm.USDTMint, "USDT", 500),
			},
			Fees: dec(6.0),
		},
	}
}
