// internal/reconcile/reconcile.go
package reconcile

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/dlmm-tracker/internal/dlmm"
	"github.com/shopspring/decimal"
)

// poolNameLen is how many characters of the pool id go into the display name.
const poolNameLen = 8

// ErrInvalidBinRange is returned when a bin position has lower > upper.
var ErrInvalidBinRange = errors.New("invalid bin range")

// Result is the output of Reconcile.
type Result struct {
	Positions []dlmm.Position
	// Orphans are bin positions whose pool reference matched no aggregate.
	// They are not part of Positions.
	Orphans []dlmm.RawBinPosition
	// Invalid are bin positions rejected by ValidateBin.
	Invalid []dlmm.RawBinPosition
}

// ValidateBin reports whether a bin position has a usable range.
func ValidateBin(bin dlmm.RawBinPosition) error {
	if bin.LowerBinID > bin.UpperBinID {
		return fmt.Errorf("%w: position %s has lower %d > upper %d",
			ErrInvalidBinRange, bin.ID, bin.LowerBinID, bin.UpperBinID)
	}
	return nil
}

// Reconcile merges pool aggregates with bin positions.
//
// Output follows pool input order; inside a pool, bins keep their input order.
// A pool with no bins yields exactly one synthesized summary position.
// Bins with an inverted range are set aside in Invalid and do not affect
// the remaining positions.
func Reconcile(pools []dlmm.PoolAggregate, bins []dlmm.RawBinPosition) Result {
	var result Result

	valid := make([]dlmm.RawBinPosition, 0, len(bins))
	for _, bin := range bins {
		if ValidateBin(bin) != nil {
			result.Invalid = append(result.Invalid, bin)
			continue
		}
		valid = append(valid, bin)
	}
	bins = valid

	byPool := make(map[string][]dlmm.RawBinPosition, len(pools))
	for _, bin := range bins {
		key := dlmm.NormalizeRef(bin.Pool.String())
		byPool[key] = append(byPool[key], bin)
	}

	result.Positions = make([]dlmm.Position, 0, len(bins)+len(pools))
	claimed := make(map[string]bool, len(pools))

	for _, pool := range pools {
		key := dlmm.NormalizeRef(pool.PoolID.String())
		poolBins := byPool[key]
		claimed[key] = true

		if len(poolBins) == 0 {
			result.Positions = append(result.Positions, summaryPosition(pool))
			continue
		}

		for _, bin := range poolBins {
			result.Positions = append(result.Positions, dlmm.Position{
				RawBinPosition: cloneBin(bin),
				PoolID:         pool.PoolID,
				PoolName:       PoolName(pool.PoolID),
				TotalTokens:    cloneTokens(pool.TotalTokens),
			})
		}
	}

	for _, bin := range bins {
		if !claimed[dlmm.NormalizeRef(bin.Pool.String())] {
			result.Orphans = append(result.Orphans, bin)
		}
	}

	return result
}

// PoolName is the display name derived from a truncated pool id.
func PoolName(poolID dlmm.Ref) string {
	return fmt.Sprintf("Pool %s...", poolID.Short(poolNameLen))
}

func summaryPosition(pool dlmm.PoolAggregate) dlmm.Position {
	return dlmm.Position{
		RawBinPosition: dlmm.RawBinPosition{
			ID:              dlmm.Ref("pool_" + pool.PoolID.String()),
			Pool:            pool.PoolID,
			LiquidityShares: []decimal.Decimal{pool.TotalLiquidity},
			Tokens:          cloneTokens(pool.TotalTokens),
		},
		PoolID:      pool.PoolID,
		PoolName:    PoolName(pool.PoolID),
		TotalTokens: cloneTokens(pool.TotalTokens),
		Summary:     true,
	}
}

// Slices are copied so that a later refresh never aliases the previous cycle.
func cloneBin(bin dlmm.RawBinPosition) dlmm.RawBinPosition {
	out := bin
	out.LiquidityShares = append([]decimal.Decimal(nil), bin.LiquidityShares...)
	out.Tokens = cloneTokens(bin.Tokens)
	return out
}

func cloneTokens(tokens []dlmm.Token) []dlmm.Token {
	if tokens == nil {
		return nil
	}
	return append([]dlmm.Token(nil), tokens...)
}
