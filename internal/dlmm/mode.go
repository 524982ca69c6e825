// internal/dlmm/mode.go
package dlmm

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Mode selects where position and price data come from.
type Mode string

const (
	ModeLive Mode = "live"
	ModeDemo Mode = "demo"
)

// ParseMode parses a data source mode, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLive:
		return ModeLive, nil
	case ModeDemo:
		return ModeDemo, nil
	default:
		return "", fmt.Errorf("unknown data source mode %q", s)
	}
}

// Well-known mints used by the demo dataset and the fallback price table.
var (
	SOLMint  = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	USDCMint = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	USDTMint = solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
)
