// Package report renders tracker snapshots and refresh events for a terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/dlmm-tracker/internal/dlmm"
	"github.com/rovshanmuradov/dlmm-tracker/internal/events"
	"github.com/rovshanmuradov/dlmm-tracker/internal/tracker"
)

// Renderer writes human-readable portfolio reports.
type Renderer struct {
	out    io.Writer
	styles Styles
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{out: w, styles: NewStyles(w)}
}

// Render prints the header, the summary line and the positions table.
func (r *Renderer) Render(v tracker.View) error {
	fmt.Fprintln(r.out, r.header(v))

	switch {
	case v.State == tracker.StateIdle:
		fmt.Fprintln(r.out, r.styles.muted.Render("No account bound"))
		return nil
	case v.Loading && len(v.Positions) == 0:
		fmt.Fprintln(r.out, r.styles.muted.Render("Loading positions..."))
		if v.Error == "" {
			return nil
		}
	}

	if v.Error != "" {
		fmt.Fprintln(r.out, r.styles.errorText.Render("Error: "+v.Error))
	}

	if len(v.Positions) == 0 {
		if v.State == tracker.StateReady {
			fmt.Fprintln(r.out, r.styles.muted.Render("No DLMM positions found"))
		}
		return nil
	}

	fmt.Fprintln(r.out, r.summaryLine(v.Summary))
	if err := r.table(v.Positions); err != nil {
		return err
	}

	unpriced := lo.CountBy(v.Positions, func(p dlmm.EnrichedPosition) bool { return p.PriceError != "" })
	if unpriced > 0 {
		fmt.Fprintln(r.out, r.styles.muted.Render(fmt.Sprintf("* pricing failed for %d position(s)", unpriced)))
	}
	if v.LastFetchTime != nil {
		fmt.Fprintln(r.out, r.styles.muted.Render("Last updated "+v.LastFetchTime.Format("15:04:05")))
	}
	return nil
}

func (r *Renderer) header(v tracker.View) string {
	parts := []string{r.styles.title.Render("DLMM Portfolio")}
	if v.Account != "" {
		parts = append(parts, shortAccount(v.Account))
	}
	if v.Demo {
		parts = append(parts, r.styles.badge.Render("[demo data]"))
	}
	return strings.Join(parts, "  ")
}

func (r *Renderer) summaryLine(s dlmm.PortfolioSummary) string {
	return strings.Join([]string{
		"Total value " + usd(s.TotalValue),
		"P&L " + r.signed(s.TotalPnL, signedUSD(s.TotalPnL)),
		fmt.Sprintf("Positions %d", s.TotalPositions),
		"Fees " + s.TotalFees.StringFixed(2),
		"Avg P&L " + r.signed(s.AvgPnLPercentage, signedPct(s.AvgPnLPercentage)),
	}, " | ")
}

func (r *Renderer) table(positions []dlmm.EnrichedPosition) error {
	table := tablewriter.NewWriter(r.out)
	table.Header("Position", "Pool", "Bins", "Tokens", "Value", "P&L", "P&L %", "Fees")

	for _, p := range positions {
		value := usd(p.TotalValue)
		if p.PriceError != "" {
			value += "*"
		}
		if err := table.Append(
			p.ID.String(),
			p.PoolName,
			fmt.Sprintf("%d-%d", p.LowerBinID, p.UpperBinID),
			tokenList(p.Tokens),
			value,
			signedUSD(p.PnL),
			signedPct(p.PnLPercentage),
			p.Fees.StringFixed(2),
		); err != nil {
			return fmt.Errorf("append position %s: %w", p.ID, err)
		}
	}
	return table.Render()
}

func (r *Renderer) signed(d decimal.Decimal, text string) string {
	switch d.Sign() {
	case 1:
		return r.styles.pnlPositive.Render(text)
	case -1:
		return r.styles.pnlNegative.Render(text)
	default:
		return text
	}
}

// FormatEvent renders a refresh event as a single status line.
func FormatEvent(e events.RefreshEvent) string {
	ts := e.Timestamp().Format("15:04:05")
	attempt := fmt.Sprintf("attempt %d/%d", e.Attempt, e.Attempts)

	switch e.Type() {
	case events.RefreshStarted:
		return fmt.Sprintf("[%s] %s refresh started (%s)", ts, e.Trigger, attempt)
	case events.RefreshSucceeded:
		line := fmt.Sprintf("[%s] %s refresh loaded %d position(s)", ts, e.Trigger, e.Positions)
		if e.Demo {
			line += " [demo data]"
		}
		return line
	case events.RefreshRetrying:
		return fmt.Sprintf("[%s] %s refresh failed (%s), %d attempt(s) left: %s",
			ts, e.Trigger, attempt, e.Remaining(), e.Error)
	case events.RefreshFailed:
		return fmt.Sprintf("[%s] %s refresh gave up after %d attempt(s): %s", ts, e.Trigger, e.Attempts, e.Error)
	default:
		return fmt.Sprintf("[%s] %s", ts, e.Type())
	}
}

func tokenList(tokens []dlmm.Token) string {
	return strings.Join(lo.Map(tokens, func(t dlmm.Token, _ int) string {
		return t.Amount.String() + " " + t.Symbol
	}), ", ")
}

func shortAccount(account string) string {
	if len(account) <= 12 {
		return account
	}
	return account[:4] + "..." + account[len(account)-4:]
}

func usd(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

func signedUSD(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + usd(d)
	}
	return usd(d)
}

func signedPct(d decimal.Decimal) string {
	s := d.StringFixed(2) + "%"
	if d.IsPositive() {
		return "+" + s
	}
	return s
}
