package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Palette colors
var (
	Cyan   = lipgloss.Color("#00E5FF") // titles
	Yellow = lipgloss.Color("#FFB500") // demo badge, warnings
	Green  = lipgloss.Color("#2AFFAA") // positive P&L
	Red    = lipgloss.Color("#FF5555") // negative P&L, errors
	Muted  = lipgloss.Color("#6C7280")
)

// Styles groups the styles used by the renderer.
type Styles struct {
	title       lipgloss.Style
	badge       lipgloss.Style
	muted       lipgloss.Style
	pnlPositive lipgloss.Style
	pnlNegative lipgloss.Style
	errorText   lipgloss.Style
}

// NewStyles builds styles bound to w's color profile. Writers that are not
// terminals get plain text.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		title:       r.NewStyle().Foreground(Cyan).Bold(true),
		badge:       r.NewStyle().Foreground(Yellow).Bold(true),
		muted:       r.NewStyle().Foreground(Muted),
		pnlPositive: r.NewStyle().Foreground(Green).Bold(true),
		pnlNegative: r.NewStyle().Foreground(Red).Bold(true),
		errorText:   r.NewStyle().Foreground(Red),
	}
}
