// internal/tracker/state.go
package tracker

import (
	"time"

	"github.com/rovshanmuradov/dlmm-tracker/internal/dlmm"
)

// State is the orchestrator lifecycle state.
type State string

const (
	StateIdle    State = "idle"    // no account bound
	StateLoading State = "loading" // fetch cycle in flight
	StateReady   State = "ready"   // last cycle succeeded
	StateFailed  State = "failed"  // last cycle exhausted its attempts
)

// View is the consumer-facing snapshot of the tracker.
// Error is empty unless the last cycle failed. LastFetchTime is nil until the
// first successful cycle of the current account.
type View struct {
	Account       string
	State         State
	Positions     []dlmm.EnrichedPosition
	Loading       bool
	Error         string
	Summary       dlmm.PortfolioSummary
	LastFetchTime *time.Time
	Demo          bool
}

type resultKind int

const (
	resultSuccess resultKind = iota
	resultRetriable
	resultTerminal // cancelled or superseded, nothing is recorded
)

type attemptResult struct {
	kind      resultKind
	positions []dlmm.EnrichedPosition
	demo      bool
	err       error
}
