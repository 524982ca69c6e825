// internal/tracker/refresh.go
package tracker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-tracker/internal/events"
	"github.com/rovshanmuradov/dlmm-tracker/internal/portfolio"
	"github.com/rovshanmuradov/dlmm-tracker/internal/reconcile"
)

// run is the session worker. All cycles of a session run on this goroutine,
// so cycles never overlap.
func (t *Tracker) run(s *session) {
	defer t.wg.Done()

	t.cycle(s, events.TriggerBind, t.opts.Attempts)

	ticker := time.NewTicker(t.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			t.logger.Debug("Session worker stopped", zap.String("account", s.account))
			return
		case <-s.refetch:
			t.cycle(s, events.TriggerManual, t.opts.Attempts)
		case <-ticker.C:
			t.cycle(s, events.TriggerPeriodic, t.opts.BackgroundAttempts)
		}

		// A tick that fired while the cycle was running is skipped.
		select {
		case <-ticker.C:
			t.logger.Debug("Skipping periodic refresh, cycle was in flight", zap.String("account", s.account))
		default:
		}
	}
}

// cycle runs up to attempts fetch attempts with a fixed delay between them.
func (t *Tracker) cycle(s *session, trigger events.Trigger, attempts int) {
	log := t.logger.With(
		zap.String("account", s.account),
		zap.String("trigger", string(trigger)))

	for attempt := 1; attempt <= attempts; attempt++ {
		if !t.begin(s) {
			return
		}
		base := events.RefreshEvent{Account: s.account, Trigger: trigger, Attempt: attempt, Attempts: attempts}
		t.publish(events.RefreshStarted, base)
		log.Debug("Fetching positions", zap.Int("attempt", attempt), zap.Int("attempts", attempts))

		res := t.attempt(s)
		switch res.kind {
		case resultTerminal:
			log.Debug("Fetch abandoned", zap.Int("attempt", attempt))
			return

		case resultSuccess:
			if !t.commit(s, res) {
				return
			}
			base.Positions = len(res.positions)
			base.Demo = res.demo
			t.publish(events.RefreshSucceeded, base)
			if len(res.positions) == 0 {
				log.Info("No DLMM positions found")
			} else {
				log.Info("Loaded DLMM positions", zap.Int("count", len(res.positions)), zap.Bool("demo", res.demo))
			}
			return

		case resultRetriable:
			base.Error = res.err.Error()
			if attempt == attempts {
				if !t.fail(s, res.err) {
					return
				}
				t.publish(events.RefreshFailed, base)
				log.Error("Failed to load DLMM positions", zap.Int("attempts", attempts), zap.Error(res.err))
				return
			}

			t.publish(events.RefreshRetrying, base)
			log.Warn("Fetch failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("attempts_left", base.Remaining()),
				zap.Duration("delay", t.opts.RetryDelay),
				zap.Error(res.err))

			if !sleepCtx(s.ctx, t.opts.RetryDelay) {
				return
			}
		}
	}
}

// attempt performs fetch, reconciliation and enrichment once.
func (t *Tracker) attempt(s *session) attemptResult {
	res := t.fetcher.FetchAll(s.ctx, s.account)
	if s.ctx.Err() != nil {
		return attemptResult{kind: resultTerminal}
	}
	if !res.Success {
		err := ErrFetchFailed
		if res.Err != nil {
			err = fmt.Errorf("%w: %w", ErrFetchFailed, res.Err)
		}
		return attemptResult{kind: resultRetriable, err: err}
	}

	merged := reconcile.Reconcile(res.PoolAggregates, res.BinPositions)
	for _, bin := range merged.Invalid {
		t.logger.Warn("Dropping bin position with invalid range",
			zap.String("account", s.account),
			zap.String("position_id", bin.ID.String()),
			zap.Error(reconcile.ValidateBin(bin)))
	}
	if len(merged.Orphans) > 0 {
		t.logger.Warn("Dropping bin positions without a matching pool",
			zap.String("account", s.account),
			zap.Int("count", len(merged.Orphans)))
	}

	enriched, err := t.enricher.Enrich(s.ctx, merged.Positions)
	if err != nil {
		if s.ctx.Err() != nil {
			return attemptResult{kind: resultTerminal}
		}
		return attemptResult{kind: resultRetriable, err: fmt.Errorf("enrich positions: %w", err)}
	}

	return attemptResult{kind: resultSuccess, positions: enriched, demo: res.Demo}
}

// begin marks an attempt as loading and clears the previous error.
func (t *Tracker) begin(s *session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.current(s) {
		return false
	}
	t.state = StateLoading
	t.errMsg = ""
	return true
}

// commit replaces the positions collection in one step.
func (t *Tracker) commit(s *session, res attemptResult) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.current(s) {
		return false
	}
	t.positions = res.positions
	t.summary = portfolio.Summarize(res.positions)
	t.lastFetch = t.opts.Now()
	t.demo = res.demo
	t.errMsg = ""
	t.state = StateReady
	return true
}

// fail records the final error. The last successful positions are kept.
func (t *Tracker) fail(s *session, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.current(s) {
		return false
	}
	t.errMsg = err.Error()
	t.state = StateFailed
	return true
}

func (t *Tracker) publish(typ events.EventType, e events.RefreshEvent) {
	if t.publisher == nil {
		return
	}
	e.BaseEvent = events.BaseEvent{EventType: typ, EventTime: t.opts.Now()}
	if err := t.publisher.Publish(e); err != nil {
		t.logger.Warn("Failed to publish refresh event",
			zap.String("event_type", string(typ)),
			zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
