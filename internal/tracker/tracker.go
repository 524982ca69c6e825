// internal/tracker/tracker.go
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-tracker/internal/dlmm"
	"github.com/rovshanmuradov/dlmm-tracker/internal/events"
	"github.com/rovshanmuradov/dlmm-tracker/internal/portfolio"
	"github.com/rovshanmuradov/dlmm-tracker/internal/source"
)

const (
	DefaultInterval           = 30 * time.Second
	DefaultRetryDelay         = 2 * time.Second
	DefaultAttempts           = 3
	DefaultBackgroundAttempts = 1
)

var (
	ErrNoAccount      = errors.New("no account bound")
	ErrInvalidAccount = errors.New("invalid account")
	ErrFetchFailed    = errors.New("failed to fetch positions from position source")
)

// Fetcher retrieves pool and bin positions for an account.
type Fetcher interface {
	FetchAll(ctx context.Context, accountID string) source.Result
}

// Enricher prices merged positions.
type Enricher interface {
	Enrich(ctx context.Context, positions []dlmm.Position) ([]dlmm.EnrichedPosition, error)
}

// Options configures the refresh policy.
type Options struct {
	Interval           time.Duration // periodic refresh while bound
	RetryDelay         time.Duration // fixed delay between attempts
	Attempts           int           // attempt budget for bind and manual refresh
	BackgroundAttempts int           // attempt budget for periodic refresh
	Now                func() time.Time
}

// Tracker is the refresh orchestrator. It owns the bound account, the retry
// policy and the current enriched positions; at most one fetch cycle runs at
// a time.
type Tracker struct {
	fetcher   Fetcher
	enricher  Enricher
	publisher events.Publisher
	logger    *zap.Logger
	opts      Options

	mu        sync.RWMutex
	session   *session
	state     State
	positions []dlmm.EnrichedPosition
	summary   dlmm.PortfolioSummary
	errMsg    string
	lastFetch time.Time
	demo      bool

	wg sync.WaitGroup
}

// session is one account binding. Its context is cancelled on unbind.
type session struct {
	account string
	ctx     context.Context
	cancel  context.CancelFunc
	refetch chan struct{}
}

// New creates a Tracker. publisher may be nil.
func New(fetcher Fetcher, enricher Enricher, publisher events.Publisher, logger *zap.Logger, opts Options) *Tracker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.BackgroundAttempts <= 0 {
		opts.BackgroundAttempts = DefaultBackgroundAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Tracker{
		fetcher:   fetcher,
		enricher:  enricher,
		publisher: publisher,
		logger:    logger.Named("tracker"),
		opts:      opts,
		state:     StateIdle,
		summary:   portfolio.Summarize(nil),
	}
}

// Bind starts tracking account. Binding the already-bound account is a no-op;
// binding a different one resets the previous session first.
func (t *Tracker) Bind(account string) error {
	if _, err := solana.PublicKeyFromBase58(account); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidAccount, account, err)
	}

	t.mu.Lock()
	if t.session != nil && t.session.account == account {
		t.mu.Unlock()
		return nil
	}
	t.resetLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		account: account,
		ctx:     ctx,
		cancel:  cancel,
		refetch: make(chan struct{}, 1),
	}
	t.session = s
	t.state = StateLoading
	t.wg.Add(1)
	t.mu.Unlock()

	t.logger.Info("Account bound", zap.String("account", account))
	go t.run(s)
	return nil
}

// Unbind clears positions, error and last fetch time and stops the periodic
// refresh. Results of in-flight work are discarded.
func (t *Tracker) Unbind() {
	t.mu.Lock()
	account := ""
	if t.session != nil {
		account = t.session.account
	}
	t.resetLocked()
	t.mu.Unlock()

	if account != "" {
		t.logger.Info("Account unbound", zap.String("account", account))
	}
}

// Refetch requests a manual refresh. A request made while a cycle is in
// flight is queued once; further requests coalesce into it.
func (t *Tracker) Refetch() error {
	t.mu.RLock()
	s := t.session
	t.mu.RUnlock()

	if s == nil {
		return ErrNoAccount
	}

	select {
	case s.refetch <- struct{}{}:
	default:
		t.logger.Debug("Refresh already queued", zap.String("account", s.account))
	}
	return nil
}

// View returns a snapshot of the current state.
func (t *Tracker) View() View {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v := View{
		State:     t.state,
		Positions: append([]dlmm.EnrichedPosition(nil), t.positions...),
		Loading:   t.state == StateLoading,
		Error:     t.errMsg,
		Summary:   t.summary,
		Demo:      t.demo,
	}
	if t.session != nil {
		v.Account = t.session.account
	}
	if !t.lastFetch.IsZero() {
		last := t.lastFetch
		v.LastFetchTime = &last
	}
	return v
}

// Attach subscribes the tracker to account bind/unbind events.
func (t *Tracker) Attach(bus *events.Bus) []events.Subscription {
	bound := bus.Subscribe(events.AccountBound, events.Typed(func(_ context.Context, e events.AccountBoundEvent) error {
		return t.Bind(e.Account)
	}))
	unbound := bus.Subscribe(events.AccountUnbound, events.Typed(func(context.Context, events.AccountUnboundEvent) error {
		t.Unbind()
		return nil
	}))
	return []events.Subscription{bound, unbound}
}

// Shutdown unbinds and waits for the worker to exit.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.Unbind()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resetLocked detaches the current session. Caller holds t.mu.
func (t *Tracker) resetLocked() {
	if t.session != nil {
		t.session.cancel()
		t.session = nil
	}
	t.state = StateIdle
	t.positions = nil
	t.summary = portfolio.Summarize(nil)
	t.errMsg = ""
	t.lastFetch = time.Time{}
	t.demo = false
}

// current reports whether s is still the bound session.
func (t *Tracker) current(s *session) bool {
	return t.session == s && s.ctx.Err() == nil
}
