package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-tracker/internal/config"
	"github.com/rovshanmuradov/dlmm-tracker/internal/dlmm"
	"github.com/rovshanmuradov/dlmm-tracker/internal/enrich"
	"github.com/rovshanmuradov/dlmm-tracker/internal/events"
	"github.com/rovshanmuradov/dlmm-tracker/internal/oracle"
	"github.com/rovshanmuradov/dlmm-tracker/internal/source"
	"github.com/rovshanmuradov/dlmm-tracker/internal/tracker"
	"github.com/rovshanmuradov/dlmm-tracker/internal/utils/logger"
	"github.com/rovshanmuradov/dlmm-tracker/internal/utils/metrics"
)

const shutdownTimeout = 5 * time.Second

// runtime wires the tracker and its collaborators for one command.
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	bus     *events.Bus
	prices  *oracle.Client
	tracker *tracker.Tracker
	metrics *metrics.Collector
	subs    []events.Subscription
}

func newRuntime(c *cli.Context, overrides ...func(*config.Config)) (*runtime, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("load config: %v", err), 2)
	}
	if c.Bool("demo") {
		cfg.DataSourceMode = string(dlmm.ModeDemo)
	}
	if c.Bool("debug") {
		cfg.DebugLogging = true
	}
	for _, o := range overrides {
		o(cfg)
	}

	log, err := logger.New(cfg.Logger())
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("init logger: %v", err), 2)
	}

	bus := events.NewBus(log.Logger, 0)
	src := source.NewClient(cfg.Source(), log.Logger)
	prices := oracle.NewClient(cfg.Oracle(), log.Logger)
	enricher := enrich.NewEnricher(prices, log.Logger, enrich.WithConcurrency(cfg.EnrichConcurrency))
	tr := tracker.New(src, enricher, bus, log.Logger, cfg.Tracker())

	collector := metrics.NewCollector()

	rt := &runtime{
		cfg:     cfg,
		log:     log,
		bus:     bus,
		prices:  prices,
		tracker: tr,
		metrics: collector,
		subs:    append(tr.Attach(bus), collector.Attach(bus)...),
	}

	log.WithComponent("cli").Info("Tracker started",
		zap.String("command", c.Command.Name),
		zap.String("mode", string(cfg.Mode())))
	return rt, nil
}

// Close unbinds, drains the bus and flushes logs.
func (r *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, s := range r.subs {
		s.Unsubscribe()
	}
	if err := r.tracker.Shutdown(ctx); err != nil {
		r.log.LogError("Tracker shutdown", err)
	}
	if err := r.bus.Shutdown(ctx); err != nil {
		r.log.LogError("Event bus shutdown", err)
	}

	stats := r.prices.Stats()
	r.log.Debug("Price cache stats",
		zap.Int("entries", stats.Entries),
		zap.Uint64("hits", stats.Hits),
		zap.Uint64("misses", stats.Misses))
	_ = r.log.Sync()
}

// cycleWaiter subscribes to cycle completions. Call it before Bind so the
// first completion cannot be missed.
func (r *runtime) cycleWaiter() (<-chan events.RefreshEvent, func()) {
	done := make(chan events.RefreshEvent, 1)
	h := events.Typed(func(_ context.Context, e events.RefreshEvent) error {
		select {
		case done <- e:
		default:
		}
		return nil
	})
	subs := []events.Subscription{
		r.bus.Subscribe(events.RefreshSucceeded, h),
		r.bus.Subscribe(events.RefreshFailed, h),
	}
	return done, func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}
}

// loadOnce binds account and waits for the first cycle to finish.
func (r *runtime) loadOnce(ctx context.Context, account string) (tracker.View, error) {
	done, cancel := r.cycleWaiter()
	defer cancel()

	if err := r.tracker.Bind(account); err != nil {
		return tracker.View{}, cli.Exit(err.Error(), 2)
	}

	select {
	case <-ctx.Done():
		return tracker.View{}, ctx.Err()
	case e := <-done:
		v := r.tracker.View()
		if e.Type() == events.RefreshFailed {
			return v, fmt.Errorf("%w: %s", tracker.ErrFetchFailed, e.Error)
		}
		return v, nil
	}
}

func accountArg(c *cli.Context) (string, error) {
	account := c.String("account")
	if account == "" {
		account = c.Args().First()
	}
	if account == "" {
		return "", cli.Exit("an account is required (--account or first argument)", 2)
	}
	return account, nil
}
