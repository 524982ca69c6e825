package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/dlmm-tracker/internal/config"
	"github.com/rovshanmuradov/dlmm-tracker/internal/events"
	"github.com/rovshanmuradov/dlmm-tracker/internal/export"
	"github.com/rovshanmuradov/dlmm-tracker/internal/report"
	"github.com/rovshanmuradov/dlmm-tracker/internal/tracker"
)

func snapshotAction(c *cli.Context) error {
	account, err := accountArg(c)
	if err != nil {
		return err
	}
	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	v, loadErr := rt.loadOnce(c.Context, account)
	if errors.Is(loadErr, context.Canceled) {
		return nil
	}
	if err := report.NewRenderer(c.App.Writer).Render(v); err != nil {
		return err
	}
	if loadErr != nil {
		return cli.Exit(loadErr.Error(), 1)
	}
	return nil
}

func exportAction(c *cli.Context) error {
	account, err := accountArg(c)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(c.String("format"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	minValue := decimal.Zero
	if s := c.String("min-value"); s != "" {
		if minValue, err = decimal.NewFromString(s); err != nil {
			return cli.Exit(fmt.Sprintf("invalid --min-value %q: %v", s, err), 2)
		}
	}

	rt, err := newRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	v, err := rt.loadOnce(c.Context, account)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	path, err := export.NewExporter(rt.log.Logger).ExportPositions(v.Positions, export.ExportOptions{
		Format:     format,
		Account:    account,
		PoolFilter: c.String("pool"),
		MinValue:   minValue,
		OnlyPriced: c.Bool("only-priced"),
		OutputDir:  c.String("out"),
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintln(c.App.Writer, path)
	return nil
}

func watchAction(c *cli.Context) error {
	account, err := accountArg(c)
	if err != nil {
		return err
	}
	rt, err := newRuntime(c, func(cfg *config.Config) {
		if d := c.Duration("interval"); d > 0 {
			cfg.RefreshIntervalMs = int(d.Milliseconds())
		}
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	out := c.App.Writer
	renderer := report.NewRenderer(out)
	var mu sync.Mutex

	printEvent := events.Typed(func(_ context.Context, e events.RefreshEvent) error {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintln(out, report.FormatEvent(e))
		if e.Type() == events.RefreshSucceeded || e.Type() == events.RefreshFailed {
			return renderer.Render(rt.tracker.View())
		}
		return nil
	})
	for _, typ := range []events.EventType{
		events.RefreshStarted, events.RefreshSucceeded, events.RefreshRetrying, events.RefreshFailed,
	} {
		sub := rt.bus.Subscribe(typ, printEvent)
		defer sub.Unsubscribe()
	}

	if addr := c.String("metrics-addr"); addr != "" {
		stopMetrics := serveMetrics(addr, rt)
		defer stopMetrics()
	}

	if err := rt.tracker.Bind(account); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	go readCommands(ctx, c.App.Reader, rt, cancel)

	<-ctx.Done()
	return nil
}

// serveMetrics exposes the collector until the returned stop func is called.
func serveMetrics(addr string, rt *runtime) (stop func()) {
	log := rt.log.WithComponent("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// readCommands handles interactive watch input until quit or EOF.
func readCommands(ctx context.Context, in io.Reader, rt *runtime, quit func()) {
	log := rt.log.WithComponent("cli")
	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "r", "refresh":
			err = rt.tracker.Refetch()
		case "b", "bind":
			if len(fields) < 2 {
				err = errors.New("usage: b <account>")
				break
			}
			err = rt.bus.Publish(events.AccountBoundEvent{
				BaseEvent: events.NewBase(events.AccountBound),
				Account:   fields[1],
			})
		case "u", "unbind":
			err = rt.bus.Publish(events.AccountUnboundEvent{
				BaseEvent: events.NewBase(events.AccountUnbound),
				Account:   rt.tracker.View().Account,
			})
		case "q", "quit":
			quit()
			return
		default:
			err = fmt.Errorf("unknown command %q", fields[0])
		}

		if errors.Is(err, tracker.ErrNoAccount) {
			log.Warn("No account bound, use b <account>")
		} else if err != nil {
			log.Warn("Command failed", zap.String("command", fields[0]), zap.Error(err))
		}
	}
}
