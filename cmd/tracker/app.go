package main

import (
	"github.com/urfave/cli/v2"

	"github.com/rovshanmuradov/dlmm-tracker/internal/export"
)

func newApp() *cli.App {
	accountFlag := &cli.StringFlag{
		Name:    "account",
		Aliases: []string{"a"},
		Usage:   "Solana account to track",
		EnvVars: []string{"DLMM_TRACKER_ACCOUNT"},
	}

	return &cli.App{
		Name:  "dlmm-tracker",
		Usage: "track Saros DLMM liquidity positions and their P&L",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a JSON/YAML config file",
				EnvVars: []string{"DLMM_TRACKER_CONFIG"},
			},
			&cli.BoolFlag{Name: "demo", Usage: "force demo data for positions and prices"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Commands: []*cli.Command{
			{
				Name:   "snapshot",
				Usage:  "fetch positions once and print the portfolio",
				Flags:  []cli.Flag{accountFlag},
				Action: snapshotAction,
			},
			{
				Name:  "watch",
				Usage: "keep positions fresh and print every refresh",
				Description: "Commands on stdin: r (refresh), b <account> (bind), " +
					"u (unbind), q (quit).",
				Flags: []cli.Flag{
					accountFlag,
					&cli.DurationFlag{Name: "interval", Usage: "override the refresh interval"},
					&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address, e.g. :9090"},
				},
				Action: watchAction,
			},
			{
				Name:  "export",
				Usage: "fetch positions once and write them to a file",
				Flags: []cli.Flag{
					accountFlag,
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: string(export.FormatCSV), Usage: "csv or json"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "output directory"},
					&cli.StringFlag{Name: "pool", Usage: "only positions of this pool"},
					&cli.StringFlag{Name: "min-value", Usage: "skip positions valued below this amount"},
					&cli.BoolFlag{Name: "only-priced", Usage: "skip positions whose pricing failed"},
				},
				Action: exportAction,
			},
		},
	}
}
