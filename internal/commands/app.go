// Package commands wires the analyzer, watcher, dashboard and history
// archive into the logflow-analyzer command line.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

// NewApp builds the command line application writing to stdout and stderr
func NewApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "logflow-analyzer",
		Usage:     "summarize web server access logs",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to YAML config file (defaults apply when missing)",
			},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only log errors"},
			&cli.BoolFlag{Name: "verbose", Usage: "log debug details"},
		},
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Usage:     "count unique addresses and rank the busiest URLs and clients",
				ArgsUsage: "[log file]",
				Flags:     analysisFlags(),
				Action:    AnalyzeAction,
			},
			{
				Name:      "watch",
				Usage:     "re-analyze whenever the log file changes",
				ArgsUsage: "[log file]",
				Flags: append(analysisFlags(),
					&cli.BoolFlag{Name: "dashboard", Usage: "serve the live dashboard"},
					&cli.StringFlag{Name: "host", Usage: "dashboard host"},
					&cli.IntFlag{Name: "port", Usage: "dashboard port"},
					&cli.DurationFlag{Name: "debounce", Usage: "quiet period before re-analyzing"},
				),
				Action: WatchAction,
			},
			{
				Name:  "history",
				Usage: "list archived reports",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "history-path", Usage: "SQLite archive location"},
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum reports to list (0 for all)"},
				},
				Action: HistoryAction,
				Subcommands: []*cli.Command{
					{
						Name:      "show",
						Usage:     "print one archived report",
						ArgsUsage: "<id>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "history-path", Usage: "SQLite archive location"},
							&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "text, json or yaml"},
						},
						Action: HistoryShowAction,
					},
				},
			},
		},
	}
}

func analysisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "top", Aliases: []string{"n"}, Usage: "entries per ranking (default 3)"},
		&cli.StringFlag{Name: "strategy", Usage: "parallel or single_pass"},
		&cli.StringFlag{Name: "grammar", Usage: "line grammar name"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "text, json or yaml"},
		&cli.BoolFlag{Name: "history", Usage: "archive each report"},
		&cli.StringFlag{Name: "history-path", Usage: "SQLite archive location"},
	}
}

// newLogger builds the structured logger for an action
func newLogger(c *cli.Context) *slog.Logger {
	logLevel := slog.LevelInfo
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	} else if c.Bool("verbose") {
		logLevel = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if c.App != nil && c.App.ErrWriter != nil {
		w = c.App.ErrWriter
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
}
