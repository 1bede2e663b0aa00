package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/justin4957/logflow-access-analyzer/internal/analyzer"
	"github.com/justin4957/logflow-access-analyzer/internal/config"
	"github.com/justin4957/logflow-access-analyzer/internal/dashboard"
	"github.com/justin4957/logflow-access-analyzer/internal/history"
	"github.com/justin4957/logflow-access-analyzer/internal/parser"
	"github.com/justin4957/logflow-access-analyzer/internal/report"
	"github.com/justin4957/logflow-access-analyzer/internal/stream"
	"github.com/urfave/cli/v2"
)

// loadSettings reads the config file and applies flag overrides
func loadSettings(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("top") {
		cfg.AnalyzerConfig.TopN = c.Int("top")
	}
	if c.IsSet("strategy") {
		cfg.AnalyzerConfig.Strategy = c.String("strategy")
	}
	if c.IsSet("grammar") {
		cfg.Grammar = c.String("grammar")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("history") {
		cfg.HistoryConfig.Enabled = c.Bool("history")
	}
	if c.IsSet("history-path") {
		cfg.HistoryConfig.Path = c.String("history-path")
	}
	if c.IsSet("dashboard") {
		cfg.DashboardConfig.Enabled = c.Bool("dashboard")
	}
	if c.IsSet("host") {
		cfg.DashboardConfig.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.DashboardConfig.Port = c.Int("port")
	}
	if c.IsSet("debounce") {
		cfg.WatchConfig.DebounceMS = int(c.Duration("debounce") / time.Millisecond)
	}
	if c.Args().Present() {
		cfg.LogPath = c.Args().First()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

func newAnalyzer(cfg *config.Config) (*analyzer.Analyzer, error) {
	grammar, err := parser.NewGrammar(cfg.Grammar)
	if err != nil {
		return nil, err
	}
	return analyzer.NewAnalyzer(grammar, cfg.AnalyzerConfig), nil
}

// newWatchAnalyzer builds an analyzer for a log that may grow between
// reads. A live source is read through one reader per analysis so every
// tally sees the same lines.
func newWatchAnalyzer(cfg *config.Config) (*analyzer.Analyzer, error) {
	analyzerCfg := cfg.AnalyzerConfig
	analyzerCfg.Strategy = config.StrategySinglePass

	grammar, err := parser.NewGrammar(cfg.Grammar)
	if err != nil {
		return nil, err
	}
	return analyzer.NewAnalyzer(grammar, analyzerCfg), nil
}

func openHistory(cfg *config.Config) (*history.Store, error) {
	if !cfg.HistoryConfig.Enabled {
		return nil, nil
	}
	return history.Open(cfg.HistoryConfig.Path)
}

// describeReadError turns a read failure into one line naming the source
func describeReadError(err error) error {
	var readErr *stream.ReadError
	if errors.As(err, &readErr) {
		return fmt.Errorf("cannot read log file %s: %w", readErr.Path, readErr.Err)
	}
	return err
}

// AnalyzeAction analyzes one log file and prints the report
func AnalyzeAction(c *cli.Context) error {
	logger := newLogger(c)

	cfg, err := loadSettings(c)
	if err != nil {
		return err
	}

	a, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	logger.Debug("Analyzing log file", "path", cfg.LogPath, "strategy", cfg.AnalyzerConfig.Strategy)

	start := time.Now()
	rep, err := a.Analyze(c.Context, cfg.LogPath)
	if err != nil {
		return describeReadError(err)
	}
	logger.Info("Analysis complete",
		"path", cfg.LogPath,
		"lines_read", rep.LinesRead,
		"lines_matched", rep.LinesMatched,
		"duration", time.Since(start).String(),
	)

	if store != nil {
		id, err := store.Save(c.Context, rep)
		if err != nil {
			return err
		}
		logger.Info("Report archived", "id", id, "history", store.Path())
	}

	return report.Write(c.App.Writer, cfg.Output, rep)
}

// WatchAction analyzes the log file, then again after every change
func WatchAction(c *cli.Context) error {
	logger := newLogger(c)

	cfg, err := loadSettings(c)
	if err != nil {
		return err
	}

	a, err := newWatchAnalyzer(cfg)
	if err != nil {
		return err
	}
	if cfg.AnalyzerConfig.Strategy != a.Strategy() {
		logger.Debug("Watching with a single reader", "configured", cfg.AnalyzerConfig.Strategy, "strategy", a.Strategy())
	}

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var server *dashboard.Server
	serverDone := make(chan error, 1)
	if cfg.DashboardConfig.Enabled {
		server = dashboard.NewServer(cfg.DashboardConfig)
		go func() { serverDone <- server.Start(ctx) }()
	}

	run := func() error {
		rep, err := a.Analyze(ctx, cfg.LogPath)
		if err != nil {
			return describeReadError(err)
		}
		logger.Info("Analysis complete", "path", cfg.LogPath, "lines_read", rep.LinesRead, "lines_matched", rep.LinesMatched)

		if store != nil {
			if _, err := store.Save(ctx, rep); err != nil {
				logger.Error("Failed to archive report", "error", err)
			}
		}
		if server != nil {
			server.Publish(rep)
		}
		return report.Write(c.App.Writer, cfg.Output, rep)
	}

	if err := run(); err != nil {
		return err
	}

	var watcher stream.ChangeNotifier = stream.NewWatcher(time.Duration(cfg.WatchConfig.DebounceMS) * time.Millisecond)
	changes, err := watcher.Start(ctx, cfg.LogPath)
	if err != nil {
		return err
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping watch", "path", cfg.LogPath)
			if server != nil {
				return <-serverDone
			}
			return nil
		case err := <-serverDone:
			return err
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			// The file may be mid-rotation; keep watching and report on the next change
			if err := run(); err != nil {
				if ctx.Err() != nil {
					continue
				}
				logger.Error("Re-analysis failed", "path", cfg.LogPath, "error", err)
			}
		}
	}
}

// HistoryAction lists archived reports, newest first
func HistoryAction(c *cli.Context) error {
	store, err := openArchive(c)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSOURCE\tUNIQUE IPS\tMATCHED/READ")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d/%d\n",
			e.ID,
			e.CreatedAt.Format(time.RFC3339),
			e.Report.Source,
			e.Report.UniqueAddressCount,
			e.Report.LinesMatched,
			e.Report.LinesRead,
		)
	}
	return tw.Flush()
}

// HistoryShowAction prints one archived report
func HistoryShowAction(c *cli.Context) error {
	if !c.Args().Present() {
		return errors.New("missing report id")
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid report id %q: %w", c.Args().First(), err)
	}

	store, err := openArchive(c)
	if err != nil {
		return err
	}
	defer store.Close()

	entry, err := store.Get(c.Context, id)
	if err != nil {
		return err
	}

	format := config.OutputText
	if c.IsSet("output") {
		format = c.String("output")
	}
	return report.Write(c.App.Writer, format, &entry.Report)
}

// openArchive opens the history database named by config or flag
func openArchive(c *cli.Context) (*history.Store, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	path := cfg.HistoryConfig.Path
	if c.IsSet("history-path") {
		path = c.String("history-path")
	}
	newLogger(c).Debug("Opening history", "path", path)
	return history.Open(path)
}
