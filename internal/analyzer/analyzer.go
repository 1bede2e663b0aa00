package analyzer

import (
	"context"
	"sync"

	"github.com/justin4957/logflow-access-analyzer/internal/config"
	"github.com/justin4957/logflow-access-analyzer/internal/parser"
	"github.com/justin4957/logflow-access-analyzer/internal/stream"
	"github.com/justin4957/logflow-access-analyzer/pkg/models"
)

// Analyzer turns an access log into an AnalysisReport
type Analyzer struct {
	grammar  parser.LineGrammar
	topN     int
	strategy string
	open     func(path string) (*stream.LineReader, error)
}

// passStats counts lines seen by one traversal of the source
type passStats struct {
	read    int
	matched int
}

// NewAnalyzer creates an analyzer using the given grammar and settings.
// A zero TopN falls back to DefaultTopN.
func NewAnalyzer(grammar parser.LineGrammar, cfg config.AnalyzerConfig) *Analyzer {
	topN := cfg.TopN
	if topN == 0 {
		topN = DefaultTopN
	}

	var strategy string
	switch cfg.Strategy {
	case config.StrategySinglePass:
		strategy = config.StrategySinglePass
	default:
		strategy = config.StrategyParallel
	}

	return &Analyzer{
		grammar:  grammar,
		topN:     topN,
		strategy: strategy,
		open:     stream.Open,
	}
}

// Strategy returns the traversal strategy in use
func (a *Analyzer) Strategy() string {
	return a.strategy
}

// Analyze reads the log at path and builds its report. It fails only when
// the source cannot be opened or read (a *stream.ReadError) or when ctx is
// cancelled; lines that do not match the grammar are skipped.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*models.AnalysisReport, error) {
	agg := NewAggregator()

	var stats passStats
	var err error
	if a.strategy == config.StrategySinglePass {
		stats, err = a.scan(ctx, path, agg.Record)
	} else {
		stats, err = a.analyzeParallel(ctx, path, agg)
	}
	if err != nil {
		return nil, err
	}

	return &models.AnalysisReport{
		Source:             path,
		TopN:               a.topN,
		UniqueAddressCount: agg.UniqueIPCount(),
		TopURLs:            TopN(agg.URLVisits(), a.topN),
		TopIPs:             TopN(agg.IPActivity(), a.topN),
		LinesRead:          stats.read,
		LinesMatched:       stats.matched,
	}, nil
}

// analyzeParallel runs one traversal per metric, each over its own reader
// and writing only its own tally, and waits for all of them.
func (a *Analyzer) analyzeParallel(ctx context.Context, path string, agg *Aggregator) (passStats, error) {
	passes := []func(models.ParsedRecord){
		func(r models.ParsedRecord) { agg.RecordURLVisit(r.RequestPath) },
		func(r models.ParsedRecord) { agg.RecordIPActivity(r.ClientAddress) },
		func(r models.ParsedRecord) { agg.RecordUniqueIP(r.ClientAddress) },
	}

	stats := make([]passStats, len(passes))
	errs := make([]error, len(passes))

	var wg sync.WaitGroup
	for i, record := range passes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats[i], errs[i] = a.scan(ctx, path, record)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return passStats{}, err
		}
	}

	return stats[0], nil
}

// scan opens path, matches every line and hands each record to record
func (a *Analyzer) scan(ctx context.Context, path string, record func(models.ParsedRecord)) (passStats, error) {
	lr, err := a.open(path)
	if err != nil {
		return passStats{}, err
	}
	defer lr.Close()

	var stats passStats
	for lr.Next() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.read++
		parsed, ok := a.grammar.Match(lr.Line())
		if !ok {
			continue
		}
		stats.matched++
		record(parsed)
	}

	if err := lr.Err(); err != nil {
		return stats, err
	}

	return stats, nil
}
