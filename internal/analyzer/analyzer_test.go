package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/justin4957/logflow-access-analyzer/internal/config"
	"github.com/justin4957/logflow-access-analyzer/internal/parser"
	"github.com/justin4957/logflow-access-analyzer/internal/stream"
	"github.com/justin4957/logflow-access-analyzer/pkg/models"
)

var strategies = []string{config.StrategyParallel, config.StrategySinglePass}

// accessLine builds a log line in the access grammar
func accessLine(ip, method, path string) string {
	return fmt.Sprintf(`%s - - [10/Jul/2023:21:21:15 +0000] "%s %s HTTP/1.1" 200 512`, ip, method, path)
}

// writeLog writes lines to a temp file and returns its path
func writeLog(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "access.log")
	body := strings.Join(lines, "\n")
	if len(lines) > 0 {
		body += "\n"
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}
	return path
}

func newTestAnalyzer(strategy string) *Analyzer {
	return NewAnalyzer(parser.NewAccessGrammar(), config.AnalyzerConfig{Strategy: strategy})
}

func TestAnalyze_ConstructedCounts(t *testing.T) {
	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, accessLine("10.0.0.1", "GET", "/a"))
	}
	for i := 0; i < 3; i++ {
		lines = append(lines, accessLine("10.0.0.1", "GET", "/b"))
	}
	lines = append(lines,
		accessLine("10.0.0.2", "GET", "/b"),
		accessLine("10.0.0.3", "POST", "/a"),
		"",
		"garbage line",
	)
	path := writeLog(t, lines)

	want := &models.AnalysisReport{
		Source:             path,
		TopN:               3,
		UniqueAddressCount: 2,
		TopURLs:            []models.TopNEntry{{Key: "/a", Count: 5}, {Key: "/b", Count: 4}},
		TopIPs:             []models.TopNEntry{{Key: "10.0.0.1", Count: 8}, {Key: "10.0.0.2", Count: 1}},
		LinesRead:          12,
		LinesMatched:       9,
	}

	for _, strategy := range strategies {
		t.Run(strategy, func(t *testing.T) {
			got, err := newTestAnalyzer(strategy).Analyze(context.Background(), path)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("report mismatch (-want +got):\n%s", diff)
			}
			if got.LinesSkipped() != 3 {
				t.Errorf("LinesSkipped() = %d, want 3", got.LinesSkipped())
			}
		})
	}
}

func TestAnalyze_EmptyFile(t *testing.T) {
	path := writeLog(t, nil)

	for _, strategy := range strategies {
		t.Run(strategy, func(t *testing.T) {
			got, err := newTestAnalyzer(strategy).Analyze(context.Background(), path)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if got.UniqueAddressCount != 0 {
				t.Errorf("UniqueAddressCount = %d, want 0", got.UniqueAddressCount)
			}
			if got.TopURLs == nil || len(got.TopURLs) != 0 {
				t.Errorf("TopURLs = %#v, want empty slice", got.TopURLs)
			}
			if got.TopIPs == nil || len(got.TopIPs) != 0 {
				t.Errorf("TopIPs = %#v, want empty slice", got.TopIPs)
			}
		})
	}
}

func TestAnalyze_OnlyNonMatchingLines(t *testing.T) {
	path := writeLog(t, []string{
		accessLine("10.0.0.1", "POST", "/submit"),
		accessLine("10.0.0.2", "PUT", "/item"),
		accessLine("10.0.0.3", "DELETE", "/item"),
		"",
	})

	for _, strategy := range strategies {
		t.Run(strategy, func(t *testing.T) {
			got, err := newTestAnalyzer(strategy).Analyze(context.Background(), path)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if got.UniqueAddressCount != 0 || got.LinesMatched != 0 || len(got.TopURLs) != 0 {
				t.Errorf("report = %+v, want zero matches", got)
			}
			if got.LinesRead != 4 {
				t.Errorf("LinesRead = %d, want 4", got.LinesRead)
			}
		})
	}
}

func TestAnalyze_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.log")

	for _, strategy := range strategies {
		t.Run(strategy, func(t *testing.T) {
			got, err := newTestAnalyzer(strategy).Analyze(context.Background(), path)
			if got != nil {
				t.Errorf("Analyze() report = %+v, want nil", got)
			}

			var readErr *stream.ReadError
			if !errors.As(err, &readErr) {
				t.Fatalf("Analyze() error = %v, want *stream.ReadError", err)
			}
			if !errors.Is(err, fs.ErrNotExist) {
				t.Errorf("error does not wrap fs.ErrNotExist: %v", err)
			}
		})
	}
}

type brokenReader struct {
	sent bool
}

func (r *brokenReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, accessLine("10.0.0.1", "GET", "/a")+"\n"), nil
	}
	return 0, errors.New("input/output error")
}

func TestAnalyze_ReadErrorMidStream(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(strategy, func(t *testing.T) {
			a := newTestAnalyzer(strategy)
			a.open = func(path string) (*stream.LineReader, error) {
				return stream.NewLineReader(&brokenReader{}, path), nil
			}

			got, err := a.Analyze(context.Background(), "broken.log")
			if got != nil {
				t.Errorf("Analyze() returned partial report %+v", got)
			}
			var readErr *stream.ReadError
			if !errors.As(err, &readErr) {
				t.Fatalf("Analyze() error = %v, want *stream.ReadError", err)
			}
		})
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	path := writeLog(t, []string{accessLine("10.0.0.1", "GET", "/a")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, strategy := range strategies {
		t.Run(strategy, func(t *testing.T) {
			_, err := newTestAnalyzer(strategy).Analyze(ctx, path)
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Analyze() error = %v, want context.Canceled", err)
			}
		})
	}
}

func TestAnalyze_StrategiesAgree(t *testing.T) {
	var lines []string
	for i := 0; i < 2000; i++ {
		ip := fmt.Sprintf("192.168.%d.%d", i%7, i%13)
		path := fmt.Sprintf("/page/%d", i%17)
		method := "GET"
		if i%11 == 0 {
			method = "HEAD"
		}
		line := accessLine(ip, method, path)
		if i%5 == 0 {
			line += "\r"
		}
		lines = append(lines, line)
	}
	path := writeLog(t, lines)

	a := NewAnalyzer(parser.NewAccessGrammar(), config.AnalyzerConfig{TopN: 10, Strategy: config.StrategyParallel})
	b := NewAnalyzer(parser.NewAccessGrammar(), config.AnalyzerConfig{TopN: 10, Strategy: config.StrategySinglePass})

	parallel, err := a.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("parallel Analyze() error = %v", err)
	}
	single, err := b.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("single pass Analyze() error = %v", err)
	}

	if diff := cmp.Diff(single, parallel); diff != "" {
		t.Errorf("strategies disagree (-single +parallel):\n%s", diff)
	}

	// 7 and 13 are coprime so every (i%7, i%13) pair appears
	if parallel.UniqueAddressCount != 7*13 {
		t.Errorf("UniqueAddressCount = %d, want %d", parallel.UniqueAddressCount, 7*13)
	}
	if len(parallel.TopURLs) != 10 {
		t.Errorf("len(TopURLs) = %d, want 10", len(parallel.TopURLs))
	}
}

func TestAnalyze_RepeatedRunsAreFresh(t *testing.T) {
	path := writeLog(t, []string{
		accessLine("10.0.0.1", "GET", "/a"),
		accessLine("10.0.0.2", "GET", "/a"),
	})
	a := newTestAnalyzer(config.StrategyParallel)

	first, err := a.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("first Analyze() error = %v", err)
	}
	second, err := a.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("second Analyze() error = %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("state leaked between runs (-first +second):\n%s", diff)
	}
	if second.TopURLs[0].Count != 2 {
		t.Errorf("second run /a count = %d, want 2", second.TopURLs[0].Count)
	}
}

func TestNewAnalyzer_Defaults(t *testing.T) {
	a := NewAnalyzer(parser.NewAccessGrammar(), config.AnalyzerConfig{})
	if a.topN != DefaultTopN {
		t.Errorf("topN = %d, want %d", a.topN, DefaultTopN)
	}
	if a.strategy != config.StrategyParallel {
		t.Errorf("strategy = %q, want %q", a.strategy, config.StrategyParallel)
	}
}

// openTracker hands out line readers and counts how many were closed
type openTracker struct {
	mu     sync.Mutex
	opened int
	closed int
	source func() io.Reader
}

type trackedSource struct {
	io.Reader
	tracker *openTracker
}

func (s *trackedSource) Close() error {
	s.tracker.mu.Lock()
	s.tracker.closed++
	s.tracker.mu.Unlock()
	return nil
}

func (o *openTracker) open(path string) (*stream.LineReader, error) {
	o.mu.Lock()
	o.opened++
	o.mu.Unlock()
	return stream.NewLineReader(&trackedSource{Reader: o.source(), tracker: o}, path), nil
}

func TestAnalyze_ClosesEveryReader(t *testing.T) {
	body := accessLine("10.0.0.1", "GET", "/a") + "\n" + accessLine("10.0.0.2", "GET", "/b") + "\n"
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		source  func() io.Reader
		wantErr bool
	}{
		{"success", context.Background(), func() io.Reader { return strings.NewReader(body) }, false},
		{"read error", context.Background(), func() io.Reader { return &brokenReader{} }, true},
		{"cancelled", cancelled, func() io.Reader { return strings.NewReader(body) }, true},
	}

	wantOpens := map[string]int{config.StrategyParallel: 3, config.StrategySinglePass: 1}

	for _, strategy := range strategies {
		for _, tt := range tests {
			t.Run(strategy+"/"+tt.name, func(t *testing.T) {
				tracker := &openTracker{source: tt.source}
				a := newTestAnalyzer(strategy)
				a.open = tracker.open

				_, err := a.Analyze(tt.ctx, "tracked.log")
				if (err != nil) != tt.wantErr {
					t.Fatalf("Analyze() error = %v, wantErr %v", err, tt.wantErr)
				}
				if tracker.opened != wantOpens[strategy] {
					t.Errorf("opened %d readers, want %d", tracker.opened, wantOpens[strategy])
				}
				if tracker.closed != tracker.opened {
					t.Errorf("closed %d of %d readers", tracker.closed, tracker.opened)
				}
			})
		}
	}
}

func TestAnalyze_SinglePassGrowingLog(t *testing.T) {
	path := writeLog(t, []string{accessLine("10.0.0.1", "GET", "/a")})

	a := newTestAnalyzer(config.StrategySinglePass)
	opens := 0
	a.open = func(p string) (*stream.LineReader, error) {
		opens++
		lr, err := stream.Open(p)
		// The log grows right after the first open
		f, ferr := os.OpenFile(p, os.O_APPEND|os.O_WRONLY, 0)
		if ferr != nil {
			t.Fatalf("failed to open log for append: %v", ferr)
		}
		fmt.Fprintln(f, accessLine(fmt.Sprintf("10.0.0.%d", opens+1), "GET", "/b"))
		f.Close()
		return lr, err
	}

	got, err := a.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if opens != 1 {
		t.Fatalf("opened the log %d times, want 1", opens)
	}

	if got.UniqueAddressCount != len(got.TopIPs) {
		t.Errorf("UniqueAddressCount = %d but TopIPs has %d addresses", got.UniqueAddressCount, len(got.TopIPs))
	}
	requests, visits := 0, 0
	for _, e := range got.TopIPs {
		requests += e.Count
	}
	for _, e := range got.TopURLs {
		visits += e.Count
	}
	if requests != got.LinesMatched || visits != got.LinesMatched {
		t.Errorf("requests %d, visits %d, LinesMatched %d: tallies disagree", requests, visits, got.LinesMatched)
	}
}
