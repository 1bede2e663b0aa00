// Package report renders an AnalysisReport for people and tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/justin4957/logflow-access-analyzer/internal/config"
	"github.com/justin4957/logflow-access-analyzer/pkg/models"
	"gopkg.in/yaml.v3"
)

// Write renders rep to w in the named format: text, json or yaml
func Write(w io.Writer, format string, rep *models.AnalysisReport) error {
	switch format {
	case "", config.OutputText:
		return WriteText(w, rep)
	case config.OutputJSON:
		return WriteJSON(w, rep)
	case config.OutputYAML:
		return WriteYAML(w, rep)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteText prints the summary in the numbered list form:
//
//	Number of unique IP addresses: 2
//	Top 3 most visited URLs:
//	1. /a - 5 visits
//	Top 3 most active IP addresses:
//	1. 10.0.0.1 - 8 requests
func WriteText(w io.Writer, rep *models.AnalysisReport) error {
	ew := &errWriter{w: w}

	ew.printf("Number of unique IP addresses: %d\n", rep.UniqueAddressCount)
	ew.printf("Top %d most visited URLs:\n", rep.TopN)
	for i, entry := range rep.TopURLs {
		ew.printf("%d. %s - %d visits\n", i+1, entry.Key, entry.Count)
	}
	ew.printf("Top %d most active IP addresses:\n", rep.TopN)
	for i, entry := range rep.TopIPs {
		ew.printf("%d. %s - %d requests\n", i+1, entry.Key, entry.Count)
	}

	return ew.err
}

// WriteJSON prints the report as indented JSON
func WriteJSON(w io.Writer, rep *models.AnalysisReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteYAML prints the report as YAML
func WriteYAML(w io.Writer, rep *models.AnalysisReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// errWriter keeps the first write error so printing can continue unchecked
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
