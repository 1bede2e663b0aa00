package models

// ParsedRecord represents the fields extracted from one matching access log line
type ParsedRecord struct {
	ClientAddress string `json:"client_address"`
	RequestPath   string `json:"request_path"`
}

// TopNEntry represents one ranked key and its count
type TopNEntry struct {
	Key   string `json:"key" yaml:"key"`
	Count int    `json:"count" yaml:"count"`
}

// AnalysisReport represents the summary produced by one analysis run
type AnalysisReport struct {
	Source             string      `json:"source,omitempty" yaml:"source,omitempty"`
	TopN               int         `json:"top_n" yaml:"top_n"`
	UniqueAddressCount int         `json:"unique_address_count" yaml:"unique_address_count"`
	TopURLs            []TopNEntry `json:"top_urls" yaml:"top_urls"`
	TopIPs             []TopNEntry `json:"top_ips" yaml:"top_ips"`
	LinesRead          int         `json:"lines_read" yaml:"lines_read"`
	LinesMatched       int         `json:"lines_matched" yaml:"lines_matched"`
}

// LinesSkipped returns the number of lines that did not match the grammar
func (r *AnalysisReport) LinesSkipped() int {
	return r.LinesRead - r.LinesMatched
}
