package parser

import (
	"fmt"
	"regexp"

	"github.com/justin4957/logflow-access-analyzer/pkg/models"
)

// GrammarAccess is the name of the built-in GET-only access log grammar
const GrammarAccess = "access"

// LineGrammar interface for extracting a record from one log line.
// A line that does not fit the grammar is reported with ok == false and is
// never an error.
type LineGrammar interface {
	Match(line string) (record models.ParsedRecord, ok bool)
}

// NewGrammar creates a grammar based on the specified name
func NewGrammar(name string) (LineGrammar, error) {
	switch name {
	case "", GrammarAccess:
		return NewAccessGrammar(), nil
	default:
		return nil, fmt.Errorf("unknown line grammar %q", name)
	}
}

// accessLineRegex matches:
// 192.168.1.1 - - [10/Jul/2023:21:21:15 +0000] "GET /index.html HTTP/1.1" 200 10469
// The pattern is searched anywhere in the line and the octets are not range checked.
var accessLineRegex = regexp.MustCompile(`(\d+\.\d+\.\d+\.\d+) - - \[.*?\] "GET (.*?) HTTP/1\.1"`)

// AccessGrammar matches GET requests in the access log format
type AccessGrammar struct {
	regex *regexp.Regexp
}

// NewAccessGrammar creates the GET-only access log grammar
func NewAccessGrammar() *AccessGrammar {
	return &AccessGrammar{regex: accessLineRegex}
}

func (g *AccessGrammar) Match(line string) (models.ParsedRecord, bool) {
	matches := g.regex.FindStringSubmatch(line)
	if len(matches) != 3 {
		return models.ParsedRecord{}, false
	}

	return models.ParsedRecord{
		ClientAddress: matches[1],
		RequestPath:   matches[2],
	}, true
}
