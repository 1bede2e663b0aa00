package analyzer

import (
	"github.com/justin4957/logflow-access-analyzer/pkg/models"
)

// Aggregator holds the running tallies for one analysis run.
// Each Record* method touches exactly one tally, so the three metrics can be
// fed from separate goroutines without locking as long as each method is
// only ever called from one goroutine.
type Aggregator struct {
	urlVisits  *Tally
	ipActivity *Tally
	uniqueIPs  *AddressSet
}

// NewAggregator creates an aggregator with fresh tallies
func NewAggregator() *Aggregator {
	return &Aggregator{
		urlVisits:  NewTally(),
		ipActivity: NewTally(),
		uniqueIPs:  NewAddressSet(),
	}
}

// RecordURLVisit counts one request for path
func (a *Aggregator) RecordURLVisit(path string) {
	a.urlVisits.Increment(path)
}

// RecordIPActivity counts one request from ip
func (a *Aggregator) RecordIPActivity(ip string) {
	a.ipActivity.Increment(ip)
}

// RecordUniqueIP adds ip to the set of distinct addresses
func (a *Aggregator) RecordUniqueIP(ip string) {
	a.uniqueIPs.Add(ip)
}

// Record routes one record to all three tallies
func (a *Aggregator) Record(record models.ParsedRecord) {
	a.RecordURLVisit(record.RequestPath)
	a.RecordIPActivity(record.ClientAddress)
	a.RecordUniqueIP(record.ClientAddress)
}

// URLVisits returns the url tally
func (a *Aggregator) URLVisits() *Tally {
	return a.urlVisits
}

// IPActivity returns the ip tally
func (a *Aggregator) IPActivity() *Tally {
	return a.ipActivity
}

// UniqueIPCount returns the number of distinct addresses seen
func (a *Aggregator) UniqueIPCount() int {
	return a.uniqueIPs.Len()
}
