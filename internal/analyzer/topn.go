package analyzer

import (
	"sort"

	"github.com/justin4957/logflow-access-analyzer/pkg/models"
)

// DefaultTopN is the number of entries reported per ranking
const DefaultTopN = 3

// TopN returns the n entries of t with the highest counts, highest first.
// Equal counts are ordered by ascending key so results are reproducible.
// A non-positive n or an empty tally yields an empty slice.
func TopN(t *Tally, n int) []models.TopNEntry {
	if t == nil || n <= 0 || t.Len() == 0 {
		return []models.TopNEntry{}
	}

	// Pre-allocate slice with exact capacity needed
	sorted := make([]models.TopNEntry, 0, t.Len())
	for k, v := range t.counts {
		sorted = append(sorted, models.TopNEntry{Key: k, Count: v})
	}

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].Key < sorted[j].Key
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}

	return sorted
}
