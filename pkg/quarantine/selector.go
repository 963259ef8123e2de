// Package quarantine decides which flaky tests should be suppressed
// from blocking builds. Selection is a pure function: identical
// statistics and policy always yield an identical ordered list.
package quarantine

import (
	"sort"

	"github.com/ethpandaops/flakeguard/pkg/analyzer"
)

// Policy is the quarantine selection threshold policy. The base
// predicate is always is_flaky; the floors tighten it further.
type Policy struct {
	// MinFlipRate excludes tests flipping less often than this rate.
	// Zero disables the floor.
	MinFlipRate float64

	// MinCostUSD excludes tests wasting less than this estimate. Zero
	// disables the floor.
	MinCostUSD float64
}

// DefaultPolicy quarantines every flaky test.
func DefaultPolicy() Policy {
	return Policy{}
}

// SortByCost orders statistics by estimated cost descending, ties
// broken by test_id ascending. The sort is deterministic: running it
// twice over identical data yields identical output.
func SortByCost(stats []analyzer.TestStatistics) {
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].EstimatedCostUSD != stats[j].EstimatedCostUSD {
			return stats[i].EstimatedCostUSD > stats[j].EstimatedCostUSD
		}

		return stats[i].TestID < stats[j].TestID
	})
}

// Select returns the ordered list of test IDs to suppress under the
// given policy.
func Select(stats []analyzer.TestStatistics, policy Policy) []string {
	matched := make([]analyzer.TestStatistics, 0, len(stats))

	for _, st := range stats {
		if !st.IsFlaky {
			continue
		}

		if policy.MinFlipRate > 0 && st.FlipRate < policy.MinFlipRate {
			continue
		}

		if policy.MinCostUSD > 0 && st.EstimatedCostUSD < policy.MinCostUSD {
			continue
		}

		matched = append(matched, st)
	}

	SortByCost(matched)

	ids := make([]string, 0, len(matched))

	for _, st := range matched {
		ids = append(ids, st.TestID)
	}

	return ids
}
