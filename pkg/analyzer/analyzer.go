// Package analyzer computes deterministic per-test statistics from the
// full history of stored test results, most importantly the flip rate:
// the fraction of chronologically adjacent run pairs in which a test
// changed outcome. A test that fails every time is broken, not flaky;
// only outcome changes across nominally identical code states count.
package analyzer

import (
	"sort"

	"github.com/ethpandaops/flakeguard/pkg/store"
)

// Reason codes explaining why a test is or is not flagged as flaky.
const (
	ReasonFlaky            = "flaky"
	ReasonInsufficientData = "insufficient_data"
	ReasonStable           = "stable"
	ReasonAlwaysFailing    = "always_failing"
)

// Config contains analyzer settings.
type Config struct {
	// MinRuns is the minimum number of non-skipped observations before
	// a test can be flagged as flaky.
	MinRuns int
}

// DefaultMinRuns is the default minimum sample size.
const DefaultMinRuns = 3

// TestStatistics is the derived, immutable statistics record for one
// test. It is recomputed on every detection pass and never persisted
// as authoritative state.
type TestStatistics struct {
	TestID           string  `json:"test_id"`
	TotalRuns        int     `json:"total_runs"`
	PassCount        int     `json:"pass_count"`
	FailCount        int     `json:"fail_count"`
	SkipCount        int     `json:"skip_count,omitempty"`
	FlipCount        int     `json:"flip_count"`
	FlipRate         float64 `json:"flip_rate"`
	IsFlaky          bool    `json:"is_flaky"`
	Reason           string  `json:"reason"`
	Classification   string  `json:"classification,omitempty"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// Flip is one outcome change between two chronologically adjacent
// observations of the same test.
type Flip struct {
	FromRunID string
	ToRunID   string
}

// GroupByTest groups results by test identity, each group sorted
// chronologically. Timestamp ties are broken by run_id lexical order
// so the walk is deterministic.
func GroupByTest(results []store.TestResult) map[string][]store.TestResult {
	groups := make(map[string][]store.TestResult)

	for i := range results {
		r := results[i]
		groups[r.TestID] = append(groups[r.TestID], r)
	}

	for _, group := range groups {
		SortChronological(group)
	}

	return groups
}

// SortChronological sorts a result group by timestamp ascending with
// run_id as the deterministic tiebreak.
func SortChronological(group []store.TestResult) {
	sort.SliceStable(group, func(i, j int) bool {
		if !group[i].Timestamp.Equal(group[j].Timestamp) {
			return group[i].Timestamp.Before(group[j].Timestamp)
		}

		return group[i].RunID < group[j].RunID
	})
}

// NonSkipped filters out skipped observations. A skip neither confirms
// nor denies determinism and is excluded from the pairwise walk.
func NonSkipped(group []store.TestResult) []store.TestResult {
	out := make([]store.TestResult, 0, len(group))

	for i := range group {
		if group[i].Status != store.StatusSkipped {
			out = append(out, group[i])
		}
	}

	return out
}

// Flips walks a chronologically ordered, non-skipped sequence pairwise
// and returns every outcome change. Error and fail count as the same
// outcome.
func Flips(ordered []store.TestResult) []Flip {
	var flips []Flip

	for i := 1; i < len(ordered); i++ {
		if ordered[i].IsFailure() != ordered[i-1].IsFailure() {
			flips = append(flips, Flip{
				FromRunID: ordered[i-1].RunID,
				ToRunID:   ordered[i].RunID,
			})
		}
	}

	return flips
}

// Analyze computes statistics for every test present in the result set.
// The output is sorted by test_id ascending; callers concerned with
// cost ordering re-sort after attribution.
func Analyze(results []store.TestResult, cfg Config) []TestStatistics {
	minRuns := cfg.MinRuns
	if minRuns <= 0 {
		minRuns = DefaultMinRuns
	}

	groups := GroupByTest(results)

	stats := make([]TestStatistics, 0, len(groups))

	for testID, group := range groups {
		stats = append(stats, analyzeGroup(testID, group, minRuns))
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].TestID < stats[j].TestID
	})

	return stats
}

// analyzeGroup computes statistics for a single chronologically sorted
// result group.
func analyzeGroup(testID string, group []store.TestResult, minRuns int) TestStatistics {
	st := TestStatistics{TestID: testID}

	observed := NonSkipped(group)
	st.TotalRuns = len(observed)
	st.SkipCount = len(group) - len(observed)

	for i := range observed {
		if observed[i].IsFailure() {
			st.FailCount++
		} else {
			st.PassCount++
		}
	}

	st.FlipCount = len(Flips(observed))

	denom := st.TotalRuns - 1
	if denom < 1 {
		denom = 1
	}

	st.FlipRate = float64(st.FlipCount) / float64(denom)

	switch {
	case st.TotalRuns < minRuns:
		st.Reason = ReasonInsufficientData
	case st.FailCount == 0:
		st.Reason = ReasonStable
	case st.PassCount == 0:
		st.Reason = ReasonAlwaysFailing
	case st.FlipCount > 0:
		st.IsFlaky = true
		st.Reason = ReasonFlaky
	default:
		st.Reason = ReasonStable
	}

	return st
}
