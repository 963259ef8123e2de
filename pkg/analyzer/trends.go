package analyzer

import (
	"sort"
	"time"

	"github.com/ethpandaops/flakeguard/pkg/store"
)

// Trend direction labels.
const (
	TrendImproving = "improving"
	TrendWorsening = "worsening"
	TrendStable    = "stable"
)

// DefaultTrendSlopeEpsilon is the per-day slope magnitude below which a
// test's failure trend is considered flat.
const DefaultTrendSlopeEpsilon = 1e-4

// TrendEntry describes how a test's failure behavior is drifting over
// the analysis window.
type TrendEntry struct {
	TestID    string  `json:"test_id"`
	TotalRuns int     `json:"total_runs"`
	FailRate  float64 `json:"fail_rate"`

	// Slope is the least-squares slope of failure outcome (0 or 1)
	// against time, in failures per day.
	Slope float64 `json:"slope"`
	Trend string  `json:"trend"`
}

// AnalyzeTrends computes per-test failure trends for all observations
// recorded at or after the window start. Output is sorted by test_id
// ascending for determinism.
func AnalyzeTrends(results []store.TestResult, windowStart time.Time) []TrendEntry {
	groups := GroupByTest(results)

	entries := make([]TrendEntry, 0, len(groups))

	for testID, group := range groups {
		windowed := make([]store.TestResult, 0, len(group))

		for i := range group {
			if group[i].Status == store.StatusSkipped {
				continue
			}

			if group[i].Timestamp.Before(windowStart) {
				continue
			}

			windowed = append(windowed, group[i])
		}

		if len(windowed) < 2 {
			continue
		}

		entries = append(entries, analyzeTrend(testID, windowed))
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TestID < entries[j].TestID
	})

	return entries
}

// analyzeTrend fits a least-squares line through (time, failed) points
// for a single test.
func analyzeTrend(testID string, ordered []store.TestResult) TrendEntry {
	entry := TrendEntry{
		TestID:    testID,
		TotalRuns: len(ordered),
	}

	base := ordered[0].Timestamp

	var sumX, sumY, sumXY, sumXX float64

	for i := range ordered {
		x := ordered[i].Timestamp.Sub(base).Hours() / 24

		var y float64
		if ordered[i].IsFailure() {
			y = 1
			entry.FailRate++
		}

		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	n := float64(len(ordered))
	entry.FailRate /= n

	// All observations at the same instant: no time axis to fit.
	denom := n*sumXX - sumX*sumX
	if denom != 0 {
		entry.Slope = (n*sumXY - sumX*sumY) / denom
	}

	switch {
	case entry.Slope > DefaultTrendSlopeEpsilon:
		entry.Trend = TrendWorsening
	case entry.Slope < -DefaultTrendSlopeEpsilon:
		entry.Trend = TrendImproving
	default:
		entry.Trend = TrendStable
	}

	return entry
}
