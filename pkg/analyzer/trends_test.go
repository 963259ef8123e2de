package analyzer

import (
	"testing"
	"time"

	"github.com/ethpandaops/flakeguard/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendSeq(testID string, start time.Time, statuses ...string) []store.TestResult {
	results := make([]store.TestResult, 0, len(statuses))
	for i, status := range statuses {
		results = append(results, store.TestResult{
			TestID:    testID,
			RunID:     runID(i),
			Status:    status,
			Timestamp: start.AddDate(0, 0, i),
		})
	}

	return results
}

func TestAnalyzeTrends(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		statuses []string
		trend    string
		failRate float64
	}{
		{
			name: "failures concentrating late means worsening",
			statuses: []string{
				store.StatusPass, store.StatusPass, store.StatusPass,
				store.StatusFail, store.StatusFail,
			},
			trend:    TrendWorsening,
			failRate: 0.4,
		},
		{
			name: "failures concentrating early means improving",
			statuses: []string{
				store.StatusFail, store.StatusFail, store.StatusPass,
				store.StatusPass, store.StatusPass,
			},
			trend:    TrendImproving,
			failRate: 0.4,
		},
		{
			name: "constant passing is stable",
			statuses: []string{
				store.StatusPass, store.StatusPass, store.StatusPass,
			},
			trend:    TrendStable,
			failRate: 0,
		},
		{
			name: "constant failing is stable",
			statuses: []string{
				store.StatusFail, store.StatusFail, store.StatusFail,
			},
			trend:    TrendStable,
			failRate: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := AnalyzeTrends(
				trendSeq("pkg.TestX", start, tt.statuses...), start,
			)
			require.Len(t, entries, 1)

			assert.Equal(t, tt.trend, entries[0].Trend)
			assert.InDelta(t, tt.failRate, entries[0].FailRate, 1e-9)
			assert.Equal(t, len(tt.statuses), entries[0].TotalRuns)
		})
	}
}

func TestAnalyzeTrendsWindowFilter(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Five early failures fall before the window; only the trailing
	// passes remain, so the trend over the window is flat.
	results := trendSeq("pkg.TestX", start,
		store.StatusFail, store.StatusFail, store.StatusFail,
		store.StatusFail, store.StatusFail,
		store.StatusPass, store.StatusPass, store.StatusPass,
	)

	windowStart := start.AddDate(0, 0, 5)

	entries := AnalyzeTrends(results, windowStart)
	require.Len(t, entries, 1)

	assert.Equal(t, 3, entries[0].TotalRuns)
	assert.Zero(t, entries[0].FailRate)
	assert.Equal(t, TrendStable, entries[0].Trend)
}

func TestAnalyzeTrendsNeedsTwoPoints(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	entries := AnalyzeTrends(trendSeq("pkg.TestX", start, store.StatusFail), start)

	assert.Empty(t, entries)
}

func TestAnalyzeTrendsSkippedExcluded(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	results := trendSeq("pkg.TestX", start,
		store.StatusSkipped, store.StatusPass, store.StatusSkipped, store.StatusFail,
	)

	entries := AnalyzeTrends(results, start)
	require.Len(t, entries, 1)

	assert.Equal(t, 2, entries[0].TotalRuns)
	assert.InDelta(t, 0.5, entries[0].FailRate, 1e-9)
}

func TestAnalyzeTrendsSameInstantObservations(t *testing.T) {
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	results := []store.TestResult{
		{TestID: "t", RunID: "run-a", Status: store.StatusPass, Timestamp: ts},
		{TestID: "t", RunID: "run-b", Status: store.StatusFail, Timestamp: ts},
	}

	entries := AnalyzeTrends(results, ts)
	require.Len(t, entries, 1)

	assert.Zero(t, entries[0].Slope)
	assert.Equal(t, TrendStable, entries[0].Trend)
}
