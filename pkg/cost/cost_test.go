package cost

import (
	"testing"
	"time"

	"github.com/ethpandaops/flakeguard/pkg/store"
	"github.com/stretchr/testify/assert"
)

func alternating(n int) []store.TestResult {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	results := make([]store.TestResult, 0, n)
	for i := 0; i < n; i++ {
		status := store.StatusPass
		if i%2 == 1 {
			status = store.StatusFail
		}

		results = append(results, store.TestResult{
			TestID:    "pkg.TestX",
			RunID:     runName(i),
			Status:    status,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
	}

	return results
}

func runName(i int) string {
	return "run-" + string(rune('a'+i))
}

func TestAttributeLinearModel(t *testing.T) {
	// 5 alternating outcomes = 4 flips at $50 each.
	a := NewAttributor(Config{CostPerRunUSD: 50}, nil)

	assert.InDelta(t, 200.0, a.Attribute(alternating(5)), 1e-9)
}

func TestAttributeRerunMultiplier(t *testing.T) {
	a := NewAttributor(Config{CostPerRunUSD: 10, RerunMultiplier: 2.5}, nil)

	// 2 flips * $10 * 2.5.
	assert.InDelta(t, 50.0, a.Attribute(alternating(3)), 1e-9)
}

func TestAttributeNoFlipsCostsNothing(t *testing.T) {
	a := NewAttributor(Config{CostPerRunUSD: 100}, nil)

	results := alternating(1)

	assert.Zero(t, a.Attribute(results))
	assert.Zero(t, a.Attribute(nil))
}

func TestAttributeMonotonicInFlipCount(t *testing.T) {
	a := NewAttributor(Config{CostPerRunUSD: 0.08}, nil)

	var prev float64

	for n := 2; n <= 10; n++ {
		got := a.Attribute(alternating(n))

		assert.GreaterOrEqual(t, got, prev, "cost must not decrease as flips accumulate")
		prev = got
	}
}

func TestAttributePerRunOverride(t *testing.T) {
	expensive := 5.0

	runs := []store.RunRecord{
		{RunID: runName(1), CostPerRun: &expensive},
	}

	a := NewAttributor(Config{CostPerRunUSD: 1}, runs)

	// Flips land into run-b (overridden at $5) and run-c (default $1).
	assert.InDelta(t, 6.0, a.Attribute(alternating(3)), 1e-9)
}

func TestAttributeRoundsToCents(t *testing.T) {
	a := NewAttributor(Config{CostPerRunUSD: 0.0333}, nil)

	// 2 flips * 0.0333 = 0.0666, rounded to 0.07.
	assert.InDelta(t, 0.07, a.Attribute(alternating(3)), 1e-9)
}

func TestNewAttributorDefaults(t *testing.T) {
	a := NewAttributor(Config{}, nil)

	assert.InDelta(t, DefaultCostPerRunUSD, a.cfg.CostPerRunUSD, 0)
	assert.InDelta(t, DefaultRerunMultiplier, a.cfg.RerunMultiplier, 0)
}
