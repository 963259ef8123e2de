// Package cost translates flip counts into an estimated dollar value of
// wasted CI compute. The model is deliberately linear so any reported
// number can be reproduced by hand from the flip count and the rate.
package cost

import (
	"math"

	"github.com/ethpandaops/flakeguard/pkg/analyzer"
	"github.com/ethpandaops/flakeguard/pkg/store"
)

// Defaults for the attribution model.
const (
	// DefaultCostPerRunUSD is the CI spend attributed to one wasted run.
	DefaultCostPerRunUSD = 0.08

	// DefaultRerunMultiplier models the average number of CI re-runs a
	// single flip historically triggers.
	DefaultRerunMultiplier = 1.0
)

// Config contains the attribution rates.
type Config struct {
	CostPerRunUSD   float64
	RerunMultiplier float64
}

// Attributor prices flips against the configured rate and any per-run
// overrides. It holds no mutable state; attribution is a pure function
// of its inputs.
type Attributor struct {
	cfg       Config
	overrides map[string]float64
}

// NewAttributor creates an Attributor. Zero-valued config fields fall
// back to the documented defaults. Run records supply optional per-run
// cost overrides.
func NewAttributor(cfg Config, runs []store.RunRecord) *Attributor {
	if cfg.CostPerRunUSD <= 0 {
		cfg.CostPerRunUSD = DefaultCostPerRunUSD
	}

	if cfg.RerunMultiplier <= 0 {
		cfg.RerunMultiplier = DefaultRerunMultiplier
	}

	overrides := make(map[string]float64, len(runs))

	for i := range runs {
		if runs[i].CostPerRun != nil {
			overrides[runs[i].RunID] = *runs[i].CostPerRun
		}
	}

	return &Attributor{cfg: cfg, overrides: overrides}
}

// Attribute estimates the CI spend wasted by a test's flips. Each flip
// is priced at the rate of the run it flipped into (the run that
// triggered the re-run), using that run's override when present. With
// no overrides this is exactly flip_count * cost_per_run * multiplier.
// The result is rounded to cents and monotonic in flip count for a
// fixed rate.
func (a *Attributor) Attribute(ordered []store.TestResult) float64 {
	var total float64

	for _, flip := range analyzer.Flips(ordered) {
		total += a.rateFor(flip.ToRunID) * a.cfg.RerunMultiplier
	}

	return math.Round(total*100) / 100
}

// rateFor returns the cost rate for a run, honoring overrides.
func (a *Attributor) rateFor(runID string) float64 {
	if rate, ok := a.overrides[runID]; ok {
		return rate
	}

	return a.cfg.CostPerRunUSD
}
