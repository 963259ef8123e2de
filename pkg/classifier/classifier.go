// Package classifier assigns a root-cause category to a flaky test. A
// priority-ordered chain of (predicate, label) rules is evaluated in
// order and the first match wins; the final timing rule matches
// unconditionally, so every input receives exactly one label.
package classifier

import (
	"github.com/ethpandaops/flakeguard/pkg/store"
)

// Category is a root-cause label for a flaky test.
type Category string

// The seven root-cause categories, in rule priority order.
const (
	CategoryTimezone       Category = "timezone"
	CategoryFloatPrecision Category = "float_precision"
	CategoryResourceLeak   Category = "resource_leak"
	CategoryRaceCondition  Category = "race_condition"
	CategorySharedState    Category = "shared_state"
	CategoryOrdering       Category = "ordering"
	CategoryTiming         Category = "timing"
)

// Heuristic tuning defaults. The exact values are implementation
// defined; they are exposed so operators can adjust them per codebase.
const (
	// DefaultFloatEpsilon is the near-equality threshold for numeric
	// pairs extracted from assertion messages.
	DefaultFloatEpsilon = 1e-4

	// DefaultTightVarianceRatio is the relative pass/fail duration
	// variance below which a textless intermittent failure reads as a
	// race.
	DefaultTightVarianceRatio = 0.15

	// DefaultCoarseVarianceRatio is the failure duration variance,
	// relative to the median duration, above which a failure reads as
	// timing-sensitive.
	DefaultCoarseVarianceRatio = 0.5
)

// Thresholds contains the classifier's tuning constants.
type Thresholds struct {
	FloatEpsilon        float64
	TightVarianceRatio  float64
	CoarseVarianceRatio float64
}

// DefaultThresholds returns the documented default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FloatEpsilon:        DefaultFloatEpsilon,
		TightVarianceRatio:  DefaultTightVarianceRatio,
		CoarseVarianceRatio: DefaultCoarseVarianceRatio,
	}
}

// input is the evidence one classification decision sees: the test's
// chronologically ordered non-skipped results plus run-level failure
// counts across all tests (for co-occurrence checks). Rules are pure
// functions of this input.
type input struct {
	ordered     []store.TestResult
	messages    []string
	runFailures map[string]int
	thresholds  Thresholds
}

// rule is one (predicate, label) pair in the chain.
type rule struct {
	label Category
	match func(*input) bool
}

// Classifier applies the rule chain with a fixed set of thresholds.
type Classifier struct {
	thresholds Thresholds
	rules      []rule
}

// New creates a Classifier. Zero-valued thresholds fall back to the
// documented defaults.
func New(th Thresholds) *Classifier {
	def := DefaultThresholds()

	if th.FloatEpsilon <= 0 {
		th.FloatEpsilon = def.FloatEpsilon
	}

	if th.TightVarianceRatio <= 0 {
		th.TightVarianceRatio = def.TightVarianceRatio
	}

	if th.CoarseVarianceRatio <= 0 {
		th.CoarseVarianceRatio = def.CoarseVarianceRatio
	}

	c := &Classifier{thresholds: th}

	// Priority order: first match wins. New categories are appended to
	// the chain, never interleaved into existing control flow.
	c.rules = []rule{
		{CategoryTimezone, matchTimezone},
		{CategoryFloatPrecision, matchFloatPrecision},
		{CategoryResourceLeak, matchResourceLeak},
		{CategoryRaceCondition, matchRaceCondition},
		{CategorySharedState, matchSharedState},
		{CategoryOrdering, matchOrdering},
		{CategoryTiming, matchTiming},
		{CategoryTiming, matchAlways},
	}

	return c
}

// Classify returns the single root-cause category for a flaky test.
// ordered must be the test's chronologically sorted, non-skipped
// results; runFailures maps run_id to the total failure count across
// all tests in that run. The fallback rule guarantees a label for
// every input.
func (c *Classifier) Classify(
	ordered []store.TestResult,
	runFailures map[string]int,
) Category {
	in := &input{
		ordered:     ordered,
		messages:    failureMessages(ordered),
		runFailures: runFailures,
		thresholds:  c.thresholds,
	}

	for _, r := range c.rules {
		if r.match(in) {
			return r.label
		}
	}

	// Unreachable: the chain ends in an unconditional rule.
	return CategoryTiming
}
