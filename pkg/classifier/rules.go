package classifier

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ethpandaops/flakeguard/pkg/store"
)

// Keyword sets per category. Matching is case-insensitive substring
// matching over failure messages.
var (
	timezoneKeywords = []string{
		"timezone", "time zone", "utc", "tz", "dst", "daylight",
		"datetime", "gmt+", "gmt-", "offset",
	}

	floatPrecisionKeywords = []string{
		"precision", "float", "decimal", "almost equal", "rounding",
		"approximately",
	}

	resourceLeakKeywords = []string{
		"memory", "oom", "out of memory", "connection", "file descriptor",
		"too many open", "leak", "exhausted", "pool",
	}

	raceConditionKeywords = []string{
		"race", "concurrent", "thread", "deadlock", "goroutine",
		"mutex", "atomic",
	}

	sharedStateKeywords = []string{
		"already exists", "duplicate", "conflict", "dirty",
		"stale", "polluted",
	}

	orderingKeywords = []string{
		"not found", "setup", "fixture", "depends", "missing",
		"teardown", "before", "order",
	}

	timingKeywords = []string{
		"timeout", "timed out", "sleep", "deadline", "wait", "slow",
	}
)

// floatPattern extracts decimal literals from assertion messages.
var floatPattern = regexp.MustCompile(`-?\d+\.\d+`)

// failureMessages collects lowercased non-empty error messages from
// failing results.
func failureMessages(ordered []store.TestResult) []string {
	msgs := make([]string, 0, len(ordered))

	for i := range ordered {
		if !ordered[i].IsFailure() || ordered[i].ErrorMessage == "" {
			continue
		}

		msgs = append(msgs, strings.ToLower(ordered[i].ErrorMessage))
	}

	return msgs
}

// anyKeyword reports whether any message contains any of the keywords.
func anyKeyword(msgs []string, keywords []string) bool {
	for _, m := range msgs {
		for _, kw := range keywords {
			if strings.Contains(m, kw) {
				return true
			}
		}
	}

	return false
}

// matchTimezone matches UTC offsets, datetime tokens, and DST terms.
func matchTimezone(in *input) bool {
	return anyKeyword(in.messages, timezoneKeywords)
}

// matchFloatPrecision matches rounding/precision phrases or assertion
// messages comparing two nearly equal floating point values.
func matchFloatPrecision(in *input) bool {
	if anyKeyword(in.messages, floatPrecisionKeywords) {
		return true
	}

	for _, m := range in.messages {
		nums := floatPattern.FindAllString(m, -1)
		if len(nums) < 2 {
			continue
		}

		values := make([]float64, 0, len(nums))

		for _, n := range nums {
			v, err := strconv.ParseFloat(n, 64)
			if err != nil {
				continue
			}

			values = append(values, v)
		}

		sort.Float64s(values)

		for i := 1; i < len(values); i++ {
			diff := values[i] - values[i-1]
			if diff > 0 && diff < in.thresholds.FloatEpsilon {
				return true
			}
		}
	}

	return false
}

// matchResourceLeak matches exhaustion language or durations growing
// monotonically across the failing subsequence.
func matchResourceLeak(in *input) bool {
	if anyKeyword(in.messages, resourceLeakKeywords) {
		return true
	}

	return failureDurationsGrowMonotonically(in.ordered)
}

// failureDurationsGrowMonotonically reports whether the durations of
// failing observations only ever increase, chronologically.
func failureDurationsGrowMonotonically(ordered []store.TestResult) bool {
	var durations []float64

	for i := range ordered {
		if ordered[i].IsFailure() {
			durations = append(durations, ordered[i].DurationSeconds)
		}
	}

	if len(durations) < 3 {
		return false
	}

	for i := 1; i < len(durations); i++ {
		if durations[i] <= durations[i-1] {
			return false
		}
	}

	return true
}

// matchRaceCondition matches concurrency-primitive language, or
// genuinely nondeterministic small-scale timing: intermittent failure
// with no textual cause and near-identical pass/fail durations.
func matchRaceCondition(in *input) bool {
	if anyKeyword(in.messages, raceConditionKeywords) {
		return true
	}

	if len(in.messages) > 0 {
		return false
	}

	passMean, failMean, ok := passFailDurationMeans(in.ordered)
	if !ok {
		return false
	}

	base := math.Max(passMean, 1e-3)

	return math.Abs(failMean-passMean)/base < in.thresholds.TightVarianceRatio
}

// passFailDurationMeans returns the mean duration of passing and
// failing observations. ok is false unless both outcomes are present.
func passFailDurationMeans(ordered []store.TestResult) (passMean, failMean float64, ok bool) {
	var passSum, failSum float64

	var passN, failN int

	for i := range ordered {
		if ordered[i].IsFailure() {
			failSum += ordered[i].DurationSeconds
			failN++
		} else {
			passSum += ordered[i].DurationSeconds
			passN++
		}
	}

	if passN == 0 || failN == 0 {
		return 0, 0, false
	}

	return passSum / float64(passN), failSum / float64(failN), true
}

// matchSharedState matches cross-test pollution language, or failures
// that predominantly co-occur with other tests' failures in the same
// run without timing signatures.
func matchSharedState(in *input) bool {
	if anyKeyword(in.messages, sharedStateKeywords) {
		return true
	}

	if len(in.runFailures) == 0 {
		return false
	}

	var failed, coOccurred int

	for i := range in.ordered {
		if !in.ordered[i].IsFailure() {
			continue
		}

		failed++

		// This test contributes one failure to its run; anything above
		// that is another test failing alongside it.
		if in.runFailures[in.ordered[i].RunID] > 1 {
			coOccurred++
		}
	}

	if failed == 0 {
		return false
	}

	return float64(coOccurred)/float64(failed) >= 0.6
}

// matchOrdering matches dependency/setup-order language.
func matchOrdering(in *input) bool {
	return anyKeyword(in.messages, orderingKeywords)
}

// matchTiming matches explicit timeout language or coarse duration
// variance relative to the group's median duration.
func matchTiming(in *input) bool {
	return anyKeyword(in.messages, timingKeywords) || coarseDurationVariance(in)
}

// matchAlways is the unconditional fallback that keeps the chain total:
// a flaky test no other rule explains is labeled timing.
func matchAlways(*input) bool {
	return true
}

// coarseDurationVariance reports whether durations spread wider than
// the coarse threshold relative to the group's median duration.
func coarseDurationVariance(in *input) bool {
	durations := make([]float64, 0, len(in.ordered))

	for i := range in.ordered {
		durations = append(durations, in.ordered[i].DurationSeconds)
	}

	if len(durations) < 2 {
		return false
	}

	sorted := make([]float64, len(durations))
	copy(sorted, durations)
	sort.Float64s(sorted)

	median := sorted[len(sorted)/2]
	if median <= 0 {
		return false
	}

	spread := sorted[len(sorted)-1] - sorted[0]

	return spread/median > in.thresholds.CoarseVarianceRatio
}
