package store

import (
	"errors"
	"fmt"
)

// ErrDuplicateRun is returned when a run_id has already been ingested.
// Re-ingestion is rejected rather than merged to prevent double-counting.
var ErrDuplicateRun = errors.New("run already ingested")

// ValidationError describes a malformed test result rejected at the
// ingestion boundary. The whole run is rejected, never partially stored.
type ValidationError struct {
	TestID string
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.TestID == "" {
		return fmt.Sprintf("invalid result: %s: %s", e.Field, e.Reason)
	}

	return fmt.Sprintf("invalid result for %q: %s: %s", e.TestID, e.Field, e.Reason)
}

// ValidateResult checks a single test result before ingestion.
func ValidateResult(r *TestResult) error {
	if r.TestID == "" {
		return &ValidationError{Field: "test_id", Reason: "must not be empty"}
	}

	if r.RunID == "" {
		return &ValidationError{TestID: r.TestID, Field: "run_id", Reason: "must not be empty"}
	}

	if _, ok := validStatuses[r.Status]; !ok {
		return &ValidationError{
			TestID: r.TestID,
			Field:  "status",
			Reason: fmt.Sprintf("unknown status %q", r.Status),
		}
	}

	if r.DurationSeconds < 0 {
		return &ValidationError{
			TestID: r.TestID,
			Field:  "duration_seconds",
			Reason: "must not be negative",
		}
	}

	return nil
}
