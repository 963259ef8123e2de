package store

import "time"

// Test result status values.
const (
	StatusPass    = "pass"
	StatusFail    = "fail"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// validStatuses is the set of accepted status values at ingestion.
var validStatuses = map[string]struct{}{
	StatusPass:    {},
	StatusFail:    {},
	StatusError:   {},
	StatusSkipped: {},
}

// TestResult is one observation of one test in one CI run.
type TestResult struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	TestID          string    `gorm:"not null;uniqueIndex:idx_results_test_run" json:"test_id"`
	RunID           string    `gorm:"not null;uniqueIndex:idx_results_test_run;index" json:"run_id"`
	Status          string    `gorm:"not null" json:"status"`
	DurationSeconds float64   `json:"duration_seconds"`
	ErrorMessage    string    `gorm:"type:text" json:"error_message,omitempty"`
	Timestamp       time.Time `gorm:"index" json:"timestamp"`
}

// IsFailure reports whether the result counts as a failure. An error
// outcome is treated the same as a failure for flip analysis.
func (r *TestResult) IsFailure() bool {
	return r.Status == StatusFail || r.Status == StatusError
}

// RunRecord is the metadata for a single ingested CI run.
type RunRecord struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	RunID      string    `gorm:"uniqueIndex;not null" json:"run_id"`
	IngestedAt time.Time `json:"ingested_at"`

	// CostPerRun overrides the configured default CI spend rate for
	// flips attributed to this run, in USD.
	CostPerRun *float64 `json:"cost_per_run,omitempty"`
}
