package store

import (
	"context"
	"testing"
	"time"

	"github.com/ethpandaops/flakeguard/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	st := NewStore(logrus.New(), &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	})

	require.NoError(t, st.Start(context.Background()))
	t.Cleanup(func() { _ = st.Stop() })

	return st
}

func result(testID, runID, status string, ts time.Time) TestResult {
	return TestResult{
		TestID:    testID,
		RunID:     runID,
		Status:    status,
		Timestamp: ts,
	}
}

func TestRecordRunAndReadBack(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	run := &RunRecord{RunID: "run-1", IngestedAt: ts}
	results := []TestResult{
		result("pkg.TestA", "run-1", StatusPass, ts),
		result("pkg.TestB", "run-1", StatusFail, ts),
	}

	require.NoError(t, st.RecordRun(ctx, run, results))

	stored, err := st.AllResults(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	assert.Equal(t, "pkg.TestA", stored[0].TestID)
	assert.Equal(t, "pkg.TestB", stored[1].TestID)

	runs, err := st.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
}

func TestRecordRunDuplicateRejected(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	first := []TestResult{result("pkg.TestA", "run-1", StatusPass, ts)}
	require.NoError(t, st.RecordRun(ctx, &RunRecord{RunID: "run-1"}, first))

	second := []TestResult{result("pkg.TestB", "run-1", StatusFail, ts)}
	err := st.RecordRun(ctx, &RunRecord{RunID: "run-1"}, second)

	require.ErrorIs(t, err, ErrDuplicateRun)

	// The rejected batch must leave no trace.
	count, err := st.CountResults(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRecordRunValidationIsAllOrNothing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	results := []TestResult{
		result("pkg.TestA", "run-1", StatusPass, ts),
		result("pkg.TestB", "run-1", "exploded", ts), // invalid status
	}

	err := st.RecordRun(ctx, &RunRecord{RunID: "run-1"}, results)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)

	count, err := st.CountResults(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	has, err := st.HasRun(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRecordRunRejectsEmptyRunID(t *testing.T) {
	st := newTestStore(t)

	err := st.RecordRun(context.Background(), &RunRecord{}, nil)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "run_id", verr.Field)
}

func TestRecordRunRejectsMismatchedRunID(t *testing.T) {
	st := newTestStore(t)
	ts := time.Now().UTC()

	results := []TestResult{result("pkg.TestA", "run-other", StatusPass, ts)}
	err := st.RecordRun(context.Background(), &RunRecord{RunID: "run-1"}, results)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestRecordRunRejectsDuplicateTestInRun(t *testing.T) {
	st := newTestStore(t)
	ts := time.Now().UTC()

	results := []TestResult{
		result("pkg.TestA", "run-1", StatusPass, ts),
		result("pkg.TestA", "run-1", StatusFail, ts),
	}

	err := st.RecordRun(context.Background(), &RunRecord{RunID: "run-1"}, results)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "test_id", verr.Field)
}

func TestCounts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	require.NoError(t, st.RecordRun(ctx, &RunRecord{RunID: "run-1"}, []TestResult{
		result("pkg.TestA", "run-1", StatusPass, ts),
		result("pkg.TestB", "run-1", StatusFail, ts),
	}))
	require.NoError(t, st.RecordRun(ctx, &RunRecord{RunID: "run-2"}, []TestResult{
		result("pkg.TestA", "run-2", StatusFail, ts.Add(time.Hour)),
	}))

	runs, err := st.CountRuns(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, runs)

	results, err := st.CountResults(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, results)

	tests, err := st.CountTests(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, tests)
}

func TestRunsCarryCostOverride(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	override := 2.5
	require.NoError(t, st.RecordRun(ctx, &RunRecord{
		RunID:      "run-1",
		CostPerRun: &override,
	}, nil))

	runs, err := st.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.NotNil(t, runs[0].CostPerRun)
	assert.InDelta(t, 2.5, *runs[0].CostPerRun, 1e-9)
}

func TestValidateResult(t *testing.T) {
	ts := time.Now().UTC()

	tests := []struct {
		name    string
		result  TestResult
		wantErr bool
	}{
		{
			name:   "valid",
			result: result("pkg.TestA", "run-1", StatusPass, ts),
		},
		{
			name:    "empty test_id",
			result:  result("", "run-1", StatusPass, ts),
			wantErr: true,
		},
		{
			name:    "empty run_id",
			result:  result("pkg.TestA", "", StatusPass, ts),
			wantErr: true,
		},
		{
			name:    "unknown status",
			result:  result("pkg.TestA", "run-1", "flaked", ts),
			wantErr: true,
		},
		{
			name: "negative duration",
			result: TestResult{
				TestID: "pkg.TestA", RunID: "run-1",
				Status: StatusPass, DurationSeconds: -1, Timestamp: ts,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResult(&tt.result)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
