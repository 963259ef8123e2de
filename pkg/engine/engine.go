// Package engine wires the detection pipeline: store → analyzer →
// classifier/attributor → selector. Every detection pass recomputes
// statistics from the stored ground truth; nothing derived is cached,
// so rule or rate changes reflect in the next call without migration.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethpandaops/flakeguard/pkg/analyzer"
	"github.com/ethpandaops/flakeguard/pkg/classifier"
	"github.com/ethpandaops/flakeguard/pkg/config"
	"github.com/ethpandaops/flakeguard/pkg/cost"
	"github.com/ethpandaops/flakeguard/pkg/junit"
	"github.com/ethpandaops/flakeguard/pkg/quarantine"
	"github.com/ethpandaops/flakeguard/pkg/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ingestConcurrency bounds parallel report parsing during directory
// ingestion. Store writes stay serialized regardless.
const ingestConcurrency = 4

// Engine exposes the four logical operations of the decision engine.
type Engine struct {
	log        logrus.FieldLogger
	store      store.Store
	cfg        *config.Config
	classifier *classifier.Classifier
}

// IngestResult reports one ingested file.
type IngestResult struct {
	RunID   string `json:"run_id"`
	Results int    `json:"results"`
}

// BatchIngestResult reports a directory ingestion.
type BatchIngestResult struct {
	FilesIngested int `json:"files_ingested"`
	FilesSkipped  int `json:"files_skipped"`
	FilesFailed   int `json:"files_failed"`
	TestsRecorded int `json:"tests_recorded"`
}

// Summary is the stats() operation output.
type Summary struct {
	TotalTests            int64   `json:"total_tests"`
	TotalRuns             int64   `json:"total_runs"`
	TotalResults          int64   `json:"total_results"`
	FlakyCount            int     `json:"flaky_count"`
	TotalEstimatedCostUSD float64 `json:"total_estimated_cost_usd"`
}

// New creates an Engine over an already-started store.
func New(log logrus.FieldLogger, st store.Store, cfg *config.Config) *Engine {
	return &Engine{
		log:   log.WithField("component", "engine"),
		store: st,
		cfg:   cfg,
		classifier: classifier.New(classifier.Thresholds{
			FloatEpsilon:        cfg.Analysis.FloatEpsilon,
			TightVarianceRatio:  cfg.Analysis.TightVarianceRatio,
			CoarseVarianceRatio: cfg.Analysis.CoarseVarianceRatio,
		}),
	}
}

// IngestFile parses one JUnit XML report and records it as a run.
// Ingestion is all-or-nothing: a malformed record or duplicate run_id
// leaves the store untouched.
func (e *Engine) IngestFile(ctx context.Context, path, runID string) (*IngestResult, error) {
	parsed, err := junit.ParseFile(path, runID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	run := &store.RunRecord{
		RunID:      parsed.RunID,
		IngestedAt: time.Now().UTC(),
	}

	if err := e.store.RecordRun(ctx, run, parsed.Results); err != nil {
		return nil, fmt.Errorf("recording run %s: %w", parsed.RunID, err)
	}

	e.log.WithFields(logrus.Fields{
		"run":     parsed.RunID,
		"results": len(parsed.Results),
	}).Info("Run ingested")

	return &IngestResult{
		RunID:   parsed.RunID,
		Results: len(parsed.Results),
	}, nil
}

// IngestDir ingests every XML report under dir, one run per file, with
// bounded parsing concurrency. Failures are reported per file and
// never corrupt previously ingested runs; duplicate run IDs count as
// skipped rather than fatal.
func (e *Engine) IngestDir(ctx context.Context, dir string) (*BatchIngestResult, error) {
	var paths []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".xml") {
			return nil
		}

		paths = append(paths, path)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	var (
		mu    sync.Mutex
		batch BatchIngestResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)

	for _, path := range paths {
		g.Go(func() error {
			res, err := e.IngestFile(gctx, path, "")

			mu.Lock()
			defer mu.Unlock()

			switch {
			case errors.Is(err, store.ErrDuplicateRun):
				batch.FilesSkipped++
			case err != nil:
				batch.FilesFailed++

				e.log.WithError(err).WithField("file", path).
					Warn("Failed to ingest report")
			default:
				batch.FilesIngested++
				batch.TestsRecorded += res.Results
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &batch, nil
}

// Detect recomputes statistics for every known test, classifies flaky
// ones, attributes cost, and returns the list sorted by estimated cost
// descending with test_id as the tiebreak.
func (e *Engine) Detect(ctx context.Context) ([]analyzer.TestStatistics, error) {
	results, err := e.store.AllResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading results: %w", err)
	}

	runs, err := e.store.Runs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading runs: %w", err)
	}

	stats := analyzer.Analyze(results, analyzer.Config{
		MinRuns: e.cfg.Analysis.MinRuns,
	})

	groups := analyzer.GroupByTest(results)
	runFailures := countRunFailures(results)
	attributor := cost.NewAttributor(cost.Config{
		CostPerRunUSD:   e.cfg.Cost.CostPerRunUSD,
		RerunMultiplier: e.cfg.Cost.RerunMultiplier,
	}, runs)

	for i := range stats {
		ordered := analyzer.NonSkipped(groups[stats[i].TestID])

		stats[i].EstimatedCostUSD = attributor.Attribute(ordered)

		if stats[i].IsFlaky {
			stats[i].Classification = string(
				e.classifier.Classify(ordered, runFailures),
			)
		}
	}

	quarantine.SortByCost(stats)

	return stats, nil
}

// Quarantine returns the ordered list of test IDs to suppress under
// the given policy.
func (e *Engine) Quarantine(ctx context.Context, policy quarantine.Policy) ([]string, error) {
	stats, err := e.Detect(ctx)
	if err != nil {
		return nil, err
	}

	return quarantine.Select(stats, policy), nil
}

// Stats returns the ingestion and detection summary.
func (e *Engine) Stats(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	var err error

	if summary.TotalTests, err = e.store.CountTests(ctx); err != nil {
		return nil, err
	}

	if summary.TotalRuns, err = e.store.CountRuns(ctx); err != nil {
		return nil, err
	}

	if summary.TotalResults, err = e.store.CountResults(ctx); err != nil {
		return nil, err
	}

	stats, err := e.Detect(ctx)
	if err != nil {
		return nil, err
	}

	for i := range stats {
		if stats[i].IsFlaky {
			summary.FlakyCount++
			summary.TotalEstimatedCostUSD += stats[i].EstimatedCostUSD
		}
	}

	return summary, nil
}

// Trends computes failure trends over the configured window ending now.
func (e *Engine) Trends(ctx context.Context, now time.Time) ([]analyzer.TrendEntry, error) {
	results, err := e.store.AllResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading results: %w", err)
	}

	windowDays := e.cfg.Analysis.TrendWindowDays
	if windowDays <= 0 {
		windowDays = config.DefaultTrendWindowDays
	}

	windowStart := now.AddDate(0, 0, -windowDays)

	return analyzer.AnalyzeTrends(results, windowStart), nil
}

// countRunFailures tallies failures per run across all tests, feeding
// the classifier's co-occurrence rule.
func countRunFailures(results []store.TestResult) map[string]int {
	failures := make(map[string]int)

	for i := range results {
		if results[i].IsFailure() {
			failures[results[i].RunID]++
		}
	}

	return failures
}
