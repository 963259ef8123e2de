package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethpandaops/flakeguard/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store persists normalized test results and run metadata. It is the
// single source of truth the analysis pipeline reads from; it performs
// no statistical computation itself.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// RecordRun ingests one run and its results atomically. It fails
	// with ErrDuplicateRun when the run_id is already known and with a
	// ValidationError when any result is malformed; in both cases
	// nothing is stored.
	RecordRun(ctx context.Context, run *RunRecord, results []TestResult) error

	// AllResults returns every stored result in ingestion order.
	AllResults(ctx context.Context) ([]TestResult, error)

	// Runs returns all known run records.
	Runs(ctx context.Context) ([]RunRecord, error)

	HasRun(ctx context.Context, runID string) (bool, error)
	CountRuns(ctx context.Context) (int64, error)
	CountResults(ctx context.Context) (int64, error)
	CountTests(ctx context.Context) (int64, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB

	// writeMu serializes ingestion so two concurrent writers cannot
	// both believe a run_id is unclaimed.
	writeMu sync.Mutex
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(log logrus.FieldLogger, cfg *config.DatabaseConfig) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&RunRecord{},
		&TestResult{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Result store connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// RecordRun ingests a run and its results in a single transaction.
func (s *store) RecordRun(ctx context.Context, run *RunRecord, results []TestResult) error {
	if run.RunID == "" {
		return &ValidationError{Field: "run_id", Reason: "must not be empty"}
	}

	// Validate everything up front so a malformed record never leaves
	// a partially stored run behind.
	seen := make(map[string]struct{}, len(results))

	for i := range results {
		r := &results[i]
		if err := ValidateResult(r); err != nil {
			return err
		}

		if r.RunID != run.RunID {
			return &ValidationError{
				TestID: r.TestID,
				Field:  "run_id",
				Reason: fmt.Sprintf("result run_id %q does not match run %q", r.RunID, run.RunID),
			}
		}

		if _, dup := seen[r.TestID]; dup {
			return &ValidationError{
				TestID: r.TestID,
				Field:  "test_id",
				Reason: "observed twice in the same run",
			}
		}

		seen[r.TestID] = struct{}{}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&RunRecord{}).
			Where("run_id = ?", run.RunID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("checking for existing run: %w", err)
		}

		if count > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, run.RunID)
		}

		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("storing run record: %w", err)
		}

		if len(results) > 0 {
			if err := tx.CreateInBatches(results, 100).Error; err != nil {
				return fmt.Errorf("storing results: %w", err)
			}
		}

		return nil
	})
}

// AllResults returns every stored result ordered by ingestion order.
func (s *store) AllResults(ctx context.Context) ([]TestResult, error) {
	var results []TestResult
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}

	return results, nil
}

// Runs returns all run records ordered by ingestion order.
func (s *store) Runs(ctx context.Context) ([]RunRecord, error) {
	var runs []RunRecord
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}

// HasRun reports whether a run_id has already been ingested.
func (s *store) HasRun(ctx context.Context, runID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&RunRecord{}).
		Where("run_id = ?", runID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking run: %w", err)
	}

	return count > 0, nil
}

// CountRuns returns the number of ingested runs.
func (s *store) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&RunRecord{}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}

	return count, nil
}

// CountResults returns the number of stored test results.
func (s *store) CountResults(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&TestResult{}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting results: %w", err)
	}

	return count, nil
}

// CountTests returns the number of distinct test identities observed.
func (s *store) CountTests(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&TestResult{}).
		Distinct("test_id").
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting tests: %w", err)
	}

	return count, nil
}
