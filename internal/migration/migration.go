// Package migration creates the report schema. The DDL sticks to types both
// Postgres and SQLite accept so the repository can be tested in memory.
package migration

import (
	"context"

	"genesift/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

var _ Migrator = (*MigrationRunner)(nil)

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order. Every statement
// is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createAnalysisRunsTable(ctx, db); err != nil {
		return errors.StorageError("failed to create analysis_runs table", err)
	}

	if err := r.createFeatureResultsTable(ctx, db); err != nil {
		return errors.StorageError("failed to create feature_results table", err)
	}

	if err := r.createModelResultsTable(ctx, db); err != nil {
		return errors.StorageError("failed to create model_results table", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.StorageError("failed to create indexes", err)
	}

	return nil
}

func (r *MigrationRunner) createAnalysisRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_runs (
			run_id TEXT PRIMARY KEY,
			created_at TIMESTAMP NOT NULL,
			seed BIGINT NOT NULL,
			code_version TEXT NOT NULL,
			stages TEXT NOT NULL,
			data_fingerprint TEXT NOT NULL,
			split_fingerprint TEXT NOT NULL DEFAULT '',
			config_hash TEXT NOT NULL,
			run_fingerprint TEXT NOT NULL,
			samples INTEGER NOT NULL,
			features INTEGER NOT NULL,
			negatives INTEGER NOT NULL,
			positives INTEGER NOT NULL,
			fdr_alpha DOUBLE PRECISION,
			tested INTEGER,
			significant INTEGER,
			expected_false_discoveries DOUBLE PRECISION,
			local_fdr_threshold DOUBLE PRECISION,
			lower_z DOUBLE PRECISION,
			upper_z DOUBLE PRECISION,
			null_method TEXT,
			null_delta DOUBLE PRECISION,
			null_sigma DOUBLE PRECISION,
			null_p0 DOUBLE PRECISION,
			chosen_model TEXT,
			cutoff DOUBLE PRECISION,
			cutoff_f1 DOUBLE PRECISION,
			cutoff_precision DOUBLE PRECISION,
			cutoff_recall DOUBLE PRECISION,
			tp INTEGER,
			fp INTEGER,
			tn INTEGER,
			fn INTEGER,
			runtime_ms BIGINT NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createFeatureResultsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS feature_results (
			run_id TEXT NOT NULL REFERENCES analysis_runs(run_id) ON DELETE CASCADE,
			ordinal INTEGER NOT NULL,
			feature TEXT NOT NULL,
			p_value DOUBLE PRECISION,
			t_statistic DOUBLE PRECISION,
			df DOUBLE PRECISION,
			q_value DOUBLE PRECISION,
			z DOUBLE PRECISION,
			local_fdr DOUBLE PRECISION,
			mean0 DOUBLE PRECISION,
			mean1 DOUBLE PRECISION,
			valid BOOLEAN NOT NULL,
			significant BOOLEAN NOT NULL,
			PRIMARY KEY (run_id, feature)
		)
	`)
	return err
}

func (r *MigrationRunner) createModelResultsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS model_results (
			run_id TEXT NOT NULL REFERENCES analysis_runs(run_id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			chosen BOOLEAN NOT NULL,
			hyperparameter_name TEXT NOT NULL DEFAULT '',
			hyperparameter DOUBLE PRECISION,
			effective_parameters DOUBLE PRECISION,
			cv_auc DOUBLE PRECISION,
			test_auc DOUBLE PRECISION,
			skipped_grid_points INTEGER NOT NULL DEFAULT 0,
			selected_features TEXT NOT NULL DEFAULT '',
			warnings TEXT NOT NULL DEFAULT '',
			failure TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, kind)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_fingerprint ON analysis_runs(run_fingerprint)`,
		`CREATE INDEX IF NOT EXISTS idx_feature_results_q_value ON feature_results(run_id, q_value)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
