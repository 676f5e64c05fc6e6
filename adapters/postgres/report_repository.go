// Package postgres persists analysis reports through sqlx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"genesift/domain/core"
	"genesift/domain/model"
	"genesift/domain/report"
	apperrors "genesift/internal/errors"
	"genesift/internal/migration"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// featureBatch bounds the rows per multi-row insert so the bind parameter
// count stays under driver limits
const featureBatch = 500

// RunRow is one analysis_runs record
type RunRow struct {
	RunID                    string          `db:"run_id"`
	CreatedAt                time.Time       `db:"created_at"`
	Seed                     int64           `db:"seed"`
	CodeVersion              string          `db:"code_version"`
	Stages                   string          `db:"stages"`
	DataFingerprint          string          `db:"data_fingerprint"`
	SplitFingerprint         string          `db:"split_fingerprint"`
	ConfigHash               string          `db:"config_hash"`
	RunFingerprint           string          `db:"run_fingerprint"`
	Samples                  int             `db:"samples"`
	Features                 int             `db:"features"`
	Negatives                int             `db:"negatives"`
	Positives                int             `db:"positives"`
	FDRAlpha                 sql.NullFloat64 `db:"fdr_alpha"`
	Tested                   sql.NullInt64   `db:"tested"`
	Significant              sql.NullInt64   `db:"significant"`
	ExpectedFalseDiscoveries sql.NullFloat64 `db:"expected_false_discoveries"`
	LocalFDRThreshold        sql.NullFloat64 `db:"local_fdr_threshold"`
	LowerZ                   sql.NullFloat64 `db:"lower_z"`
	UpperZ                   sql.NullFloat64 `db:"upper_z"`
	NullMethod               sql.NullString  `db:"null_method"`
	NullDelta                sql.NullFloat64 `db:"null_delta"`
	NullSigma                sql.NullFloat64 `db:"null_sigma"`
	NullP0                   sql.NullFloat64 `db:"null_p0"`
	ChosenModel              sql.NullString  `db:"chosen_model"`
	Cutoff                   sql.NullFloat64 `db:"cutoff"`
	CutoffF1                 sql.NullFloat64 `db:"cutoff_f1"`
	CutoffPrecision          sql.NullFloat64 `db:"cutoff_precision"`
	CutoffRecall             sql.NullFloat64 `db:"cutoff_recall"`
	TP                       sql.NullInt64   `db:"tp"`
	FP                       sql.NullInt64   `db:"fp"`
	TN                       sql.NullInt64   `db:"tn"`
	FN                       sql.NullInt64   `db:"fn"`
	RuntimeMs                int64           `db:"runtime_ms"`
}

// FeatureRow is one feature_results record. NaN statistics are NULL.
type FeatureRow struct {
	RunID       string          `db:"run_id"`
	Ordinal     int             `db:"ordinal"`
	Feature     string          `db:"feature"`
	PValue      sql.NullFloat64 `db:"p_value"`
	TStatistic  sql.NullFloat64 `db:"t_statistic"`
	DF          sql.NullFloat64 `db:"df"`
	QValue      sql.NullFloat64 `db:"q_value"`
	Z           sql.NullFloat64 `db:"z"`
	LocalFDR    sql.NullFloat64 `db:"local_fdr"`
	Mean0       sql.NullFloat64 `db:"mean0"`
	Mean1       sql.NullFloat64 `db:"mean1"`
	Valid       bool            `db:"valid"`
	Significant bool            `db:"significant"`
}

// ModelRow is one model_results record. A failed candidate has only Kind and Failure.
type ModelRow struct {
	RunID               string          `db:"run_id"`
	Kind                string          `db:"kind"`
	Chosen              bool            `db:"chosen"`
	HyperparameterName  string          `db:"hyperparameter_name"`
	Hyperparameter      sql.NullFloat64 `db:"hyperparameter"`
	EffectiveParameters sql.NullFloat64 `db:"effective_parameters"`
	CVAUC               sql.NullFloat64 `db:"cv_auc"`
	TestAUC             sql.NullFloat64 `db:"test_auc"`
	SkippedGridPoints   int             `db:"skipped_grid_points"`
	SelectedFeatures    string          `db:"selected_features"`
	Warnings            string          `db:"warnings"`
	Failure             string          `db:"failure"`
}

// ReportRepository stores analysis reports. It implements ports.ReportSink.
type ReportRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewReportRepository creates a repository on an open, migrated database
func NewReportRepository(db *sqlx.DB, logger *slog.Logger) *ReportRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportRepository{db: db, logger: logger}
}

// Connect opens a Postgres connection, checks it and applies the schema
func Connect(ctx context.Context, url string) (*sqlx.DB, error) {
	if url == "" {
		return nil, apperrors.ConfigInvalid("DATABASE_URL is required")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, apperrors.StorageError("failed to connect to database", err)
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Name identifies the sink in logs
func (r *ReportRepository) Name() string { return "postgres" }

// Save writes the run, its feature rows and its model rows in one transaction
func (r *ReportRepository) Save(ctx context.Context, rep *report.AnalysisReport) error {
	if rep.Manifest == nil {
		return apperrors.ValidationError("report has no manifest")
	}
	runID := rep.Manifest.RunID.String()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertRunQuery, runRow(rep)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return fmt.Errorf("run %s is already stored: %w", runID, err)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if rep.DE != nil {
		rows := featureRows(runID, rep.DE)
		for start := 0; start < len(rows); start += featureBatch {
			end := min(start+featureBatch, len(rows))
			if _, err := tx.NamedExecContext(ctx, insertFeatureQuery, rows[start:end]); err != nil {
				return fmt.Errorf("failed to insert feature results %d-%d: %w", start, end, err)
			}
		}
	}

	if rep.Classifier != nil {
		for _, row := range modelRows(runID, rep.Classifier) {
			if _, err := tx.NamedExecContext(ctx, insertModelQuery, row); err != nil {
				return fmt.Errorf("failed to insert %s model result: %w", row.Kind, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	r.logger.Debug("report stored", "run_id", runID)
	return nil
}

// GetRun loads one run, or sql.ErrNoRows
func (r *ReportRepository) GetRun(ctx context.Context, runID core.RunID) (*RunRow, error) {
	var row RunRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT * FROM analysis_runs WHERE run_id = ?`), runID.String())
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FeatureResults returns the feature rows of a run in matrix column order
func (r *ReportRepository) FeatureResults(ctx context.Context, runID core.RunID) ([]FeatureRow, error) {
	var rows []FeatureRow
	err := r.db.SelectContext(ctx, &rows,
		r.db.Rebind(`SELECT * FROM feature_results WHERE run_id = ? ORDER BY ordinal`), runID.String())
	return rows, err
}

// ModelResults returns the model rows of a run in kind order
func (r *ReportRepository) ModelResults(ctx context.Context, runID core.RunID) ([]ModelRow, error) {
	var rows []ModelRow
	err := r.db.SelectContext(ctx, &rows,
		r.db.Rebind(`SELECT * FROM model_results WHERE run_id = ? ORDER BY kind`), runID.String())
	return rows, err
}

// ListRuns returns the most recent runs first
func (r *ReportRepository) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	var rows []RunRow
	err := r.db.SelectContext(ctx, &rows,
		r.db.Rebind(`SELECT * FROM analysis_runs ORDER BY created_at DESC LIMIT ?`), limit)
	return rows, err
}

// DeleteRun removes a run with its feature and model rows
func (r *ReportRepository) DeleteRun(ctx context.Context, runID core.RunID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range []string{"feature_results", "model_results", "analysis_runs"} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+table+` WHERE run_id = ?`), runID.String()); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	return tx.Commit()
}

const insertRunQuery = `
	INSERT INTO analysis_runs (
		run_id, created_at, seed, code_version, stages, data_fingerprint, split_fingerprint,
		config_hash, run_fingerprint, samples, features, negatives, positives,
		fdr_alpha, tested, significant, expected_false_discoveries, local_fdr_threshold,
		lower_z, upper_z, null_method, null_delta, null_sigma, null_p0,
		chosen_model, cutoff, cutoff_f1, cutoff_precision, cutoff_recall, tp, fp, tn, fn, runtime_ms
	) VALUES (
		:run_id, :created_at, :seed, :code_version, :stages, :data_fingerprint, :split_fingerprint,
		:config_hash, :run_fingerprint, :samples, :features, :negatives, :positives,
		:fdr_alpha, :tested, :significant, :expected_false_discoveries, :local_fdr_threshold,
		:lower_z, :upper_z, :null_method, :null_delta, :null_sigma, :null_p0,
		:chosen_model, :cutoff, :cutoff_f1, :cutoff_precision, :cutoff_recall, :tp, :fp, :tn, :fn, :runtime_ms
	)`

const insertFeatureQuery = `
	INSERT INTO feature_results (
		run_id, ordinal, feature, p_value, t_statistic, df, q_value, z, local_fdr,
		mean0, mean1, valid, significant
	) VALUES (
		:run_id, :ordinal, :feature, :p_value, :t_statistic, :df, :q_value, :z, :local_fdr,
		:mean0, :mean1, :valid, :significant
	)`

const insertModelQuery = `
	INSERT INTO model_results (
		run_id, kind, chosen, hyperparameter_name, hyperparameter, effective_parameters,
		cv_auc, test_auc, skipped_grid_points, selected_features, warnings, failure
	) VALUES (
		:run_id, :kind, :chosen, :hyperparameter_name, :hyperparameter, :effective_parameters,
		:cv_auc, :test_auc, :skipped_grid_points, :selected_features, :warnings, :failure
	)`

// nullable maps NaN and infinities to NULL
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullInt(v int) sql.NullInt64 { return sql.NullInt64{Int64: int64(v), Valid: true} }

func nullString(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

func runRow(rep *report.AnalysisReport) RunRow {
	m := rep.Manifest
	stages := make([]string, len(m.Stages))
	for i, s := range m.Stages {
		stages[i] = string(s)
	}
	row := RunRow{
		RunID:            m.RunID.String(),
		CreatedAt:        m.CreatedAt.UTC(),
		Seed:             m.Seed,
		CodeVersion:      m.CodeVersion,
		Stages:           strings.Join(stages, ","),
		DataFingerprint:  m.Fingerprint.DataFingerprint.String(),
		SplitFingerprint: m.Fingerprint.SplitFingerprint.String(),
		ConfigHash:       m.Fingerprint.ConfigHash.String(),
		RunFingerprint:   m.Fingerprint.Fingerprint.String(),
		Samples:          rep.Samples,
		Features:         rep.Features,
		Negatives:        rep.Negatives,
		Positives:        rep.Positives,
		RuntimeMs:        rep.RuntimeMs,
	}
	if de := rep.DE; de != nil {
		row.FDRAlpha = nullable(de.Alpha)
		row.Tested = nullInt(de.Tested)
		row.Significant = nullInt(de.Significant)
		row.ExpectedFalseDiscoveries = nullable(de.ExpectedFalseDiscoveries)
		row.LocalFDRThreshold = nullable(de.LocalFDRThreshold)
		row.LowerZ = nullable(de.LowerZ)
		row.UpperZ = nullable(de.UpperZ)
		if de.Null != nil {
			row.NullMethod = nullString(de.Null.Method)
			row.NullDelta = nullable(de.Null.Delta)
			row.NullSigma = nullable(de.Null.Sigma)
			row.NullP0 = nullable(de.Null.P0)
		}
	}
	if cr := rep.Classifier; cr != nil {
		row.ChosenModel = nullString(string(cr.Chosen))
		if th := cr.Threshold; th != nil {
			row.Cutoff = nullable(th.Cutoff)
			row.CutoffF1 = nullable(th.F1)
			row.CutoffPrecision = nullable(th.Precision)
			row.CutoffRecall = nullable(th.Recall)
			row.TP = nullInt(th.Confusion.TP)
			row.FP = nullInt(th.Confusion.FP)
			row.TN = nullInt(th.Confusion.TN)
			row.FN = nullInt(th.Confusion.FN)
		}
	}
	return row
}

func featureRows(runID string, de *report.DEReport) []FeatureRow {
	rows := make([]FeatureRow, len(de.Features))
	for i, f := range de.Features {
		rows[i] = FeatureRow{
			RunID:       runID,
			Ordinal:     i,
			Feature:     f.Feature.String(),
			PValue:      nullable(f.PValue),
			TStatistic:  nullable(f.TStatistic),
			DF:          nullable(f.DF),
			QValue:      nullable(f.QValue),
			Z:           nullable(f.Z),
			LocalFDR:    nullable(f.LocalFDR),
			Mean0:       nullable(f.Mean0),
			Mean1:       nullable(f.Mean1),
			Valid:       f.Valid,
			Significant: f.Significant,
		}
	}
	return rows
}

func modelRows(runID string, cr *report.ClassifierReport) []ModelRow {
	rows := make([]ModelRow, 0, len(cr.Candidates)+len(cr.Failures))
	for _, c := range cr.Candidates {
		features := make([]string, len(c.SelectedFeatures))
		for i, k := range c.SelectedFeatures {
			features[i] = k.String()
		}
		rows = append(rows, ModelRow{
			RunID:               runID,
			Kind:                string(c.Kind),
			Chosen:              c.Kind == cr.Chosen,
			HyperparameterName:  c.HyperparameterName,
			Hyperparameter:      nullable(c.Hyperparameter),
			EffectiveParameters: nullable(c.EffectiveParameters),
			CVAUC:               nullable(c.CVAUC),
			TestAUC:             nullable(c.TestAUC),
			SkippedGridPoints:   c.SkippedGridPoints,
			SelectedFeatures:    strings.Join(features, ","),
			Warnings:            strings.Join(c.Warnings, "; "),
		})
	}
	for _, kind := range []model.Kind{model.KindLasso, model.KindRidge, model.KindPCR} {
		if msg, ok := cr.Failures[kind]; ok {
			rows = append(rows, ModelRow{RunID: runID, Kind: string(kind), Failure: msg})
		}
	}
	return rows
}
