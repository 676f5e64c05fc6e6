package excel

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"genesift/domain/model"
	"genesift/domain/report"

	"github.com/xuri/excelize/v2"
)

// Report sheet names
const (
	SheetSummary   = "summary"
	SheetFeatures  = "features"
	SheetModels    = "models"
	SheetROC       = "roc"
	SheetPR        = "pr"
	SheetThreshold = "threshold"
)

// ReportWriter saves an analysis report as one XLSX workbook. It implements
// ports.ReportSink. Sheets of stages that did not run are left out.
type ReportWriter struct {
	path   string
	logger *slog.Logger
}

// NewReportWriter creates a writer targeting path
func NewReportWriter(path string, logger *slog.Logger) *ReportWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWriter{path: path, logger: logger}
}

// Name identifies the sink in logs
func (w *ReportWriter) Name() string { return "xlsx" }

// Save writes the workbook, replacing any existing file
func (w *ReportWriter) Save(ctx context.Context, r *report.AnalysisReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	if err := writeRows(f, SheetSummary, summaryRows(r)); err != nil {
		return err
	}

	if r.DE != nil {
		if err := w.sheet(f, SheetFeatures, featureRows(r.DE)); err != nil {
			return err
		}
	}
	if cr := r.Classifier; cr != nil {
		sheets := []struct {
			name string
			rows [][]interface{}
		}{
			{SheetModels, modelRows(cr)},
			{SheetROC, curveRows(cr.ROC, "fpr", "tpr")},
			{SheetPR, curveRows(cr.PR, "recall", "precision")},
			{SheetThreshold, thresholdRows(cr)},
		}
		for _, s := range sheets {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := w.sheet(f, s.name, s.rows); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", w.path, err)
	}
	w.logger.Debug("workbook written", "path", w.path, "sheets", f.GetSheetList())
	return nil
}

func (w *ReportWriter) sheet(f *excelize.File, name string, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	return writeRows(f, name, rows)
}

// writeRows streams rows into a fresh sheet; the first row is bolded as a header
func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open stream writer for %s: %w", sheet, err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if i == 0 {
			values = make([]interface{}, len(row))
			for j, v := range row {
				values[j] = excelize.Cell{StyleID: bold, Value: v}
			}
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return sw.Flush()
}

// num leaves NaN and infinite values as empty cells
func num(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return v
}

func summaryRows(r *report.AnalysisReport) [][]interface{} {
	rows := [][]interface{}{{"key", "value"}}
	add := func(k string, v interface{}) { rows = append(rows, []interface{}{k, v}) }
	if m := r.Manifest; m != nil {
		add("run_id", m.RunID.String())
		add("created_at", m.CreatedAt.Format(time.RFC3339))
		add("seed", m.Seed)
		add("code_version", m.CodeVersion)
		add("data_fingerprint", m.Fingerprint.DataFingerprint.String())
		add("split_fingerprint", m.Fingerprint.SplitFingerprint.String())
		add("config_hash", m.Fingerprint.ConfigHash.String())
		add("run_fingerprint", m.Fingerprint.Fingerprint.String())
	}
	add("samples", r.Samples)
	add("features", r.Features)
	add("negatives", r.Negatives)
	add("positives", r.Positives)
	if de := r.DE; de != nil {
		add("fdr_alpha", de.Alpha)
		add("tested", de.Tested)
		add("significant", de.Significant)
		add("expected_false_discoveries", de.ExpectedFalseDiscoveries)
		add("local_fdr_threshold", de.LocalFDRThreshold)
		add("local_fdr_lower_z", num(de.LowerZ))
		add("local_fdr_upper_z", num(de.UpperZ))
		if de.Null != nil {
			add("null_method", de.Null.Method)
			add("null_delta", de.Null.Delta)
			add("null_sigma", de.Null.Sigma)
			add("null_p0", de.Null.P0)
		}
		for _, warn := range de.Warnings {
			add("de_warning", warn)
		}
	}
	if cr := r.Classifier; cr != nil {
		add("train_samples", cr.Split.Train)
		add("test_samples", cr.Split.Test)
		add("stratified", cr.Split.Stratified)
		add("chosen_model", string(cr.Chosen))
		for _, kind := range []model.Kind{model.KindLasso, model.KindRidge, model.KindPCR} {
			if msg, ok := cr.Failures[kind]; ok {
				add("failed_"+string(kind), msg)
			}
		}
		for _, warn := range cr.Warnings {
			add("classifier_warning", warn)
		}
	}
	add("runtime_ms", r.RuntimeMs)
	return rows
}

func featureRows(de *report.DEReport) [][]interface{} {
	rows := make([][]interface{}, 0, len(de.Features)+1)
	rows = append(rows, []interface{}{
		"feature", "mean0", "mean1", "t", "df", "p_value", "q_value", "z", "local_fdr", "significant",
	})
	for _, f := range de.Features {
		rows = append(rows, []interface{}{
			f.Feature.String(), num(f.Mean0), num(f.Mean1), num(f.TStatistic), num(f.DF),
			num(f.PValue), num(f.QValue), num(f.Z), num(f.LocalFDR), f.Significant,
		})
	}
	return rows
}

func modelRows(cr *report.ClassifierReport) [][]interface{} {
	rows := [][]interface{}{{
		"model", "chosen", "hyperparameter", "value", "effective_parameters",
		"cv_auc", "test_auc", "skipped_grid_points", "selected_features", "warnings",
	}}
	for _, c := range cr.Candidates {
		features := make([]string, len(c.SelectedFeatures))
		for i, k := range c.SelectedFeatures {
			features[i] = k.String()
		}
		rows = append(rows, []interface{}{
			string(c.Kind), c.Kind == cr.Chosen, c.HyperparameterName, num(c.Hyperparameter),
			num(c.EffectiveParameters), num(c.CVAUC), num(c.TestAUC), c.SkippedGridPoints,
			strings.Join(features, ","), strings.Join(c.Warnings, "; "),
		})
	}
	return rows
}

func curveRows(points []model.CurvePoint, x, y string) [][]interface{} {
	rows := make([][]interface{}, 0, len(points)+1)
	rows = append(rows, []interface{}{"cutoff", x, y})
	for _, p := range points {
		rows = append(rows, []interface{}{p.Cutoff, num(p.X), num(p.Y)})
	}
	return rows
}

func thresholdRows(cr *report.ClassifierReport) [][]interface{} {
	rows := [][]interface{}{{"cutoff", "f1", "precision", "recall", "tp", "fp", "tn", "fn"}}
	if th := cr.Threshold; th != nil {
		cm := th.Confusion
		rows = append(rows, []interface{}{th.Cutoff, th.F1, th.Precision, th.Recall, cm.TP, cm.FP, cm.TN, cm.FN})
	}
	return rows
}
