// Package excel reads expression matrices and label tables from CSV, TSV or
// XLSX files and writes analysis reports as XLSX workbooks.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"genesift/domain/core"
	"genesift/domain/dataset"
	apperrors "genesift/internal/errors"

	"github.com/xuri/excelize/v2"
)

// DataReader implements ports.DatasetReader for CSV, TSV and XLSX files.
// The file type follows the extension; anything that is not .csv or .tsv is
// opened as a workbook.
type DataReader struct {
	config  ReaderConfig
	missing map[string]bool
	logger  *slog.Logger
}

// NewDataReader creates a reader
func NewDataReader(config ReaderConfig, logger *slog.Logger) *DataReader {
	if logger == nil {
		logger = slog.Default()
	}
	missing := make(map[string]bool, len(config.MissingTokens))
	for _, tok := range config.MissingTokens {
		missing[tok] = true
	}
	return &DataReader{config: config, missing: missing, logger: logger}
}

// ReadMatrix reads a samples x features table. The first column holds numeric
// sample ids and the remaining header cells name the features.
func (r *DataReader) ReadMatrix(ctx context.Context, path string) (dataset.RawMatrix, error) {
	t, err := r.readTable(ctx, path)
	if err != nil {
		return dataset.RawMatrix{}, err
	}
	if len(t.Headers) < 2 {
		return dataset.RawMatrix{}, apperrors.InvalidInput(fmt.Sprintf("%s: matrix needs an id column and at least one feature", path))
	}

	features := make([]core.FeatureKey, len(t.Headers)-1)
	seen := make(map[core.FeatureKey]bool, len(features))
	for j, h := range t.Headers[1:] {
		key, err := core.ParseFeatureKey(h)
		if err != nil {
			return dataset.RawMatrix{}, apperrors.InvalidInput(fmt.Sprintf("%s: header column %d: %v", path, j+2, err))
		}
		if seen[key] {
			return dataset.RawMatrix{}, apperrors.InvalidInput(fmt.Sprintf("%s: duplicate feature %q", path, key))
		}
		seen[key] = true
		features[j] = key
	}

	raw := dataset.RawMatrix{
		Features:  features,
		SampleIDs: make([]int64, 0, len(t.Rows)),
		Rows:      make([][]float64, 0, len(t.Rows)),
	}
	missing := 0
	for i, row := range t.Rows {
		id, err := parseID(t.cell(row, 0))
		if err != nil {
			return dataset.RawMatrix{}, apperrors.InvalidInput(fmt.Sprintf("%s: row %d: %v", path, i+2, err))
		}
		values := make([]float64, len(features))
		for j := range features {
			s := t.cell(row, j+1)
			if r.missing[s] {
				values[j] = math.NaN()
				missing++
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return dataset.RawMatrix{}, apperrors.InvalidInput(
					fmt.Sprintf("%s: row %d column %q: %q is not a number", path, i+2, features[j], s))
			}
			values[j] = v
		}
		raw.SampleIDs = append(raw.SampleIDs, id)
		raw.Rows = append(raw.Rows, values)
	}

	r.logger.Info("matrix read", "path", path, "samples", len(raw.SampleIDs), "features", len(features), "missing_cells", missing)
	return raw, nil
}

// ReadLabels reads the label table: the first column holds sample ids and the
// statusColumn header names the 0/1 class column
func (r *DataReader) ReadLabels(ctx context.Context, path string, statusColumn string) (dataset.RawLabels, error) {
	t, err := r.readTable(ctx, path)
	if err != nil {
		return dataset.RawLabels{}, err
	}
	col := t.column(statusColumn)
	if col < 0 {
		return dataset.RawLabels{}, apperrors.InvalidInput(fmt.Sprintf("%s: no %q column in header %v", path, statusColumn, t.Headers))
	}
	if col == 0 {
		return dataset.RawLabels{}, apperrors.InvalidInput(fmt.Sprintf("%s: status column %q is the id column", path, statusColumn))
	}

	labels := dataset.RawLabels{
		SampleIDs: make([]int64, 0, len(t.Rows)),
		Status:    make([]int, 0, len(t.Rows)),
	}
	for i, row := range t.Rows {
		id, err := parseID(t.cell(row, 0))
		if err != nil {
			return dataset.RawLabels{}, apperrors.InvalidInput(fmt.Sprintf("%s: row %d: %v", path, i+2, err))
		}
		status, err := parseStatus(t.cell(row, col))
		if err != nil {
			return dataset.RawLabels{}, apperrors.Wrapf(err, "%s: row %d", path, i+2)
		}
		labels.SampleIDs = append(labels.SampleIDs, id)
		labels.Status = append(labels.Status, status)
	}

	r.logger.Info("labels read", "path", path, "samples", len(labels.SampleIDs), "status_column", t.Headers[col])
	return labels, nil
}

func (r *DataReader) readTable(ctx context.Context, path string) (*table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInvalidInput, fmt.Errorf("input file %s: %w", path, err))
	}

	start := time.Now()
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readDelimited(path, ',')
	case ".tsv", ".txt":
		rows, err = readDelimited(path, '\t')
	default:
		rows, err = r.readWorkbook(path)
	}
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInvalidInput, err)
	}
	if len(rows) < 2 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("%s: need a header row and at least one data row", path))
	}
	r.logger.Debug("table loaded", "path", path, "rows", len(rows), "elapsed_ms", time.Since(start).Milliseconds())

	t := &table{Headers: make([]string, len(rows[0]))}
	for j, h := range rows[0] {
		t.Headers[j] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = strings.TrimSpace(c)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

func readDelimited(path string, comma rune) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}

func (r *DataReader) readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheet, path, err)
	}
	return rows, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// spreadsheets often store integer ids as floats
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return 0, fmt.Errorf("sample id %q is not an integer", s)
		}
		id = int64(f)
	}
	return id, nil
}

func parseStatus(s string) (int, error) {
	switch s {
	case "0", "0.0":
		return dataset.ClassNegative, nil
	case "1", "1.0":
		return dataset.ClassPositive, nil
	}
	return 0, fmt.Errorf("%w: got %q", core.ErrInvalidLabel, s)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
