package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"genesift/domain/dataset"
)

// WriteMatrixCSV writes raw as an input matrix the DataReader can read back:
// header "id,<features...>", one row per sample, NaN as "NA"
func WriteMatrixCSV(path string, raw dataset.RawMatrix) error {
	rows := make([][]string, 0, len(raw.Rows)+1)
	header := make([]string, 0, len(raw.Features)+1)
	header = append(header, "id")
	for _, f := range raw.Features {
		header = append(header, f.String())
	}
	rows = append(rows, header)
	for i, values := range raw.Rows {
		row := make([]string, 0, len(values)+1)
		row = append(row, strconv.FormatInt(raw.SampleIDs[i], 10))
		for _, v := range values {
			if math.IsNaN(v) {
				row = append(row, "NA")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		rows = append(rows, row)
	}
	return writeCSV(path, rows)
}

// WriteLabelsCSV writes a label table with header "id,<statusColumn>"
func WriteLabelsCSV(path string, labels dataset.RawLabels, statusColumn string) error {
	rows := make([][]string, 0, len(labels.SampleIDs)+1)
	rows = append(rows, []string{"id", statusColumn})
	for i, id := range labels.SampleIDs {
		rows = append(rows, []string{strconv.FormatInt(id, 10), strconv.Itoa(labels.Status[i])})
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
