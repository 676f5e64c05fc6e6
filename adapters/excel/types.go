package excel

import "strings"

// table is a raw input sheet: trimmed header cells and data rows as strings
type table struct {
	Headers []string
	Rows    [][]string
}

// cell returns row[j], or "" for a short row
func (t *table) cell(row []string, j int) string {
	if j < len(row) {
		return row[j]
	}
	return ""
}

// column finds a header by exact name, then case-insensitively
func (t *table) column(name string) int {
	for j, h := range t.Headers {
		if h == name {
			return j
		}
	}
	for j, h := range t.Headers {
		if strings.EqualFold(h, name) {
			return j
		}
	}
	return -1
}
