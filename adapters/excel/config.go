package excel

// ReaderConfig controls how input tables are parsed
type ReaderConfig struct {
	// Sheet is the worksheet read from XLSX inputs; empty means the first sheet
	Sheet string `json:"sheet"`

	// MissingTokens are cell values read as NaN in the matrix
	MissingTokens []string `json:"missing_tokens"`
}

// DefaultReaderConfig reads the first sheet and treats empty, NA and NaN cells as missing
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		MissingTokens: []string{"", "NA", "NaN", "nan", "null"},
	}
}
