package dataset

import (
	"genesift/domain/core"

	"gonum.org/v1/gonum/mat"
)

// FeatureMatrix is an immutable n x p expression matrix with its row and column keys.
// Accessors never expose the backing storage for writing.
type FeatureMatrix struct {
	sampleIDs []int64
	features  []core.FeatureKey
	data      *mat.Dense
}

// NewFeatureMatrix takes ownership of data
func NewFeatureMatrix(sampleIDs []int64, features []core.FeatureKey, data *mat.Dense) (*FeatureMatrix, error) {
	r, c := data.Dims()
	if len(sampleIDs) != r {
		return nil, core.NewDimensionError("sample ids", r, len(sampleIDs))
	}
	if len(features) != c {
		return nil, core.NewDimensionError("feature keys", c, len(features))
	}
	return &FeatureMatrix{
		sampleIDs: append([]int64(nil), sampleIDs...),
		features:  append([]core.FeatureKey(nil), features...),
		data:      data,
	}, nil
}

// Dims returns samples, features
func (m *FeatureMatrix) Dims() (int, int) {
	return m.data.Dims()
}

// Samples returns the number of rows
func (m *FeatureMatrix) Samples() int {
	r, _ := m.data.Dims()
	return r
}

// NumFeatures returns the number of columns
func (m *FeatureMatrix) NumFeatures() int {
	_, c := m.data.Dims()
	return c
}

// At returns the value at sample i, feature j
func (m *FeatureMatrix) At(i, j int) float64 {
	return m.data.At(i, j)
}

// SampleID returns the identifier of row i
func (m *FeatureMatrix) SampleID(i int) int64 {
	return m.sampleIDs[i]
}

// Feature returns the key of column j
func (m *FeatureMatrix) Feature(j int) core.FeatureKey {
	return m.features[j]
}

// Features returns a copy of the column keys
func (m *FeatureMatrix) Features() []core.FeatureKey {
	return append([]core.FeatureKey(nil), m.features...)
}

// Column copies feature j into dst (allocated when nil or short)
func (m *FeatureMatrix) Column(dst []float64, j int) []float64 {
	n := m.Samples()
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	return mat.Col(dst, j, m.data)
}

// View returns a read-only view of the data
func (m *FeatureMatrix) View() mat.Matrix {
	return m.data
}

// Rows copies the given rows into a new dense matrix
func (m *FeatureMatrix) Rows(rows []int) *mat.Dense {
	_, c := m.data.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for k, i := range rows {
		out.SetRow(k, m.data.RawRowView(i))
	}
	return out
}
