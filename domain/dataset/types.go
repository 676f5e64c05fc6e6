package dataset

import "genesift/domain/core"

// RawMatrix is a samples x features table as delivered by a reader, before alignment.
// Rows are in file order.
type RawMatrix struct {
	SampleIDs []int64
	Features  []core.FeatureKey
	Rows      [][]float64
}

// RawLabels is a label table keyed by sample identifier, in file order.
type RawLabels struct {
	SampleIDs []int64
	Status    []int
}

// Class labels
const (
	ClassNegative = 0
	ClassPositive = 1
)
