package dataset

import (
	"fmt"

	"genesift/domain/core"
)

// LabelVector is an immutable length-n vector of {0,1} class labels
type LabelVector struct {
	sampleIDs []int64
	values    []int
}

// NewLabelVector validates that every label is 0 or 1
func NewLabelVector(sampleIDs []int64, values []int) (*LabelVector, error) {
	if len(sampleIDs) != len(values) {
		return nil, core.NewDimensionError("label ids", len(values), len(sampleIDs))
	}
	for i, v := range values {
		if v != ClassNegative && v != ClassPositive {
			return nil, fmt.Errorf("%w: sample %d has status %d", core.ErrInvalidLabel, sampleIDs[i], v)
		}
	}
	return &LabelVector{
		sampleIDs: append([]int64(nil), sampleIDs...),
		values:    append([]int(nil), values...),
	}, nil
}

// Len returns the number of labels
func (l *LabelVector) Len() int { return len(l.values) }

// At returns label i
func (l *LabelVector) At(i int) int { return l.values[i] }

// Values returns a copy of all labels
func (l *LabelVector) Values() []int {
	return append([]int(nil), l.values...)
}

// Subset returns the labels at the given rows
func (l *LabelVector) Subset(rows []int) []int {
	out := make([]int, len(rows))
	for k, i := range rows {
		out[k] = l.values[i]
	}
	return out
}

// Counts returns the number of negatives and positives
func (l *LabelVector) Counts() (neg, pos int) {
	for _, v := range l.values {
		if v == ClassPositive {
			pos++
		} else {
			neg++
		}
	}
	return neg, pos
}
