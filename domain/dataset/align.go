package dataset

import (
	"sort"
	"strconv"

	"genesift/domain/core"

	"gonum.org/v1/gonum/mat"
)

// Align sorts both tables by numeric sample id independently and requires the
// sorted id sequences to be identical row for row. A mismatch is fatal.
// The returned bundle stores rows in ascending id order.
func Align(raw RawMatrix, labels RawLabels) (*Bundle, error) {
	n := len(raw.SampleIDs)
	if len(raw.Rows) != n {
		return nil, core.NewDimensionError("matrix rows", n, len(raw.Rows))
	}
	if len(labels.Status) != len(labels.SampleIDs) {
		return nil, core.NewDimensionError("label rows", len(labels.SampleIDs), len(labels.Status))
	}
	if n == 0 || len(raw.Features) == 0 {
		return nil, core.ErrInsufficientData
	}

	mOrder := sortedOrder(raw.SampleIDs)
	lOrder := sortedOrder(labels.SampleIDs)

	rows := n
	if len(lOrder) > rows {
		rows = len(lOrder)
	}
	for k := 0; k < rows; k++ {
		mID, lID := "<missing>", "<missing>"
		if k < len(mOrder) {
			mID = strconv.FormatInt(raw.SampleIDs[mOrder[k]], 10)
		}
		if k < len(lOrder) {
			lID = strconv.FormatInt(labels.SampleIDs[lOrder[k]], 10)
		}
		if mID != lID {
			return nil, core.NewAlignmentError(k, mID, lID)
		}
	}
	for k := 1; k < n; k++ {
		if raw.SampleIDs[mOrder[k]] == raw.SampleIDs[mOrder[k-1]] {
			return nil, core.NewAlignmentError(k, strconv.FormatInt(raw.SampleIDs[mOrder[k]], 10), "duplicate")
		}
	}

	p := len(raw.Features)
	data := mat.NewDense(n, p, nil)
	ids := make([]int64, n)
	status := make([]int, n)
	for k, i := range mOrder {
		if len(raw.Rows[i]) != p {
			return nil, core.NewDimensionError("row "+strconv.FormatInt(raw.SampleIDs[i], 10), p, len(raw.Rows[i]))
		}
		data.SetRow(k, raw.Rows[i])
		ids[k] = raw.SampleIDs[i]
		status[k] = labels.Status[lOrder[k]]
	}

	m, err := NewFeatureMatrix(ids, raw.Features, data)
	if err != nil {
		return nil, err
	}
	l, err := NewLabelVector(ids, status)
	if err != nil {
		return nil, err
	}
	return &Bundle{Matrix: m, Labels: l, Fingerprint: fingerprint(m, l)}, nil
}

// NewBundle aligns an already ordered matrix and label vector (used by generators)
func NewBundle(m *FeatureMatrix, l *LabelVector) (*Bundle, error) {
	if m.Samples() != l.Len() {
		return nil, core.NewDimensionError("labels", m.Samples(), l.Len())
	}
	for i := 0; i < l.Len(); i++ {
		if m.SampleID(i) != l.sampleIDs[i] {
			return nil, core.NewAlignmentError(i, strconv.FormatInt(m.SampleID(i), 10), strconv.FormatInt(l.sampleIDs[i], 10))
		}
	}
	return &Bundle{Matrix: m, Labels: l, Fingerprint: fingerprint(m, l)}, nil
}

func sortedOrder(ids []int64) []int {
	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return ids[order[a]] < ids[order[b]] })
	return order
}
