package dataset

import (
	"math/rand"
	"testing"

	"genesift/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawFixture() (RawMatrix, RawLabels) {
	raw := RawMatrix{
		SampleIDs: []int64{30, 10, 20},
		Features:  []core.FeatureKey{"g1", "g2"},
		Rows: [][]float64{
			{3, 30},
			{1, 10},
			{2, 20},
		},
	}
	labels := RawLabels{
		SampleIDs: []int64{20, 30, 10},
		Status:    []int{0, 1, 1},
	}
	return raw, labels
}

func TestAlign_SortsBothTablesIndependently(t *testing.T) {
	raw, labels := rawFixture()

	bundle, err := Align(raw, labels)
	require.NoError(t, err)

	assert.Equal(t, 3, bundle.Samples())
	assert.Equal(t, 2, bundle.NumFeatures())
	assert.Equal(t, int64(10), bundle.Matrix.SampleID(0))
	assert.Equal(t, int64(30), bundle.Matrix.SampleID(2))
	assert.Equal(t, 1.0, bundle.Matrix.At(0, 0))
	assert.Equal(t, 20.0, bundle.Matrix.At(1, 1))
	assert.Equal(t, []int{1, 0, 1}, bundle.Labels.Values())
	assert.False(t, bundle.Fingerprint.IsEmpty())
}

func TestAlign_MismatchIsFatal(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawMatrix, *RawLabels)
	}{
		{"different id", func(_ *RawMatrix, l *RawLabels) { l.SampleIDs[0] = 21 }},
		{"missing label", func(_ *RawMatrix, l *RawLabels) {
			l.SampleIDs = l.SampleIDs[:2]
			l.Status = l.Status[:2]
		}},
		{"duplicate id", func(m *RawMatrix, l *RawLabels) {
			m.SampleIDs[0] = 10
			l.SampleIDs[1] = 10
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, labels := rawFixture()
			tt.mutate(&raw, &labels)
			_, err := Align(raw, labels)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrAlignment)
			assert.True(t, core.IsBoundaryError(err))
		})
	}
}

func TestAlign_RejectsNonBinaryStatus(t *testing.T) {
	raw, labels := rawFixture()
	labels.Status[1] = 2
	_, err := Align(raw, labels)
	assert.ErrorIs(t, err, core.ErrInvalidLabel)
}

func TestFeatureMatrix_ReadOnlyAccessors(t *testing.T) {
	raw, labels := rawFixture()
	bundle, err := Align(raw, labels)
	require.NoError(t, err)

	col := bundle.Matrix.Column(nil, 1)
	col[0] = -1
	assert.Equal(t, 10.0, bundle.Matrix.At(0, 1), "Column must copy")

	sub := bundle.Matrix.Rows([]int{2, 0})
	sub.Set(0, 0, -1)
	assert.Equal(t, 3.0, bundle.Matrix.At(2, 0), "Rows must copy")
}

func TestNewSplit(t *testing.T) {
	labels := make([]int, 100)
	for i := range labels {
		if i%4 == 0 {
			labels[i] = 1
		}
	}

	t.Run("random split is disjoint and complete", func(t *testing.T) {
		s, err := NewSplit(labels, SplitConfig{TrainFraction: 0.7}, rand.New(rand.NewSource(42)))
		require.NoError(t, err)
		assert.Len(t, s.Train, 70)
		assert.Len(t, s.Test, 30)

		seen := map[int]int{}
		for _, i := range s.Train {
			seen[i]++
		}
		for _, i := range s.Test {
			seen[i]++
		}
		assert.Len(t, seen, 100)
		for i, c := range seen {
			assert.Equal(t, 1, c, "index %d", i)
		}
	})

	t.Run("seeded split is reproducible", func(t *testing.T) {
		a, err := NewSplit(labels, SplitConfig{}, rand.New(rand.NewSource(7)))
		require.NoError(t, err)
		b, err := NewSplit(labels, SplitConfig{}, rand.New(rand.NewSource(7)))
		require.NoError(t, err)
		assert.Equal(t, a.Fingerprint, b.Fingerprint)
		assert.Equal(t, a.Train, b.Train)
	})

	t.Run("stratified split keeps class ratio", func(t *testing.T) {
		s, err := NewSplit(labels, SplitConfig{TrainFraction: 0.6, Stratify: true}, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		pos := 0
		for _, i := range s.Train {
			pos += labels[i]
		}
		assert.Equal(t, 15, pos)
		assert.Len(t, s.Train, 60)
		assert.True(t, s.Stratified)
	})

	t.Run("too small", func(t *testing.T) {
		_, err := NewSplit([]int{0, 1, 0}, SplitConfig{}, rand.New(rand.NewSource(1)))
		assert.ErrorIs(t, err, core.ErrInsufficientData)
	})
}
