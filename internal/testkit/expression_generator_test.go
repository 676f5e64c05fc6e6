package testkit

import (
	"testing"

	"genesift/domain/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpressionGenerator_Basic(t *testing.T) {
	config := DefaultExpressionConfig()
	m, l, err := NewExpressionGenerator(config).Generate()
	require.NoError(t, err)

	require.Len(t, m.Rows, config.Samples)
	require.Len(t, m.Features, config.Features)
	assert.Equal(t, "gene_001", string(m.Features[0]))
	assert.ElementsMatch(t, m.SampleIDs, l.SampleIDs)
	assert.NotEqual(t, m.SampleIDs, l.SampleIDs, "label table should be shuffled")

	b, err := dataset.Align(m, l)
	require.NoError(t, err)
	neg, pos := b.Labels.Counts()
	assert.Greater(t, neg, 20)
	assert.Greater(t, pos, 20)

	// the label follows the signal sum with the configured margin
	for i := 0; i < b.Samples(); i++ {
		sum := b.Matrix.At(i, 0) + b.Matrix.At(i, 1)
		if b.Labels.At(i) == dataset.ClassPositive {
			assert.GreaterOrEqual(t, sum, config.Margin)
		} else {
			assert.LessOrEqual(t, sum, -config.Margin)
		}
	}
}

func TestExpressionGenerator_Deterministic(t *testing.T) {
	config := DefaultExpressionConfig()
	m1, l1, err := NewExpressionGenerator(config).Generate()
	require.NoError(t, err)
	m2, l2, err := NewExpressionGenerator(config).Generate()
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
	assert.Equal(t, l1, l2)

	config.Seed = 43
	m3, _, err := NewExpressionGenerator(config).Generate()
	require.NoError(t, err)
	assert.NotEqual(t, m1.Rows, m3.Rows)
}

func TestExpressionGenerator_Invalid(t *testing.T) {
	config := DefaultExpressionConfig()
	config.Samples = 2
	_, _, err := NewExpressionGenerator(config).Generate()
	assert.Error(t, err)

	config = DefaultExpressionConfig()
	config.SignalFeatures = 30
	_, _, err = NewExpressionGenerator(config).Generate()
	assert.Error(t, err)
}
