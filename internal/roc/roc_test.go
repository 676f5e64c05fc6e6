package roc

import (
	"math"
	"math/rand"
	"testing"

	"genesift/domain/core"
	"genesift/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCutoffGrid(t *testing.T) {
	e := NewEstimator(0)
	c := e.Cutoffs()
	require.Len(t, c, 501)
	assert.Equal(t, 0.0, c[0])
	assert.Equal(t, 1.0, c[500])
	assert.Equal(t, 0.4, c[200])
}

func TestAUC_PerfectSeparation(t *testing.T) {
	e := NewEstimator(DefaultGrid)
	truth := []int{0, 0, 0, 1, 1, 1}
	scores := []float64{0.05, 0.2, 0.31, 0.62, 0.8, 0.97}
	assert.InDelta(t, 1.0, e.AUC(truth, scores), 1e-12)

	inverted := []float64{0.97, 0.8, 0.62, 0.31, 0.2, 0.05}
	assert.InDelta(t, 0.0, e.AUC(truth, inverted), 1e-12)
}

func TestAUC_RandomScoresNearHalf(t *testing.T) {
	e := NewEstimator(DefaultGrid)
	rng := rand.New(rand.NewSource(3))
	n := 4000
	truth := make([]int, n)
	scores := make([]float64, n)
	for i := range truth {
		truth[i] = rng.Intn(2)
		scores[i] = rng.Float64()
	}
	auc := e.AUC(truth, scores)
	assert.InDelta(t, 0.5, auc, 0.03)
	t.Logf("AUC for independent scores: %.4f", auc)
}

func TestAUC_AlwaysInUnitInterval(t *testing.T) {
	e := NewEstimator(DefaultGrid)
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 50; trial++ {
		n := 5 + rng.Intn(40)
		truth := make([]int, n)
		scores := make([]float64, n)
		for i := range truth {
			truth[i] = rng.Intn(2)
			scores[i] = math.Round(rng.Float64()*10) / 10
		}
		auc := e.AUC(truth, scores)
		if math.IsNaN(auc) {
			continue
		}
		assert.GreaterOrEqual(t, auc, 0.0)
		assert.LessOrEqual(t, auc, 1.0)
	}
}

func TestAUC_SingleClassIsUndefined(t *testing.T) {
	e := NewEstimator(DefaultGrid)
	assert.True(t, math.IsNaN(e.AUC([]int{1, 1, 1}, []float64{0.2, 0.5, 0.9})))
	assert.True(t, math.IsNaN(e.Cost([]int{0, 0}, []float64{0.2, 0.5})))
	assert.Empty(t, e.ROC([]int{0, 0}, []float64{0.2, 0.5}))
}

func TestAUC_MatchesExplicitTrapezoid(t *testing.T) {
	e := NewEstimator(DefaultGrid)
	truth := []int{1, 0, 1, 1, 0, 0, 1, 0}
	scores := []float64{0.9, 0.7, 0.65, 0.4, 0.45, 0.1, 0.3, 0.55}

	points := e.ROC(truth, scores)
	want := 0.0
	for i := 0; i+1 < len(points); i++ {
		want += (points[i].Y + points[i+1].Y) / 2 * math.Abs(points[i+1].X-points[i].X)
	}
	assert.InDelta(t, want, e.AUC(truth, scores), 1e-12)
	// Distinct scores further apart than the grid step reproduce the rank AUC: 9 of 16 pairs.
	assert.InDelta(t, 9.0/16.0, e.AUC(truth, scores), 1e-12)
}

func TestROC_IsOrderedByFalsePositiveRate(t *testing.T) {
	e := NewEstimator(DefaultGrid)
	truth := []int{1, 0, 1, 0, 1, 0}
	scores := []float64{0.8, 0.6, 0.55, 0.3, 0.2, 0.1}
	points := e.ROC(truth, scores)
	require.NotEmpty(t, points)
	for i := 1; i < len(points); i++ {
		assert.GreaterOrEqual(t, points[i].X, points[i-1].X)
		assert.GreaterOrEqual(t, points[i].Y, points[i-1].Y)
		assert.Less(t, points[i].Cutoff, points[i-1].Cutoff)
	}
}

func TestConfusion(t *testing.T) {
	cm := Confusion([]int{1, 1, 0, 0}, []float64{0.9, 0.3, 0.6, 0.1}, 0.5)
	assert.Equal(t, model.ConfusionMatrix{TP: 1, FN: 1, FP: 1, TN: 1}, cm)
	assert.Equal(t, 4, cm.Total())
}

func TestOptimalThreshold(t *testing.T) {
	e := NewEstimator(DefaultGrid)

	t.Run("separable four samples", func(t *testing.T) {
		res, err := e.OptimalThreshold([]int{1, 1, 0, 0}, []float64{0.9, 0.6, 0.4, 0.1})
		require.NoError(t, err)
		// 0.4 is on the grid and score 0.4 is not > 0.4, so the lowest perfect cutoff is 0.4 itself.
		assert.GreaterOrEqual(t, res.Cutoff, 0.4)
		assert.Less(t, res.Cutoff, 0.6)
		assert.Equal(t, 0, res.Confusion.FN)
		assert.Equal(t, 0, res.Confusion.FP)
		assert.Equal(t, 1.0, res.F1)
	})

	t.Run("ties keep lowest cutoff", func(t *testing.T) {
		res, err := e.OptimalThreshold([]int{1, 0}, []float64{0.9, 0.1})
		require.NoError(t, err)
		assert.Equal(t, 0.1, res.Cutoff)
	})

	t.Run("no positives", func(t *testing.T) {
		_, err := e.OptimalThreshold([]int{0, 0}, []float64{0.9, 0.1})
		assert.ErrorIs(t, err, core.ErrNoValidObservation)
	})
}

func TestPR_ExcludesUndefinedPrecision(t *testing.T) {
	e := NewEstimator(10)
	points := e.PR([]int{1, 0, 1}, []float64{0.85, 0.45, 0.25})
	for _, p := range points {
		assert.Less(t, p.Cutoff, 0.85)
		assert.GreaterOrEqual(t, p.Y, 0.0)
		assert.LessOrEqual(t, p.Y, 1.0)
	}
	assert.Len(t, points, 9)
}
