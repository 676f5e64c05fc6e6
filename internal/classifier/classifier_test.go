package classifier

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"genesift/domain/core"
	"genesift/domain/dataset"
	"genesift/domain/model"
	"genesift/internal/glm"
	"genesift/internal/roc"
	"genesift/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func synthetic(t *testing.T) (*dataset.Bundle, TrainingSet) {
	t.Helper()
	b, err := testkit.NewExpressionGenerator(testkit.DefaultExpressionConfig()).Bundle()
	require.NoError(t, err)
	return b, TrainingSet{X: b.Matrix.View(), Y: b.Labels.Values(), Features: b.Matrix.Features()}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 4
	return cfg
}

// linearScores evaluates intercept + x·coef through the logistic link
func linearScores(x mat.Matrix, intercept float64, coef []float64) []float64 {
	r, c := x.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		eta := intercept
		for j := 0; j < c; j++ {
			eta += coef[j] * x.At(i, j)
		}
		out[i] = glm.Sigmoid(eta)
	}
	return out
}

func TestLasso_SparseAndAccurate(t *testing.T) {
	_, set := synthetic(t)
	cand, err := NewLasso(testConfig()).Train(context.Background(), set, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	t.Logf("lambda %.4g cv auc %.3f nonzero %.0f selected %v", cand.Hyperparameter, cand.CVAUC, cand.EffectiveParameters, cand.SelectedFeatures)
	assert.Equal(t, model.KindLasso, cand.Kind)
	assert.Equal(t, "lambda", cand.HyperparameterName)
	assert.Len(t, cand.Path, 100)
	assert.Less(t, cand.EffectiveParameters, 20.0)
	assert.Greater(t, cand.CVAUC, 0.8)
	assert.Len(t, cand.SelectedFeatures, int(cand.EffectiveParameters))
	assert.Contains(t, cand.SelectedFeatures, core.FeatureKey("gene_001"))
	assert.Contains(t, cand.SelectedFeatures, core.FeatureKey("gene_002"))
	assert.True(t, math.IsNaN(cand.TestAUC))

	scores, err := cand.Scorer.Score(set.X)
	require.NoError(t, err)
	assert.Greater(t, roc.NewEstimator(0).AUC(set.Y, scores), 0.9)

	// raw-scale coefficients reproduce the scorer
	assert.InDeltaSlice(t, scores, linearScores(set.X, cand.Intercept, cand.Coefficients), 1e-9)
}

func TestRidge_EffectiveDegreesOfFreedom(t *testing.T) {
	_, set := synthetic(t)
	cand, err := NewRidge(testConfig()).Train(context.Background(), set, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	t.Logf("lambda %.4g cv auc %.3f df %.2f", cand.Hyperparameter, cand.CVAUC, cand.EffectiveParameters)
	assert.Equal(t, model.KindRidge, cand.Kind)
	assert.Greater(t, cand.EffectiveParameters, 0.0)
	assert.Less(t, cand.EffectiveParameters, 18.0)
	assert.Greater(t, cand.CVAUC, 0.8)
	require.NotEmpty(t, cand.SelectedFeatures)
	assert.Contains(t, []core.FeatureKey{"gene_001", "gene_002"}, cand.SelectedFeatures[0])
	assert.Len(t, cand.Coefficients, 20)

	scores, err := cand.Scorer.Score(set.X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, scores, linearScores(set.X, cand.Intercept, cand.Coefficients), 1e-9)
}

// The low rank relies on the default fixture: signal features have SD 3
// against noise SD 1, so the leading components carry the signal. With equal
// variances the sweep runs to the largest rank.
func TestPCR_LowRankSelected(t *testing.T) {
	_, set := synthetic(t)
	cand, err := NewPCR(testConfig()).Train(context.Background(), set, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	t.Logf("rank %.0f cv auc %.3f skipped %d", cand.Hyperparameter, cand.CVAUC, cand.SkippedGridPoints)
	assert.Equal(t, model.KindPCR, cand.Kind)
	assert.Equal(t, "rank", cand.HyperparameterName)
	assert.LessOrEqual(t, cand.Hyperparameter, 5.0)
	assert.Equal(t, cand.Hyperparameter, cand.EffectiveParameters)
	assert.Len(t, cand.Path, 20)
	assert.Greater(t, cand.CVAUC, 0.8)
	for _, w := range cand.Warnings {
		assert.NotContains(t, w, "largest rank")
	}

	scores, err := cand.Scorer.Score(set.X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, scores, linearScores(set.X, cand.Intercept, cand.Coefficients), 1e-6)
}

func TestPCR_MaxRankBoundaryWarns(t *testing.T) {
	_, set := synthetic(t)
	cfg := testConfig()
	cfg.MaxRank = 1
	cand, err := NewPCR(cfg).Train(context.Background(), set, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	assert.Equal(t, 1.0, cand.Hyperparameter)
	require.Len(t, cand.Warnings, 1)
	assert.Contains(t, cand.Warnings[0], "largest rank")
}

func TestTrainers_Deterministic(t *testing.T) {
	_, set := synthetic(t)
	for _, tr := range []Trainer{NewLasso(testConfig()), NewPCR(testConfig())} {
		t.Run(string(tr.Kind()), func(t *testing.T) {
			a, err := tr.Train(context.Background(), set, rand.New(rand.NewSource(9)))
			require.NoError(t, err)
			b, err := tr.Train(context.Background(), set, rand.New(rand.NewSource(9)))
			require.NoError(t, err)
			assert.Equal(t, a.Hyperparameter, b.Hyperparameter)
			assert.Equal(t, a.CVAUC, b.CVAUC)
			assert.Equal(t, a.Coefficients, b.Coefficients)
		})
	}
}

func TestTrainers_RejectBadInput(t *testing.T) {
	x := mat.NewDense(6, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	features := []core.FeatureKey{"a", "b"}
	rng := rand.New(rand.NewSource(1))

	_, err := NewLasso(testConfig()).Train(context.Background(), TrainingSet{X: x, Y: []int{0, 1}, Features: features}, rng)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	_, err = NewPCR(testConfig()).Train(context.Background(), TrainingSet{X: x, Y: []int{1, 1, 1, 1, 1, 0}, Features: features}, rng)
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	_, err = NewRidge(testConfig()).Train(context.Background(), TrainingSet{X: x, Y: []int{0, 1, 0, 1, 0, 1}, Features: features[:1]}, rng)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestBasis_ProjectionUsesTrainingStatistics(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	n, p := 12, 4
	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			x.Set(i, j, rng.NormFloat64()+float64(j))
		}
	}
	b, err := FitBasis(x)
	require.NoError(t, err)
	assert.Equal(t, p, b.Rank())

	// full-rank scores reconstruct the training rows
	z, err := b.Project(x, p)
	require.NoError(t, err)
	var recon mat.Dense
	recon.Mul(z, b.Loadings(p).T())
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			assert.InDelta(t, x.At(i, j), recon.At(i, j)+b.scaler.Means[j], 1e-9)
		}
	}

	// a new row equal to the training means projects to the origin
	means := mat.NewDense(1, p, append([]float64(nil), b.scaler.Means...))
	origin, err := b.Project(means, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0}, origin.RawRowView(0), 1e-12)

	_, err = b.Project(x, p+1)
	assert.Error(t, err)
	_, err = b.Project(x, 0)
	assert.Error(t, err)
}

func TestRankFeatures(t *testing.T) {
	features := []core.FeatureKey{"a", "b", "c", "d"}
	coef := []float64{0.1, -3, 0, 2}
	assert.Equal(t, []core.FeatureKey{"b", "d", "a"}, rankFeatures(coef, features, 10))
	assert.Equal(t, []core.FeatureKey{"b"}, rankFeatures(coef, features, 1))
	assert.Empty(t, rankFeatures([]float64{0, 0}, features[:2], 5))
}

func TestFoldPath_ScalesOnTrainingRowsOnly(t *testing.T) {
	x := mat.NewDense(8, 2, []float64{
		1, 0.5,
		2, -1,
		3, 0.2,
		4, 1.5,
		5, -0.3,
		6, 0.8,
		0, 0,
		0, 0,
	})
	y := []int{0, 1, 0, 1, 1, 0, 0, 1}
	train := []int{0, 1, 2, 3, 4, 5}
	opts := glm.PathOptions{Alpha: 1, Lambdas: []float64{0.2, 0.05, 0.01}}

	base, err := fitFoldPath(context.Background(), x, y, train, opts)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, base.scaler.Means[0], 1e-12)

	// moving the held-out rows leaves the fold's scaler and path unchanged
	shifted := mat.DenseCopyOf(x)
	shifted.SetRow(6, []float64{1000, -400})
	shifted.SetRow(7, []float64{-900, 250})
	moved, err := fitFoldPath(context.Background(), shifted, y, train, opts)
	require.NoError(t, err)
	assert.Equal(t, base.scaler.Means, moved.scaler.Means)
	assert.Equal(t, base.scaler.Scales, moved.scaler.Scales)
	assert.Equal(t, base.path.Betas, moved.path.Betas)
	assert.Equal(t, base.path.Intercepts, moved.path.Intercepts)

	// held-out rows are transformed with the training statistics
	scores, err := base.predict(x, []int{6, 7})
	require.NoError(t, err)
	require.Len(t, scores, 3)
	xs, err := base.scaler.Transform(subRows(x, []int{6, 7}))
	require.NoError(t, err)
	want, err := base.path.PredictAll(xs)
	require.NoError(t, err)
	assert.Equal(t, want, scores)
}
