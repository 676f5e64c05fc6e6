// Package classifier trains the candidate classifiers: elastic-net logistic
// regression (Lasso, Ridge) and principal component logistic regression, each
// tuned by k-fold cross-validated AUC on the training split.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"sort"

	"genesift/domain/core"
	"genesift/domain/model"
	"genesift/internal/crossval"
	"genesift/internal/roc"

	"gonum.org/v1/gonum/mat"
)

// TrainingSet is the raw training split handed to a trainer
type TrainingSet struct {
	X        mat.Matrix
	Y        []int
	Features []core.FeatureKey
}

func (s TrainingSet) validate() error {
	n, p := s.X.Dims()
	if len(s.Y) != n {
		return core.NewDimensionError("training labels", n, len(s.Y))
	}
	if len(s.Features) != p {
		return core.NewDimensionError("feature names", p, len(s.Features))
	}
	neg, pos := 0, 0
	for _, v := range s.Y {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	if neg < 2 || pos < 2 {
		return fmt.Errorf("%w: training split has %d negatives and %d positives", core.ErrInsufficientData, neg, pos)
	}
	return nil
}

// Config holds the knobs shared by all trainers
type Config struct {
	Folds       int
	Workers     int
	AUCGrid     int
	NLambda     int
	LambdaRatio float64
	MaxRank     int
	Logger      *slog.Logger
}

// DefaultConfig returns 10 folds, a 500-step AUC grid, 100 lambdas and ranks up to 100
func DefaultConfig() Config {
	return Config{
		Folds:   10,
		Workers: runtime.GOMAXPROCS(0),
		AUCGrid: roc.DefaultGrid,
		NLambda: 100,
		MaxRank: 100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Folds <= 1 {
		c.Folds = d.Folds
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.AUCGrid <= 0 {
		c.AUCGrid = d.AUCGrid
	}
	if c.NLambda <= 0 {
		c.NLambda = d.NLambda
	}
	if c.MaxRank <= 0 {
		c.MaxRank = d.MaxRank
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c Config) harness(y []int, rng *rand.Rand) (*crossval.Harness, error) {
	return crossval.NewHarness(y, c.Folds, rng,
		crossval.WithWorkers(c.Workers),
		crossval.WithLogger(c.Logger))
}

// Trainer produces one tuned candidate from a training split. rng drives the
// fold assignment only.
type Trainer interface {
	Kind() model.Kind
	Train(ctx context.Context, set TrainingSet, rng *rand.Rand) (*model.CandidateModel, error)
}

// subRows copies the given rows of x
func subRows(x mat.Matrix, rows []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		for j := 0; j < c; j++ {
			out.Set(i, j, x.At(r, j))
		}
	}
	return out
}

func subLabels(y []int, rows []int) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = y[r]
	}
	return out
}

// gridPoints converts cross-validation results to the reported path and
// counts the points that produced no valid fold
func gridPoints(values []float64, results []crossval.Result) ([]model.GridPoint, int) {
	out := make([]model.GridPoint, len(results))
	skipped := 0
	for i, r := range results {
		out[i] = model.GridPoint{Value: values[i], Cost: r.MeanCost, ValidFolds: r.ValidFolds, Valid: r.Valid()}
		if !r.Valid() {
			skipped++
		}
	}
	return out, skipped
}

// rankFeatures orders the non-zero coefficients by decreasing magnitude and
// keeps at most limit of them
func rankFeatures(coef []float64, features []core.FeatureKey, limit int) []core.FeatureKey {
	idx := make([]int, 0, len(coef))
	for j, b := range coef {
		if b != 0 {
			idx = append(idx, j)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return abs(coef[idx[a]]) > abs(coef[idx[b]])
	})
	if limit >= 0 && len(idx) > limit {
		idx = idx[:limit]
	}
	out := make([]core.FeatureKey, len(idx))
	for i, j := range idx {
		out[i] = features[j]
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
