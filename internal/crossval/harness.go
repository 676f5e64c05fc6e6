package crossval

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"runtime"

	"genesift/domain/core"

	"golang.org/x/sync/errgroup"
)

// FitFunc fits a model on the given training positions
type FitFunc[M any] func(ctx context.Context, train []int) (M, error)

// PredictFunc scores the held-out positions
type PredictFunc[M any] func(m M, test []int) ([]float64, error)

// PathPredictFunc scores the held-out positions once per grid point
type PathPredictFunc[M any] func(m M, test []int) ([][]float64, error)

// CostFunc maps truth and scores to a cost; NaN marks an undefined fold
type CostFunc func(truth []int, scores []float64) float64

// Result is the cross-validated cost of one grid point
type Result struct {
	MeanCost   float64   `json:"mean_cost"`
	FoldCosts  []float64 `json:"fold_costs"`
	ValidFolds int       `json:"valid_folds"`
}

// Valid reports whether at least one fold produced a defined cost
func (r Result) Valid() bool { return r.ValidFolds > 0 && !math.IsNaN(r.MeanCost) }

// Harness owns a fixed fold assignment so every grid point of a sweep is
// scored on the same folds.
type Harness struct {
	folds   []Fold
	labels  []int
	workers int
	logger  *slog.Logger
}

// Option configures a Harness
type Option func(*Harness)

// WithWorkers bounds fold-level concurrency
func WithWorkers(n int) Option {
	return func(h *Harness) {
		if n > 0 {
			h.workers = n
		}
	}
}

// WithLogger sets the logger used for skipped folds
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHarness partitions the training labels into k folds
func NewHarness(labels []int, k int, rng *rand.Rand, opts ...Option) (*Harness, error) {
	folds, err := Partition(len(labels), k, rng)
	if err != nil {
		return nil, err
	}
	h := &Harness{
		folds:   folds,
		labels:  append([]int(nil), labels...),
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Folds returns the fold assignment
func (h *Harness) Folds() []Fold { return h.folds }

// K returns the number of folds
func (h *Harness) K() int { return len(h.folds) }

func (h *Harness) truth(test []int) []int {
	out := make([]int, len(test))
	for i, pos := range test {
		out[i] = h.labels[pos]
	}
	return out
}

// Evaluate fits on k-1 folds, predicts the held-out fold and averages cost.
// A fold whose fit fails numerically is recorded as NaN rather than aborting.
func Evaluate[M any](ctx context.Context, h *Harness, fit FitFunc[M], predict PredictFunc[M], cost CostFunc) (Result, error) {
	wrapped := func(m M, test []int) ([][]float64, error) {
		s, err := predict(m, test)
		if err != nil {
			return nil, err
		}
		return [][]float64{s}, nil
	}
	results, err := EvaluatePath(ctx, h, 1, fit, wrapped, cost)
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// EvaluatePath is Evaluate for models that score a whole hyperparameter path
// from one fit per fold. It returns one Result per grid point.
func EvaluatePath[M any](ctx context.Context, h *Harness, gridSize int, fit FitFunc[M], predict PathPredictFunc[M], cost CostFunc) ([]Result, error) {
	k := len(h.folds)
	costs := make([][]float64, k) // [fold][grid]

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)
	for f := range h.folds {
		fold := h.folds[f]
		g.Go(func() error {
			row := make([]float64, gridSize)
			for i := range row {
				row[i] = math.NaN()
			}
			costs[fold.Index] = row

			m, err := fit(gctx, fold.Train)
			if err != nil {
				if core.IsNumericalError(err) {
					h.logger.Debug("fold fit skipped", "fold", fold.Index, "error", err)
					return nil
				}
				return err
			}
			scores, err := predict(m, fold.Test)
			if err != nil {
				if core.IsNumericalError(err) {
					h.logger.Debug("fold predict skipped", "fold", fold.Index, "error", err)
					return nil
				}
				return err
			}
			truth := h.truth(fold.Test)
			for i := 0; i < gridSize && i < len(scores); i++ {
				if scores[i] == nil {
					continue
				}
				row[i] = cost(truth, scores[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]Result, gridSize)
	for i := range results {
		fc := make([]float64, k)
		sum, valid := 0.0, 0
		for f := 0; f < k; f++ {
			fc[f] = costs[f][i]
			if !math.IsNaN(fc[f]) {
				sum += fc[f]
				valid++
			}
		}
		mean := math.NaN()
		if valid > 0 {
			mean = sum / float64(valid)
		}
		results[i] = Result{MeanCost: mean, FoldCosts: fc, ValidFolds: valid}
	}
	return results, nil
}

// ArgMin returns the first grid point with the lowest valid mean cost.
// ok is false when no grid point is valid.
func ArgMin(results []Result) (idx int, ok bool) {
	idx = -1
	best := math.Inf(1)
	for i, r := range results {
		if !r.Valid() {
			continue
		}
		if r.MeanCost < best {
			best = r.MeanCost
			idx = i
		}
	}
	return idx, idx >= 0
}
