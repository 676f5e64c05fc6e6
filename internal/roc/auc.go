// Package roc implements the discretized AUC estimator, ROC and PR curves,
// and F1-optimal threshold selection over a fixed cutoff grid.
package roc

import (
	"math"

	"genesift/domain/model"

	"gonum.org/v1/gonum/integrate"
)

// DefaultGrid gives cutoffs 0, 1/500, ..., 1 (501 points)
const DefaultGrid = 500

// Estimator evaluates scores in [0,1] against binary truth on the cutoff grid i/Grid
type Estimator struct {
	Grid int
}

// NewEstimator returns an estimator with the given grid resolution (<=0 means DefaultGrid)
func NewEstimator(grid int) *Estimator {
	if grid <= 0 {
		grid = DefaultGrid
	}
	return &Estimator{Grid: grid}
}

// Cutoffs returns the grid in increasing order
func (e *Estimator) Cutoffs() []float64 {
	out := make([]float64, e.Grid+1)
	for i := range out {
		out[i] = float64(i) / float64(e.Grid)
	}
	return out
}

// Confusion binarizes scores with score > cutoff as positive
func Confusion(truth []int, scores []float64, cutoff float64) model.ConfusionMatrix {
	var cm model.ConfusionMatrix
	for i, s := range scores {
		predicted := s > cutoff
		switch {
		case truth[i] == 1 && predicted:
			cm.TP++
		case truth[i] == 1:
			cm.FN++
		case predicted:
			cm.FP++
		default:
			cm.TN++
		}
	}
	return cm
}

// ROC returns (1-specificity, sensitivity) points ordered by increasing false
// positive rate. Cutoffs where either ratio is undefined are left out.
func (e *Estimator) ROC(truth []int, scores []float64) []model.CurvePoint {
	if len(truth) != len(scores) {
		return nil
	}
	points := make([]model.CurvePoint, 0, e.Grid+1)
	for i := e.Grid; i >= 0; i-- {
		c := float64(i) / float64(e.Grid)
		cm := Confusion(truth, scores, c)
		if cm.TP+cm.FN == 0 || cm.FP+cm.TN == 0 {
			continue
		}
		sensitivity := float64(cm.TP) / float64(cm.TP+cm.FN)
		specificity := float64(cm.TN) / float64(cm.FP+cm.TN)
		points = append(points, model.CurvePoint{Cutoff: c, X: 1 - specificity, Y: sensitivity})
	}
	return points
}

// AUC integrates the ROC curve with the trapezoidal rule.
// It returns NaN when fewer than two valid points exist (e.g. one class only).
func (e *Estimator) AUC(truth []int, scores []float64) float64 {
	points := e.ROC(truth, scores)
	if len(points) < 2 {
		return math.NaN()
	}
	x := make([]float64, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i], y[i] = p.X, p.Y
	}
	return integrate.Trapezoidal(x, y)
}

// Cost is the cross-validation cost: 1 - AUC, lower is better, NaN when undefined
func (e *Estimator) Cost(truth []int, scores []float64) float64 {
	return 1 - e.AUC(truth, scores)
}
