package roc

import (
	"fmt"

	"genesift/domain/core"
	"genesift/domain/model"
)

// ThresholdResult is the F1-optimal operating point
type ThresholdResult struct {
	Cutoff    float64               `json:"cutoff"`
	F1        float64               `json:"f1"`
	Precision float64               `json:"precision"`
	Recall    float64               `json:"recall"`
	Confusion model.ConfusionMatrix `json:"confusion"`
}

// PR returns (recall, precision) points in increasing cutoff order, leaving out
// cutoffs with no predicted positives or no actual positives.
func (e *Estimator) PR(truth []int, scores []float64) []model.CurvePoint {
	if len(truth) != len(scores) {
		return nil
	}
	points := make([]model.CurvePoint, 0, e.Grid+1)
	for i := 0; i <= e.Grid; i++ {
		c := float64(i) / float64(e.Grid)
		precision, recall, ok := precisionRecall(Confusion(truth, scores, c))
		if !ok {
			continue
		}
		points = append(points, model.CurvePoint{Cutoff: c, X: recall, Y: precision})
	}
	return points
}

// OptimalThreshold sweeps the cutoff grid and returns the cutoff with maximal
// F1. Ties keep the lowest cutoff.
func (e *Estimator) OptimalThreshold(truth []int, scores []float64) (ThresholdResult, error) {
	if len(truth) != len(scores) {
		return ThresholdResult{}, core.NewDimensionError("scores", len(truth), len(scores))
	}
	best := ThresholdResult{F1: -1}
	for i := 0; i <= e.Grid; i++ {
		c := float64(i) / float64(e.Grid)
		cm := Confusion(truth, scores, c)
		precision, recall, ok := precisionRecall(cm)
		if !ok {
			continue
		}
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		if f1 > best.F1 {
			best = ThresholdResult{Cutoff: c, F1: f1, Precision: precision, Recall: recall, Confusion: cm}
		}
	}
	if best.F1 < 0 {
		return ThresholdResult{}, fmt.Errorf("%w: no cutoff has defined precision and recall", core.ErrNoValidObservation)
	}
	return best, nil
}

func precisionRecall(cm model.ConfusionMatrix) (precision, recall float64, ok bool) {
	if cm.TP+cm.FP == 0 || cm.TP+cm.FN == 0 {
		return 0, 0, false
	}
	precision = float64(cm.TP) / float64(cm.TP+cm.FP)
	recall = float64(cm.TP) / float64(cm.TP+cm.FN)
	return precision, recall, true
}
