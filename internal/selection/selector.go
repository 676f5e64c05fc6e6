// Package selection scores tuned candidates on the held-out split, picks the
// winner and derives its operating point.
package selection

import (
	"fmt"
	"log/slog"
	"math"

	"genesift/domain/core"
	"genesift/domain/model"
	"genesift/internal/roc"

	"gonum.org/v1/gonum/mat"
)

// aucTolerance absorbs summation-order noise when comparing test AUCs
const aucTolerance = 1e-12

// Outcome is the chosen model with its test-split curves and cutoff
type Outcome struct {
	Chosen     *model.CandidateModel
	TestScores []float64
	ROC        []model.CurvePoint
	PR         []model.CurvePoint
	Threshold  roc.ThresholdResult
}

// Selector compares candidates on one test split
type Selector struct {
	est    *roc.Estimator
	logger *slog.Logger
}

// NewSelector uses the given AUC grid (<=0 means the default 500 steps)
func NewSelector(grid int, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{est: roc.NewEstimator(grid), logger: logger}
}

// Score sets TestAUC on every candidate. A candidate whose scorer fails keeps
// a NaN test AUC and a warning; it can no longer win.
func (s *Selector) Score(cands []*model.CandidateModel, xTest mat.Matrix, yTest []int) error {
	r, _ := xTest.Dims()
	if r != len(yTest) {
		return core.NewDimensionError("test labels", r, len(yTest))
	}
	for _, c := range cands {
		c.TestAUC = math.NaN()
		if c.Scorer == nil {
			c.Warnings = append(c.Warnings, "no scorer attached")
			continue
		}
		scores, err := c.Scorer.Score(xTest)
		if err != nil {
			if core.IsBoundaryError(err) {
				return fmt.Errorf("%s scorer: %w", c.Kind, err)
			}
			c.Warnings = append(c.Warnings, fmt.Sprintf("test scoring failed: %v", err))
			s.logger.Warn("test scoring failed", "model", c.Kind, "error", err)
			continue
		}
		c.TestAUC = s.est.AUC(yTest, scores)
		s.logger.Info("test auc", "model", c.Kind, "auc", c.TestAUC)
	}
	return nil
}

// Select returns the candidate with the highest test AUC. Ties prefer fewer
// effective parameters, then the fixed kind order lasso, ridge, pcr, so the
// result does not depend on input order.
func Select(cands []*model.CandidateModel) (*model.CandidateModel, error) {
	if len(cands) == 0 {
		return nil, fmt.Errorf("%w: no candidate models", core.ErrInsufficientData)
	}
	split := cands[0].Split
	var best *model.CandidateModel
	for _, c := range cands {
		if c.Split != split {
			return nil, fmt.Errorf("%w: %s has split %s, %s has %s",
				core.ErrSplitFingerprintMix, cands[0].Kind, core.Hash(split).Short(), c.Kind, core.Hash(c.Split).Short())
		}
		if math.IsNaN(c.TestAUC) {
			continue
		}
		if best == nil || better(c, best) {
			best = c
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no candidate has a defined test AUC", core.ErrNoValidObservation)
	}
	return best, nil
}

func better(a, b *model.CandidateModel) bool {
	if d := a.TestAUC - b.TestAUC; math.Abs(d) > aucTolerance {
		return d > 0
	}
	if a.EffectiveParameters != b.EffectiveParameters {
		return a.EffectiveParameters < b.EffectiveParameters
	}
	return a.Kind.Order() < b.Kind.Order()
}

// Run scores, selects and computes the ROC and PR curves and the F1-optimal
// cutoff of the winner on the test split
func (s *Selector) Run(cands []*model.CandidateModel, xTest mat.Matrix, yTest []int) (*Outcome, error) {
	if err := s.Score(cands, xTest, yTest); err != nil {
		return nil, err
	}
	chosen, err := Select(cands)
	if err != nil {
		return nil, err
	}
	scores, err := chosen.Scorer.Score(xTest)
	if err != nil {
		return nil, err
	}
	out := &Outcome{
		Chosen:     chosen,
		TestScores: scores,
		ROC:        s.est.ROC(yTest, scores),
		PR:         s.est.PR(yTest, scores),
	}
	th, err := s.est.OptimalThreshold(yTest, scores)
	if err != nil {
		// single-class test split: curves and cutoff are undefined, selection stands
		s.logger.Warn("no F1-optimal cutoff", "error", err)
		chosen.Warnings = append(chosen.Warnings, err.Error())
		return out, nil
	}
	out.Threshold = th
	s.logger.Info("model selected", "model", chosen.Kind, "test_auc", chosen.TestAUC, "cutoff", th.Cutoff, "f1", th.F1)
	return out, nil
}
