package selection

import (
	"errors"
	"math"
	"testing"

	"genesift/domain/core"
	"genesift/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// fixedScorer returns the first column of x as the score
type fixedScorer struct{ err error }

func (f fixedScorer) Score(x mat.Matrix) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, _ := x.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = x.At(i, 0)
	}
	return out, nil
}

func cand(kind model.Kind, auc, params float64) *model.CandidateModel {
	return &model.CandidateModel{Kind: kind, TestAUC: auc, EffectiveParameters: params, Split: "s1"}
}

func TestSelect_HighestAUCWins(t *testing.T) {
	got, err := Select([]*model.CandidateModel{
		cand(model.KindLasso, 0.8, 3),
		cand(model.KindRidge, 0.9, 12),
		cand(model.KindPCR, 0.85, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, model.KindRidge, got.Kind)
}

func TestSelect_TieBreaks(t *testing.T) {
	tests := []struct {
		name  string
		cands []*model.CandidateModel
		want  model.Kind
	}{
		{
			name:  "sparser wins on equal AUC",
			cands: []*model.CandidateModel{cand(model.KindLasso, 0.9, 7), cand(model.KindPCR, 0.9, 2)},
			want:  model.KindPCR,
		},
		{
			name:  "sparser wins regardless of order",
			cands: []*model.CandidateModel{cand(model.KindPCR, 0.9, 2), cand(model.KindLasso, 0.9, 7)},
			want:  model.KindPCR,
		},
		{
			name:  "kind order on full tie",
			cands: []*model.CandidateModel{cand(model.KindPCR, 0.9, 3), cand(model.KindRidge, 0.9, 3), cand(model.KindLasso, 0.9, 3)},
			want:  model.KindLasso,
		},
		{
			name:  "NaN AUC never wins",
			cands: []*model.CandidateModel{cand(model.KindLasso, math.NaN(), 1), cand(model.KindRidge, 0.6, 9)},
			want:  model.KindRidge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(tt.cands)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestSelect_Errors(t *testing.T) {
	_, err := Select(nil)
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	_, err = Select([]*model.CandidateModel{cand(model.KindLasso, math.NaN(), 1)})
	assert.ErrorIs(t, err, core.ErrNoValidObservation)

	other := cand(model.KindRidge, 0.9, 1)
	other.Split = "s2"
	_, err = Select([]*model.CandidateModel{cand(model.KindLasso, 0.8, 1), other})
	assert.ErrorIs(t, err, core.ErrSplitFingerprintMix)
}

func TestSelector_Run(t *testing.T) {
	// column 0 separates perfectly, column 1 is inverted
	x := mat.NewDense(6, 2, []float64{
		0.9, 0.1,
		0.8, 0.2,
		0.7, 0.3,
		0.3, 0.7,
		0.2, 0.8,
		0.1, 0.9,
	})
	y := []int{1, 1, 1, 0, 0, 0}

	good := &model.CandidateModel{Kind: model.KindRidge, EffectiveParameters: 5, Scorer: fixedScorer{}}
	broken := &model.CandidateModel{Kind: model.KindLasso, EffectiveParameters: 1, Scorer: fixedScorer{err: errors.New("boom")}}

	out, err := NewSelector(0, nil).Run([]*model.CandidateModel{broken, good}, x, y)
	require.NoError(t, err)
	assert.Same(t, good, out.Chosen)
	assert.InDelta(t, 1.0, good.TestAUC, 1e-12)
	assert.True(t, math.IsNaN(broken.TestAUC))
	assert.NotEmpty(t, broken.Warnings)

	assert.Len(t, out.ROC, 501)
	assert.NotEmpty(t, out.PR)
	assert.Equal(t, 1.0, out.Threshold.F1)
	assert.Zero(t, out.Threshold.Confusion.FP)
	assert.Zero(t, out.Threshold.Confusion.FN)
	assert.GreaterOrEqual(t, out.Threshold.Cutoff, 0.3)
	assert.Less(t, out.Threshold.Cutoff, 0.7)
}

func TestSelector_ScoreDimensionMismatch(t *testing.T) {
	err := NewSelector(0, nil).Score(nil, mat.NewDense(3, 1, nil), []int{1})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}
