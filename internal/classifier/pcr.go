package classifier

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"genesift/domain/core"
	"genesift/domain/model"
	"genesift/internal/crossval"
	"genesift/internal/glm"
	"genesift/internal/preprocess"
	"genesift/internal/roc"

	"gonum.org/v1/gonum/mat"
)

// Basis is a principal component basis learned from training rows: the
// training column means and the right singular vectors of the centered matrix.
type Basis struct {
	scaler *preprocess.Scaler
	v      *mat.Dense
	values []float64
	rank   int
}

// FitBasis centers x with its own column means and takes the thin SVD
func FitBasis(x mat.Matrix) (*Basis, error) {
	scaler, err := preprocess.FitCenter(x)
	if err != nil {
		return nil, err
	}
	xc, err := scaler.Transform(x)
	if err != nil {
		return nil, err
	}
	var svd mat.SVD
	if ok := svd.Factorize(xc, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: SVD did not converge", core.ErrSingularFit)
	}
	b := &Basis{scaler: scaler, v: &mat.Dense{}, values: svd.Values(nil)}
	svd.VTo(b.v)

	n, p := x.Dims()
	if len(b.values) > 0 {
		tol := b.values[0] * float64(max(n, p)) * 2.220446049250313e-16
		for _, s := range b.values {
			if s > tol {
				b.rank++
			}
		}
	}
	return b, nil
}

// Rank is the numerical rank of the centered training matrix
func (b *Basis) Rank() int { return b.rank }

// Components is the number of stored singular vectors
func (b *Basis) Components() int {
	_, c := b.v.Dims()
	return c
}

// Project returns the scores of x on the first k components, always using
// the training means and loadings
func (b *Basis) Project(x mat.Matrix, k int) (*mat.Dense, error) {
	if k < 1 || k > b.Components() {
		return nil, fmt.Errorf("rank %d outside [1,%d]", k, b.Components())
	}
	xc, err := b.scaler.Transform(x)
	if err != nil {
		return nil, err
	}
	r, _ := x.Dims()
	out := mat.NewDense(r, k, nil)
	out.Mul(xc, b.v.Slice(0, b.v.RawMatrix().Rows, 0, k))
	return out, nil
}

// Loadings returns a copy of the first k loading vectors (p x k)
func (b *Basis) Loadings(k int) *mat.Dense {
	p, _ := b.v.Dims()
	return mat.DenseCopyOf(b.v.Slice(0, p, 0, k))
}

// pcrPath is one basis with a logistic fit per rank; nil entries failed
type pcrPath struct {
	basis *Basis
	fits  []*glm.LogisticModel
}

func fitPCRPath(ctx context.Context, x mat.Matrix, y []int, maxRank int) (*pcrPath, error) {
	basis, err := FitBasis(x)
	if err != nil {
		return nil, err
	}
	path := &pcrPath{basis: basis, fits: make([]*glm.LogisticModel, maxRank)}
	top := min(maxRank, basis.Components())
	if top < 1 {
		return path, nil
	}
	z, err := basis.Project(x, top)
	if err != nil {
		return nil, err
	}
	for k := 1; k <= top; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := glm.FitLogistic(z.Slice(0, len(y), 0, k), y, glm.Options{})
		if err != nil {
			if core.IsNumericalError(err) {
				continue
			}
			return nil, err
		}
		path.fits[k-1] = m
	}
	return path, nil
}

func (p *pcrPath) predict(x mat.Matrix) ([][]float64, error) {
	out := make([][]float64, len(p.fits))
	top := 0
	for k, m := range p.fits {
		if m != nil {
			top = k + 1
		}
	}
	if top == 0 {
		return out, nil
	}
	z, err := p.basis.Project(x, top)
	if err != nil {
		return nil, err
	}
	r, _ := x.Dims()
	for k, m := range p.fits {
		if m == nil {
			continue
		}
		s, err := m.Predict(z.Slice(0, r, 0, k+1))
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}

// PCRTrainer tunes the retained rank of a principal component logistic regression
type PCRTrainer struct {
	cfg Config
}

// NewPCR returns a PCR trainer
func NewPCR(cfg Config) *PCRTrainer {
	return &PCRTrainer{cfg: cfg.withDefaults()}
}

// Kind implements Trainer
func (t *PCRTrainer) Kind() model.Kind { return model.KindPCR }

// Train sweeps ranks 1..K_max, K_max = min(MaxRank, rank of the centered
// training matrix). Every fold learns its own basis from its training rows.
func (t *PCRTrainer) Train(ctx context.Context, set TrainingSet, rng *rand.Rand) (*model.CandidateModel, error) {
	if err := set.validate(); err != nil {
		return nil, err
	}
	log := t.cfg.Logger.With("model", model.KindPCR)

	full, err := FitBasis(set.X)
	if err != nil {
		return nil, err
	}
	_, p := set.X.Dims()
	kmax := min(t.cfg.MaxRank, full.Rank(), p)
	if kmax < 1 {
		return nil, fmt.Errorf("%w: centered training matrix has rank 0", core.ErrInsufficientData)
	}

	h, err := t.cfg.harness(set.Y, rng)
	if err != nil {
		return nil, err
	}
	est := roc.NewEstimator(t.cfg.AUCGrid)

	fit := func(ctx context.Context, train []int) (*pcrPath, error) {
		return fitPCRPath(ctx, subRows(set.X, train), subLabels(set.Y, train), kmax)
	}
	predict := func(m *pcrPath, test []int) ([][]float64, error) {
		return m.predict(subRows(set.X, test))
	}
	results, err := crossval.EvaluatePath(ctx, h, kmax, fit, predict, est.Cost)
	if err != nil {
		return nil, fmt.Errorf("pcr cross-validation: %w", err)
	}

	best, ok := crossval.ArgMin(results)
	if !ok {
		return nil, fmt.Errorf("%w: pcr: no rank produced a cross-validated AUC", core.ErrNoValidObservation)
	}
	rank := best + 1

	z, err := full.Project(set.X, rank)
	if err != nil {
		return nil, err
	}
	m, err := glm.FitLogistic(z, set.Y, glm.Options{})
	if err != nil {
		return nil, fmt.Errorf("pcr refit at rank %d: %w", rank, err)
	}

	ranks := make([]float64, kmax)
	for i := range ranks {
		ranks[i] = float64(i + 1)
	}
	cand := &model.CandidateModel{
		Kind:                model.KindPCR,
		HyperparameterName:  "rank",
		Hyperparameter:      float64(rank),
		EffectiveParameters: float64(rank),
		CVAUC:               1 - results[best].MeanCost,
		TestAUC:             math.NaN(),
	}
	cand.Path, cand.SkippedGridPoints = gridPoints(ranks, results)
	cand.Intercept, cand.Coefficients = featureSpace(full, rank, m)

	if rank == kmax {
		w := fmt.Sprintf("selected rank %d equals the largest rank tried; the optimum may lie beyond the sweep", rank)
		cand.Warnings = append(cand.Warnings, w)
		log.Warn(w)
	}
	if !m.Converged {
		cand.Warnings = append(cand.Warnings, fmt.Sprintf("logistic fit at rank %d did not converge", rank))
	}

	cand.Scorer = &pcrScorer{basis: full, rank: rank, model: m}
	log.Info("model tuned", "rank", rank, "max_rank", kmax, "cv_auc", cand.CVAUC, "skipped", cand.SkippedGridPoints)
	return cand, nil
}

// featureSpace expresses the component weights as per-feature coefficients
// on the raw scale: intercept - mean·(V_k g) and V_k g
func featureSpace(b *Basis, k int, m *glm.LogisticModel) (float64, []float64) {
	loadings := b.Loadings(k)
	gamma := mat.NewVecDense(k, append([]float64(nil), m.Coef...))
	var beta mat.VecDense
	beta.MulVec(loadings, gamma)
	coef := mat.Col(nil, 0, &beta)
	intercept := m.Intercept
	for j, c := range coef {
		intercept -= c * b.scaler.Means[j]
	}
	return intercept, coef
}

type pcrScorer struct {
	basis *Basis
	rank  int
	model *glm.LogisticModel
}

func (s *pcrScorer) Score(x mat.Matrix) ([]float64, error) {
	z, err := s.basis.Project(x, s.rank)
	if err != nil {
		return nil, err
	}
	return s.model.Predict(z)
}
