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

// RegularizedTrainer tunes an elastic-net logistic regression over its lambda path
type RegularizedTrainer struct {
	kind  model.Kind
	alpha float64
	cfg   Config
}

// NewLasso returns the alpha = 1 trainer
func NewLasso(cfg Config) *RegularizedTrainer {
	return &RegularizedTrainer{kind: model.KindLasso, alpha: 1, cfg: cfg.withDefaults()}
}

// NewRidge returns the alpha = 0 trainer
func NewRidge(cfg Config) *RegularizedTrainer {
	return &RegularizedTrainer{kind: model.KindRidge, alpha: 0, cfg: cfg.withDefaults()}
}

// Kind implements Trainer
func (t *RegularizedTrainer) Kind() model.Kind { return t.kind }

// Train standardizes on the training rows, derives the lambda path once from
// the whole split, scores every lambda on the same folds and refits along
// the path down to lambda_min. Each fold is standardized on its own
// training rows.
func (t *RegularizedTrainer) Train(ctx context.Context, set TrainingSet, rng *rand.Rand) (*model.CandidateModel, error) {
	if err := set.validate(); err != nil {
		return nil, err
	}
	log := t.cfg.Logger.With("model", t.kind)

	scaler, err := preprocess.FitStandardize(set.X)
	if err != nil {
		return nil, err
	}
	xs, err := scaler.Transform(set.X)
	if err != nil {
		return nil, err
	}
	if len(scaler.Constant) > 0 {
		log.Debug("constant training columns fixed at zero", "count", len(scaler.Constant))
	}

	lambdas, err := glm.LambdaSequence(xs, set.Y, t.alpha, t.cfg.NLambda, t.cfg.LambdaRatio)
	if err != nil {
		return nil, fmt.Errorf("%s lambda path: %w", t.kind, err)
	}

	h, err := t.cfg.harness(set.Y, rng)
	if err != nil {
		return nil, err
	}
	est := roc.NewEstimator(t.cfg.AUCGrid)
	opts := glm.PathOptions{Alpha: t.alpha, Lambdas: lambdas}

	fit := func(ctx context.Context, train []int) (*foldPath, error) {
		return fitFoldPath(ctx, set.X, set.Y, train, opts)
	}
	predict := func(f *foldPath, test []int) ([][]float64, error) {
		return f.predict(set.X, test)
	}
	results, err := crossval.EvaluatePath(ctx, h, len(lambdas), fit, predict, est.Cost)
	if err != nil {
		return nil, fmt.Errorf("%s cross-validation: %w", t.kind, err)
	}

	best, ok := crossval.ArgMin(results)
	if !ok {
		return nil, fmt.Errorf("%w: %s: no lambda produced a cross-validated AUC", core.ErrNoValidObservation, t.kind)
	}

	opts.Lambdas = lambdas[:best+1]
	full, err := glm.FitPath(ctx, xs, set.Y, opts)
	if err != nil {
		return nil, fmt.Errorf("%s refit: %w", t.kind, err)
	}
	k := full.Len() - 1
	beta := full.Betas[k]

	cand := &model.CandidateModel{
		Kind:               t.kind,
		HyperparameterName: "lambda",
		Hyperparameter:     lambdas[best],
		CVAUC:              1 - results[best].MeanCost,
		TestAUC:            math.NaN(),
	}
	cand.Path, cand.SkippedGridPoints = gridPoints(lambdas, results)
	cand.Intercept, cand.Coefficients = originalScale(scaler, full.Intercepts[k], beta)

	switch t.kind {
	case model.KindRidge:
		df, err := glm.EffectiveDF(xs, full, k)
		if err != nil {
			return nil, fmt.Errorf("ridge effective df: %w", err)
		}
		cand.EffectiveParameters = df
		cand.SelectedFeatures = rankFeatures(beta, set.Features, int(math.Ceil(df)))
	default:
		nz := full.NonZero(k)
		cand.EffectiveParameters = float64(nz)
		cand.SelectedFeatures = rankFeatures(beta, set.Features, nz)
	}

	if best == 0 {
		cand.Warnings = append(cand.Warnings, "lambda_min is the first (largest) lambda of the path")
	}
	if best == len(lambdas)-1 {
		cand.Warnings = append(cand.Warnings, "lambda_min is the last (smallest) lambda of the path; a longer path may do better")
	}
	for _, w := range cand.Warnings {
		log.Warn(w)
	}

	cand.Scorer = &linearScorer{
		scaler:    scaler,
		intercept: full.Intercepts[k],
		beta:      append([]float64(nil), beta...),
	}

	log.Info("model tuned",
		"lambda", cand.Hyperparameter,
		"cv_auc", cand.CVAUC,
		"effective_parameters", cand.EffectiveParameters,
		"skipped", cand.SkippedGridPoints)
	return cand, nil
}

// foldPath is one cross-validation fit: the scaler learned on the fold's
// training rows and the lambda path fitted on them
type foldPath struct {
	scaler *preprocess.Scaler
	path   *glm.PathFit
}

func fitFoldPath(ctx context.Context, x mat.Matrix, y []int, train []int, opts glm.PathOptions) (*foldPath, error) {
	xt := subRows(x, train)
	scaler, err := preprocess.FitStandardize(xt)
	if err != nil {
		return nil, err
	}
	xs, err := scaler.Transform(xt)
	if err != nil {
		return nil, err
	}
	path, err := glm.FitPath(ctx, xs, subLabels(y, train), opts)
	if err != nil {
		return nil, err
	}
	return &foldPath{scaler: scaler, path: path}, nil
}

// predict scores raw held-out rows at every lambda with the fold's scaler
func (f *foldPath) predict(x mat.Matrix, rows []int) ([][]float64, error) {
	xs, err := f.scaler.Transform(subRows(x, rows))
	if err != nil {
		return nil, err
	}
	return f.path.PredictAll(xs)
}

// originalScale maps standardized coefficients back to raw feature units
func originalScale(s *preprocess.Scaler, b0 float64, beta []float64) (float64, []float64) {
	coef := make([]float64, len(beta))
	intercept := b0
	for j, b := range beta {
		if b == 0 || s.Scales[j] == 0 {
			continue
		}
		coef[j] = b / s.Scales[j]
		intercept -= coef[j] * s.Means[j]
	}
	return intercept, coef
}

// linearScorer standardizes raw rows with the training scaler before applying
// the fitted logistic model
type linearScorer struct {
	scaler    *preprocess.Scaler
	intercept float64
	beta      []float64
}

func (s *linearScorer) Score(x mat.Matrix) ([]float64, error) {
	xs, err := s.scaler.Transform(x)
	if err != nil {
		return nil, err
	}
	m := &glm.LogisticModel{Intercept: s.intercept, Coef: s.beta}
	return m.Predict(xs)
}
