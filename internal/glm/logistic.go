package glm

import (
	"genesift/domain/core"

	"gonum.org/v1/gonum/mat"
)

// LogisticModel is an unpenalized logistic regression
type LogisticModel struct {
	Intercept float64
	Coef      []float64
	Converged bool
}

// FitLogistic regresses binary y on every column of x plus an intercept
func FitLogistic(x mat.Matrix, y []int, opts Options) (*LogisticModel, error) {
	_, c := x.Dims()
	yf := make([]float64, len(y))
	for i, v := range y {
		yf[i] = float64(v)
	}
	fit, err := irls(WithIntercept(x, c), yf, binomial{}, opts)
	if err != nil {
		return nil, err
	}
	return &LogisticModel{Intercept: fit.Beta[0], Coef: fit.Beta[1:], Converged: fit.Converged}, nil
}

// Predict returns P(y=1) for each row of x
func (m *LogisticModel) Predict(x mat.Matrix) ([]float64, error) {
	return predictLogistic(x, m.Intercept, m.Coef)
}

func predictLogistic(x mat.Matrix, intercept float64, coef []float64) ([]float64, error) {
	r, c := x.Dims()
	if c != len(coef) {
		return nil, core.NewDimensionError("logistic coefficients", len(coef), c)
	}
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		eta := intercept
		for j, b := range coef {
			if b != 0 {
				eta += b * x.At(i, j)
			}
		}
		out[i] = Sigmoid(eta)
	}
	return out, nil
}
