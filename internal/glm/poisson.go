package glm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// PoissonModel is a log-linear model of counts on a caller-built basis
type PoissonModel struct {
	Beta      []float64
	Converged bool
}

// FitPoisson regresses counts y on design (which must carry its own intercept column)
func FitPoisson(design *mat.Dense, y []float64, opts Options) (*PoissonModel, error) {
	fit, err := irls(design, y, poisson{}, opts)
	if err != nil {
		return nil, err
	}
	return &PoissonModel{Beta: fit.Beta, Converged: fit.Converged}, nil
}

// Mean returns exp(row · beta) for each design row
func (m *PoissonModel) Mean(design mat.Matrix) []float64 {
	r, _ := design.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		eta := 0.0
		for j, b := range m.Beta {
			eta += b * design.At(i, j)
		}
		out[i] = math.Exp(math.Min(eta, etaMax))
	}
	return out
}
