package glm

import (
	"fmt"
	"math"

	"genesift/domain/core"

	"gonum.org/v1/gonum/mat"
)

// Options control IRLS
type Options struct {
	MaxIter int
	Tol     float64
	// MaxCond is the largest acceptable condition number of X'WX
	MaxCond float64
}

// DefaultOptions mirrors R's glm.control
func DefaultOptions() Options {
	return Options{MaxIter: 25, Tol: 1e-8, MaxCond: 1e12}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	if o.Tol <= 0 {
		o.Tol = d.Tol
	}
	if o.MaxCond <= 0 {
		o.MaxCond = d.MaxCond
	}
	return o
}

// Fit is the result of an unpenalized IRLS fit. Beta[0] is the intercept
// when the design carries one.
type Fit struct {
	Beta       []float64
	Deviance   float64
	Iterations int
	Converged  bool
}

// irls fits y on design x (intercept column included by the caller).
// A singular system on the first iteration is an error: the design itself is
// rank deficient. Later ill-conditioning (quasi-separation) stops the
// iteration and keeps the last stable estimate.
func irls(x *mat.Dense, y []float64, fam family, opts Options) (*Fit, error) {
	opts = opts.withDefaults()
	n, p := x.Dims()
	if len(y) != n {
		return nil, core.NewDimensionError("response", n, len(y))
	}
	if n < p {
		return nil, fmt.Errorf("%w: %d observations for %d coefficients", core.ErrSingularFit, n, p)
	}

	mu := make([]float64, n)
	eta := make([]float64, n)
	for i := range y {
		mu[i] = fam.start(y[i])
		eta[i] = fam.link(mu[i])
	}
	dev := totalDeviance(fam, y, mu)

	w := make([]float64, n)
	z := make([]float64, n)
	xtwx := mat.NewSymDense(p, nil)
	xtwz := mat.NewVecDense(p, nil)
	var beta *mat.VecDense
	fit := &Fit{}

	for iter := 1; iter <= opts.MaxIter; iter++ {
		for i := range y {
			w[i] = fam.variance(mu[i])
			z[i] = eta[i] + (y[i]-mu[i])/w[i]
		}
		weightedGram(x, w, z, xtwx, xtwz)

		var chol mat.Cholesky
		stable := chol.Factorize(xtwx)
		if stable && chol.Cond() > opts.MaxCond {
			stable = false
		}
		if !stable {
			if beta == nil {
				return nil, fmt.Errorf("%w: X'WX is not positive definite", core.ErrSingularFit)
			}
			break
		}
		next := mat.NewVecDense(p, nil)
		if err := chol.SolveVecTo(next, xtwz); err != nil {
			if beta == nil {
				return nil, fmt.Errorf("%w: %v", core.ErrSingularFit, err)
			}
			break
		}

		nextEta := mat.NewVecDense(n, nil)
		nextEta.MulVec(x, next)
		for i := range y {
			eta[i] = nextEta.AtVec(i)
			mu[i] = fam.inverse(eta[i])
		}
		beta = next
		fit.Iterations = iter

		newDev := totalDeviance(fam, y, mu)
		if math.Abs(newDev-dev)/(math.Abs(newDev)+0.1) < opts.Tol {
			dev = newDev
			fit.Converged = true
			break
		}
		dev = newDev
	}

	if beta == nil {
		return nil, fmt.Errorf("%w: no IRLS step completed", core.ErrNotConverged)
	}
	fit.Beta = mat.Col(nil, 0, beta)
	fit.Deviance = dev
	return fit, nil
}

// weightedGram fills X'WX and X'Wz
func weightedGram(x *mat.Dense, w, z []float64, xtwx *mat.SymDense, xtwz *mat.VecDense) {
	n, p := x.Dims()
	for a := 0; a < p; a++ {
		sz := 0.0
		for i := 0; i < n; i++ {
			sz += x.At(i, a) * w[i] * z[i]
		}
		xtwz.SetVec(a, sz)
		for b := a; b < p; b++ {
			s := 0.0
			for i := 0; i < n; i++ {
				s += x.At(i, a) * w[i] * x.At(i, b)
			}
			xtwx.SetSym(a, b, s)
		}
	}
}

func totalDeviance(fam family, y, mu []float64) float64 {
	d := 0.0
	for i := range y {
		d += fam.deviance(y[i], mu[i])
	}
	return d
}

// WithIntercept prepends a column of ones to the first cols columns of x
func WithIntercept(x mat.Matrix, cols int) *mat.Dense {
	n, c := x.Dims()
	if cols > c {
		cols = c
	}
	out := mat.NewDense(n, cols+1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, 1)
		for j := 0; j < cols; j++ {
			out.Set(i, j+1, x.At(i, j))
		}
	}
	return out
}
