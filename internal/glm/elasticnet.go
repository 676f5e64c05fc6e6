package glm

import (
	"context"
	"fmt"
	"math"

	"genesift/domain/core"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// weight and probability floors used while building the quadratic approximation
	minWeight = 1e-5
	minProb   = 1e-5
	// alpha floor when deriving the largest lambda for a pure ridge path
	minAlphaForMax = 1e-3
	// the path stops refitting once the deviance drops below this share of the null deviance
	saturationRatio = 1e-3
)

// PathOptions configure an elastic-net logistic path.
//
// The objective at each lambda is
//
//	-(1/n) loglik + lambda * ((1-alpha)/2 ||b||^2 + alpha ||b||_1)
//
// with an unpenalized intercept.
type PathOptions struct {
	Alpha float64
	// NLambda and LambdaRatio generate the sequence when Lambdas is empty.
	// A zero ratio picks 1e-4 when n >= p and 1e-2 otherwise.
	NLambda     int
	LambdaRatio float64
	Lambdas     []float64
	MaxOuter    int
	MaxPasses   int
	Tol         float64
}

func (o PathOptions) withDefaults() PathOptions {
	if o.NLambda <= 0 {
		o.NLambda = 100
	}
	if o.MaxOuter <= 0 {
		o.MaxOuter = 25
	}
	if o.MaxPasses <= 0 {
		o.MaxPasses = 1000
	}
	if o.Tol <= 0 {
		o.Tol = 1e-7
	}
	return o
}

// PathFit holds one coefficient vector per lambda, in decreasing lambda order
type PathFit struct {
	Alpha      float64
	Lambdas    []float64
	Intercepts []float64
	Betas      [][]float64

	// Saturated is the first index at which the fit explained nearly all
	// deviance; later indices repeat that solution. -1 when never reached.
	Saturated int
}

// Len is the number of lambdas on the path
func (f *PathFit) Len() int { return len(f.Lambdas) }

// NonZero counts the non-zero coefficients at path index k
func (f *PathFit) NonZero(k int) int {
	c := 0
	for _, b := range f.Betas[k] {
		if b != 0 {
			c++
		}
	}
	return c
}

// Predict returns P(y=1) for the rows of x at path index k
func (f *PathFit) Predict(x mat.Matrix, k int) ([]float64, error) {
	if k < 0 || k >= f.Len() {
		return nil, fmt.Errorf("path index %d out of range [0,%d)", k, f.Len())
	}
	return predictLogistic(x, f.Intercepts[k], f.Betas[k])
}

// PredictAll returns one probability vector per lambda
func (f *PathFit) PredictAll(x mat.Matrix) ([][]float64, error) {
	out := make([][]float64, f.Len())
	for k := range out {
		s, err := f.Predict(x, k)
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}

// LambdaSequence returns nlambda values log-spaced from lambda_max down to
// ratio*lambda_max. lambda_max is the smallest lambda at which every
// coefficient is zero (for alpha > 0).
func LambdaSequence(x mat.Matrix, y []int, alpha float64, nlambda int, ratio float64) ([]float64, error) {
	n, p := x.Dims()
	if len(y) != n {
		return nil, core.NewDimensionError("labels", n, len(y))
	}
	if n == 0 || p == 0 {
		return nil, fmt.Errorf("%w: empty design", core.ErrInsufficientData)
	}
	if nlambda <= 0 {
		nlambda = 100
	}
	if ratio <= 0 || ratio >= 1 {
		ratio = 1e-4
		if n < p {
			ratio = 1e-2
		}
	}

	ybar := 0.0
	for _, v := range y {
		ybar += float64(v)
	}
	ybar /= float64(n)

	maxGrad := 0.0
	for j := 0; j < p; j++ {
		g := 0.0
		for i := 0; i < n; i++ {
			g += x.At(i, j) * (float64(y[i]) - ybar)
		}
		maxGrad = math.Max(maxGrad, math.Abs(g))
	}
	lmax := maxGrad / (float64(n) * math.Max(alpha, minAlphaForMax))
	if lmax == 0 {
		return nil, fmt.Errorf("%w: no feature is correlated with the labels", core.ErrInsufficientData)
	}
	if nlambda == 1 {
		return []float64{lmax}, nil
	}

	out := make([]float64, nlambda)
	floats.LogSpan(out, lmax, lmax*ratio)
	return out, nil
}

// FitPath fits the elastic-net logistic path on x, which the caller is
// expected to have standardized. Each lambda warm-starts from the previous
// solution.
func FitPath(ctx context.Context, x mat.Matrix, y []int, opts PathOptions) (*PathFit, error) {
	opts = opts.withDefaults()
	if opts.Alpha < 0 || opts.Alpha > 1 {
		return nil, core.NewValidationError("alpha", fmt.Sprintf("%g outside [0,1]", opts.Alpha))
	}
	n, _ := x.Dims()
	if len(y) != n {
		return nil, core.NewDimensionError("labels", n, len(y))
	}

	lambdas := opts.Lambdas
	if len(lambdas) == 0 {
		var err error
		lambdas, err = LambdaSequence(x, y, opts.Alpha, opts.NLambda, opts.LambdaRatio)
		if err != nil {
			return nil, err
		}
	}

	s := newSolver(x, y, opts)
	fit := &PathFit{
		Alpha:      opts.Alpha,
		Lambdas:    append([]float64(nil), lambdas...),
		Intercepts: make([]float64, len(lambdas)),
		Betas:      make([][]float64, len(lambdas)),
		Saturated:  -1,
	}
	nullDev := s.deviance()
	saturated := false
	for k, lambda := range lambdas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !saturated {
			s.solve(lambda)
			if s.deviance() < saturationRatio*nullDev {
				saturated = true
				fit.Saturated = k
			}
		}
		fit.Intercepts[k] = s.b0
		fit.Betas[k] = append([]float64(nil), s.beta...)
	}
	return fit, nil
}

// solver carries the column-major design and the warm-start state
type solver struct {
	n, p  int
	cols  [][]float64
	y     []float64
	alpha float64
	opts  PathOptions

	b0   float64
	beta []float64

	eta, w, r []float64
	xv        []float64
}

func newSolver(x mat.Matrix, y []int, opts PathOptions) *solver {
	n, p := x.Dims()
	s := &solver{
		n: n, p: p,
		cols:  make([][]float64, p),
		y:     make([]float64, n),
		alpha: opts.Alpha,
		opts:  opts,
		beta:  make([]float64, p),
		eta:   make([]float64, n),
		w:     make([]float64, n),
		r:     make([]float64, n),
		xv:    make([]float64, p),
	}
	for j := 0; j < p; j++ {
		s.cols[j] = mat.Col(nil, j, x)
	}
	ybar := 0.0
	for i, v := range y {
		s.y[i] = float64(v)
		ybar += float64(v)
	}
	ybar /= float64(n)
	ybar = math.Min(math.Max(ybar, minProb), 1-minProb)
	s.b0 = math.Log(ybar / (1 - ybar))
	return s
}

// solve runs the outer quadratic-approximation loop at one lambda
func (s *solver) solve(lambda float64) {
	for outer := 0; outer < s.opts.MaxOuter; outer++ {
		s.approximate()
		oldB0 := s.b0
		oldBeta := append([]float64(nil), s.beta...)

		s.descend(lambda)

		sumW := floats.Sum(s.w) / float64(s.n)
		change := sumW * (s.b0 - oldB0) * (s.b0 - oldB0)
		for j := range s.beta {
			d := s.beta[j] - oldBeta[j]
			change = math.Max(change, s.xv[j]*d*d)
		}
		if change < s.opts.Tol {
			return
		}
	}
}

// deviance is -2 loglik at the current estimate with clamped probabilities
func (s *solver) deviance() float64 {
	d := 0.0
	for i := 0; i < s.n; i++ {
		eta := s.b0
		for j, b := range s.beta {
			if b != 0 {
				eta += b * s.cols[j][i]
			}
		}
		prob := math.Min(math.Max(Sigmoid(eta), minProb), 1-minProb)
		if s.y[i] > 0 {
			d -= 2 * math.Log(prob)
		} else {
			d -= 2 * math.Log(1-prob)
		}
	}
	return d
}

// approximate builds the weighted least squares problem at the current estimate
func (s *solver) approximate() {
	for i := range s.eta {
		s.eta[i] = s.b0
	}
	for j, b := range s.beta {
		if b == 0 {
			continue
		}
		floats.AddScaled(s.eta, b, s.cols[j])
	}
	for i := range s.eta {
		prob := math.Min(math.Max(Sigmoid(s.eta[i]), minProb), 1-minProb)
		s.w[i] = math.Max(prob*(1-prob), minWeight)
		s.r[i] = (s.y[i] - prob) / s.w[i]
	}
	for j, col := range s.cols {
		v := 0.0
		for i, xij := range col {
			v += s.w[i] * xij * xij
		}
		s.xv[j] = v / float64(s.n)
	}
}

// descend cycles coordinates: a full sweep, then the active set until it
// settles, repeated until a full sweep changes nothing.
func (s *solver) descend(lambda float64) {
	passes := 0
	for passes < s.opts.MaxPasses {
		passes++
		if s.sweep(lambda, false) < s.opts.Tol {
			return
		}
		for passes < s.opts.MaxPasses {
			passes++
			if s.sweep(lambda, true) < s.opts.Tol {
				break
			}
		}
	}
}

func (s *solver) sweep(lambda float64, activeOnly bool) float64 {
	n := float64(s.n)
	l1 := lambda * s.alpha
	l2 := lambda * (1 - s.alpha)

	maxChange := 0.0
	sumW := floats.Sum(s.w)
	d := floats.Dot(s.w, s.r) / sumW
	if d != 0 {
		s.b0 += d
		for i := range s.r {
			s.r[i] -= d
		}
		maxChange = sumW / n * d * d
	}

	for j, col := range s.cols {
		old := s.beta[j]
		if s.xv[j] == 0 || (activeOnly && old == 0) {
			continue
		}
		g := 0.0
		for i, xij := range col {
			g += s.w[i] * xij * s.r[i]
		}
		g = g/n + s.xv[j]*old
		next := softThreshold(g, l1) / (s.xv[j] + l2)
		if next == old {
			continue
		}
		delta := next - old
		s.beta[j] = next
		floats.AddScaled(s.r, -delta, col)
		maxChange = math.Max(maxChange, s.xv[j]*delta*delta)
	}
	return maxChange
}

func softThreshold(z, gamma float64) float64 {
	switch {
	case z > gamma:
		return z - gamma
	case z < -gamma:
		return z + gamma
	default:
		return 0
	}
}

// EffectiveDF is the trace of the ridge hat matrix at path index k,
// sum d^2/(d^2 + n*lambda*(1-alpha)) over the singular values d of W^1/2 X,
// with W the logistic weights at the fitted solution. The intercept is not
// counted.
func EffectiveDF(x mat.Matrix, fit *PathFit, k int) (float64, error) {
	n, p := x.Dims()
	probs, err := fit.Predict(x, k)
	if err != nil {
		return 0, err
	}
	wx := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		pi := math.Min(math.Max(probs[i], minProb), 1-minProb)
		sw := math.Sqrt(math.Max(pi*(1-pi), minWeight))
		for j := 0; j < p; j++ {
			wx.Set(i, j, sw*x.At(i, j))
		}
	}
	var svd mat.SVD
	if ok := svd.Factorize(wx, mat.SVDNone); !ok {
		return 0, fmt.Errorf("%w: SVD of weighted design failed", core.ErrSingularFit)
	}
	shrink := float64(n) * fit.Lambdas[k] * (1 - fit.Alpha)
	df := 0.0
	for _, d := range svd.Values(nil) {
		d2 := d * d
		if d2+shrink == 0 {
			continue
		}
		df += d2 / (d2 + shrink)
	}
	return df, nil
}
