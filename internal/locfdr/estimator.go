package locfdr

import (
	"fmt"
	"math"

	"genesift/domain/core"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// NullMethod selects how the null component is obtained
type NullMethod string

const (
	// NullEstimated fits N(delta, sigma^2) to the centre of the z distribution
	NullEstimated NullMethod = "estimated"
	// NullTheoretical fixes the null at N(0, 1)
	NullTheoretical NullMethod = "theoretical"
)

// ParseNullMethod accepts "estimated" or "theoretical"
func ParseNullMethod(s string) (NullMethod, error) {
	switch NullMethod(s) {
	case NullEstimated, NullTheoretical:
		return NullMethod(s), nil
	case "":
		return NullEstimated, nil
	}
	return "", core.NewValidationError("locfdr null", fmt.Sprintf("unknown method %q", s))
}

const (
	DefaultBins        = 120
	DefaultDegree      = 7
	DefaultThreshold   = 0.2
	DefaultDensityIter = 50
	// histogram range is clipped to this many units either side of zero
	rangeClip = 8.0
	minValues = 10
)

// Options configure the estimator
type Options struct {
	Bins      int
	Degree    int
	Threshold float64
	Null      NullMethod

	// DensityIter caps the IRLS iterations of the Lindsey fit
	DensityIter int
}

func (o Options) withDefaults() Options {
	if o.Bins <= 0 {
		o.Bins = DefaultBins
	}
	if o.Degree <= 0 {
		o.Degree = DefaultDegree
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Null == "" {
		o.Null = NullEstimated
	}
	if o.DensityIter <= 0 {
		o.DensityIter = DefaultDensityIter
	}
	return o
}

// Null is the fitted null component p0 * N(Delta, Sigma^2)
type Null struct {
	Method NullMethod `json:"method"`
	Delta  float64    `json:"delta"`
	Sigma  float64    `json:"sigma"`
	P0     float64    `json:"p0"`
}

func (n Null) density(z float64) float64 {
	return distuv.Normal{Mu: n.Delta, Sigma: n.Sigma}.Prob(z)
}

// Result is the per-feature local fdr with the discovery boundaries.
// Lower/Upper are NaN when fdr never drops to the threshold on that side.
type Result struct {
	Z        []float64
	FDR      []float64
	Null     Null
	Lower    float64
	Upper    float64
	Warnings []string
}

// Estimator computes local fdr values
type Estimator struct {
	opts Options
}

// NewEstimator creates an estimator with defaults for zero-valued options
func NewEstimator(opts Options) *Estimator {
	return &Estimator{opts: opts.withDefaults()}
}

// Estimate fits the mixture and null to z. Non-finite entries get NaN fdr and
// do not enter the fit.
func (e *Estimator) Estimate(z []float64) (*Result, error) {
	finite := make([]float64, 0, len(z))
	for _, v := range z {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) < minValues {
		return nil, fmt.Errorf("%w: %d finite z-scores, need %d", core.ErrInsufficientData, len(finite), minValues)
	}

	lo, hi := finite[0], finite[0]
	for _, v := range finite {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	lo = math.Max(lo, -rangeClip)
	hi = math.Min(hi, rangeClip)
	if hi-lo < 1e-8 {
		return nil, fmt.Errorf("%w: z-scores have no spread", core.ErrInsufficientData)
	}

	h := newHistogram(finite, e.opts.Bins, lo, hi)
	f, err := fitMixture(h, e.opts.Degree, e.opts.DensityIter)
	if err != nil {
		return nil, err
	}

	res := &Result{Z: z, FDR: make([]float64, len(z))}
	res.Null, res.Warnings = e.fitNull(finite, h, f)
	if !f.Converged() {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("Lindsey density fit did not converge in %d iterations", e.opts.DensityIter))
	}

	fdr := func(v float64) float64 {
		c := math.Max(lo, math.Min(hi, v))
		fz := f.At(c)
		if fz <= 0 {
			return 1
		}
		return math.Min(1, math.Max(0, res.Null.P0*res.Null.density(c)/fz))
	}
	for i, v := range z {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			res.FDR[i] = math.NaN()
			continue
		}
		res.FDR[i] = fdr(v)
	}
	res.Lower, res.Upper = thresholds(h.centers, res.Null.Delta, e.opts.Threshold, fdr)
	return res, nil
}

// fitNull estimates the null by central matching, falling back to the
// theoretical null when the central log density is not concave.
func (e *Estimator) fitNull(z []float64, h histogram, f *mixtureDensity) (Null, []string) {
	var warnings []string
	if e.opts.Null == NullEstimated {
		null, err := centralMatch(z, h, f)
		if err == nil {
			return null, nil
		}
		warnings = append(warnings, fmt.Sprintf("central matching failed (%v), using theoretical null", err))
	}
	null := Null{Method: NullTheoretical, Delta: 0, Sigma: 1}
	null.P0 = centralRatio(z, h, f, null)
	return null, warnings
}

func centralWindow(z []float64) (float64, float64, error) {
	q1, err := stats.Percentile(z, 25)
	if err != nil {
		return 0, 0, err
	}
	q3, err := stats.Percentile(z, 75)
	if err != nil {
		return 0, 0, err
	}
	return q1, q3, nil
}

// centralMatch fits log f(z) = a + b z + c z^2 over the central 50% of z
func centralMatch(z []float64, h histogram, f *mixtureDensity) (Null, error) {
	q1, q3, err := centralWindow(z)
	if err != nil {
		return Null{}, err
	}
	var xs []float64
	for _, x := range h.centers {
		if x >= q1 && x <= q3 {
			xs = append(xs, x)
		}
	}
	if len(xs) < 3 {
		return Null{}, fmt.Errorf("%d bins in the central window", len(xs))
	}

	a := mat.NewDense(len(xs), 3, nil)
	b := mat.NewVecDense(len(xs), nil)
	for i, x := range xs {
		a.SetRow(i, []float64{1, x, x * x})
		b.SetVec(i, math.Log(f.At(x)))
	}
	var coef mat.VecDense
	if err := coef.SolveVec(a, b); err != nil {
		return Null{}, err
	}
	c0, c1, c2 := coef.AtVec(0), coef.AtVec(1), coef.AtVec(2)
	if c2 >= 0 {
		return Null{}, fmt.Errorf("central log density is not concave")
	}
	sigma2 := -1 / (2 * c2)
	delta := c1 * sigma2
	sigma := math.Sqrt(sigma2)
	p0 := math.Sqrt(2*math.Pi) * sigma * math.Exp(c0+delta*delta/(2*sigma2))
	return Null{Method: NullEstimated, Delta: delta, Sigma: sigma, P0: math.Min(p0, 1)}, nil
}

// centralRatio estimates p0 for a fixed null as the ratio of mixture to null
// mass over the central bins
func centralRatio(z []float64, h histogram, f *mixtureDensity, null Null) float64 {
	q1, q3, err := centralWindow(z)
	if err != nil {
		return 1
	}
	num, den := 0.0, 0.0
	for _, x := range h.centers {
		if x >= q1 && x <= q3 {
			num += f.At(x)
			den += null.density(x)
		}
	}
	if den == 0 {
		return 1
	}
	return math.Min(1, num/den)
}

// thresholds walks outward from delta over the bin centres and returns the
// first centre on each side where fdr falls to the threshold
func thresholds(centers []float64, delta, threshold float64, fdr func(float64) float64) (float64, float64) {
	lower, upper := math.NaN(), math.NaN()
	for _, x := range centers {
		if x > delta && fdr(x) <= threshold {
			upper = x
			break
		}
	}
	for k := len(centers) - 1; k >= 0; k-- {
		x := centers[k]
		if x < delta && fdr(x) <= threshold {
			lower = x
			break
		}
	}
	return lower, upper
}
