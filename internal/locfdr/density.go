package locfdr

import (
	"fmt"
	"math"

	"genesift/domain/core"
	"genesift/internal/glm"

	"gonum.org/v1/gonum/mat"
)

// histogram of z values over equal-width bins
type histogram struct {
	lo, hi  float64
	width   float64
	centers []float64
	counts  []float64
	total   float64
}

func newHistogram(z []float64, bins int, lo, hi float64) histogram {
	h := histogram{
		lo:      lo,
		hi:      hi,
		width:   (hi - lo) / float64(bins),
		centers: make([]float64, bins),
		counts:  make([]float64, bins),
	}
	for k := range h.centers {
		h.centers[k] = lo + (float64(k)+0.5)*h.width
	}
	for _, v := range z {
		k := int((v - lo) / h.width)
		if k < 0 {
			k = 0
		}
		if k >= bins {
			k = bins - 1
		}
		h.counts[k]++
		h.total++
	}
	return h
}

// mixtureDensity is Lindsey's estimate of the marginal z density: a Poisson
// regression of bin counts on a Legendre polynomial basis of the bin centre.
type mixtureDensity struct {
	lo, hi float64
	degree int
	scale  float64
	model  *glm.PoissonModel
}

func fitMixture(h histogram, degree, maxIter int) (*mixtureDensity, error) {
	if degree < 2 {
		return nil, fmt.Errorf("%w: density degree %d", core.ErrInsufficientData, degree)
	}
	d := &mixtureDensity{lo: h.lo, hi: h.hi, degree: degree, scale: 1 / (h.total * h.width)}
	design := mat.NewDense(len(h.centers), degree+1, nil)
	for k, x := range h.centers {
		design.SetRow(k, d.basis(x))
	}
	model, err := glm.FitPoisson(design, h.counts, glm.Options{MaxIter: maxIter})
	if err != nil {
		return nil, fmt.Errorf("lindsey fit: %w", err)
	}
	d.model = model
	return d, nil
}

// basis evaluates Legendre polynomials P0..Pdegree at x rescaled to [-1, 1]
func (d *mixtureDensity) basis(x float64) []float64 {
	u := 2*(x-d.lo)/(d.hi-d.lo) - 1
	u = math.Max(-1, math.Min(1, u))
	row := make([]float64, d.degree+1)
	row[0] = 1
	row[1] = u
	for k := 1; k < d.degree; k++ {
		row[k+1] = ((2*float64(k)+1)*u*row[k] - float64(k)*row[k-1]) / float64(k+1)
	}
	return row
}

// Converged reports whether the Poisson fit met its tolerance
func (d *mixtureDensity) Converged() bool { return d.model.Converged }

// At is the estimated density at z
func (d *mixtureDensity) At(z float64) float64 {
	row := mat.NewDense(1, d.degree+1, d.basis(z))
	return d.model.Mean(row)[0] * d.scale
}
