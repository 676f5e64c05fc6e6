// Package preprocess centers and standardizes feature columns using statistics
// learned on training rows only.
package preprocess

import (
	"fmt"

	"genesift/domain/core"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// Scaler stores per-column location and scale from a training matrix
type Scaler struct {
	Means  []float64
	Scales []float64

	// Constant lists columns with zero training variance; they transform to 0
	Constant []int
}

// FitCenter learns column means only (scales are 1)
func FitCenter(x mat.Matrix) (*Scaler, error) {
	return fit(x, false)
}

// FitStandardize learns column means and population standard deviations
func FitStandardize(x mat.Matrix) (*Scaler, error) {
	return fit(x, true)
}

func fit(x mat.Matrix, scale bool) (*Scaler, error) {
	r, c := x.Dims()
	if r < 2 {
		return nil, fmt.Errorf("%w: cannot learn column statistics from %d rows", core.ErrInsufficientData, r)
	}
	s := &Scaler{Means: make([]float64, c), Scales: make([]float64, c)}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean, err := stats.Mean(col)
		if err != nil {
			return nil, fmt.Errorf("column %d mean: %w", j, err)
		}
		s.Means[j] = mean
		s.Scales[j] = 1
		if !scale {
			continue
		}
		sd, err := stats.StandardDeviationPopulation(col)
		if err != nil {
			return nil, fmt.Errorf("column %d sd: %w", j, err)
		}
		if sd <= 1e-12*(1+abs(mean)) {
			s.Constant = append(s.Constant, j)
			s.Scales[j] = 0
			continue
		}
		s.Scales[j] = sd
	}
	return s, nil
}

// Transform returns (x - mean) / scale with training statistics; constant
// columns become zero.
func (s *Scaler) Transform(x mat.Matrix) (*mat.Dense, error) {
	r, c := x.Dims()
	if c != len(s.Means) {
		return nil, core.NewDimensionError("scaler columns", len(s.Means), c)
	}
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if s.Scales[j] == 0 {
				continue
			}
			out.Set(i, j, (x.At(i, j)-s.Means[j])/s.Scales[j])
		}
	}
	return out, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
