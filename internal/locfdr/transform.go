// Package locfdr estimates Efron's local false discovery rate from per-feature
// test statistics: z-transform, Lindsey's Poisson density fit, null matching.
package locfdr

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// maxZ bounds the transform when the t tail underflows
const maxZ = 37.5

// ZScore maps a t statistic with df degrees of freedom to the standard
// normal scale through its CDF. The smaller tail is used on each side so
// large |t| keep their precision.
func ZScore(t, df float64) float64 {
	if math.IsNaN(t) || math.IsNaN(df) || df <= 0 {
		return math.NaN()
	}
	if t == 0 {
		return 0
	}
	tail := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.CDF(-math.Abs(t))
	var z float64
	if tail <= 0 {
		z = maxZ
	} else {
		z = math.Min(-distuv.UnitNormal.Quantile(tail), maxZ)
	}
	if t < 0 {
		return -z
	}
	return z
}

// Transform applies ZScore element-wise
func Transform(ts, dfs []float64) []float64 {
	out := make([]float64, len(ts))
	for i := range ts {
		df := math.NaN()
		if i < len(dfs) {
			df = dfs[i]
		}
		out[i] = ZScore(ts[i], df)
	}
	return out
}
