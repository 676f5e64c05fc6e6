// Package hypothesis runs one Welch two-sample t-test per feature and applies
// Benjamini-Hochberg correction to the resulting p-values.
package hypothesis

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// WelchResult is one two-sample comparison
type WelchResult struct {
	T      float64
	DF     float64
	PValue float64
	Mean0  float64
	Mean1  float64
	Valid  bool
}

// Welch compares group1 against group0 without assuming equal variances.
// t = (mean1 - mean0) / sqrt(s1²/n1 + s0²/n0), df by Welch-Satterthwaite, two-sided p.
// Groups with fewer than two values or zero pooled standard error are invalid.
func Welch(group0, group1 []float64) WelchResult {
	res := WelchResult{T: math.NaN(), DF: math.NaN(), PValue: math.NaN(), Mean0: math.NaN(), Mean1: math.NaN()}
	n0, n1 := float64(len(group0)), float64(len(group1))
	if n0 < 2 || n1 < 2 {
		return res
	}

	mean0, var0 := stat.MeanVariance(group0, nil)
	mean1, var1 := stat.MeanVariance(group1, nil)
	res.Mean0, res.Mean1 = mean0, mean1

	a, b := var1/n1, var0/n0
	se := math.Sqrt(a + b)
	if se == 0 || math.IsNaN(se) {
		return res
	}

	t := (mean1 - mean0) / se
	df := (a + b) * (a + b) / (a*a/(n1-1) + b*b/(n0-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.CDF(-math.Abs(t))
	if p > 1 {
		p = 1
	}

	res.T, res.DF, res.PValue, res.Valid = t, df, p, true
	return res
}
