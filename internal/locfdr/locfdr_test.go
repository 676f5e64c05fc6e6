package locfdr

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"genesift/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZScore(t *testing.T) {
	assert.Equal(t, 0.0, ZScore(0, 5))
	assert.True(t, math.IsNaN(ZScore(math.NaN(), 5)))
	assert.True(t, math.IsNaN(ZScore(1, 0)))

	// heavy tails shrink towards zero on the normal scale
	z := ZScore(2, 5)
	assert.Greater(t, z, 0.0)
	assert.Less(t, z, 2.0)
	assert.InDelta(t, -z, ZScore(-2, 5), 1e-12)

	// large df approaches the identity
	assert.InDelta(t, 2.0, ZScore(2, 1e6), 1e-3)

	// extreme statistics stay finite and ordered
	big := ZScore(50, 5)
	assert.False(t, math.IsInf(big, 0))
	assert.Greater(t, big, 4.0)
	assert.LessOrEqual(t, ZScore(1e300, 3), maxZ)
}

func TestTransform(t *testing.T) {
	z := Transform([]float64{1, -1, 3}, []float64{10, 10})
	require.Len(t, z, 3)
	assert.InDelta(t, -z[0], z[1], 1e-12)
	assert.True(t, math.IsNaN(z[2]))
}

func mixture(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	z := make([]float64, n)
	for i := range z {
		if i%10 == 0 {
			z[i] = 3 + rng.NormFloat64()
		} else {
			z[i] = rng.NormFloat64()
		}
	}
	return z
}

func TestEstimate_EstimatedNull(t *testing.T) {
	z := append(mixture(1, 5000), 0, 4, math.NaN())
	res, err := NewEstimator(Options{}).Estimate(z)
	require.NoError(t, err)
	require.Len(t, res.FDR, len(z))

	t.Logf("null %+v lower %.3f upper %.3f", res.Null, res.Lower, res.Upper)
	assert.Equal(t, NullEstimated, res.Null.Method)
	assert.InDelta(t, 0, res.Null.Delta, 0.25)
	assert.InDelta(t, 1, res.Null.Sigma, 0.2)
	assert.GreaterOrEqual(t, res.Null.P0, 0.8)
	assert.LessOrEqual(t, res.Null.P0, 1.0)
	assert.Empty(t, res.Warnings)

	n := len(z)
	assert.Greater(t, res.FDR[n-3], 0.9)
	assert.Less(t, res.FDR[n-2], 0.1)
	assert.True(t, math.IsNaN(res.FDR[n-1]))
	for _, v := range res.FDR[:n-1] {
		assert.True(t, v >= 0 && v <= 1)
	}

	assert.Greater(t, res.Upper, 2.0)
	assert.Less(t, res.Upper, 3.3)
}

func TestEstimate_TheoreticalNull(t *testing.T) {
	z := append(mixture(2, 5000), 4)
	res, err := NewEstimator(Options{Null: NullTheoretical}).Estimate(z)
	require.NoError(t, err)

	assert.Equal(t, NullTheoretical, res.Null.Method)
	assert.Equal(t, 0.0, res.Null.Delta)
	assert.Equal(t, 1.0, res.Null.Sigma)
	assert.GreaterOrEqual(t, res.Null.P0, 0.8)
	assert.LessOrEqual(t, res.Null.P0, 1.0)
	assert.Less(t, res.FDR[len(z)-1], 0.1)
}

func TestEstimate_NullOnly(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	z := make([]float64, 3000)
	for i := range z {
		z[i] = rng.NormFloat64()
	}
	res, err := NewEstimator(Options{}).Estimate(z)
	require.NoError(t, err)
	assert.Greater(t, res.Null.P0, 0.9)

	fdr := append([]float64(nil), res.FDR...)
	sort.Float64s(fdr)
	assert.Greater(t, fdr[len(fdr)/2], 0.9)
}

func TestEstimate_WarnsWhenDensityFitStops(t *testing.T) {
	z := mixture(5, 3000)
	res, err := NewEstimator(Options{DensityIter: 1}).Estimate(z)
	require.NoError(t, err)
	assert.Contains(t, res.Warnings, "Lindsey density fit did not converge in 1 iterations")

	res, err = NewEstimator(Options{}).Estimate(z)
	require.NoError(t, err)
	for _, w := range res.Warnings {
		assert.NotContains(t, w, "Lindsey")
	}
}

func TestMixtureDensityIntegratesToOne(t *testing.T) {
	z := mixture(6, 4000)
	h := newHistogram(z, DefaultBins, -6, 8)
	f, err := fitMixture(h, DefaultDegree, DefaultDensityIter)
	require.NoError(t, err)
	assert.True(t, f.Converged())

	mass := 0.0
	for _, c := range h.centers {
		mass += f.At(c) * h.width
	}
	assert.InDelta(t, 1.0, mass, 0.05)
}

func TestEstimate_InsufficientData(t *testing.T) {
	e := NewEstimator(Options{})

	_, err := e.Estimate([]float64{1, 2, math.NaN()})
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	flat := make([]float64, 50)
	_, err = e.Estimate(flat)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestParseNullMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    NullMethod
		wantErr bool
	}{
		{"estimated", NullEstimated, false},
		{"theoretical", NullTheoretical, false},
		{"", NullEstimated, false},
		{"bayes", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNullMethod(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHistogramClipsToEdgeBins(t *testing.T) {
	h := newHistogram([]float64{-100, 0.1, 0.9, 100}, 4, 0, 1)
	assert.Equal(t, []float64{2, 0, 0, 2}, h.counts)
	assert.Equal(t, 4.0, h.total)
	assert.InDelta(t, 0.125, h.centers[0], 1e-12)
}

func TestLegendreBasis(t *testing.T) {
	d := &mixtureDensity{lo: -1, hi: 1, degree: 3}
	row := d.basis(0.5)
	assert.InDelta(t, 1.0, row[0], 1e-12)
	assert.InDelta(t, 0.5, row[1], 1e-12)
	assert.InDelta(t, (3*0.25-1)/2, row[2], 1e-12)
	assert.InDelta(t, (5*0.125-3*0.5)/2, row[3], 1e-12)
}
