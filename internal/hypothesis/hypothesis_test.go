package hypothesis

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"testing"

	"genesift/domain/core"
	"genesift/domain/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestWelch_KnownValues(t *testing.T) {
	// Reference: R t.test(b, a) with a = 1..5, b = c(2, 4, 6, 8, 10)
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 4, 6, 8, 10}
	w := Welch(a, b)
	require.True(t, w.Valid)
	assert.InDelta(t, 1.8973666, w.T, 1e-6)
	assert.InDelta(t, 5.8823529, w.DF, 1e-6)
	assert.InDelta(t, 0.1075, w.PValue, 5e-4)
	assert.Equal(t, 3.0, w.Mean0)
	assert.Equal(t, 6.0, w.Mean1)
}

func TestWelch_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		g0, g1 []float64
	}{
		{"too few in group 0", []float64{1}, []float64{1, 2, 3}},
		{"too few in group 1", []float64{1, 2}, nil},
		{"zero variance", []float64{2, 2, 2}, []float64{2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Welch(tt.g0, tt.g1)
			assert.False(t, w.Valid)
			assert.True(t, math.IsNaN(w.PValue))
		})
	}
}

func TestEngine_RunPreservesColumnOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	n, p := 40, 600
	data := mat.NewDense(n, p, nil)
	ids := make([]int64, n)
	status := make([]int, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(i + 1)
		status[i] = i % 2
		for j := 0; j < p; j++ {
			v := rng.NormFloat64()
			if j%100 == 0 && status[i] == 1 {
				v += 3
			}
			data.Set(i, j, v)
		}
	}
	for i := 0; i < n; i++ {
		data.Set(i, p-1, 1)
	}
	features := make([]core.FeatureKey, p)
	for j := range features {
		features[j] = core.FeatureKey("g" + string(rune('a'+j%26)))
	}

	m, err := dataset.NewFeatureMatrix(ids, features, data)
	require.NoError(t, err)
	labels, err := dataset.NewLabelVector(ids, status)
	require.NoError(t, err)

	engine := NewEngine(4, nil)
	engine.chunkSize = 37
	records, err := engine.Run(context.Background(), m, labels)
	require.NoError(t, err)
	require.Len(t, records, p)

	col := make([]float64, n)
	for _, j := range []int{0, 1, 100, 333, 599} {
		m.Column(col, j)
		var g0, g1 []float64
		for i, v := range col {
			if status[i] == 1 {
				g1 = append(g1, v)
			} else {
				g0 = append(g0, v)
			}
		}
		want := Welch(g0, g1)
		if want.Valid {
			assert.Equal(t, want.T, records[j].TStatistic, "feature %d", j)
			assert.Equal(t, want.PValue, records[j].PValue, "feature %d", j)
		}
		assert.Equal(t, features[j], records[j].Feature)
	}
	assert.False(t, records[p-1].Valid)
	for j := 0; j < p-1; j += 100 {
		assert.Less(t, records[j].PValue, 1e-4, "planted feature %d", j)
		assert.Greater(t, records[j].TStatistic, 0.0)
	}
}

func TestEngine_DimensionMismatch(t *testing.T) {
	m, err := dataset.NewFeatureMatrix([]int64{1, 2}, []core.FeatureKey{"a"}, mat.NewDense(2, 1, []float64{1, 2}))
	require.NoError(t, err)
	l, err := dataset.NewLabelVector([]int64{1}, []int{0})
	require.NoError(t, err)
	_, err = NewEngine(1, nil).Run(context.Background(), m, l)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestBenjaminiHochberg_KnownValues(t *testing.T) {
	// Reference: R p.adjust(p, "BH")
	p := []float64{0.01, 0.04, 0.03, 0.005, 0.2}
	q := BenjaminiHochberg(p)
	want := []float64{0.025, 0.05, 0.05, 0.025, 0.2}
	for i := range want {
		assert.InDelta(t, want[i], q[i], 1e-12, "index %d", i)
	}
}

func TestBenjaminiHochberg_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	for trial := 0; trial < 20; trial++ {
		m := 1 + rng.Intn(300)
		p := make([]float64, m)
		for i := range p {
			p[i] = rng.Float64()
			if i%7 == 0 {
				p[i] *= 1e-3
			}
		}
		q := BenjaminiHochberg(p)

		order := make([]int, m)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return p[order[a]] < p[order[b]] })
		for k := 0; k < m; k++ {
			i := order[k]
			assert.GreaterOrEqual(t, q[i], p[i])
			assert.LessOrEqual(t, q[i], 1.0)
			if k > 0 {
				assert.GreaterOrEqual(t, q[i], q[order[k-1]])
			}
		}
	}
}

func TestBenjaminiHochberg_NeverBelowP(t *testing.T) {
	// the largest p of a short vector has rank m, where p*m/m can round down
	q := BenjaminiHochberg([]float64{0.6046, 0.9405090880450124, 0.6645})
	assert.GreaterOrEqual(t, q[1], 0.9405090880450124)

	rng := rand.New(rand.NewSource(31))
	for trial := 0; trial < 100000; trial++ {
		p := []float64{rng.Float64(), rng.Float64(), rng.Float64()}
		q := BenjaminiHochberg(p)
		for i := range p {
			if q[i] < p[i] {
				t.Fatalf("trial %d: q[%d] = %v below p = %v", trial, i, q[i], p[i])
			}
		}
	}
}

func TestBenjaminiHochberg_NaNExcluded(t *testing.T) {
	q := BenjaminiHochberg([]float64{0.01, math.NaN(), 0.02})
	assert.True(t, math.IsNaN(q[1]))
	assert.InDelta(t, 0.02, q[0], 1e-12)
	assert.InDelta(t, 0.02, q[2], 1e-12)
}

func TestCorrect(t *testing.T) {
	c := Correct([]float64{0.001, 0.002, 0.5, 0.04}, 0.05)
	assert.Equal(t, 2, c.Significant)
	assert.InDelta(t, 0.1, c.ExpectedFalseDiscoveries, 1e-12)
}
