package hypothesis

import (
	"math"
	"sort"
)

// Correction summarizes BH-adjusted discoveries at one FDR level
type Correction struct {
	QValues []float64 `json:"q_values"`
	Alpha   float64   `json:"alpha"`

	// Significant counts features with q < Alpha
	Significant int `json:"significant"`

	// ExpectedFalseDiscoveries is Significant * Alpha
	ExpectedFalseDiscoveries float64 `json:"expected_false_discoveries"`
}

// BenjaminiHochberg returns step-up adjusted q-values in the input order.
// NaN p-values stay NaN and do not count toward the number of tests m.
func BenjaminiHochberg(pvalues []float64) []float64 {
	q := make([]float64, len(pvalues))
	order := make([]int, 0, len(pvalues))
	for i, p := range pvalues {
		if math.IsNaN(p) {
			q[i] = math.NaN()
			continue
		}
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool { return pvalues[order[a]] < pvalues[order[b]] })

	m := float64(len(order))
	running := 1.0
	for rank := len(order); rank >= 1; rank-- {
		i := order[rank-1]
		// m/rank >= 1 keeps the rounded product at or above p
		adj := pvalues[i] * (m / float64(rank))
		if adj < running {
			running = adj
		}
		q[i] = running
	}
	return q
}

// Correct adjusts pvalues and counts discoveries at alpha
func Correct(pvalues []float64, alpha float64) Correction {
	q := BenjaminiHochberg(pvalues)
	count := 0
	for _, v := range q {
		if v < alpha {
			count++
		}
	}
	return Correction{
		QValues:                  q,
		Alpha:                    alpha,
		Significant:              count,
		ExpectedFalseDiscoveries: float64(count) * alpha,
	}
}
