// Package crossval partitions a training set into k folds and averages a
// caller-supplied cost over held-out folds. Lower cost is better.
package crossval

import (
	"fmt"
	"math/rand"
	"sort"

	"genesift/domain/core"
)

// Fold holds positions (0..n-1) into the training set being cross-validated
type Fold struct {
	Index int
	Train []int
	Test  []int
}

// Partition shuffles 0..n-1 and deals positions round-robin into k folds, so
// fold sizes differ by at most one. Labels play no part.
func Partition(n, k int, rng *rand.Rand) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: need at least 2 folds, got %d", core.ErrInsufficientData, k)
	}
	if n < k {
		return nil, fmt.Errorf("%w: %d samples cannot fill %d folds", core.ErrInsufficientData, n, k)
	}

	perm := rng.Perm(n)
	assign := make([]int, n)
	for r, pos := range perm {
		assign[pos] = r % k
	}

	folds := make([]Fold, k)
	for f := range folds {
		folds[f].Index = f
	}
	for pos := 0; pos < n; pos++ {
		f := assign[pos]
		folds[f].Test = append(folds[f].Test, pos)
		for g := range folds {
			if g != f {
				folds[g].Train = append(folds[g].Train, pos)
			}
		}
	}
	for f := range folds {
		sort.Ints(folds[f].Test)
	}
	return folds, nil
}
