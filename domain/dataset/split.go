package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"genesift/domain/core"
)

// Split partitions sample indices into disjoint Train and Test sets.
// It is created once per run and shared by every candidate model.
type Split struct {
	Train       []int                 `json:"train"`
	Test        []int                 `json:"test"`
	Stratified  bool                  `json:"stratified"`
	Fingerprint core.SplitFingerprint `json:"fingerprint"`
}

// SplitConfig controls how the partition is drawn
type SplitConfig struct {
	TrainFraction float64
	Stratify      bool
}

const defaultTrainFraction = 0.7

// NewSplit draws a seeded partition of n samples. When cfg.Stratify is set the
// class proportions of labels are preserved in both halves.
func NewSplit(labels []int, cfg SplitConfig, rng *rand.Rand) (Split, error) {
	n := len(labels)
	frac := cfg.TrainFraction
	if frac <= 0 || frac >= 1 {
		frac = defaultTrainFraction
	}
	trainSize := int(math.Round(float64(n) * frac))
	if trainSize < 2 || n-trainSize < 2 {
		return Split{}, fmt.Errorf("%w: split of %d samples at %.2f leaves train=%d test=%d",
			core.ErrInsufficientData, n, frac, trainSize, n-trainSize)
	}

	var train, test []int
	if cfg.Stratify {
		train, test = stratifiedPartition(labels, frac, rng)
	} else {
		train, test = randomPartition(n, trainSize, rng)
	}
	sort.Ints(train)
	sort.Ints(test)

	return Split{
		Train:       train,
		Test:        test,
		Stratified:  cfg.Stratify,
		Fingerprint: core.ComputeSplitFingerprint(train, test),
	}, nil
}

func randomPartition(n, trainSize int, rng *rand.Rand) ([]int, []int) {
	idx := rng.Perm(n)
	train := append([]int(nil), idx[:trainSize]...)
	test := append([]int(nil), idx[trainSize:]...)
	return train, test
}

func stratifiedPartition(labels []int, frac float64, rng *rand.Rand) ([]int, []int) {
	strata := map[int][]int{}
	for i, y := range labels {
		strata[y] = append(strata[y], i)
	}

	var train, test []int
	// Fixed class order keeps the draw reproducible.
	for _, class := range []int{ClassNegative, ClassPositive} {
		members := strata[class]
		rng.Shuffle(len(members), func(i, j int) {
			members[i], members[j] = members[j], members[i]
		})
		k := int(math.Round(float64(len(members)) * frac))
		train = append(train, members[:k]...)
		test = append(test, members[k:]...)
	}
	return train, test
}
