package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"genesift/domain/core"
	"genesift/domain/dataset"
)

// ExpressionGeneratorConfig configures the synthetic expression generator
type ExpressionGeneratorConfig struct {
	Samples  int `json:"samples"`
	Features int `json:"features"`

	// SignalFeatures leading columns drive the label through their sum
	SignalFeatures int     `json:"signal_features"`
	SignalSD       float64 `json:"signal_sd"`
	NoiseSD        float64 `json:"noise_sd"`

	// Margin rejects samples whose signal sum lies within this distance of
	// the class boundary
	Margin float64 `json:"margin"`

	// FirstID is the sample identifier of the first row
	FirstID int64 `json:"first_id"`
	// ShuffleLabels emits the label table in a different row order than the matrix
	ShuffleLabels bool  `json:"shuffle_labels"`
	Seed          int64 `json:"seed"`
}

// DefaultExpressionConfig returns 100 samples, 20 features and 2 signal features
func DefaultExpressionConfig() ExpressionGeneratorConfig {
	return ExpressionGeneratorConfig{
		Samples:        100,
		Features:       20,
		SignalFeatures: 2,
		SignalSD:       3,
		NoiseSD:        1,
		Margin:         0.5,
		FirstID:        1001,
		ShuffleLabels:  true,
		Seed:           42,
	}
}

// ExpressionGenerator draws labelled synthetic expression tables
type ExpressionGenerator struct {
	config ExpressionGeneratorConfig
	rng    *rand.Rand
}

// NewExpressionGenerator creates a generator seeded from the config
func NewExpressionGenerator(config ExpressionGeneratorConfig) *ExpressionGenerator {
	return &ExpressionGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate returns a matrix table and a label table sharing sample identifiers
func (g *ExpressionGenerator) Generate() (dataset.RawMatrix, dataset.RawLabels, error) {
	c := g.config
	if c.Samples < 4 || c.Features < 1 {
		return dataset.RawMatrix{}, dataset.RawLabels{}, fmt.Errorf("%w: %d samples x %d features", core.ErrInsufficientData, c.Samples, c.Features)
	}
	if c.SignalFeatures > c.Features {
		return dataset.RawMatrix{}, dataset.RawLabels{}, core.NewValidationError("signal_features", "exceeds feature count")
	}

	m := dataset.RawMatrix{
		SampleIDs: make([]int64, c.Samples),
		Features:  FeatureNames(c.Features),
		Rows:      make([][]float64, c.Samples),
	}
	status := make([]int, c.Samples)
	for i := 0; i < c.Samples; i++ {
		m.SampleIDs[i] = c.FirstID + int64(i)
		m.Rows[i], status[i] = g.sample()
	}

	labels := dataset.RawLabels{SampleIDs: make([]int64, c.Samples), Status: make([]int, c.Samples)}
	order := make([]int, c.Samples)
	for i := range order {
		order[i] = i
	}
	if c.ShuffleLabels {
		order = g.rng.Perm(c.Samples)
	}
	for k, i := range order {
		labels.SampleIDs[k] = m.SampleIDs[i]
		labels.Status[k] = status[i]
	}
	return m, labels, nil
}

// sample draws one row; the label is 1 when the signal sum is positive
func (g *ExpressionGenerator) sample() ([]float64, int) {
	c := g.config
	row := make([]float64, c.Features)
	for {
		sum := 0.0
		for j := range row {
			if j < c.SignalFeatures {
				row[j] = c.SignalSD * g.rng.NormFloat64()
				sum += row[j]
			} else {
				row[j] = c.NoiseSD * g.rng.NormFloat64()
			}
		}
		if c.SignalFeatures == 0 {
			return row, g.rng.Intn(2)
		}
		if math.Abs(sum) < c.Margin {
			continue
		}
		if sum > 0 {
			return row, dataset.ClassPositive
		}
		return row, dataset.ClassNegative
	}
}

// FeatureNames returns gene_001, gene_002, ...
func FeatureNames(p int) []core.FeatureKey {
	out := make([]core.FeatureKey, p)
	for j := range out {
		out[j] = core.FeatureKey(fmt.Sprintf("gene_%03d", j+1))
	}
	return out
}

// Bundle generates and aligns a dataset in one step
func (g *ExpressionGenerator) Bundle() (*dataset.Bundle, error) {
	m, l, err := g.Generate()
	if err != nil {
		return nil, err
	}
	return dataset.Align(m, l)
}
