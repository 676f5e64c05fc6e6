package ports

import (
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// Stream returns a generator for a named stage. The same seed and name always
	// produce the same sequence, independent of the order stages are requested.
	Stream(stageName string) *rand.Rand

	// Seed returns the base seed the streams derive from
	Seed() int64
}
