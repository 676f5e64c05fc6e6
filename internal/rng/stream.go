// Package rng derives independent deterministic random streams from one run seed.
package rng

import (
	"math/rand"
)

// Streams implements ports.RNGPort
type Streams struct {
	seed int64
}

// New creates a stream source for a run
func New(seed int64) *Streams {
	return &Streams{seed: seed}
}

// Seed returns the base seed
func (s *Streams) Seed() int64 { return s.seed }

// Stream derives a generator for stageName by hashing the name into the base seed
func (s *Streams) Stream(stageName string) *rand.Rand {
	return rand.New(rand.NewSource(DeriveSeed(s.seed, stageName)))
}

// DeriveSeed mixes a stage name into a base seed with djb2
func DeriveSeed(base int64, stageName string) int64 {
	var hash uint64 = 5381
	for _, c := range stageName {
		hash = ((hash << 5) + hash) + uint64(c)
	}
	return base ^ int64(hash)
}
