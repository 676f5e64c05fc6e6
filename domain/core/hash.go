package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, enough for log lines
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// SplitFingerprint identifies a train/test partition independent of index order
type SplitFingerprint Hash

// String returns the string representation
func (h SplitFingerprint) String() string { return Hash(h).String() }

// ComputeSplitFingerprint hashes the sorted train and test index sets
func ComputeSplitFingerprint(train, test []int) SplitFingerprint {
	write := func(buf []byte, idx []int) []byte {
		sorted := append([]int(nil), idx...)
		sort.Ints(sorted)
		buf = binary.AppendUvarint(buf, uint64(len(sorted)))
		for _, i := range sorted {
			buf = binary.AppendUvarint(buf, uint64(i))
		}
		return buf
	}
	buf := write(nil, train)
	buf = write(buf, test)
	return SplitFingerprint(NewHash(buf))
}
