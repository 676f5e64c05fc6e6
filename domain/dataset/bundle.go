package dataset

import (
	"encoding/binary"
	"math"

	"genesift/domain/core"
)

// Bundle is the aligned matrix + label pair every stage consumes.
// Row i of Matrix and element i of Labels refer to the same sample.
type Bundle struct {
	Matrix *FeatureMatrix
	Labels *LabelVector

	// Fingerprint hashes ids, labels and values for replayability
	Fingerprint core.Hash
}

// Samples returns the number of aligned samples
func (b *Bundle) Samples() int { return b.Matrix.Samples() }

// NumFeatures returns the number of features
func (b *Bundle) NumFeatures() int { return b.Matrix.NumFeatures() }

func fingerprint(m *FeatureMatrix, l *LabelVector) core.Hash {
	n, p := m.Dims()
	buf := make([]byte, 0, 16+n*(16+8*p))
	buf = binary.AppendUvarint(buf, uint64(n))
	buf = binary.AppendUvarint(buf, uint64(p))
	for j := 0; j < p; j++ {
		buf = append(buf, string(m.Feature(j))...)
		buf = append(buf, 0)
	}
	for i := 0; i < n; i++ {
		buf = binary.AppendVarint(buf, m.SampleID(i))
		buf = binary.AppendUvarint(buf, uint64(l.At(i)))
		for j := 0; j < p; j++ {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(m.At(i, j)))
		}
	}
	return core.NewHash(buf)
}
