package run

import (
	"crypto/sha256"
	"fmt"

	"genesift/domain/core"
)

// StageName identifies a pipeline stage
type StageName string

const (
	StageDifferentialExpression StageName = "differential_expression"
	StageClassification         StageName = "classification"
)

// RunFingerprint ensures deterministic replay
type RunFingerprint struct {
	DataFingerprint  core.Hash             `json:"data_fingerprint"`
	SplitFingerprint core.SplitFingerprint `json:"split_fingerprint"`
	ConfigHash       core.Hash             `json:"config_hash"`
	Seed             int64                 `json:"seed"`
	CodeVersion      string                `json:"code_version"`
	Fingerprint      core.Hash             `json:"fingerprint"` // Hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(data core.Hash, split core.SplitFingerprint, configHash core.Hash, seed int64, codeVersion string) RunFingerprint {
	return RunFingerprint{
		DataFingerprint:  data,
		SplitFingerprint: split,
		ConfigHash:       configHash,
		Seed:             seed,
		CodeVersion:      codeVersion,
		Fingerprint:      computeRunFingerprint(data, split, configHash, seed, codeVersion),
	}
}

// computeRunFingerprint generates deterministic hash from all determinism parameters
func computeRunFingerprint(data core.Hash, split core.SplitFingerprint, configHash core.Hash, seed int64, codeVersion string) core.Hash {
	s := fmt.Sprintf("data:%s|split:%s|config:%s|seed:%d|code:%s",
		data, split, configHash, seed, codeVersion)
	hash := sha256.Sum256([]byte(s))
	return core.Hash(fmt.Sprintf("%x", hash))
}
