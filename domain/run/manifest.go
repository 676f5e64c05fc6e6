package run

import (
	"time"

	"genesift/domain/core"
)

// RunManifest records everything needed to replay an analysis run
type RunManifest struct {
	RunID       core.RunID     `json:"run_id"`
	Stages      []StageName    `json:"stages"`
	Seed        int64          `json:"seed"`
	CodeVersion string         `json:"code_version"`
	Fingerprint RunFingerprint `json:"fingerprint"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewRunManifest creates a manifest. The split fingerprint is empty for runs
// without a classification stage.
func NewRunManifest(
	runID core.RunID,
	stages []StageName,
	data core.Hash,
	split core.SplitFingerprint,
	configHash core.Hash,
	seed int64,
	codeVersion string,
) *RunManifest {
	return &RunManifest{
		RunID:       runID,
		Stages:      append([]StageName(nil), stages...),
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: NewRunFingerprint(data, split, configHash, seed, codeVersion),
		CreatedAt:   time.Now().UTC(),
	}
}

// HasStage reports whether the run executed the named stage
func (r *RunManifest) HasStage(name StageName) bool {
	for _, s := range r.Stages {
		if s == name {
			return true
		}
	}
	return false
}

// Validate checks if the manifest is complete
func (r *RunManifest) Validate() error {
	if core.ID(r.RunID).IsEmpty() {
		return core.NewValidationError("run_manifest", "run_id cannot be empty")
	}
	if len(r.Stages) == 0 {
		return core.NewValidationError("run_manifest", "at least one stage is required")
	}
	if r.Fingerprint.DataFingerprint.IsEmpty() {
		return core.NewValidationError("run_manifest", "data fingerprint cannot be empty")
	}
	if r.HasStage(StageClassification) && core.Hash(r.Fingerprint.SplitFingerprint).IsEmpty() {
		return core.NewValidationError("run_manifest", "classification runs need a split fingerprint")
	}
	if r.CodeVersion == "" {
		return core.NewValidationError("run_manifest", "code_version cannot be empty")
	}
	return nil
}
