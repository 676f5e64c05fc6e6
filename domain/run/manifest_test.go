package run

import (
	"testing"

	"genesift/domain/core"
)

func TestRunFingerprint_Deterministic(t *testing.T) {
	// same inputs produce identical fingerprints
	data := core.Hash("data")
	split := core.SplitFingerprint("split")
	cfg := core.Hash("config")
	seed := int64(42)
	codeVersion := "1.0.0"

	fp1 := NewRunFingerprint(data, split, cfg, seed, codeVersion)
	fp2 := NewRunFingerprint(data, split, cfg, seed, codeVersion)

	if fp1.Fingerprint != fp2.Fingerprint {
		t.Errorf("Fingerprints not identical: %s vs %s", fp1.Fingerprint, fp2.Fingerprint)
	}
	if fp1.DataFingerprint != data {
		t.Errorf("DataFingerprint mismatch: %s vs %s", fp1.DataFingerprint, data)
	}
	if fp1.SplitFingerprint != split {
		t.Errorf("SplitFingerprint mismatch: %s vs %s", fp1.SplitFingerprint, split)
	}
	if fp1.Seed != seed {
		t.Errorf("Seed mismatch: %d vs %d", fp1.Seed, seed)
	}
	if fp1.CodeVersion != codeVersion {
		t.Errorf("CodeVersion mismatch: %s vs %s", fp1.CodeVersion, codeVersion)
	}
}

func TestRunFingerprint_Unique(t *testing.T) {
	base := NewRunFingerprint("data", "split", "config", 42, "1.0.0")

	testCases := []struct {
		name string
		fp   RunFingerprint
	}{
		{"different data", NewRunFingerprint("other", "split", "config", 42, "1.0.0")},
		{"different split", NewRunFingerprint("data", "other", "config", 42, "1.0.0")},
		{"different config", NewRunFingerprint("data", "split", "other", 42, "1.0.0")},
		{"different seed", NewRunFingerprint("data", "split", "config", 43, "1.0.0")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.fp.Fingerprint == base.Fingerprint {
				t.Errorf("Fingerprint should be different for %s", tc.name)
			}
		})
	}
}

func TestRunManifest_Validate(t *testing.T) {
	runID := core.NewRunID()
	stages := []StageName{StageDifferentialExpression, StageClassification}

	manifest := NewRunManifest(runID, stages, "data", "split", "config", 42, "1.0.0")
	if err := manifest.Validate(); err != nil {
		t.Errorf("Manifest validation failed: %v", err)
	}
	if !manifest.HasStage(StageClassification) {
		t.Errorf("classification stage not recorded")
	}
	if manifest.Fingerprint.Fingerprint == "" {
		t.Errorf("Fingerprint not computed")
	}

	deOnly := NewRunManifest(runID, stages[:1], "data", "", "config", 42, "1.0.0")
	if err := deOnly.Validate(); err != nil {
		t.Errorf("DE-only manifest should not need a split: %v", err)
	}

	noSplit := NewRunManifest(runID, stages, "data", "", "config", 42, "1.0.0")
	if err := noSplit.Validate(); err == nil {
		t.Errorf("classification manifest without split should fail validation")
	}

	noStages := NewRunManifest(runID, nil, "data", "", "config", 42, "1.0.0")
	if err := noStages.Validate(); err == nil {
		t.Errorf("manifest without stages should fail validation")
	}
}
