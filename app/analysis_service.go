// Package app wires the statistical stages into one reproducible analysis run.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"genesift/domain/core"
	"genesift/domain/dataset"
	"genesift/domain/report"
	"genesift/domain/run"
	apperrors "genesift/internal/errors"
	"genesift/ports"
)

// AnalysisService runs differential expression and classification over one
// aligned dataset and hands the report to its sinks
type AnalysisService struct {
	reader ports.DatasetReader
	sinks  []ports.ReportSink
}

// AnalysisRequest names the input tables and the stages to run.
// No stages means both.
type AnalysisRequest struct {
	MatrixPath string
	LabelsPath string
	Stages     []run.StageName
}

// NewAnalysisService creates a service. reader may be nil when only Analyze is used.
func NewAnalysisService(reader ports.DatasetReader, sinks ...ports.ReportSink) *AnalysisService {
	return &AnalysisService{reader: reader, sinks: sinks}
}

// AllStages is the default stage list
func AllStages() []run.StageName {
	return []run.StageName{run.StageDifferentialExpression, run.StageClassification}
}

// Run reads and aligns the inputs, analyzes them and saves the report.
// A sink failure is returned together with the finished report.
func (s *AnalysisService) Run(ctx context.Context, rc *RunContext, req AnalysisRequest) (*report.AnalysisReport, error) {
	if s.reader == nil {
		return nil, apperrors.New(apperrors.CodeInternalError, "analysis service has no dataset reader")
	}
	raw, err := s.reader.ReadMatrix(ctx, req.MatrixPath)
	if err != nil {
		return nil, apperrors.Wrapf(err, "read expression matrix %s", req.MatrixPath)
	}
	labels, err := s.reader.ReadLabels(ctx, req.LabelsPath, rc.Config.StatusColumn)
	if err != nil {
		return nil, apperrors.Wrapf(err, "read labels %s", req.LabelsPath)
	}
	bundle, err := dataset.Align(raw, labels)
	if err != nil {
		return nil, apperrors.Wrap(err, "align inputs")
	}
	rc.Logger.Info("inputs aligned",
		"samples", bundle.Samples(),
		"features", bundle.NumFeatures(),
		"fingerprint", bundle.Fingerprint.Short())

	rep, err := s.Analyze(ctx, rc, bundle, req.Stages)
	if err != nil {
		return nil, err
	}
	return rep, s.Save(ctx, rc, rep)
}

// Analyze runs the requested stages on an aligned bundle
func (s *AnalysisService) Analyze(ctx context.Context, rc *RunContext, b *dataset.Bundle, stages []run.StageName) (*report.AnalysisReport, error) {
	start := time.Now()
	if len(stages) == 0 {
		stages = AllStages()
	}
	neg, pos := b.Labels.Counts()
	rep := &report.AnalysisReport{
		Samples:   b.Samples(),
		Features:  b.NumFeatures(),
		Negatives: neg,
		Positives: pos,
	}

	var split core.SplitFingerprint
	for _, stage := range stages {
		switch stage {
		case run.StageDifferentialExpression:
			de, err := s.DifferentialExpression(ctx, rc, b)
			if err != nil {
				return nil, apperrors.Wrap(err, "differential expression")
			}
			rep.DE = de
		case run.StageClassification:
			cr, err := s.Classify(ctx, rc, b)
			if err != nil {
				return nil, apperrors.Wrap(err, "classification")
			}
			rep.Classifier = cr
			split = cr.Split.Fingerprint
		default:
			return nil, apperrors.InvalidInput(fmt.Sprintf("unknown stage %q", stage))
		}
	}

	rep.Manifest = run.NewRunManifest(rc.RunID, stages, b.Fingerprint, split, rc.ConfigHash(), rc.Seed, CodeVersion)
	if err := rep.Manifest.Validate(); err != nil {
		return nil, apperrors.Wrap(err, "run manifest")
	}
	rep.RuntimeMs = time.Since(start).Milliseconds()
	rc.Logger.Info("analysis complete", "runtime_ms", rep.RuntimeMs, "fingerprint", rep.Manifest.Fingerprint.Fingerprint.Short())
	return rep, nil
}

// Save hands rep to every sink. All sinks are tried; failures are joined.
func (s *AnalysisService) Save(ctx context.Context, rc *RunContext, rep *report.AnalysisReport) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Save(ctx, rep); err != nil {
			rc.Logger.Error("report sink failed", "sink", sink.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		rc.Logger.Info("report saved", "sink", sink.Name())
	}
	if len(errs) > 0 {
		return apperrors.StorageError("saving report", errors.Join(errs...))
	}
	return nil
}
