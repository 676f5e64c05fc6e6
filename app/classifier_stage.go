package app

import (
	"context"
	"fmt"

	"genesift/domain/core"
	"genesift/domain/dataset"
	"genesift/domain/model"
	"genesift/domain/report"
	"genesift/internal/classifier"
	"genesift/internal/selection"

	"golang.org/x/sync/errgroup"
)

// Classify draws one train/test split, tunes every candidate classifier on
// the train rows concurrently and picks the winner on the test rows.
// A candidate that fails numerically is reported under Failures and the
// others still compete.
func (s *AnalysisService) Classify(ctx context.Context, rc *RunContext, b *dataset.Bundle) (*report.ClassifierReport, error) {
	cfg := rc.Config
	logger := rc.Logger.With("stage", "classification")

	split, err := dataset.NewSplit(b.Labels.Values(), dataset.SplitConfig{
		TrainFraction: cfg.TrainFraction,
		Stratify:      cfg.Stratify,
	}, rc.RNG.Stream("split"))
	if err != nil {
		return nil, fmt.Errorf("train/test split: %w", err)
	}
	logger.Info("split drawn", "train", len(split.Train), "test", len(split.Test), "fingerprint", core.Hash(split.Fingerprint).Short())

	set := classifier.TrainingSet{
		X:        b.Matrix.Rows(split.Train),
		Y:        b.Labels.Subset(split.Train),
		Features: b.Matrix.Features(),
	}
	tcfg := classifier.Config{
		Folds:       cfg.Folds,
		Workers:     cfg.Workers,
		AUCGrid:     cfg.AUCGrid,
		NLambda:     cfg.NLambda,
		LambdaRatio: cfg.LambdaRatio,
		MaxRank:     cfg.PCRMaxRank,
		Logger:      logger,
	}
	trainers := []classifier.Trainer{
		classifier.NewLasso(tcfg),
		classifier.NewRidge(tcfg),
		classifier.NewPCR(tcfg),
	}

	cr := &report.ClassifierReport{
		Split: report.SplitSummary{
			Fingerprint: split.Fingerprint,
			Train:       len(split.Train),
			Test:        len(split.Test),
			Stratified:  split.Stratified,
		},
		Failures: make(map[model.Kind]string),
	}

	fitted := make([]*model.CandidateModel, len(trainers))
	failed := make([]error, len(trainers))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range trainers {
		stream := rc.RNG.Stream("folds/" + string(t.Kind()))
		g.Go(func() error {
			cand, err := t.Train(gctx, set, stream)
			if err != nil {
				if core.IsNumericalError(err) {
					failed[i] = err
					return nil
				}
				return fmt.Errorf("%s: %w", t.Kind(), err)
			}
			fitted[i] = cand
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, t := range trainers {
		if failed[i] != nil {
			logger.Warn("candidate failed", "model", t.Kind(), "error", failed[i])
			cr.Failures[t.Kind()] = failed[i].Error()
			continue
		}
		fitted[i].Split = split.Fingerprint
		cr.Candidates = append(cr.Candidates, fitted[i])
	}
	if len(cr.Candidates) == 0 {
		cr.Warnings = append(cr.Warnings, "no candidate model could be fitted")
		return cr, nil
	}

	out, err := selection.NewSelector(cfg.AUCGrid, logger).Run(cr.Candidates, b.Matrix.Rows(split.Test), b.Labels.Subset(split.Test))
	if err != nil {
		if core.IsNumericalError(err) {
			logger.Warn("no model selected", "error", err)
			cr.Warnings = append(cr.Warnings, fmt.Sprintf("selection: %v", err))
			return cr, nil
		}
		return nil, fmt.Errorf("model selection: %w", err)
	}

	cr.Chosen = out.Chosen.Kind
	cr.ROC = out.ROC
	cr.PR = out.PR
	if out.Threshold.Confusion.Total() > 0 {
		th := out.Threshold
		cr.Threshold = &report.Threshold{
			Cutoff:    th.Cutoff,
			F1:        th.F1,
			Precision: th.Precision,
			Recall:    th.Recall,
			Confusion: th.Confusion,
		}
	}
	return cr, nil
}
