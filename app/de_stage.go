package app

import (
	"context"
	"fmt"
	"math"

	"genesift/domain/dataset"
	"genesift/domain/report"
	"genesift/internal/hypothesis"
	"genesift/internal/locfdr"
)

// DifferentialExpression runs Welch's test on every feature, adjusts the
// p-values with Benjamini-Hochberg and estimates local fdr on the z scale.
// A local fdr failure leaves NaN fdr values and a warning; the tail-area
// results still stand.
func (s *AnalysisService) DifferentialExpression(ctx context.Context, rc *RunContext, b *dataset.Bundle) (*report.DEReport, error) {
	cfg := rc.Config
	logger := rc.Logger.With("stage", "differential_expression")

	nullMethod, err := locfdr.ParseNullMethod(cfg.LocFDRNull)
	if err != nil {
		return nil, err
	}

	records, err := hypothesis.NewEngine(cfg.Workers, logger).Run(ctx, b.Matrix, b.Labels)
	if err != nil {
		return nil, fmt.Errorf("welch tests: %w", err)
	}

	p := len(records)
	pvalues := make([]float64, p)
	ts := make([]float64, p)
	dfs := make([]float64, p)
	tested := 0
	for i, r := range records {
		pvalues[i], ts[i], dfs[i] = r.PValue, r.TStatistic, r.DF
		if r.Valid {
			tested++
		}
	}
	corr := hypothesis.Correct(pvalues, cfg.FDRAlpha)

	de := &report.DEReport{
		Alpha:                    corr.Alpha,
		Tested:                   tested,
		Significant:              corr.Significant,
		ExpectedFalseDiscoveries: corr.ExpectedFalseDiscoveries,
		LocalFDRThreshold:        cfg.LocFDRThreshold,
		LowerZ:                   math.NaN(),
		UpperZ:                   math.NaN(),
	}

	z := locfdr.Transform(ts, dfs)
	fdr := make([]float64, p)
	for i := range fdr {
		fdr[i] = math.NaN()
	}
	est := locfdr.NewEstimator(locfdr.Options{Threshold: cfg.LocFDRThreshold, Null: nullMethod})
	if res, err := est.Estimate(z); err != nil {
		logger.Warn("local fdr unavailable", "error", err)
		de.Warnings = append(de.Warnings, fmt.Sprintf("local fdr: %v", err))
	} else {
		fdr = res.FDR
		de.LowerZ, de.UpperZ = res.Lower, res.Upper
		de.Null = &report.NullModel{
			Method: string(res.Null.Method),
			Delta:  res.Null.Delta,
			Sigma:  res.Null.Sigma,
			P0:     res.Null.P0,
		}
		de.Warnings = append(de.Warnings, res.Warnings...)
	}

	de.Features = make([]report.FeatureRow, p)
	for i, r := range records {
		q := corr.QValues[i]
		de.Features[i] = report.FeatureRow{
			Feature:     r.Feature,
			PValue:      r.PValue,
			TStatistic:  r.TStatistic,
			DF:          r.DF,
			QValue:      q,
			Z:           z[i],
			LocalFDR:    fdr[i],
			Mean0:       r.Mean0,
			Mean1:       r.Mean1,
			Valid:       r.Valid,
			Significant: !math.IsNaN(q) && q < cfg.FDRAlpha,
		}
	}

	logger.Info("differential expression done",
		"tested", tested,
		"significant", de.Significant,
		"high_confidence", len(de.HighConfidence()))
	return de, nil
}
