package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"

	"genesift/domain/core"
	"genesift/domain/report"
)

// topFeatures is the number of DE rows printed to the terminal
const topFeatures = 10

func printReport(w io.Writer, r *report.AnalysisReport) {
	if m := r.Manifest; m != nil {
		fmt.Fprintf(w, "run %s  seed %d  fingerprint %s\n", m.RunID, m.Seed, m.Fingerprint.Fingerprint.Short())
	}
	fmt.Fprintf(w, "%d samples (%d negative, %d positive), %d features\n\n",
		r.Samples, r.Negatives, r.Positives, r.Features)

	if de := r.DE; de != nil {
		printDE(w, de)
	}
	if cr := r.Classifier; cr != nil {
		printClassifier(w, cr)
	}
	fmt.Fprintf(w, "finished in %d ms\n", r.RuntimeMs)
}

func printDE(w io.Writer, de *report.DEReport) {
	fmt.Fprintf(w, "Differential expression: %d of %d features significant at FDR %.3g (expected false discoveries %.2f)\n",
		de.Significant, de.Tested, de.Alpha, de.ExpectedFalseDiscoveries)
	if de.Null != nil {
		fmt.Fprintf(w, "local fdr null (%s): delta %.3f sigma %.3f p0 %.3f; fdr <= %.2g outside z in (%s, %s)\n",
			de.Null.Method, de.Null.Delta, de.Null.Sigma, de.Null.P0,
			de.LocalFDRThreshold, fmtFloat(de.LowerZ), fmtFloat(de.UpperZ))
	}
	for _, warn := range de.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}

	rows := make([]report.FeatureRow, 0, len(de.Features))
	for _, f := range de.Features {
		if f.Valid {
			rows = append(rows, f)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].PValue < rows[j].PValue })
	if len(rows) > topFeatures {
		rows = rows[:topFeatures]
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "feature\tmean0\tmean1\tt\tp\tq\tlocal fdr")
	for _, f := range rows {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.2f\t%.2e\t%.2e\t%s\n",
			f.Feature, f.Mean0, f.Mean1, f.TStatistic, f.PValue, f.QValue, fmtFloat(f.LocalFDR))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printClassifier(w io.Writer, cr *report.ClassifierReport) {
	fmt.Fprintf(w, "Classification: train %d, test %d, split %s\n",
		cr.Split.Train, cr.Split.Test, core.Hash(cr.Split.Fingerprint).Short())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "model\thyperparameter\tcomplexity\tcv auc\ttest auc\t")
	for _, c := range cr.Candidates {
		mark := ""
		if c.Kind == cr.Chosen {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s=%s\t%.2f\t%.3f\t%s\t%s\n",
			c.Kind, c.HyperparameterName, fmtFloat(c.Hyperparameter), c.EffectiveParameters,
			c.CVAUC, fmtFloat(c.TestAUC), mark)
	}
	tw.Flush()

	for kind, msg := range cr.Failures {
		fmt.Fprintf(w, "%s failed: %s\n", kind, msg)
	}
	for _, warn := range cr.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	for _, c := range cr.Candidates {
		for _, warn := range c.Warnings {
			fmt.Fprintf(w, "%s: %s\n", c.Kind, warn)
		}
	}
	if th := cr.Threshold; th != nil {
		cm := th.Confusion
		fmt.Fprintf(w, "cutoff %.3f: F1 %.3f precision %.3f recall %.3f (TP %d FP %d TN %d FN %d)\n",
			th.Cutoff, th.F1, th.Precision, th.Recall, cm.TP, cm.FP, cm.TN, cm.FN)
	}
	fmt.Fprintln(w)
}

func fmtFloat(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return fmt.Sprintf("%.4g", v)
}
