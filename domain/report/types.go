// Package report holds the in-memory artifacts handed to report sinks.
package report

import (
	"math"

	"genesift/domain/core"
	"genesift/domain/model"
	"genesift/domain/run"
)

// FeatureRow is the differential-expression result of one feature.
// Statistics of an invalid feature (too few samples, zero variance) are NaN.
type FeatureRow struct {
	Feature     core.FeatureKey `json:"feature"`
	PValue      float64         `json:"p_value"`
	TStatistic  float64         `json:"t_statistic"`
	DF          float64         `json:"df"`
	QValue      float64         `json:"q_value"`
	Z           float64         `json:"z"`
	LocalFDR    float64         `json:"local_fdr"`
	Mean0       float64         `json:"mean0"`
	Mean1       float64         `json:"mean1"`
	Valid       bool            `json:"valid"`
	Significant bool            `json:"significant"`
}

// NullModel is the null component of the local fdr mixture
type NullModel struct {
	Method string  `json:"method"`
	Delta  float64 `json:"delta"`
	Sigma  float64 `json:"sigma"`
	P0     float64 `json:"p0"`
}

// DEReport is the multiple-testing summary over all features
type DEReport struct {
	Features                 []FeatureRow `json:"features"`
	Alpha                    float64      `json:"alpha"`
	Tested                   int          `json:"tested"`
	Significant              int          `json:"significant"`
	ExpectedFalseDiscoveries float64      `json:"expected_false_discoveries"`

	// LocalFDRThreshold and the z boundaries where local fdr crosses it;
	// a boundary is NaN when fdr never drops that low on its side
	LocalFDRThreshold float64    `json:"local_fdr_threshold"`
	LowerZ            float64    `json:"lower_z"`
	UpperZ            float64    `json:"upper_z"`
	Null              *NullModel `json:"null,omitempty"`
	Warnings          []string   `json:"warnings,omitempty"`
}

// HighConfidence returns the features whose local fdr is at most the threshold
func (r *DEReport) HighConfidence() []core.FeatureKey {
	var out []core.FeatureKey
	for _, f := range r.Features {
		if !math.IsNaN(f.LocalFDR) && f.LocalFDR <= r.LocalFDRThreshold {
			out = append(out, f.Feature)
		}
	}
	return out
}

// SplitSummary describes the shared train/test partition
type SplitSummary struct {
	Fingerprint core.SplitFingerprint `json:"fingerprint"`
	Train       int                   `json:"train"`
	Test        int                   `json:"test"`
	Stratified  bool                  `json:"stratified"`
}

// Threshold is the chosen operating point on the test split
type Threshold struct {
	Cutoff    float64               `json:"cutoff"`
	F1        float64               `json:"f1"`
	Precision float64               `json:"precision"`
	Recall    float64               `json:"recall"`
	Confusion model.ConfusionMatrix `json:"confusion"`
}

// ClassifierReport is the model comparison and the chosen model's evaluation
type ClassifierReport struct {
	Split      SplitSummary            `json:"split"`
	Candidates []*model.CandidateModel `json:"candidates"`
	Chosen     model.Kind              `json:"chosen"`
	ROC        []model.CurvePoint      `json:"roc"`
	PR         []model.CurvePoint      `json:"pr"`
	Threshold  *Threshold              `json:"threshold,omitempty"`
	Failures   map[model.Kind]string   `json:"failures,omitempty"`
	Warnings   []string                `json:"warnings,omitempty"`
}

// ChosenModel returns the selected candidate, or nil
func (r *ClassifierReport) ChosenModel() *model.CandidateModel {
	for _, c := range r.Candidates {
		if c.Kind == r.Chosen {
			return c
		}
	}
	return nil
}

// AnalysisReport is the full output of one run
type AnalysisReport struct {
	Manifest   *run.RunManifest  `json:"manifest"`
	Samples    int               `json:"samples"`
	Features   int               `json:"features"`
	Negatives  int               `json:"negatives"`
	Positives  int               `json:"positives"`
	DE         *DEReport         `json:"de,omitempty"`
	Classifier *ClassifierReport `json:"classifier,omitempty"`
	RuntimeMs  int64             `json:"runtime_ms"`
}
