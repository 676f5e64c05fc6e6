// Package model holds the classifier artifacts shared by trainers, the
// selector and the reporting layer.
package model

import (
	"genesift/domain/core"

	"gonum.org/v1/gonum/mat"
)

// Kind tags a candidate classifier
type Kind string

const (
	KindLasso Kind = "lasso"
	KindRidge Kind = "ridge"
	KindPCR   Kind = "pcr"
)

// Order is the fixed precedence used when everything else ties
func (k Kind) Order() int {
	switch k {
	case KindLasso:
		return 0
	case KindRidge:
		return 1
	case KindPCR:
		return 2
	}
	return 3
}

// Scorer maps raw (untransformed) sample rows to scores in [0,1]
type Scorer interface {
	Score(x mat.Matrix) ([]float64, error)
}

// CandidateModel is a fitted classifier plus the metadata it was selected with
type CandidateModel struct {
	Kind               Kind    `json:"kind"`
	HyperparameterName string  `json:"hyperparameter_name"`
	Hyperparameter     float64 `json:"hyperparameter"`

	// EffectiveParameters: non-zero coefficients (lasso), effective degrees of
	// freedom (ridge), retained rank (pcr)
	EffectiveParameters float64           `json:"effective_parameters"`
	SelectedFeatures    []core.FeatureKey `json:"selected_features,omitempty"`
	Intercept           float64           `json:"intercept"`
	Coefficients        []float64         `json:"coefficients,omitempty"`

	// CVAUC is the mean cross-validated AUC at the chosen hyperparameter
	CVAUC   float64 `json:"cv_auc"`
	TestAUC float64 `json:"test_auc"`

	// Path records the full sweep: one entry per grid point
	Path              []GridPoint `json:"path,omitempty"`
	SkippedGridPoints int         `json:"skipped_grid_points"`
	Warnings          []string    `json:"warnings,omitempty"`

	// Split identifies the train/test partition the model was tuned and tested on
	Split core.SplitFingerprint `json:"split"`

	Scorer Scorer `json:"-"`
}

// GridPoint is one hyperparameter value and its cross-validated cost.
// Valid is false when the fit failed or no fold produced a defined AUC.
type GridPoint struct {
	Value      float64 `json:"value"`
	Cost       float64 `json:"cost"`
	ValidFolds int     `json:"valid_folds"`
	Valid      bool    `json:"valid"`
}

// ConfusionMatrix counts outcomes at one cutoff
type ConfusionMatrix struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

// Total returns the number of classified samples
func (c ConfusionMatrix) Total() int { return c.TP + c.FP + c.TN + c.FN }

// CurvePoint is one cutoff on a ROC or PR curve
type CurvePoint struct {
	Cutoff float64 `json:"cutoff"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}
