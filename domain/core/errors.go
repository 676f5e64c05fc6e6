package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input boundary errors. These abort a run.
	ErrAlignment         = errors.New("sample identifiers do not align")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrInvalidLabel      = errors.New("label must be 0 or 1")
	ErrInsufficientData  = errors.New("insufficient data for analysis")

	// Numerical errors. These are absorbed by the sweep that hit them.
	ErrSingularFit         = errors.New("singular or ill-conditioned fit")
	ErrNotConverged        = errors.New("fit did not converge")
	ErrNoValidObservation  = errors.New("no valid observation")
	ErrSplitFingerprintMix = errors.New("candidate models were fitted on different splits")
)

// NewAlignmentError reports the first row where sorted identifiers disagree
func NewAlignmentError(row int, matrixID, labelID string) error {
	return fmt.Errorf("%w: row %d has matrix id %s but label id %s", ErrAlignment, row, matrixID, labelID)
}

// NewDimensionError reports a length disagreement between two inputs
func NewDimensionError(what string, want, got int) error {
	return fmt.Errorf("%w: %s: want %d, got %d", ErrDimensionMismatch, what, want, got)
}

// NewValidationError reports an invalid field value
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

// IsBoundaryError reports whether err must abort the run
func IsBoundaryError(err error) bool {
	return errors.Is(err, ErrAlignment) ||
		errors.Is(err, ErrDimensionMismatch) ||
		errors.Is(err, ErrInvalidLabel) ||
		errors.Is(err, ErrInsufficientData)
}

// IsNumericalError reports whether err is a local numerical failure that a sweep absorbs
func IsNumericalError(err error) bool {
	return errors.Is(err, ErrSingularFit) ||
		errors.Is(err, ErrNotConverged) ||
		errors.Is(err, ErrNoValidObservation)
}
