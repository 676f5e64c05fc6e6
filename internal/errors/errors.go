package errors

import (
	"errors"
	"fmt"

	"genesift/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context. The code of a wrapped
// AppError is kept; otherwise it is derived from the domain error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    GetCode(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error chain contains an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError, or the code implied by
// a domain sentinel, or INTERNAL_ERROR
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	switch {
	case errors.Is(err, core.ErrAlignment):
		return CodeAlignmentFailed
	case core.IsBoundaryError(err):
		return CodeInvalidInput
	case core.IsNumericalError(err):
		return CodeNumerical
	case errors.Is(err, core.ErrSplitFingerprintMix):
		return CodeReproducibility
	}
	return CodeInternalError
}

// ExitCode maps an error to a process exit status: 2 for input problems,
// 3 for storage, 1 otherwise
func ExitCode(err error) int {
	switch GetCode(err) {
	case CodeAlignmentFailed, CodeInvalidInput, CodeConfigInvalid, CodeValidationError:
		return 2
	case CodeStorageError:
		return 3
	}
	return 1
}

// Predefined error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeStorageError    = "STORAGE_ERROR"
	CodeValidationError = "VALIDATION_ERROR"
	CodeAlignmentFailed = "ALIGNMENT_FAILED"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeNumerical       = "NUMERICAL_ERROR"
	CodeReproducibility = "REPRODUCIBILITY_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func StorageError(message string, cause error) *AppError {
	return &AppError{Code: CodeStorageError, Message: message, Cause: cause}
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}
