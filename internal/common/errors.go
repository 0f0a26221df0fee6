package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline error kinds. Every component surfaces exactly one of these to its
// caller; retries beyond the analysis poll cap are user-initiated.
var (
	ErrImageLoad       = errors.New("image could not be decoded")
	ErrConfiguration   = errors.New("required configuration is missing")
	ErrSubmission      = errors.New("analysis submission rejected")
	ErrAnalysisFailed  = errors.New("analysis reported failure")
	ErrAnalysisTimeout = errors.New("analysis timed out")
	ErrGeneration      = errors.New("template generation failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
