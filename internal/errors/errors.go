package errors

import (
	"errors"
	"fmt"
)

// Error codes for programmatic handling.
const (
	CodeNotFound              = "NOT_FOUND"
	CodeVersionConflict       = "VERSION_CONFLICT"
	CodeExtractionFailed      = "EXTRACTION_FAILED"
	CodeConsolidationConflict = "CONSOLIDATION_CONFLICT"
	CodeEditRejected          = "EDIT_REJECTED"
	CodeConfigInvalid         = "CONFIG_INVALID"
	CodeTimeout               = "TIMEOUT"
)

// MemoryError is a structured error with a code and actionable suggestion.
type MemoryError struct {
	Code       string // machine-readable code (e.g. VERSION_CONFLICT)
	Message    string // human-readable description
	Suggestion string // actionable fix
	Err        error  // wrapped underlying error
}

// Error implements the error interface.
func (e *MemoryError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap supports errors.Is / errors.As.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// New creates a MemoryError with the given code and message.
func New(code, message string) *MemoryError {
	return &MemoryError{Code: code, Message: message}
}

// Wrap creates a MemoryError wrapping an existing error.
func Wrap(code, message string, err error) *MemoryError {
	return &MemoryError{Code: code, Message: message, Err: err}
}

// WithSuggestion returns a copy with the suggestion set.
func (e *MemoryError) WithSuggestion(suggestion string) *MemoryError {
	e.Suggestion = suggestion
	return e
}

// Is checks whether target matches this error's code.
func (e *MemoryError) Is(target error) bool {
	var me *MemoryError
	if errors.As(target, &me) {
		return e.Code == me.Code
	}
	return false
}

// AsCode extracts the MemoryError code from an error, or "" if not a MemoryError.
func AsCode(err error) string {
	var me *MemoryError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code string) bool {
	return AsCode(err) == code
}

// Suggestion extracts the suggestion from an error, or "" if not a MemoryError.
func Suggestion(err error) string {
	var me *MemoryError
	if errors.As(err, &me) {
		return me.Suggestion
	}
	return ""
}
