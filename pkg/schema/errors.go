package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeDecode     = "DECODE_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeConflict   = "CONFLICT"
	ErrCodeExpression = "EXPRESSION_ERROR"
	ErrCodeStore      = "STORE_ERROR"
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeCycle      = "CYCLE_DETECTED"
	ErrCodeDuplicate  = "DUPLICATE"
)

// Sentinel errors shared across packages. LintErrors match them by code,
// so errors.Is(err, ErrNotFound) holds for any NOT_FOUND LintError.
var (
	ErrNotFound      = errors.New("object was not found")
	ErrInvalidObject = errors.New("object is invalid")
	ErrInternal      = errors.New("internal error")
)

var sentinelByCode = map[string]error{
	ErrCodeNotFound:   ErrNotFound,
	ErrCodeValidation: ErrInvalidObject,
	ErrCodeDecode:     ErrInvalidObject,
	ErrCodeInternal:   ErrInternal,
}

// LintError is the structured error type for joblint operations.
type LintError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Source  string         `json:"source,omitempty"`
	Cause   error          `json:"-"`
}

func (e *LintError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Source, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *LintError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel associated with the error code.
func (e *LintError) Is(target error) bool {
	s, ok := sentinelByCode[e.Code]
	return ok && s == target
}

// NewError creates a new LintError.
func NewError(code, message string) *LintError {
	return &LintError{Code: code, Message: message}
}

// NewErrorf creates a new LintError with a formatted message.
func NewErrorf(code, format string, args ...any) *LintError {
	return &LintError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithSource attaches the document source (file path, "stdin", ...).
func (e *LintError) WithSource(source string) *LintError {
	e.Source = source
	return e
}

// WithCause attaches an underlying cause.
func (e *LintError) WithCause(err error) *LintError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *LintError) WithDetails(details map[string]any) *LintError {
	e.Details = details
	return e
}
