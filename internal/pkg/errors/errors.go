// Package errors provides custom error types and error handling utilities.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	// Caller errors.
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeUnsupportedLanguage = "UNSUPPORTED_LANGUAGE"
	CodeParse               = "PARSE_ERROR"

	// Chunking failures. Both abort the call for that input.
	CodeRecursionLimit = "RECURSION_LIMIT_EXCEEDED"
	CodeNodeLimit      = "NODE_LIMIT_EXCEEDED"

	// Internal consistency failures.
	CodeCoverageViolation = "COVERAGE_VIOLATION"
	CodeInternal          = "INTERNAL_ERROR"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error aborts a chunking call for its input.
func (e *AppError) Fatal() bool {
	switch e.Code {
	case CodeRecursionLimit, CodeNodeLimit, CodeCoverageViolation, CodeInternal:
		return true
	default:
		return false
	}
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// ValidationError creates a validation error.
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// NotFoundError creates a not found error.
func NotFoundError(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// UnsupportedLanguageError creates an error naming the language and the supported set.
func UnsupportedLanguageError(language string, supported []string) *AppError {
	err := New(CodeUnsupportedLanguage, fmt.Sprintf("unsupported language: %q", language))
	if len(supported) > 0 {
		err = err.WithDetail("supported", fmt.Sprint(supported))
	}
	return err
}

// ParseError creates a parse error.
func ParseError(message string, err error) *AppError {
	return Wrap(CodeParse, message, err)
}

// RecursionLimitError reports nesting deeper than the configured ceiling.
func RecursionLimitError(limit, offset int) *AppError {
	return New(CodeRecursionLimit, fmt.Sprintf("nesting depth exceeds limit of %d", limit)).
		WithDetail("offset", fmt.Sprintf("%d", offset))
}

// NodeLimitError reports a tree with more nodes than the configured ceiling.
func NodeLimitError(limit int) *AppError {
	return New(CodeNodeLimit, fmt.Sprintf("visited more than %d nodes", limit))
}

// CoverageViolationError reports a gap or overlap in the final chunk coverage.
func CoverageViolationError(message string) *AppError {
	return New(CodeCoverageViolation, message)
}

// InternalError creates an internal error.
func InternalError(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound checks if error is a not found error.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsValidation checks if error is a validation error.
func IsValidation(err error) bool {
	return CodeOf(err) == CodeValidation
}

// IsUnsupportedLanguage checks if error is an unsupported language error.
func IsUnsupportedLanguage(err error) bool {
	return CodeOf(err) == CodeUnsupportedLanguage
}

// IsRecursionLimit checks if error is a recursion limit error.
func IsRecursionLimit(err error) bool {
	return CodeOf(err) == CodeRecursionLimit
}

// IsCoverageViolation checks if error is a coverage violation.
func IsCoverageViolation(err error) bool {
	return CodeOf(err) == CodeCoverageViolation
}

// IsFatal checks if error aborts chunking of its input.
func IsFatal(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Fatal()
	}
	return false
}
