// Package errors provides the coded error types surfaced by the geo-filter engine.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes.
const (
	CodeInternal    = "INTERNAL_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeBadRequest  = "BAD_REQUEST"
	CodeValidation  = "VALIDATION_ERROR"
	CodeUnsupported = "UNSUPPORTED_MEDIA_TYPE"
	CodeRateLimited = "RATE_LIMITED"

	// Geo-filter taxonomy. All of these are recoverable: callers fall back
	// to no filter or show a message.
	CodeEmptyInput       = "EMPTY_INPUT"
	CodeUnknownRegion    = "UNKNOWN_REGION"
	CodeMissingAggregate = "MISSING_AGGREGATE"
	CodeInvalidGeometry  = "INVALID_GEOMETRY"
)

// AppError represents an application error with code and message.
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

// Is checks if the error matches another error.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Wrap wraps an error with an AppError.
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Sentinels for errors.Is matching by code.
var (
	ErrEmptyInput       = New(CodeEmptyInput, "empty input")
	ErrUnknownRegion    = New(CodeUnknownRegion, "unknown region")
	ErrMissingAggregate = New(CodeMissingAggregate, "missing aggregate")
	ErrInvalidGeometry  = New(CodeInvalidGeometry, "invalid geometry")
)

// EmptyInput reports an operation that needs at least one feature.
func EmptyInput(message string) *AppError {
	return New(CodeEmptyInput, message)
}

// UnknownRegion reports a boundary id missing from the boundary dataset.
func UnknownRegion(kind, id string) *AppError {
	return New(CodeUnknownRegion, fmt.Sprintf("%s boundary %q not found", kind, id)).
		WithDetails(map[string]string{"kind": kind, "id": id})
}

// MissingAggregate reports a boundary id with no precomputed counts.
func MissingAggregate(kind, id string) *AppError {
	return New(CodeMissingAggregate, fmt.Sprintf("no precomputed counts for %s boundary %q", kind, id)).
		WithDetails(map[string]string{"kind": kind, "id": id})
}

// InvalidGeometry reports a degenerate or self-intersecting polygon.
func InvalidGeometry(message string) *AppError {
	return New(CodeInvalidGeometry, message)
}

// Internal creates an internal server error.
func Internal(message string) *AppError {
	return New(CodeInternal, message)
}

// NotFound creates a not found error.
func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// BadRequest creates a bad request error.
func BadRequest(message string) *AppError {
	return New(CodeBadRequest, message)
}

// Validation creates a validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

// ValidationWithDetails creates a validation error with field details.
func ValidationWithDetails(message string, details map[string]string) *AppError {
	return New(CodeValidation, message).WithDetails(details)
}

// UnsupportedMediaType reports a request body in a format other than JSON.
func UnsupportedMediaType(message string) *AppError {
	return New(CodeUnsupported, message)
}

// RateLimited reports a client over its request budget.
func RateLimited() *AppError {
	return New(CodeRateLimited, "too many requests, please slow down")
}

// IsUnknownRegion checks if the error is an unknown region error.
func IsUnknownRegion(err error) bool {
	return Code(err) == CodeUnknownRegion
}

// IsMissingAggregate checks if the error is a missing aggregate error.
func IsMissingAggregate(err error) bool {
	return Code(err) == CodeMissingAggregate
}

// IsInvalidGeometry checks if the error is an invalid geometry error.
func IsInvalidGeometry(err error) bool {
	return Code(err) == CodeInvalidGeometry
}

// IsEmptyInput checks if the error is an empty input error.
func IsEmptyInput(err error) bool {
	return Code(err) == CodeEmptyInput
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return Code(err) == CodeValidation
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return Code(err) == CodeNotFound
}

// Code returns the error code or empty string.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
