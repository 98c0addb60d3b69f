// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes scoped to the reconciliation engine.
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict = "CONFLICT"

	// External collaborator unreachable (503). The affected SKU is skipped,
	// never assigned a fabricated reconciliation result.
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"

	// Movement recorded but the financial posting failed (502). The caller
	// retries the posting, never the whole submission.
	CodePostingPartialFailure = "POSTING_PARTIAL_FAILURE"
)

// AppError is the standard error type for the service.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, amounts, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewSourceUnavailable creates an error for an unreachable external source (503).
func NewSourceUnavailable(source string, err error) *AppError {
	return &AppError{
		Code:       CodeSourceUnavailable,
		Message:    fmt.Sprintf("%s is unavailable", source),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"source": source},
		Err:        err,
	}
}

// NewTimeout creates an error for an external read exceeding its deadline (504).
func NewTimeout(source string, err error) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Message:    fmt.Sprintf("%s timed out", source),
		HTTPStatus: http.StatusGatewayTimeout,
		Details:    map[string]any{"source": source},
		Err:        err,
	}
}

// NewPostingPartialFailure reports a movement that was recorded while its
// financial posting failed. The stock change is authoritative and is not
// rolled back; the posting must be retried separately.
func NewPostingPartialFailure(movementID any, err error) *AppError {
	return &AppError{
		Code:       CodePostingPartialFailure,
		Message:    "movement recorded but financial posting failed; retry the posting",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"movement_id": movementID},
		Err:        err,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsPostingPartialFailure checks if error is CodePostingPartialFailure
func IsPostingPartialFailure(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodePostingPartialFailure
	}
	return false
}

// IsSourceUnavailable checks if error is CodeSourceUnavailable
func IsSourceUnavailable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeSourceUnavailable
	}
	return false
}
