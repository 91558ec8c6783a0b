package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Callers compare against these instead of matching
// message text.
const (
	// Validation
	ErrCodeValidationInsufficientData ErrorCode = "validation_insufficient_data"
	ErrCodeValidationMissingField     ErrorCode = "validation_missing_required_field"

	// Configuration (fatal, surfaced before any work is done)
	ErrCodeConfigFeatureMismatch  ErrorCode = "config_feature_mismatch"
	ErrCodeConfigInvalidModel     ErrorCode = "config_invalid_model"
	ErrCodeConfigInvalidPlantType ErrorCode = "config_invalid_plant_type"

	// State machine
	ErrCodeStateInvalidTransition ErrorCode = "state_invalid_transition"

	// Internal
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalArtifact   ErrorCode = "internal_artifact_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"

	// Upstream
	ErrCodeUpstreamWeather     ErrorCode = "upstream_weather_unavailable"
	ErrCodeUpstreamBoundary    ErrorCode = "upstream_boundary_unavailable"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// Retryable reports whether an error with this code can succeed when the
// same request is attempted again. Upstream and internal failures are
// transient. Validation, configuration and state errors are permanent.
func (c ErrorCode) Retryable() bool {
	return strings.HasPrefix(string(c), "upstream_") || strings.HasPrefix(string(c), "internal_")
}

// IsRetryable classifies err for queue consumers. Errors that are not an
// AppError are treated as transient.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code.Retryable()
	}
	return true
}

// AppError is the standard application error type. All domain errors are
// expressed as AppError so callers can branch on Code with errors.As.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
