package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for each class of failure the relay reports.
// Use errors.Is() to check against these.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrConfiguration    = errors.New("configuration error")
	ErrIntegration      = errors.New("integration error")
	ErrProviderRejected = errors.New("provider rejected request")
	ErrDuplicate        = errors.New("duplicate submission")
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status returned to our caller
	Err        error  `json:"-"` // Wrapped error, not serialized

	// Details carries provider-supplied context (never secrets).
	Details string `json:"details,omitempty"`
	// ProviderStatus is the HTTP status the external provider answered with, 0 if none.
	ProviderStatus int `json:"-"`
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: http.StatusBadRequest,
		Err:        ErrInvalidRequest,
	}
}

// NewMethodNotAllowedError creates a 405 error.
func NewMethodNotAllowedError(method string) *APIError {
	return &APIError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    fmt.Sprintf("method %s not allowed", method),
		StatusCode: http.StatusMethodNotAllowed,
		Err:        ErrInvalidRequest,
	}
}

// NewConfigError creates a 500 error for missing or invalid server settings.
// The setting name is reported, its value never is.
func NewConfigError(setting string) *APIError {
	return &APIError{
		Code:       "CONFIG_ERROR",
		Message:    fmt.Sprintf("server misconfigured: %s is not set", setting),
		StatusCode: http.StatusInternalServerError,
		Err:        ErrConfiguration,
	}
}

// NewIntegrationError creates a 500 error for unexpected or unparseable
// provider behaviour, regardless of the proximate cause.
func NewIntegrationError(service string, err error) *APIError {
	return &APIError{
		Code:       "INTEGRATION_ERROR",
		Message:    fmt.Sprintf("%s integration failed", service),
		StatusCode: http.StatusInternalServerError,
		Err:        fmt.Errorf("%w: %v", ErrIntegration, err),
	}
}

// NewProviderError creates an error for a provider that rejected the request.
// status is what our caller receives; providerStatus is what the provider sent.
func NewProviderError(service string, status, providerStatus int, message, details string) *APIError {
	return &APIError{
		Code:           "PROVIDER_REJECTED",
		Message:        message,
		StatusCode:     status,
		Details:        details,
		ProviderStatus: providerStatus,
		Err:            fmt.Errorf("%w: %s answered %d", ErrProviderRejected, service, providerStatus),
	}
}

// NewDuplicateError creates a 409 error for a submission already processed.
func NewDuplicateError(key string) *APIError {
	return &APIError{
		Code:       "DUPLICATE",
		Message:    fmt.Sprintf("request %s was already submitted", key),
		StatusCode: http.StatusConflict,
		Err:        ErrDuplicate,
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
