// Package core provides core types and interfaces for the bridge.
package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a client error (400): malformed JSON,
	// missing fields or an unrecognized model prefix.
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeBackendExecution indicates the backend reported a failure (502)
	ErrorTypeBackendExecution ErrorType = "backend_execution_error"
	// ErrorTypeBackendEmptyResponse indicates well-formed output without an answer (502)
	ErrorTypeBackendEmptyResponse ErrorType = "backend_empty_response_error"
	// ErrorTypeBackendTimeout indicates the invocation exceeded its deadline (502)
	ErrorTypeBackendTimeout ErrorType = "backend_timeout_error"
	// ErrorTypeMissingCredential indicates the backend needs a credential that is absent (502)
	ErrorTypeMissingCredential ErrorType = "missing_credential_error"
	// ErrorTypeNotFound indicates an unknown route (404)
	ErrorTypeNotFound ErrorType = "not_found_error"
)

// GatewayError is the base error type for all bridge errors
type GatewayError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Backend    string    `json:"backend,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Backend, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeBackendExecution, ErrorTypeBackendEmptyResponse,
		ErrorTypeBackendTimeout, ErrorTypeMissingCredential:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to the wire shape {"error": "<detail>"}.
func (e *GatewayError) ToJSON() map[string]string {
	return map[string]string{"error": e.Message}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewUnrecognizedRunnerError is returned by runner resolution for model names
// that match no known backend prefix.
func NewUnrecognizedRunnerError(model string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeInvalidRequest,
		Message:    "model must start with 'codex' or 'gemini'",
		StatusCode: http.StatusBadRequest,
		Err:        fmt.Errorf("%w: %q", ErrUnrecognizedRunner, model),
	}
}

// NewBackendExecutionError wraps the backend's raw error text (502).
func NewBackendExecutionError(backend, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeBackendExecution,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Backend:    backend,
		Err:        err,
	}
}

// NewBackendEmptyResponseError reports output that carried no usable answer (502).
func NewBackendEmptyResponseError(backend, message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeBackendEmptyResponse,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Backend:    backend,
	}
}

// NewBackendTimeoutError reports an invocation that exceeded its deadline (502).
func NewBackendTimeoutError(backend, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeBackendTimeout,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Backend:    backend,
		Err:        err,
	}
}

// NewMissingCredentialError reports a backend credential that is not configured (502).
func NewMissingCredentialError(backend, message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeMissingCredential,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Backend:    backend,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// ErrUnrecognizedRunner is the sentinel wrapped by NewUnrecognizedRunnerError.
var ErrUnrecognizedRunner = errors.New("unrecognized runner")

// AsGatewayError converts any error into a *GatewayError. Errors of unknown
// shape are treated as backend failures, since only invocation can produce them.
func AsGatewayError(err error) *GatewayError {
	if err == nil {
		return nil
	}
	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) {
		return gatewayErr
	}
	return NewBackendExecutionError("", err.Error(), err)
}

// IsTimeout reports whether err is a backend timeout.
func IsTimeout(err error) bool {
	var gatewayErr *GatewayError
	return errors.As(err, &gatewayErr) && gatewayErr.Type == ErrorTypeBackendTimeout
}
