// Package errs defines the Verve error taxonomy and the error-handler
// registry primitives used by the application's exception-handling layers.
package errs

import (
	"fmt"
	"strings"
)

// HTTPError represents an HTTP error with a status code and message.
// It can be returned from handlers to control the exact response sent to
// clients, and it participates in status-code based handler dispatch.
type HTTPError struct {
	StatusCode int    // HTTP status code (e.g., 400, 404, 500)
	Message    string // Error message to be sent in the response body
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// NewHTTPError creates a new HTTPError with the specified status code and message.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// ImproperlyConfiguredError signals a configuration or programming mistake
// detected during application construction. It is fatal: construction aborts
// and the application never starts.
type ImproperlyConfiguredError struct {
	Message string
}

// Error implements the error interface.
func (e *ImproperlyConfiguredError) Error() string {
	return e.Message
}

// ImproperlyConfigured creates a new ImproperlyConfiguredError with a
// formatted message.
func ImproperlyConfigured(format string, args ...any) *ImproperlyConfiguredError {
	return &ImproperlyConfiguredError{Message: fmt.Sprintf(format, args...)}
}

// ValidationError signals that request data failed validation. The optional
// Fields map carries per-field failure details.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for field, detail := range e.Fields {
		parts = append(parts, field+": "+detail)
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}
