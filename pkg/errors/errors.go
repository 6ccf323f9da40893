// Package errors provides the structured error type shared by RoboShen
// components that talk to remote services.
//
// ContextualError records which component failed, what it was doing, and the
// HTTP status the service returned, so that callers can classify failures
// without parsing messages.
//
// Usage:
//
//	err := errors.New("imagen", "Predict", cause).WithStatusCode(403)
//	if errors.StatusCode(err) == http.StatusForbidden {
//	    // credentials problem
//	}
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ContextualError is a structured error type that provides consistent context
// about where and why an error occurred.
type ContextualError struct {
	// Component identifies the module that produced the error (e.g. "gemini", "imagen", "live").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// StatusCode is an optional HTTP or application-level status code.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError with the given component, operation, and cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Error returns a human-readable representation of the error.
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)

	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}

	return base
}

// Unwrap returns the underlying cause, enabling use with errors.Is and errors.As.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// WithStatusCode sets the status code and returns the error for chaining.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetails sets the details map and returns the error for chaining.
func (e *ContextualError) WithDetails(details map[string]any) *ContextualError {
	e.Details = details
	return e
}

// Retryable reports whether the status suggests a later attempt may succeed.
func (e *ContextualError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// StatusCode returns the status of the first ContextualError in err's chain
// that carries one, or 0.
func StatusCode(err error) int {
	for err != nil {
		var ce *ContextualError
		if !stderrors.As(err, &ce) {
			return 0
		}
		if ce.StatusCode != 0 {
			return ce.StatusCode
		}
		err = ce.Cause
	}
	return 0
}

// IsClientError reports whether err carries a 4xx status.
func IsClientError(err error) bool {
	code := StatusCode(err)
	return code >= http.StatusBadRequest && code < http.StatusInternalServerError
}
