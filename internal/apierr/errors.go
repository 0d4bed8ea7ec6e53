// Package apierr provides the error taxonomy shared by the portfolio clients.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of a client-side failure.
type Kind string

const (
	// KindTransport indicates a network failure or a non-2xx response.
	KindTransport Kind = "transport"

	// KindProtocol indicates a malformed frame or response body.
	KindProtocol Kind = "protocol"

	// KindAuth indicates the admin session is missing or expired.
	KindAuth Kind = "auth"

	// KindStream indicates a server-push connection failure.
	KindStream Kind = "stream"

	// KindAPI indicates the backend answered with success:false.
	KindAPI Kind = "api"
)

var (
	// ErrSessionExpired is returned when an admin-guarded call is rejected
	// with 401. Local auth hints have already been cleared when it is returned.
	ErrSessionExpired = errors.New("admin session expired")

	// ErrUnauthorized is returned when an admin call is attempted without
	// any stored credentials.
	ErrUnauthorized = errors.New("not logged in")
)

// APIError is a failure reported by the portfolio backend.
type APIError struct {
	Kind Kind `json:"kind"`

	// Message is the human-readable error message, taken from the backend
	// envelope when one is available.
	Message string `json:"message"`

	// Method and Path identify the failed request.
	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`

	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int `json:"status_code,omitempty"`

	Err error `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	target := e.Path
	if e.Method != "" {
		target = e.Method + " " + e.Path
	}
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s %s (status %d): %s: %v", e.Kind, target, e.StatusCode, e.Message, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s (status %d): %s", e.Kind, target, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %s: %v", e.Kind, target, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s %s: %s", e.Kind, target, e.Message)
	}
}

// Unwrap exposes the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new API error.
func NewAPIError(kind Kind, message string) *APIError {
	return &APIError{
		Kind:    kind,
		Message: message,
	}
}

// WithRequest records the request that failed.
func (e *APIError) WithRequest(method, path string) *APIError {
	e.Method = method
	e.Path = path
	return e
}

// WithStatusCode records the HTTP status of the failed response.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// WithCause records the underlying error.
func (e *APIError) WithCause(err error) *APIError {
	e.Err = err
	return e
}

// Transport wraps a network failure or unexpected status.
func Transport(method, path string, status int, err error) *APIError {
	msg := "request failed"
	if status != 0 {
		msg = http.StatusText(status)
	}
	return NewAPIError(KindTransport, msg).
		WithRequest(method, path).
		WithStatusCode(status).
		WithCause(err)
}

// Protocol wraps a decode failure.
func Protocol(path string, err error) *APIError {
	return NewAPIError(KindProtocol, "malformed response").
		WithRequest("", path).
		WithCause(err)
}

// AnalyticsError is the error variant of an analytics delivery attempt. It is
// logged by callers and never propagated to the user interface.
type AnalyticsError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *AnalyticsError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analytics %s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("analytics %s: %v", e.Endpoint, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *AnalyticsError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err indicates a missing or expired admin session.
func IsAuth(err error) bool {
	if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrUnauthorized) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindAuth
}

// IsTransport reports whether err is a network-level failure.
func IsTransport(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == KindTransport
	}
	var analyticsErr *AnalyticsError
	return errors.As(err, &analyticsErr)
}
