package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name:     "kind and message",
			err:      &APIError{Kind: KindAPI, Message: "invalid credentials", Path: "/admin/login"},
			expected: "api /admin/login: invalid credentials",
		},
		{
			name:     "with method and status",
			err:      NewAPIError(KindTransport, "Bad Gateway").WithRequest(http.MethodGet, "/admin/me").WithStatusCode(502),
			expected: "transport GET /admin/me (status 502): Bad Gateway",
		},
		{
			name:     "with cause",
			err:      Transport(http.MethodPost, "/chat/send", 0, cause),
			expected: "transport POST /chat/send: request failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	cause := errors.New("eof")
	err := Protocol("/documents", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() = false, want true for wrapped cause")
	}
}

func TestIsAuth(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"session expired", ErrSessionExpired, true},
		{"wrapped session expired", fmt.Errorf("load stats: %w", ErrSessionExpired), true},
		{"unauthorized", ErrUnauthorized, true},
		{"auth kind", NewAPIError(KindAuth, "forbidden"), true},
		{"transport", Transport(http.MethodGet, "/admin/me", 500, nil), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuth(tt.err); got != tt.want {
				t.Errorf("IsAuth() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTransport(t *testing.T) {
	if !IsTransport(Transport(http.MethodGet, "/x", 503, nil)) {
		t.Error("IsTransport() = false for transport APIError")
	}
	if !IsTransport(&AnalyticsError{Endpoint: "track", Err: errors.New("dial")}) {
		t.Error("IsTransport() = false for AnalyticsError")
	}
	if IsTransport(Protocol("/x", errors.New("bad json"))) {
		t.Error("IsTransport() = true for protocol error")
	}
}

func TestAnalyticsError_Error(t *testing.T) {
	withStatus := &AnalyticsError{Endpoint: "page-visit", StatusCode: 500}
	if got, want := withStatus.Error(), "analytics page-visit: status 500"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	withCause := &AnalyticsError{Endpoint: "track", Err: errors.New("timeout")}
	if got, want := withCause.Error(), "analytics track: timeout"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
