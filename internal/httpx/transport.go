// Package httpx builds the instrumented HTTP clients shared by the portfolio clients.
package httpx

import (
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// UserAgent is sent on every outgoing request unless overridden.
const UserAgent = "portfolio-pulse/1.0"

// DefaultTransport dials with a bounded connect timeout but places no limit on
// the response body, so long-lived streams are not cut off.
var DefaultTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	MaxIdleConns:          20,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   5 * time.Second,
	ExpectContinueTimeout: time.Second,
}

// NewClient returns an HTTP client traced with OpenTelemetry. A zero timeout
// leaves request lifetime to the caller's context.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(DefaultTransport),
		Timeout:   timeout,
	}
}

// JoinURL joins a base URL and a path without doubling slashes.
func JoinURL(baseURL, path string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// IsSuccess reports whether status is in the 2xx range.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
