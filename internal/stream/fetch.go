package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/portfolio-pulse/internal/apierr"
	"github.com/tjfontaine/portfolio-pulse/internal/httpx"
)

// FetchSource issues a request whose response body is a newline-delimited
// sequence of "data: <payload>" lines and yields one Event per data line.
// Lines without the data prefix are ignored.
type FetchSource struct {
	client *http.Client
	method string
	url    string
	body   []byte
	header http.Header
	logger *slog.Logger
}

// FetchOption configures a FetchSource.
type FetchOption func(*FetchSource)

// WithFetchHTTPClient sets the HTTP client.
func WithFetchHTTPClient(c *http.Client) FetchOption {
	return func(s *FetchSource) {
		s.client = c
	}
}

// WithFetchHeader adds a request header.
func WithFetchHeader(key, value string) FetchOption {
	return func(s *FetchSource) {
		s.header.Set(key, value)
	}
}

// WithFetchLogger sets the logger.
func WithFetchLogger(l *slog.Logger) FetchOption {
	return func(s *FetchSource) {
		s.logger = l
	}
}

// NewFetchSource creates a source for method and url. body may be nil.
func NewFetchSource(method, url string, body []byte, opts ...FetchOption) *FetchSource {
	s := &FetchSource{
		client: http.DefaultClient,
		method: method,
		url:    url,
		body:   body,
		header: make(http.Header),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open implements Source. A transport failure or non-2xx status is returned
// as an *apierr.APIError before any event is produced.
func (s *FetchSource) Open(ctx context.Context) (<-chan Result, error) {
	var reqBody io.Reader
	if s.body != nil {
		reqBody = bytes.NewReader(s.body)
	}

	req, err := http.NewRequestWithContext(ctx, s.method, s.url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range s.header {
		req.Header[k] = v
	}
	if s.body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", httpx.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apierr.Transport(s.method, req.URL.Path, 0, err)
	}

	if !httpx.IsSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, apierr.Transport(s.method, req.URL.Path, resp.StatusCode, nil)
	}

	s.logger.Debug("stream opened",
		slog.String("method", s.method),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
	)

	out := make(chan Result)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		if err := ReadDataLines(ctx, resp.Body, out); err != nil {
			send(ctx, out, Result{Err: fmt.Errorf("stream read error: %w", err)})
		}
	}()
	return out, nil
}

// ReadDataLines decodes data lines from r and sends them to out in order. A
// trailing line without a terminator is discarded at EOF.
func ReadDataLines(ctx context.Context, r io.Reader, out chan<- Result) error {
	var dec LineDecoder
	err := readChunks(r, func(p []byte) bool {
		for _, line := range dec.Write(p) {
			payload, ok := dataPayload(line)
			if !ok {
				continue
			}
			if !send(ctx, out, Result{Event: &Event{Type: "message", Data: []byte(payload)}}) {
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	return ctx.Err()
}
