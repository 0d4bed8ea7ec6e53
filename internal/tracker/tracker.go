// Package tracker emits visitor interaction events to the portfolio
// analytics endpoints. Delivery is best-effort: failures are reported to the
// caller as *apierr.AnalyticsError values that are meant to be logged, never
// surfaced to the visitor.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/tjfontaine/portfolio-pulse/internal/apierr"
	"github.com/tjfontaine/portfolio-pulse/internal/httpx"
	"github.com/tjfontaine/portfolio-pulse/internal/session"
)

// DefaultBaseURL is used when no API base URL is configured.
const DefaultBaseURL = "http://localhost:5000/api"

// EventKind tags an interaction event. The set is open; kinds without a
// dedicated endpoint are sent to the generic track endpoint.
type EventKind string

const (
	KindPageVisit      EventKind = "page_visit"
	KindButtonClick    EventKind = "button_click"
	KindFormSubmission EventKind = "form_submission"
	KindLinkClick      EventKind = "link_click"
	KindScrollDepth    EventKind = "scroll_depth"
	KindTimeSpent      EventKind = "time_spent"
	KindResumeDownload EventKind = "resume_download"
	KindProjectView    EventKind = "project_view"
	KindSkillView      EventKind = "skill_view"
	KindSocialClick    EventKind = "social_media_click"
	KindContactForm    EventKind = "contact_form"
)

// dedicatedEndpoints maps kinds the backend accepts on their own route.
var dedicatedEndpoints = map[EventKind]string{
	KindResumeDownload: "resume-download",
	KindPageVisit:      "page-visit",
	KindButtonClick:    "button-click",
	KindFormSubmission: "form-submission",
}

// EndpointFor returns the interactions endpoint for kind and whether the
// request body must carry a type discriminator.
func EndpointFor(kind EventKind) (endpoint string, discriminated bool) {
	if ep, ok := dedicatedEndpoints[kind]; ok {
		return ep, false
	}
	return "track", true
}

// Client sends interaction events for one visitor session. It is safe for
// concurrent use; all fields are fixed after New.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	sessionID  string
	userAgent  string
	siteURL    string
	now        func() time.Time

	inflight sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// WithUserAgent records ua in every event's metadata.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// WithSiteURL records the page URL (site URL joined with the page name) in
// every event's metadata.
func WithSiteURL(u string) Option {
	return func(cl *Client) {
		cl.siteURL = u
	}
}

// WithClock overrides the clock used for metadata timestamps.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		cl.now = now
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(cl *Client) {
		cl.sessionID = id
	}
}

// New creates a client with a fresh session id. An empty baseURL selects
// DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: httpx.NewClient(0),
		logger:     slog.Default(),
		sessionID:  session.NewID(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID returns the id attached to every event sent by c.
func (c *Client) SessionID() string {
	return c.sessionID
}

// BaseURL returns the analytics base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Track sends one event. Routing to the backend endpoint is derived from
// kind. The decoded response body is returned on success.
func (c *Client) Track(ctx context.Context, kind EventKind, page, element string, metadata map[string]any) (json.RawMessage, error) {
	endpoint, discriminated := EndpointFor(kind)

	data := map[string]any{
		"page":     page,
		"metadata": c.augment(page, metadata),
	}
	if element != "" {
		data["element"] = element
	}
	if discriminated {
		data["type"] = string(kind)
	}
	return c.post(ctx, endpoint, data)
}

// TrackInteraction posts data to the named interactions endpoint with the
// session id merged in. Any failure is logged and yields nil.
func (c *Client) TrackInteraction(ctx context.Context, endpoint string, data map[string]any) json.RawMessage {
	body, err := c.post(ctx, endpoint, data)
	if err != nil {
		c.logFailure(err)
		return nil
	}
	return body
}

// Fire sends an event on a background goroutine. The caller's cancellation
// does not abort delivery; failures are only logged. Use Wait to drain
// in-flight events before exit.
func (c *Client) Fire(ctx context.Context, kind EventKind, page, element string, metadata map[string]any) {
	ctx = context.WithoutCancel(ctx)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if _, err := c.Track(ctx, kind, page, element, metadata); err != nil {
			c.logFailure(err)
		}
	}()
}

// Wait blocks until every event started with Fire has finished.
func (c *Client) Wait() {
	c.inflight.Wait()
}

func (c *Client) augment(page string, metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata)+3)
	maps.Copy(out, metadata)
	if _, ok := out["timestamp"]; !ok {
		out["timestamp"] = c.now().UTC().Format(time.RFC3339Nano)
	}
	if _, ok := out["userAgent"]; !ok && c.userAgent != "" {
		out["userAgent"] = c.userAgent
	}
	if _, ok := out["url"]; !ok && c.siteURL != "" {
		out["url"] = httpx.JoinURL(c.siteURL, page)
	}
	return out
}

func (c *Client) post(ctx context.Context, endpoint string, data map[string]any) (json.RawMessage, error) {
	payload := make(map[string]any, len(data)+1)
	maps.Copy(payload, data)
	payload["sessionId"] = c.sessionID

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, c.fail(ctx, endpoint, &apierr.AnalyticsError{Endpoint: endpoint, Err: fmt.Errorf("failed to marshal event: %w", err)})
	}

	url := httpx.JoinURL(c.baseURL, "/interactions/"+endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(ctx, endpoint, &apierr.AnalyticsError{Endpoint: endpoint, Err: fmt.Errorf("failed to create request: %w", err)})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", httpx.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(ctx, endpoint, &apierr.AnalyticsError{Endpoint: endpoint, Err: err})
	}
	defer resp.Body.Close()

	if !httpx.IsSuccess(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, c.fail(ctx, endpoint, &apierr.AnalyticsError{Endpoint: endpoint, StatusCode: resp.StatusCode})
	}

	var decoded json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, c.fail(ctx, endpoint, &apierr.AnalyticsError{Endpoint: endpoint, Err: fmt.Errorf("failed to decode response: %w", err)})
	}

	recordSent(ctx, endpoint)
	return decoded, nil
}

func (c *Client) fail(ctx context.Context, endpoint string, err *apierr.AnalyticsError) error {
	recordFailed(ctx, endpoint)
	return err
}

func (c *Client) logFailure(err error) {
	c.logger.Warn("interaction not recorded",
		slog.String("session_id", c.sessionID),
		slog.String("error", err.Error()),
	)
}
