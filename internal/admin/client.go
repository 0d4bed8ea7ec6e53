// Package admin is a client for the portfolio backend's admin API: session
// management, analytics dashboards, knowledge-base documents and
// notification preferences.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/tjfontaine/portfolio-pulse/internal/apierr"
	"github.com/tjfontaine/portfolio-pulse/internal/httpx"
	"github.com/tjfontaine/portfolio-pulse/internal/localstate"
)

const defaultTimeout = 30 * time.Second

// Client talks to the admin endpoints. Auth hints are mirrored into a
// localstate.Store so a later process can resume the session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	state      localstate.Store
	now        func() time.Time

	mu     sync.Mutex
	token  string
	loaded bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Cookie-based sessions need the client
// to carry a cookie jar.
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

// WithStateStore sets where auth hints are kept.
func WithStateStore(s localstate.Store) Option {
	return func(cl *Client) {
		cl.state = s
	}
}

// WithClock overrides the clock used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		cl.now = now
	}
}

// New creates an admin client. Without WithHTTPClient it uses an
// instrumented client with a cookie jar.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = httpx.NewClient(defaultTimeout)
		jar, _ := cookiejar.New(nil)
		c.httpClient.Jar = jar
	}
	if c.state == nil {
		c.state = localstate.NewMemory()
	}
	return c
}

// Me returns the admin for the current session.
func (c *Client) Me(ctx context.Context) (*Admin, error) {
	var admin Admin
	if err := c.do(ctx, http.MethodGet, "/admin/me", nil, nil, true, &admin); err != nil {
		return nil, err
	}
	if data, err := json.Marshal(admin); err == nil {
		_ = c.state.Set(ctx, localstate.KeyAdmin, string(data))
	}
	return &admin, nil
}

// Login authenticates and stores the session hints. A rejected login is an
// *apierr.APIError carrying the backend message; it does not clear an
// existing session.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var res LoginResult
	if err := c.do(ctx, http.MethodPost, "/admin/login", nil, Credentials{Username: username, Password: password}, false, &res); err != nil {
		return nil, err
	}

	adminJSON, _ := json.Marshal(res.Admin)
	if err := localstate.SaveAuth(ctx, c.state, localstate.AuthHints{
		IsAuthenticated: true,
		Admin:           adminJSON,
		AccessToken:     res.AccessToken,
	}); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	c.mu.Lock()
	c.token = res.AccessToken
	c.loaded = true
	c.mu.Unlock()

	c.logger.Info("admin logged in", slog.String("username", res.Admin.Username))
	return &res, nil
}

// Logout ends the session. The server call is best-effort; local hints are
// always cleared.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/admin/logout", nil, nil, false, nil); err != nil {
		c.logger.Warn("logout request failed", slog.String("error", err.Error()))
	}
	return c.forget(ctx)
}

// LoggedIn reports whether local hints indicate an active session.
func (c *Client) LoggedIn(ctx context.Context) bool {
	h, err := localstate.LoadAuth(ctx, c.state)
	return err == nil && h.IsAuthenticated
}

type statsQuery struct {
	Days int `url:"days"`
}

// DashboardStats returns aggregates over the last days days.
func (c *Client) DashboardStats(ctx context.Context, days int) (*DashboardStats, error) {
	var stats DashboardStats
	if err := c.do(ctx, http.MethodGet, "/admin/dashboard/stats", statsQuery{Days: days}, nil, true, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Interactions returns one page of recorded interactions.
func (c *Client) Interactions(ctx context.Context, q InteractionQuery) (*InteractionPage, error) {
	var page InteractionPage
	if err := c.do(ctx, http.MethodGet, "/interactions/all", q, nil, true, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ChatConversations returns one page of logged chat sessions.
func (c *Client) ChatConversations(ctx context.Context, q ConversationQuery) (*ConversationPage, error) {
	var page ConversationPage
	if err := c.do(ctx, http.MethodGet, "/admin/chat-conversations", q, nil, true, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListDocuments returns every document.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := c.do(ctx, http.MethodGet, "/documents", nil, nil, true, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// GetDocument returns the document with id.
func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil, nil, true, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// CreateDocument uploads a new document.
func (c *Client) CreateDocument(ctx context.Context, in DocumentInput) (*Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodPost, "/documents", nil, in, true, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateDocument patches the document with id.
func (c *Client) UpdateDocument(ctx context.Context, id string, in DocumentInput) (*Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodPatch, "/documents/"+url.PathEscape(id), nil, in, true, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes the document with id.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, nil, true, nil)
}

// NotificationPreferences returns the admin's notification settings.
func (c *Client) NotificationPreferences(ctx context.Context) ([]NotificationPreference, error) {
	var prefs []NotificationPreference
	if err := c.do(ctx, http.MethodGet, "/notifications/preferences", nil, nil, true, &prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// UpdateNotificationPreference stores one preference and returns the saved
// value.
func (c *Client) UpdateNotificationPreference(ctx context.Context, pref NotificationPreference) (*NotificationPreference, error) {
	var saved NotificationPreference
	if err := c.do(ctx, http.MethodPut, "/notifications/preferences", nil, pref, true, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// do performs one request and decodes the envelope's data into out. guarded
// requests carry credentials and treat 401 as session expiry.
func (c *Client) do(ctx context.Context, method, path string, q, body any, guarded bool, out any) error {
	target := httpx.JoinURL(c.baseURL, path)
	if q != nil {
		values, err := query.Values(q)
		if err != nil {
			return fmt.Errorf("failed to encode query: %w", err)
		}
		if len(values) > 0 {
			target += "?" + values.Encode()
		}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, body != nil)

	if guarded {
		if err := c.authorize(ctx, req); err != nil {
			return err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierr.Transport(method, path, 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierr.Transport(method, path, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if guarded && resp.StatusCode == http.StatusUnauthorized {
		return c.expire(ctx, method, path, resp.StatusCode)
	}

	var env Envelope
	var decodeErr error
	if len(bytes.TrimSpace(respBody)) > 0 {
		decodeErr = json.Unmarshal(respBody, &env)
	}

	if !httpx.IsSuccess(resp.StatusCode) {
		if decodeErr == nil && env.Message != "" {
			return apierr.NewAPIError(apierr.KindAPI, env.Message).
				WithRequest(method, path).
				WithStatusCode(resp.StatusCode)
		}
		return apierr.Transport(method, path, resp.StatusCode, nil)
	}
	if decodeErr != nil {
		return apierr.Protocol(path, decodeErr).WithRequest(method, path)
	}
	if !env.OK() {
		msg := env.Message
		if msg == "" {
			msg = "request was not successful"
		}
		return apierr.NewAPIError(apierr.KindAPI, msg).
			WithRequest(method, path).
			WithStatusCode(resp.StatusCode)
	}

	if out != nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return apierr.Protocol(path, err).WithRequest(method, path)
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", httpx.UserAgent)
}

// hasCookies reports whether the jar holds cookies for u.
func (c *Client) hasCookies(u *url.URL) bool {
	return c.httpClient.Jar != nil && len(c.httpClient.Jar.Cookies(u)) > 0
}
