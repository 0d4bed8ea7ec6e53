// Package runtime wires the portfolio clients together from configuration:
// interaction tracking, chat, processing logs, the admin API, and the local
// state they share.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/tjfontaine/portfolio-pulse/internal/admin"
	"github.com/tjfontaine/portfolio-pulse/internal/chat"
	"github.com/tjfontaine/portfolio-pulse/internal/config"
	"github.com/tjfontaine/portfolio-pulse/internal/httpx"
	"github.com/tjfontaine/portfolio-pulse/internal/localstate"
	"github.com/tjfontaine/portfolio-pulse/internal/pagetrack"
	"github.com/tjfontaine/portfolio-pulse/internal/processlog"
	"github.com/tjfontaine/portfolio-pulse/internal/tracker"
)

// Portfolio holds the configured clients for one site visitor or admin.
type Portfolio struct {
	cfg          *config.Config
	logger       *slog.Logger
	state        localstate.Store
	ownsState    bool
	httpClient   *http.Client
	streamClient *http.Client

	tracker *tracker.Client
	admin   *admin.Client
}

// New creates a Portfolio. Without WithFileConfig or WithConfig the default
// configuration file and environment are loaded.
func New(opts ...Option) (*Portfolio, error) {
	p := &Portfolio{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if p.cfg == nil {
		cfg, err := config.Load("")
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		p.cfg = cfg
	}

	if p.state == nil {
		store, err := localstate.Open(p.cfg.State.Driver, p.cfg.State.Path)
		if err != nil {
			return nil, fmt.Errorf("open local state: %w", err)
		}
		p.state = store
		p.ownsState = true
	}

	if p.httpClient == nil {
		p.httpClient = httpx.NewClient(p.cfg.API.Timeout)
		jar, _ := cookiejar.New(nil)
		p.httpClient.Jar = jar
	}
	if p.streamClient == nil {
		p.streamClient = httpx.NewClient(0)
		p.streamClient.Jar = p.httpClient.Jar
	}

	p.tracker = tracker.New(p.cfg.API.BaseURL,
		tracker.WithHTTPClient(p.httpClient),
		tracker.WithLogger(p.logger),
		tracker.WithSiteURL(p.cfg.Site.URL),
		tracker.WithUserAgent(p.cfg.Site.UserAgent),
	)
	p.admin = admin.New(p.cfg.API.BaseURL,
		admin.WithHTTPClient(p.httpClient),
		admin.WithLogger(p.logger),
		admin.WithStateStore(p.state),
	)

	p.logger.Debug("portfolio clients ready",
		slog.String("base_url", p.cfg.API.BaseURL),
		slog.String("state_driver", p.cfg.State.Driver),
	)
	return p, nil
}

// Config returns the active configuration.
func (p *Portfolio) Config() *config.Config {
	return p.cfg
}

// State returns the local state store.
func (p *Portfolio) State() localstate.Store {
	return p.state
}

// Tracker returns the shared interaction tracker.
func (p *Portfolio) Tracker() *tracker.Client {
	return p.tracker
}

// Admin returns the admin API client.
func (p *Portfolio) Admin() *admin.Client {
	return p.admin
}

// NewPageTracker returns lifecycle tracking for page, reporting through the
// shared tracker.
func (p *Portfolio) NewPageTracker(page string, opts ...pagetrack.Option) *pagetrack.PageTracker {
	return pagetrack.New(p.tracker, page, opts...)
}

// NewChat returns a chat widget transport with its own session.
func (p *Portfolio) NewChat(opts ...chat.Option) *chat.Transport {
	base := []chat.Option{
		chat.WithHTTPClient(p.streamClient),
		chat.WithLogger(p.logger),
		chat.WithEndpoint(p.cfg.Chat.Endpoint),
	}
	return chat.New(p.cfg.API.BaseURL, append(base, opts...)...)
}

// NewLogViewer returns a processing log viewer using the configured
// reconnect and timing settings.
func (p *Portfolio) NewLogViewer(opts ...processlog.Option) *processlog.Viewer {
	logs := p.cfg.Logs
	base := []processlog.Option{
		processlog.WithHTTPClient(p.streamClient),
		processlog.WithLogger(p.logger),
		processlog.WithReconnect(logs.ReconnectDelay, logs.MaxReconnects),
		processlog.WithPreflightTimeout(logs.PreflightTimeout),
		processlog.WithReadyTimeout(logs.ReadyTimeout),
		processlog.WithCloseDelay(logs.CloseDelay),
	}
	return processlog.New(p.cfg.API.BaseURL, append(base, opts...)...)
}

// UploadDocument creates a document while streaming its processing log.
// The log stream is opened on a temporary id before the document exists and
// the backend is told to publish to it. The returned viewer closes itself
// after the configured close delay; call Wait to block until then.
func (p *Portfolio) UploadDocument(ctx context.Context, in admin.DocumentInput, opts ...processlog.Option) (*admin.Document, *processlog.Viewer, error) {
	v := p.NewLogViewer(opts...)
	in.LogID = processlog.TempID(time.Now())

	var doc *admin.Document
	err := v.RunWithLogs(ctx, in.LogID, func(ctx context.Context) error {
		var err error
		doc, err = p.admin.CreateDocument(ctx, in)
		return err
	})
	return doc, v, err
}

// UpdateDocument patches a document while streaming its processing log.
func (p *Portfolio) UpdateDocument(ctx context.Context, id string, in admin.DocumentInput, opts ...processlog.Option) (*admin.Document, *processlog.Viewer, error) {
	v := p.NewLogViewer(opts...)
	in.LogID = ""

	var doc *admin.Document
	err := v.RunWithLogs(ctx, id, func(ctx context.Context) error {
		var err error
		doc, err = p.admin.UpdateDocument(ctx, id, in)
		return err
	})
	return doc, v, err
}

// Theme returns the persisted site theme.
func (p *Portfolio) Theme(ctx context.Context) (localstate.Theme, error) {
	return localstate.LoadTheme(ctx, p.state)
}

// SetTheme persists the site theme.
func (p *Portfolio) SetTheme(ctx context.Context, t localstate.Theme) error {
	return localstate.SaveTheme(ctx, p.state, t)
}

// Close waits for in-flight tracking events and closes local state opened
// by New.
func (p *Portfolio) Close() error {
	p.tracker.Wait()
	if p.ownsState {
		return p.state.Close()
	}
	return nil
}
