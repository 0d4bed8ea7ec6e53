// Package chat implements the streaming chat widget transport: one user turn
// at a time, an assistant placeholder that is filled in as frames arrive, and
// best-effort history clearing.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/portfolio-pulse/internal/httpx"
	"github.com/tjfontaine/portfolio-pulse/internal/session"
	"github.com/tjfontaine/portfolio-pulse/internal/stream"
)

// DefaultEndpoint is the send path relative to the API base URL.
const DefaultEndpoint = "/chat/send"

// FallbackMessage replaces the assistant placeholder when a turn aborts.
const FallbackMessage = "Sorry, I encountered an error. Please try again."

var (
	// ErrBusy is returned when a turn is already in flight.
	ErrBusy = errors.New("chat: a message is already being sent")

	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("chat: message is empty")
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the chat transcript.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Outcome is the terminal state of a turn.
type Outcome string

const (
	// OutcomeStreamed means the stream ended without a complete or error frame.
	OutcomeStreamed Outcome = "streamed"
	OutcomeComplete Outcome = "complete"
	OutcomeError    Outcome = "error"
	OutcomeAborted  Outcome = "aborted"
)

// Phase is the position of the transport in the turn state machine.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSending   Phase = "sending"
	PhaseStreaming Phase = "streaming"
)

// SourceFactory opens the stream for one outgoing message.
type SourceFactory func(req SendRequest) stream.Source

// SendRequest is the body POSTed to the chat endpoint.
type SendRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// Transport owns one widget's transcript.
type Transport struct {
	baseURL    string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	newSource  SourceFactory
	onUpdate   func([]Message)
	now        func() time.Time

	sessionID string

	mu       sync.Mutex
	messages []Message
	loading  bool
	phase    Phase
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		t.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = l
	}
}

// WithSourceFactory replaces the stream used for each turn.
func WithSourceFactory(f SourceFactory) Option {
	return func(t *Transport) {
		t.newSource = f
	}
}

// WithOnUpdate registers an observer called with a transcript snapshot after
// every change. It is called without internal locks held.
func WithOnUpdate(fn func([]Message)) Option {
	return func(t *Transport) {
		t.onUpdate = fn
	}
}

// WithEndpoint overrides the send path, relative to the base URL.
func WithEndpoint(path string) Option {
	return func(t *Transport) {
		t.endpoint = path
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(t *Transport) {
		t.sessionID = id
	}
}

// New creates a transport with a fresh session id.
func New(baseURL string, opts ...Option) *Transport {
	t := &Transport{
		baseURL:    baseURL,
		endpoint:   DefaultEndpoint,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		now:        time.Now,
		sessionID:  session.NewID(),
		phase:      PhaseIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.newSource == nil {
		t.newSource = t.fetchSource
	}
	return t
}

func (t *Transport) fetchSource(req SendRequest) stream.Source {
	body, _ := json.Marshal(req)
	return stream.NewFetchSource(http.MethodPost, httpx.JoinURL(t.baseURL, t.endpoint), body,
		stream.WithFetchHTTPClient(t.httpClient),
		stream.WithFetchLogger(t.logger),
	)
}

// SessionID returns the widget's session id.
func (t *Transport) SessionID() string {
	return t.sessionID
}

// Messages returns a copy of the transcript.
func (t *Transport) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.messages...)
}

// IsLoading reports whether a turn is in flight.
func (t *Transport) IsLoading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loading
}

// Phase returns the current turn phase.
func (t *Transport) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Send runs one turn for text. Stream and transport failures are absorbed
// into the transcript; the returned error is only ErrBusy or ErrEmptyMessage.
func (t *Transport) Send(ctx context.Context, text string) (Outcome, error) {
	return t.runTurn(ctx, text)
}

// SendSuggested sends a canned question exactly as if the user typed it.
func (t *Transport) SendSuggested(ctx context.Context, question string) (Outcome, error) {
	return t.runTurn(ctx, question)
}

func (t *Transport) runTurn(ctx context.Context, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}

	t.mu.Lock()
	if t.loading {
		t.mu.Unlock()
		return "", ErrBusy
	}
	t.loading = true
	t.phase = PhaseSending
	now := t.now()
	t.messages = append(t.messages,
		Message{ID: uuid.NewString(), Role: RoleUser, Content: text, Timestamp: now},
		Message{ID: uuid.NewString(), Role: RoleAssistant, Timestamp: now},
	)
	placeholderID := t.messages[len(t.messages)-1].ID
	t.mu.Unlock()
	t.notify()

	defer func() {
		t.mu.Lock()
		t.loading = false
		t.phase = PhaseIdle
		t.mu.Unlock()
		t.notify()
	}()

	outcome, err := t.consume(ctx, placeholderID, SendRequest{Message: text, SessionID: t.sessionID})
	if err != nil {
		t.logger.Error("chat turn aborted",
			slog.String("session_id", t.sessionID),
			slog.String("error", err.Error()),
		)
		t.update(placeholderID, func(m *Message) { m.Content = FallbackMessage })
		return OutcomeAborted, nil
	}
	return outcome, nil
}

// consume applies frames to the placeholder in arrival order.
func (t *Transport) consume(ctx context.Context, placeholderID string, req SendRequest) (Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := t.newSource(req).Open(ctx)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	t.phase = PhaseStreaming
	t.mu.Unlock()

	outcome := OutcomeStreamed
	for r := range results {
		if r.Err != nil {
			return "", r.Err
		}

		frame, err := stream.DecodeFrame(r.Event.Data)
		if err != nil {
			t.logger.Warn("skipping malformed chat frame",
				slog.String("session_id", t.sessionID),
				slog.String("error", err.Error()),
			)
			continue
		}

		switch frame.Type {
		case stream.FrameChunk:
			t.update(placeholderID, func(m *Message) { m.Content += frame.Content })
		case stream.FrameComplete:
			t.update(placeholderID, func(m *Message) { m.Content = frame.Message })
			outcome = OutcomeComplete
		case stream.FrameError:
			t.update(placeholderID, func(m *Message) { m.Content = frame.Message })
			outcome = OutcomeError
		default:
			t.logger.Debug("ignoring chat frame", slog.String("type", string(frame.Type)))
		}
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("chat stream cancelled: %w", err)
	}
	return outcome, nil
}

// Clear asks the backend to drop the session history and always empties the
// local transcript.
func (t *Transport) Clear(ctx context.Context) {
	path := "/chat/history/" + t.sessionID
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, httpx.JoinURL(t.baseURL, path), nil)
	if err == nil {
		req.Header.Set("User-Agent", httpx.UserAgent)
		var resp *http.Response
		resp, err = t.httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if !httpx.IsSuccess(resp.StatusCode) {
				err = fmt.Errorf("status %d", resp.StatusCode)
			}
		}
	}
	if err != nil {
		t.logger.Warn("failed to clear chat history",
			slog.String("session_id", t.sessionID),
			slog.String("error", err.Error()),
		)
	}

	t.mu.Lock()
	t.messages = nil
	t.mu.Unlock()
	t.notify()
}

func (t *Transport) update(id string, fn func(*Message)) {
	t.mu.Lock()
	for i := range t.messages {
		if t.messages[i].ID == id {
			fn(&t.messages[i])
			break
		}
	}
	t.mu.Unlock()
	t.notify()
}

func (t *Transport) notify() {
	if t.onUpdate == nil {
		return
	}
	t.onUpdate(t.Messages())
}
