package stream

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tjfontaine/portfolio-pulse/internal/apierr"
	"github.com/tjfontaine/portfolio-pulse/internal/httpx"
)

// State is the connection state of an EventSource.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventSource is a Server-Sent Events client for a single URL. It is
// restartable: calling Open again after the stream ends reconnects and sends
// the last seen event id.
type EventSource struct {
	client *http.Client
	url    string
	header http.Header
	logger *slog.Logger

	state atomic.Int32

	mu          sync.Mutex
	lastEventID string
	retry       time.Duration
	cancel      context.CancelFunc
}

// EventSourceOption configures an EventSource.
type EventSourceOption func(*EventSource)

// WithEventSourceHTTPClient sets the HTTP client.
func WithEventSourceHTTPClient(c *http.Client) EventSourceOption {
	return func(es *EventSource) {
		es.client = c
	}
}

// WithEventSourceHeader adds a request header.
func WithEventSourceHeader(key, value string) EventSourceOption {
	return func(es *EventSource) {
		es.header.Set(key, value)
	}
}

// WithEventSourceLogger sets the logger.
func WithEventSourceLogger(l *slog.Logger) EventSourceOption {
	return func(es *EventSource) {
		es.logger = l
	}
}

// NewEventSource creates a client for url. It does not connect until Open.
func NewEventSource(url string, opts ...EventSourceOption) *EventSource {
	es := &EventSource{
		client: http.DefaultClient,
		url:    url,
		header: make(http.Header),
		logger: slog.Default(),
	}
	es.state.Store(int32(StateClosed))
	for _, opt := range opts {
		opt(es)
	}
	return es
}

// URL returns the stream URL.
func (es *EventSource) URL() string {
	return es.url
}

// State returns the current connection state.
func (es *EventSource) State() State {
	return State(es.state.Load())
}

// LastEventID returns the id of the most recent event that carried one.
func (es *EventSource) LastEventID() string {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.lastEventID
}

// RetryHint returns the reconnection delay requested by the server, or zero.
func (es *EventSource) RetryHint() time.Duration {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.retry
}

// Open connects and returns the event channel. The connection is open when
// Open returns nil. A response that is not 200 text/event-stream fails the
// connection and leaves the source closed.
func (es *EventSource) Open(ctx context.Context) (<-chan Result, error) {
	es.state.Store(int32(StateConnecting))

	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, es.url, nil)
	if err != nil {
		cancel()
		es.state.Store(int32(StateClosed))
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range es.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", httpx.UserAgent)
	}
	lastID := es.LastEventID()
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}

	resp, err := es.client.Do(req)
	if err != nil {
		cancel()
		es.state.Store(int32(StateClosed))
		return nil, apierr.NewAPIError(apierr.KindStream, "connection failed").
			WithRequest(http.MethodGet, req.URL.Path).
			WithCause(err)
	}

	if resp.StatusCode != http.StatusOK || !isEventStream(resp.Header.Get("Content-Type")) {
		resp.Body.Close()
		cancel()
		es.state.Store(int32(StateClosed))
		return nil, apierr.NewAPIError(apierr.KindStream, "not an event stream").
			WithRequest(http.MethodGet, req.URL.Path).
			WithStatusCode(resp.StatusCode)
	}

	es.mu.Lock()
	es.cancel = cancel
	es.mu.Unlock()
	es.state.Store(int32(StateOpen))

	es.logger.Debug("event source open", slog.String("url", es.url))

	out := make(chan Result)
	go func() {
		defer close(out)
		defer cancel()
		defer resp.Body.Close()
		defer es.state.Store(int32(StateClosed))

		// The id buffer carries over from the previous connection.
		p := sseParser{id: lastID, lastID: lastID}
		err := readChunks(resp.Body, func(b []byte) bool {
			for _, ev := range p.feed(b) {
				// An empty id resets the last event id.
				es.mu.Lock()
				es.lastEventID = ev.ID
				es.mu.Unlock()
				if p.retry > 0 {
					es.mu.Lock()
					es.retry = p.retry
					es.mu.Unlock()
				}
				if !send(ctx, out, Result{Event: ev}) {
					return false
				}
			}
			// A blank line after "id:" with no data still moves the id.
			es.mu.Lock()
			es.lastEventID = p.lastID
			es.mu.Unlock()
			return true
		})
		if err != nil && ctx.Err() == nil {
			send(ctx, out, Result{Err: apierr.NewAPIError(apierr.KindStream, "stream interrupted").
				WithRequest(http.MethodGet, req.URL.Path).
				WithCause(err)})
		}
	}()

	return out, nil
}

// Close terminates the current connection, if any.
func (es *EventSource) Close() {
	es.mu.Lock()
	cancel := es.cancel
	es.cancel = nil
	es.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	es.state.Store(int32(StateClosed))
}

func isEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/event-stream"
}

// sseParser implements the text/event-stream field grammar.
type sseParser struct {
	lines   LineDecoder
	id      string
	lastID  string
	event   string
	data    strings.Builder
	hasData bool
	retry   time.Duration
}

func (p *sseParser) feed(b []byte) []*Event {
	var events []*Event
	for _, line := range p.lines.Write(b) {
		if ev := p.line(line); ev != nil {
			events = append(events, ev)
		}
	}
	return events
}

func (p *sseParser) line(line string) *Event {
	if line == "" {
		return p.dispatch()
	}
	if strings.HasPrefix(line, ":") {
		return nil
	}

	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "event":
		p.event = value
	case "data":
		if p.hasData {
			p.data.WriteByte('\n')
		}
		p.data.WriteString(value)
		p.hasData = true
	case "id":
		if !strings.ContainsRune(value, 0) {
			p.id = value
		}
	case "retry":
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			p.retry = time.Duration(ms) * time.Millisecond
		}
	}
	return nil
}

func (p *sseParser) dispatch() *Event {
	defer func() {
		p.event = ""
		p.data.Reset()
		p.hasData = false
	}()

	p.lastID = p.id
	if !p.hasData {
		return nil
	}

	eventType := p.event
	if eventType == "" {
		eventType = "message"
	}
	return &Event{
		ID:   p.id,
		Type: eventType,
		Data: []byte(p.data.String()),
	}
}
