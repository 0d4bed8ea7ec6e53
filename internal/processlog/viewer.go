// Package processlog follows the live processing log of a document over
// Server-Sent Events and keeps the received lines in memory.
package processlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/tjfontaine/portfolio-pulse/internal/httpx"
	"github.com/tjfontaine/portfolio-pulse/internal/stream"
)

// EntryType classifies a log line.
type EntryType string

const (
	TypeInfo    EntryType = "info"
	TypeSuccess EntryType = "success"
	TypeError   EntryType = "error"
)

// Entry is one line of the processing log.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Type      EntryType `json:"type"`
}

// Messages appended by the viewer itself.
const (
	MsgConnected    = "Connected to processing log stream"
	MsgConnectError = "Error connecting to log stream"
	MsgDisconnected = "Log stream disconnected"
	MsgGaveUp       = "Giving up on log stream after repeated failures"
)

const (
	DefaultReconnectDelay   = 3 * time.Second
	DefaultMaxReconnects    = 5
	DefaultPreflightTimeout = 3 * time.Second
	DefaultReadyTimeout     = 2 * time.Second
	DefaultCloseDelay       = 5 * time.Second
)

// ErrNotReady is returned by WaitReady when the stream did not open in time.
var ErrNotReady = errors.New("processlog: stream not ready")

type payload struct {
	Timestamp string    `json:"timestamp"`
	Message   string    `json:"message"`
	Type      EntryType `json:"type"`
}

// Viewer holds the log of at most one document stream at a time.
type Viewer struct {
	baseURL          string
	httpClient       *http.Client
	logger           *slog.Logger
	now              func() time.Time
	onEntry          func(Entry)
	reconnectDelay   time.Duration
	maxReconnects    int
	preflightTimeout time.Duration
	readyTimeout     time.Duration
	closeDelay       time.Duration

	mu        sync.Mutex
	entries   []Entry
	source    *stream.EventSource
	cancel    context.CancelFunc
	ready     chan struct{}
	readyOnce *sync.Once
	done      chan struct{}
	timer     *time.Timer
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Viewer) {
		v.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Viewer) {
		v.logger = l
	}
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(v *Viewer) {
		v.now = now
	}
}

// WithOnEntry registers an observer for every appended entry. It runs on the
// connection goroutine and may call Close, but not Connect.
func WithOnEntry(fn func(Entry)) Option {
	return func(v *Viewer) {
		v.onEntry = fn
	}
}

// WithReconnect sets the first reconnect delay and the maximum number of
// reconnect attempts per Connect. Later delays grow exponentially.
func WithReconnect(delay time.Duration, max int) Option {
	return func(v *Viewer) {
		v.reconnectDelay = delay
		v.maxReconnects = max
	}
}

// WithPreflightTimeout bounds Preflight.
func WithPreflightTimeout(d time.Duration) Option {
	return func(v *Viewer) {
		v.preflightTimeout = d
	}
}

// WithReadyTimeout bounds how long RunWithLogs waits for the stream.
func WithReadyTimeout(d time.Duration) Option {
	return func(v *Viewer) {
		v.readyTimeout = d
	}
}

// WithCloseDelay sets how long RunWithLogs keeps the stream open after the
// mutation finishes.
func WithCloseDelay(d time.Duration) Option {
	return func(v *Viewer) {
		v.closeDelay = d
	}
}

// New creates a viewer for the backend at baseURL.
func New(baseURL string, opts ...Option) *Viewer {
	v := &Viewer{
		baseURL:          baseURL,
		httpClient:       httpx.NewClient(0),
		logger:           slog.Default(),
		now:              time.Now,
		reconnectDelay:   DefaultReconnectDelay,
		maxReconnects:    DefaultMaxReconnects,
		preflightTimeout: DefaultPreflightTimeout,
		readyTimeout:     DefaultReadyTimeout,
		closeDelay:       DefaultCloseDelay,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// TempID returns the placeholder document id used before a document exists.
func TempID(now time.Time) string {
	return "temp_" + strconv.FormatInt(now.UnixMilli(), 10)
}

// StreamURL returns the log stream URL for docID.
func (v *Viewer) StreamURL(docID string) string {
	return httpx.JoinURL(v.baseURL, "/documents/logs/"+docID)
}

func (v *Viewer) newSource(docID string) *stream.EventSource {
	return stream.NewEventSource(v.StreamURL(docID),
		stream.WithEventSourceHTTPClient(v.httpClient),
		stream.WithEventSourceLogger(v.logger),
	)
}

// Preflight opens a throwaway connection and reports whether the stream
// opened before the preflight timeout. The connection is closed immediately.
func (v *Viewer) Preflight(ctx context.Context, docID string) bool {
	ctx, cancel := context.WithTimeout(ctx, v.preflightTimeout)
	defer cancel()

	es := v.newSource(docID)
	_, err := es.Open(ctx)
	es.Close()
	if err != nil {
		v.logger.Debug("log stream preflight failed",
			slog.String("document_id", docID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// Connect replaces any current stream with one for docID. It returns once
// the connection loop is started; use Ready or WaitReady to learn when the
// stream is open. The previous loop, if any, has fully stopped by the time
// the new one starts, so Connect must not be called from an entry observer.
func (v *Viewer) Connect(ctx context.Context, docID string) {
	v.mu.Lock()
	prev := v.done
	v.mu.Unlock()

	v.Close()
	if prev != nil {
		<-prev
	}

	ctx, cancel := context.WithCancel(ctx)
	es := v.newSource(docID)
	ready := make(chan struct{})
	done := make(chan struct{})

	v.mu.Lock()
	v.source = es
	v.cancel = cancel
	v.ready = ready
	v.readyOnce = &sync.Once{}
	v.done = done
	once := v.readyOnce
	v.mu.Unlock()

	go func() {
		defer close(done)
		v.run(ctx, docID, es, func() { once.Do(func() { close(ready) }) })
	}()
}

func (v *Viewer) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = v.reconnectDelay
	b.RandomizationFactor = 0
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(max(v.maxReconnects, 0)))
}

func (v *Viewer) run(ctx context.Context, docID string, es *stream.EventSource, markReady func()) {
	bo := v.newBackOff()
	log := v.logger.With(slog.String("document_id", docID))

	for {
		events, err := es.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("log stream connection failed", slog.String("error", err.Error()))
			v.append(TypeError, MsgConnectError)
		} else {
			v.append(TypeInfo, MsgConnected)
			markReady()
			v.consume(ctx, log, events)
			if ctx.Err() != nil {
				return
			}
			v.append(TypeError, MsgDisconnected)
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			log.Warn("log stream reconnects exhausted", slog.Int("max_reconnects", v.maxReconnects))
			v.append(TypeError, MsgGaveUp)
			return
		}
		if hint := es.RetryHint(); hint > delay {
			delay = hint
		}

		log.Info("reconnecting to log stream", slog.Duration("delay", delay))
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (v *Viewer) consume(ctx context.Context, log *slog.Logger, events <-chan stream.Result) {
	for r := range events {
		if r.Err != nil {
			log.Warn("log stream error", slog.String("error", r.Err.Error()))
			continue
		}

		var p payload
		if err := json.Unmarshal(r.Event.Data, &p); err != nil {
			log.Warn("skipping malformed log event", slog.String("error", err.Error()))
			continue
		}
		v.appendEntry(v.entryFrom(p))
	}
}

func (v *Viewer) entryFrom(p payload) Entry {
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		ts = v.now()
	}
	typ := p.Type
	switch typ {
	case TypeInfo, TypeSuccess, TypeError:
	default:
		typ = TypeInfo
	}
	return Entry{ID: uuid.NewString(), Timestamp: ts, Message: p.Message, Type: typ}
}

func (v *Viewer) append(typ EntryType, msg string) {
	v.appendEntry(Entry{ID: uuid.NewString(), Timestamp: v.now(), Message: msg, Type: typ})
}

func (v *Viewer) appendEntry(e Entry) {
	v.mu.Lock()
	v.entries = append(v.entries, e)
	v.mu.Unlock()
	if v.onEntry != nil {
		v.onEntry(e)
	}
}

// Entries returns a copy of the log.
func (v *Viewer) Entries() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Entry(nil), v.entries...)
}

// Reset empties the log.
func (v *Viewer) Reset() {
	v.mu.Lock()
	v.entries = nil
	v.mu.Unlock()
}

// Ready returns a channel closed when the current stream first opens. It is
// nil before Connect.
func (v *Viewer) Ready() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}

// WaitReady blocks until the current stream opens, d elapses or ctx is done.
func (v *Viewer) WaitReady(ctx context.Context, d time.Duration) error {
	ready := v.Ready()
	if ready == nil {
		return ErrNotReady
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ready:
		return nil
	case <-t.C:
		return ErrNotReady
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the current connection loop has ended.
func (v *Viewer) Wait() {
	v.mu.Lock()
	done := v.done
	v.mu.Unlock()
	if done != nil {
		<-done
	}
}

// State returns the state of the current connection.
func (v *Viewer) State() stream.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.source == nil {
		return stream.StateClosed
	}
	return v.source.State()
}

// Close stops the current stream and any pending reconnect without waiting
// for the connection loop to exit; use Wait for that. It is safe to call
// more than once and from an entry observer.
func (v *Viewer) Close() {
	v.mu.Lock()
	cancel := v.cancel
	es := v.source
	timer := v.timer
	v.cancel = nil
	v.timer = nil
	v.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if es != nil {
		es.Close()
	}
}

// CloseAfter schedules Close after d, replacing any earlier schedule.
func (v *Viewer) CloseAfter(d time.Duration) {
	t := time.AfterFunc(d, v.Close)
	v.mu.Lock()
	prev := v.timer
	v.timer = t
	v.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
}

// RunWithLogs opens the log stream for docID before running mutate, so early
// log lines emitted while the backend handles the mutation are not missed.
// An empty docID uses a temporary id. When the stream is unavailable mutate
// still runs. The stream is closed after the close delay.
func (v *Viewer) RunWithLogs(ctx context.Context, docID string, mutate func(context.Context) error) error {
	if docID == "" {
		docID = TempID(v.now())
	}

	if v.Preflight(ctx, docID) {
		v.Connect(ctx, docID)
		if err := v.WaitReady(ctx, v.readyTimeout); err != nil {
			v.logger.Warn("log stream not ready, continuing",
				slog.String("document_id", docID),
				slog.String("error", err.Error()),
			)
		}
	} else {
		v.logger.Warn("log stream unavailable, continuing without logs", slog.String("document_id", docID))
	}

	err := mutate(ctx)
	v.CloseAfter(v.closeDelay)
	if err != nil {
		return fmt.Errorf("document request failed: %w", err)
	}
	return nil
}
