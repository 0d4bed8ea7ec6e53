package mockbackend

import (
	"log/slog"
	"sync"
	"time"
)

const (
	subscriberBuffer = 32
	historyLimit     = 200
)

// LogEvent is one processing log line for a document.
type LogEvent struct {
	ID        int64     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
}

// Broadcaster fans processing log lines out to the SSE clients of each
// document and keeps a short history for Last-Event-ID resumption.
type Broadcaster struct {
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	nextID  int64
	history map[string][]LogEvent
	subs    map[string]map[chan LogEvent]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *slog.Logger, now func() time.Time) *Broadcaster {
	return &Broadcaster{
		logger:  logger,
		now:     now,
		history: make(map[string][]LogEvent),
		subs:    make(map[string]map[chan LogEvent]struct{}),
	}
}

// Subscribe registers a client for docID. It returns the buffered history
// newer than afterID, the live channel, and a function that unregisters the
// client.
func (b *Broadcaster) Subscribe(docID string, afterID int64) ([]LogEvent, <-chan LogEvent, func()) {
	ch := make(chan LogEvent, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	var backlog []LogEvent
	for _, ev := range b.history[docID] {
		if ev.ID > afterID {
			backlog = append(backlog, ev)
		}
	}

	if b.subs[docID] == nil {
		b.subs[docID] = make(map[chan LogEvent]struct{})
	}
	b.subs[docID][ch] = struct{}{}
	b.logger.Debug("log subscriber registered", slog.String("document_id", docID))

	return backlog, ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[docID], ch)
		if len(b.subs[docID]) == 0 {
			delete(b.subs, docID)
		}
		b.logger.Debug("log subscriber unregistered", slog.String("document_id", docID))
	}
}

// Publish appends a line to docID's log and delivers it to live clients. A
// client whose buffer is full misses the line.
func (b *Broadcaster) Publish(docID, message, typ string) LogEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ev := LogEvent{ID: b.nextID, Timestamp: b.now().UTC(), Message: message, Type: typ}

	h := append(b.history[docID], ev)
	if len(h) > historyLimit {
		h = h[len(h)-historyLimit:]
	}
	b.history[docID] = h

	for ch := range b.subs[docID] {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("log subscriber full, line dropped", slog.String("document_id", docID))
		}
	}
	return ev
}

// Subscribers returns the number of live clients for docID.
func (b *Broadcaster) Subscribers(docID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[docID])
}
