package processlog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/portfolio-pulse/internal/stream"
)

func startStream(w http.ResponseWriter) http.Flusher {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	f := w.(http.Flusher)
	f.Flush()
	return f
}

func writeEvent(w http.ResponseWriter, f http.Flusher, lines ...string) {
	for _, l := range lines {
		fmt.Fprintf(w, "%s\n", l)
	}
	fmt.Fprint(w, "\n")
	f.Flush()
}

type entrySink struct {
	ch chan Entry
}

func newSink() *entrySink {
	return &entrySink{ch: make(chan Entry, 64)}
}

func (s *entrySink) observe(e Entry) {
	s.ch <- e
}

func (s *entrySink) next(t *testing.T) Entry {
	t.Helper()
	select {
	case e := <-s.ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for log entry")
		return Entry{}
	}
}

func TestConnect_AppendsEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/documents/logs/doc-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		f := startStream(w)
		writeEvent(w, f, `data: {"timestamp":"2024-05-01T10:00:00Z","message":"Parsing PDF","type":"info"}`)
		writeEvent(w, f, `data: not json`)
		writeEvent(w, f, `data: {"timestamp":"2024-05-01T10:00:02Z","message":"Embedded 12 chunks","type":"success"}`)
		<-r.Context().Done()
	}))
	defer srv.Close()

	sink := newSink()
	v := New(srv.URL+"/api", WithOnEntry(sink.observe))
	defer v.Close()

	v.Connect(context.Background(), "doc-1")

	want := []struct {
		msg string
		typ EntryType
	}{
		{MsgConnected, TypeInfo},
		{"Parsing PDF", TypeInfo},
		{"Embedded 12 chunks", TypeSuccess},
	}
	for _, w := range want {
		e := sink.next(t)
		if e.Message != w.msg || e.Type != w.typ {
			t.Errorf("entry = (%q, %s), want (%q, %s)", e.Message, e.Type, w.msg, w.typ)
		}
		if e.ID == "" {
			t.Error("entry has no id")
		}
	}

	if err := v.WaitReady(context.Background(), time.Second); err != nil {
		t.Errorf("WaitReady() error = %v", err)
	}
	if v.State() != stream.StateOpen {
		t.Errorf("State() = %s, want open", v.State())
	}

	entries := v.Entries()
	if got := entries[1].Timestamp; !got.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", got)
	}

	v.Close()
	v.Close()
	v.Wait()
	if v.State() != stream.StateClosed {
		t.Errorf("State() after Close = %s, want closed", v.State())
	}
	if n := len(v.Entries()); n != 3 {
		t.Errorf("entries = %d, want 3", n)
	}
}

func TestClose_FromEntryObserver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := startStream(w)
		writeEvent(w, f, `data: {"message":"Processing complete","type":"success"}`)
		<-r.Context().Done()
	}))
	defer srv.Close()

	var v *Viewer
	v = New(srv.URL, WithOnEntry(func(e Entry) {
		if e.Type == TypeSuccess {
			v.Close()
		}
	}))
	v.Connect(context.Background(), "doc-1")

	done := make(chan struct{})
	go func() {
		v.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close from an entry observer did not stop the connection loop")
	}

	entries := v.Entries()
	if len(entries) != 2 || entries[1].Type != TypeSuccess {
		t.Errorf("entries = %+v, want connected then success", entries)
	}
	if v.State() != stream.StateClosed {
		t.Errorf("State() = %s, want closed", v.State())
	}
}

func TestConnect_WaitsForPreviousLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := startStream(w)
		writeEvent(w, f, `data: {"message":"`+strings.TrimPrefix(r.URL.Path, "/documents/logs/")+`","type":"info"}`)
		<-r.Context().Done()
	}))
	defer srv.Close()

	sink := newSink()
	v := New(srv.URL, WithOnEntry(sink.observe))
	defer v.Close()

	v.Connect(context.Background(), "doc-1")
	sink.next(t)
	if e := sink.next(t); e.Message != "doc-1" {
		t.Fatalf("first stream entry = %q, want doc-1", e.Message)
	}

	v.Connect(context.Background(), "doc-2")
	sink.next(t)
	if e := sink.next(t); e.Message != "doc-2" {
		t.Errorf("second stream entry = %q, want doc-2", e.Message)
	}
	for _, e := range v.Entries() {
		if e.Message == MsgDisconnected {
			t.Errorf("replaced stream reported a disconnect: %+v", e)
		}
	}
}

func TestConnect_ReconnectsAreBounded(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := New(srv.URL, WithReconnect(time.Millisecond, 2))
	v.Connect(context.Background(), "doc-1")
	v.Wait()

	if got := hits.Load(); got != 3 {
		t.Errorf("connection attempts = %d, want 3", got)
	}

	entries := v.Entries()
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	for _, e := range entries[:3] {
		if e.Message != MsgConnectError || e.Type != TypeError {
			t.Errorf("entry = %+v, want connect error", e)
		}
	}
	if entries[3].Message != MsgGaveUp {
		t.Errorf("last entry = %q, want %q", entries[3].Message, MsgGaveUp)
	}
}

func TestConnect_ReconnectSendsLastEventID(t *testing.T) {
	var hits atomic.Int32
	var mu sync.Mutex
	var lastIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		mu.Lock()
		lastIDs = append(lastIDs, r.Header.Get("Last-Event-ID"))
		mu.Unlock()

		f := startStream(w)
		if n == 1 {
			writeEvent(w, f, "id: 7", `data: {"message":"step one","type":"info"}`)
			return
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	sink := newSink()
	v := New(srv.URL, WithReconnect(time.Millisecond, 5), WithOnEntry(sink.observe))
	defer v.Close()

	v.Connect(context.Background(), "doc-9")

	wantMsgs := []string{MsgConnected, "step one", MsgDisconnected, MsgConnected}
	for _, want := range wantMsgs {
		if e := sink.next(t); e.Message != want {
			t.Errorf("entry = %q, want %q", e.Message, want)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(lastIDs) != 2 || lastIDs[0] != "" || lastIDs[1] != "7" {
		t.Errorf("Last-Event-ID headers = %q, want [\"\" \"7\"]", lastIDs)
	}
}

func TestPreflight(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    bool
	}{
		{
			name: "event stream",
			handler: func(w http.ResponseWriter, r *http.Request) {
				startStream(w)
				<-r.Context().Done()
			},
			want: true,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			want: false,
		},
		{
			name: "json instead of stream",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{}`))
			},
			want: false,
		},
		{
			name: "hanging server",
			handler: func(w http.ResponseWriter, r *http.Request) {
				<-r.Context().Done()
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			v := New(srv.URL, WithPreflightTimeout(100*time.Millisecond))
			start := time.Now()
			if got := v.Preflight(context.Background(), "doc"); got != tt.want {
				t.Errorf("Preflight() = %v, want %v", got, tt.want)
			}
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("Preflight() took %v", elapsed)
			}
		})
	}
}

func TestRunWithLogs(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		startStream(w)
		<-r.Context().Done()
	}))
	defer srv.Close()

	fixed := time.UnixMilli(1700000000000)
	v := New(srv.URL,
		WithClock(func() time.Time { return fixed }),
		WithCloseDelay(10*time.Millisecond),
	)
	defer v.Close()

	var stateDuringMutate stream.State
	err := v.RunWithLogs(context.Background(), "", func(ctx context.Context) error {
		stateDuringMutate = v.State()
		return nil
	})
	if err != nil {
		t.Fatalf("RunWithLogs() error = %v", err)
	}
	if stateDuringMutate != stream.StateOpen {
		t.Errorf("state during mutate = %s, want open", stateDuringMutate)
	}

	deadline := time.Now().Add(5 * time.Second)
	for v.State() != stream.StateClosed {
		if time.Now().After(deadline) {
			t.Fatal("stream not closed after close delay")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, p := range paths {
		if p != "/documents/logs/temp_1700000000000" {
			t.Errorf("path = %s, want temp id stream", p)
		}
	}
	if len(paths) != 2 {
		t.Errorf("connections = %d, want 2 (preflight + stream)", len(paths))
	}
}

func TestRunWithLogs_StreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	v := New(srv.URL, WithCloseDelay(time.Millisecond))
	defer v.Close()

	called := false
	mutateErr := errors.New("upload rejected")
	err := v.RunWithLogs(context.Background(), "doc-3", func(context.Context) error {
		called = true
		return mutateErr
	})
	if !called {
		t.Error("mutate was not called")
	}
	if !errors.Is(err, mutateErr) {
		t.Errorf("RunWithLogs() error = %v, want wrapped mutate error", err)
	}
	if len(v.Entries()) != 0 {
		t.Errorf("entries = %v, want none", v.Entries())
	}
}

func TestTempID(t *testing.T) {
	got := TempID(time.UnixMilli(1234))
	if got != "temp_1234" {
		t.Errorf("TempID() = %s, want temp_1234", got)
	}
	if !strings.HasPrefix(TempID(time.Now()), "temp_") {
		t.Error("TempID() missing prefix")
	}
}

func TestViewer_CloseWithoutConnect(t *testing.T) {
	v := New("http://localhost")
	v.Close()
	v.Wait()
	if v.State() != stream.StateClosed {
		t.Errorf("State() = %s, want closed", v.State())
	}
	if err := v.WaitReady(context.Background(), time.Millisecond); !errors.Is(err, ErrNotReady) {
		t.Errorf("WaitReady() error = %v, want ErrNotReady", err)
	}
}
