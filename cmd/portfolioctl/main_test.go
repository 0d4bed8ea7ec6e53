package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/tjfontaine/portfolio-pulse/internal/chat"
	"github.com/tjfontaine/portfolio-pulse/internal/config"
)

func TestParsePairs(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]string
		wantErr bool
	}{
		{"empty", nil, map[string]string{}, false},
		{"pairs", []string{"a=1", "b=x=y"}, map[string]string{"a": "1", "b": "x=y"}, false},
		{"empty value", []string{"a="}, map[string]string{"a": ""}, false},
		{"missing equals", []string{"a"}, nil, true},
		{"missing key", []string{"=1"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePairs(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePairs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parsePairs() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("parsePairs()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestReplyPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &replyPrinter{w: &buf}
	user := chat.Message{Role: chat.RoleUser, Content: "hi"}

	p.update([]chat.Message{user, {Role: chat.RoleAssistant}})
	p.update([]chat.Message{user, {Role: chat.RoleAssistant, Content: "Hel"}})
	p.update([]chat.Message{user, {Role: chat.RoleAssistant, Content: "Hello"}})
	p.update([]chat.Message{user, {Role: chat.RoleAssistant, Content: "Hello"}})

	if got := buf.String(); got != "Hello" {
		t.Errorf("streamed output = %q, want %q", got, "Hello")
	}

	p.update([]chat.Message{user, {Role: chat.RoleAssistant, Content: "Hello!"}})
	if got := buf.String(); got != "Hello!" {
		t.Errorf("extended output = %q, want %q", got, "Hello!")
	}

	p.update([]chat.Message{user, {Role: chat.RoleAssistant, Content: "Goodbye"}})
	if want := "Hello!\r\033[JGoodbye"; buf.String() != want {
		t.Errorf("replaced output = %q, want %q", buf.String(), want)
	}
	if strings.Count(buf.String(), "Goodbye") != 1 {
		t.Errorf("reply printed more than once: %q", buf.String())
	}

	p.update([]chat.Message{user, {Role: chat.RoleAssistant, Content: "Good\nbye"}})
	p.update([]chat.Message{user, {Role: chat.RoleAssistant, Content: "Done"}})
	if want := "\r\033[1A\033[JDone"; !strings.HasSuffix(buf.String(), want) {
		t.Errorf("multi-line redraw = %q, want suffix %q", buf.String(), want)
	}

	p.reset()
	buf.Reset()
	p.update([]chat.Message{{Role: chat.RoleAssistant, Content: "Hi"}})
	if got := buf.String(); got != "Hi" {
		t.Errorf("after reset = %q, want %q", got, "Hi")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	newLogger(config.LogConfig{Level: "debug", Format: "json"}, &buf).Debug("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("json logger output = %q, want JSON", buf.String())
	}

	buf.Reset()
	logger := newLogger(config.LogConfig{Level: "nonsense", Format: "text"}, &buf)
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("invalid level enabled debug, want info")
	}
	logger.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("text logger output = %q, want msg=hello", buf.String())
	}
}
