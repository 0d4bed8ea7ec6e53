package runtime

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/tjfontaine/portfolio-pulse/internal/admin"
	"github.com/tjfontaine/portfolio-pulse/internal/chat"
	"github.com/tjfontaine/portfolio-pulse/internal/localstate"
	"github.com/tjfontaine/portfolio-pulse/internal/mockbackend"
	"github.com/tjfontaine/portfolio-pulse/internal/processlog"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startBackend(t *testing.T) string {
	t.Helper()
	srv := mockbackend.New(mockbackend.Config{
		AdminUsername: "admin",
		AdminPassword: "secret",
		JWTSecret:     "test",
	}, quietLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)
	return ts.URL + "/api"
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "portfolio.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "state:\n  driver: redis\n")
	if _, err := New(WithFileConfig(path)); err == nil {
		t.Error("New() error = nil, want invalid driver error")
	}
	if _, err := New(WithConfig(nil)); err == nil {
		t.Error("New(WithConfig(nil)) error = nil, want error")
	}
}

func TestNew_SQLiteStateOwned(t *testing.T) {
	path := writeConfig(t, "state:\n  driver: sqlite\n  path: state.db\n")

	p, err := New(WithFileConfig(path), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	dark := localstate.Theme{Name: "dark", Colors: map[string]string{"background": "#000"}}
	if err := p.SetTheme(ctx, dark); err != nil {
		t.Fatalf("SetTheme() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := New(WithFileConfig(path), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() reopen error = %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Theme(ctx)
	if err != nil {
		t.Fatalf("Theme() error = %v", err)
	}
	if got.Name != "dark" {
		t.Errorf("Theme().Name = %q, want dark", got.Name)
	}
}

func TestPortfolio_EndToEnd(t *testing.T) {
	base := startBackend(t)
	path := writeConfig(t, "api:\n  base_url: "+base+"\nsite:\n  url: https://example.dev\n")

	p, err := New(WithFileConfig(path), WithMemoryState(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()
	ctx := context.Background()

	if _, err := p.Tracker().TrackPageVisit(ctx, "/about", nil); err != nil {
		t.Fatalf("TrackPageVisit() error = %v", err)
	}
	pt := p.NewPageTracker("/projects")
	pt.Mount(ctx)
	p.Tracker().Wait()

	c := p.NewChat()
	if outcome, err := c.Send(ctx, "tell me about your projects"); err != nil || outcome != chat.OutcomeComplete {
		t.Fatalf("Send() = %q, %v; want complete", outcome, err)
	}

	if _, err := p.Admin().Login(ctx, "admin", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !p.Admin().LoggedIn(ctx) {
		t.Error("LoggedIn() = false after Login")
	}

	page, err := p.Admin().Interactions(ctx, admin.InteractionQuery{Type: "page_visit"})
	if err != nil {
		t.Fatalf("Interactions() error = %v", err)
	}
	if page.Pagination.Total != 2 {
		t.Errorf("page_visit total = %d, want 2", page.Pagination.Total)
	}
	if got := page.Interactions[0].Metadata["url"]; got != "https://example.dev/projects" && got != "https://example.dev/about" {
		t.Errorf("metadata url = %v, want site url", got)
	}

	doc, v, err := p.UploadDocument(ctx, admin.DocumentInput{Title: "Bio", Content: "Gopher"},
		processlog.WithCloseDelay(time.Hour))
	if err != nil {
		t.Fatalf("UploadDocument() error = %v", err)
	}
	defer v.Close()
	if doc == nil || doc.ID == "" {
		t.Fatalf("UploadDocument() doc = %+v, want created document", doc)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !slices.ContainsFunc(v.Entries(), func(e processlog.Entry) bool { return e.Type == processlog.TypeSuccess }) {
		if time.Now().After(deadline) {
			t.Fatalf("no success entry; entries = %+v", v.Entries())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
