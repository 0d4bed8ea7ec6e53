package mockbackend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/portfolio-pulse/internal/admin"
	"github.com/tjfontaine/portfolio-pulse/internal/apierr"
	"github.com/tjfontaine/portfolio-pulse/internal/chat"
	"github.com/tjfontaine/portfolio-pulse/internal/processlog"
	"github.com/tjfontaine/portfolio-pulse/internal/tracker"
)

const (
	testUser     = "admin"
	testPassword = "hunter2"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(Config{
		AdminUsername: testUser,
		AdminPassword: testPassword,
		JWTSecret:     "test-secret",
		TokenTTL:      time.Hour,
	}, discardLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)
	return srv, ts
}

func loggedIn(t *testing.T, ts *httptest.Server) *admin.Client {
	t.Helper()
	c := admin.New(ts.URL+"/api", admin.WithHTTPClient(ts.Client()), admin.WithLogger(discardLogger()))
	if _, err := c.Login(context.Background(), testUser, testPassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return c
}

func TestInteractions_RecordAndList(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()

	tr := tracker.New(ts.URL+"/api",
		tracker.WithHTTPClient(ts.Client()),
		tracker.WithLogger(discardLogger()),
		tracker.WithSessionID("session_1_abc"),
	)
	if _, err := tr.TrackPageVisit(ctx, "/", nil); err != nil {
		t.Fatalf("TrackPageVisit() error = %v", err)
	}
	if _, err := tr.TrackProjectView(ctx, "/projects", "pulse"); err != nil {
		t.Fatalf("TrackProjectView() error = %v", err)
	}
	if _, err := tr.TrackResumeDownload(ctx, "/", nil); err != nil {
		t.Fatalf("TrackResumeDownload() error = %v", err)
	}

	c := loggedIn(t, ts)
	page, err := c.Interactions(ctx, admin.InteractionQuery{PageNum: 1, Limit: 2, SortOrder: "asc"})
	if err != nil {
		t.Fatalf("Interactions() error = %v", err)
	}
	if page.Pagination.Total != 3 || page.Pagination.TotalPages != 2 {
		t.Errorf("Pagination = %+v, want total 3 over 2 pages", page.Pagination)
	}
	if len(page.Interactions) != 2 {
		t.Fatalf("len(Interactions) = %d, want 2", len(page.Interactions))
	}
	if got := page.Interactions[0].Type; got != "page_visit" {
		t.Errorf("Interactions[0].Type = %q, want page_visit", got)
	}
	if got := page.Interactions[1].Type; got != "project_view" {
		t.Errorf("Interactions[1].Type = %q, want project_view", got)
	}
	if got := page.Interactions[1].Metadata["projectName"]; got != "pulse" {
		t.Errorf("metadata projectName = %v, want pulse", got)
	}

	filtered, err := c.Interactions(ctx, admin.InteractionQuery{Type: "resume_download"})
	if err != nil {
		t.Fatalf("Interactions(type) error = %v", err)
	}
	if filtered.Pagination.Total != 1 || filtered.Interactions[0].SessionID != "session_1_abc" {
		t.Errorf("filtered = %+v, want one resume_download for session_1_abc", filtered)
	}
}

func TestInteractions_Rejected(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"generic without type", "/api/interactions/track", `{"page":"/"}`, http.StatusBadRequest},
		{"unknown endpoint", "/api/interactions/hover", `{"page":"/"}`, http.StatusNotFound},
		{"malformed body", "/api/interactions/page-visit", `{`, http.StatusBadRequest},
		{"generic with type", "/api/interactions/track", `{"type":"skill_view","page":"/"}`, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ts.Client().Post(ts.URL+tt.path, "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("Post() error = %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestGuardedRoutesRequireToken(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/api/interactions/all", "/api/admin/me", "/api/documents", "/api/notifications/preferences"} {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+path, nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestLogin(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()
	c := admin.New(ts.URL+"/api", admin.WithHTTPClient(ts.Client()), admin.WithLogger(discardLogger()))

	_, err := c.Login(ctx, testUser, "wrong")
	var apiErr *apierr.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Login(wrong) error = %v, want 401 APIError", err)
	}

	res, err := c.Login(ctx, testUser, testPassword)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.AccessToken == "" || res.Admin.Username != testUser {
		t.Errorf("Login() = %+v, want token for %s", res, testUser)
	}
	if admin.TokenExpired(res.AccessToken, time.Now()) {
		t.Error("issued token already expired")
	}

	me, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if me.LastLogin == nil {
		t.Error("Me().LastLogin = nil, want login time")
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if c.LoggedIn(ctx) {
		t.Error("LoggedIn() = true after Logout")
	}
}

func TestChat_StreamsAndLogs(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()

	tp := chat.New(ts.URL+"/api", chat.WithHTTPClient(ts.Client()), chat.WithLogger(discardLogger()))
	outcome, err := tp.Send(ctx, "What skills do you have?")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if outcome != chat.OutcomeComplete {
		t.Errorf("Send() outcome = %q, want %q", outcome, chat.OutcomeComplete)
	}
	msgs := tp.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len(Messages()) = %d, want 2", len(msgs))
	}
	if want := cannedReply("What skills do you have?"); msgs[1].Content != want {
		t.Errorf("assistant = %q, want %q", msgs[1].Content, want)
	}

	c := loggedIn(t, ts)
	convs, err := c.ChatConversations(ctx, admin.ConversationQuery{SessionID: tp.SessionID()})
	if err != nil {
		t.Fatalf("ChatConversations() error = %v", err)
	}
	if len(convs.Conversations) != 1 || len(convs.Conversations[0].Messages) != 2 {
		t.Fatalf("ChatConversations() = %+v, want one conversation with two messages", convs)
	}

	tp.Clear(ctx)
	convs, err = c.ChatConversations(ctx, admin.ConversationQuery{SessionID: tp.SessionID()})
	if err != nil {
		t.Fatalf("ChatConversations() after clear error = %v", err)
	}
	if len(convs.Conversations) != 0 {
		t.Errorf("ChatConversations() after clear = %d, want 0", len(convs.Conversations))
	}
}

func TestChat_EmptyMessageRejected(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := ts.Client().Post(ts.URL+"/api/chat/send", "application/json",
		strings.NewReader(`{"message":"  ","sessionId":"s"}`))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDashboardStats(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()

	for _, body := range []string{
		`{"page":"/","sessionId":"a"}`,
		`{"page":"/","sessionId":"b"}`,
		`{"page":"/projects","sessionId":"a"}`,
	} {
		resp, err := ts.Client().Post(ts.URL+"/api/interactions/page-visit", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("Post() error = %v", err)
		}
		resp.Body.Close()
	}

	c := loggedIn(t, ts)
	stats, err := c.DashboardStats(ctx, 7)
	if err != nil {
		t.Fatalf("DashboardStats() error = %v", err)
	}
	if stats.TotalInteractions != 3 || stats.PageVisits != 3 || stats.UniqueSessions != 2 {
		t.Errorf("DashboardStats() = %+v, want 3 visits from 2 sessions", stats)
	}
	if len(stats.Daily) != 7 {
		t.Errorf("len(Daily) = %d, want 7", len(stats.Daily))
	}
	if len(stats.TopPages) == 0 || stats.TopPages[0] != (admin.Count{Key: "/", Count: 2}) {
		t.Errorf("TopPages = %+v, want / first with 2", stats.TopPages)
	}

	if _, err := c.DashboardStats(ctx, 0); err == nil {
		t.Error("DashboardStats(0) error = nil, want error")
	}
}

func TestDocuments_ProcessingLogsReachTempStream(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()
	c := loggedIn(t, ts)

	v := processlog.New(ts.URL+"/api",
		processlog.WithHTTPClient(ts.Client()),
		processlog.WithLogger(discardLogger()),
		processlog.WithCloseDelay(time.Hour),
	)
	defer v.Close()

	logID := processlog.TempID(time.Now())
	var created *admin.Document
	err := v.RunWithLogs(ctx, logID, func(ctx context.Context) error {
		var err error
		created, err = c.CreateDocument(ctx, admin.DocumentInput{Title: "Resume", Content: "Go, SQL", LogID: logID})
		return err
	})
	if err != nil {
		t.Fatalf("RunWithLogs() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		done := slices.ContainsFunc(v.Entries(), func(e processlog.Entry) bool {
			return e.Type == processlog.TypeSuccess && e.Message == "Document processed successfully"
		})
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no completion entry; entries = %+v", v.Entries())
		}
		time.Sleep(10 * time.Millisecond)
	}

	entries := v.Entries()
	if entries[0].Message != processlog.MsgConnected {
		t.Errorf("first entry = %q, want %q", entries[0].Message, processlog.MsgConnected)
	}

	doc, err := c.GetDocument(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc.Status != StatusReady {
		t.Errorf("Status = %q, want %q", doc.Status, StatusReady)
	}
}

func TestDocuments_CRUD(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()
	c := loggedIn(t, ts)

	if _, err := c.CreateDocument(ctx, admin.DocumentInput{Description: "untitled"}); err == nil {
		t.Error("CreateDocument(no title) error = nil, want error")
	}

	doc, err := c.CreateDocument(ctx, admin.DocumentInput{Title: "About"})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	updated, err := c.UpdateDocument(ctx, doc.ID, admin.DocumentInput{Title: "About me"})
	if err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}
	if updated.Title != "About me" {
		t.Errorf("Title = %q, want %q", updated.Title, "About me")
	}

	docs, err := c.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("len(ListDocuments()) = %d, want 1", len(docs))
	}

	if err := c.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	_, err = c.GetDocument(ctx, doc.ID)
	var apiErr *apierr.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("GetDocument(deleted) error = %v, want 404", err)
	}
}

func TestNotificationPreferences(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()
	c := loggedIn(t, ts)

	saved, err := c.UpdateNotificationPreference(ctx, admin.NotificationPreference{Type: "document", Enabled: true})
	if err != nil {
		t.Fatalf("UpdateNotificationPreference() error = %v", err)
	}
	if !saved.Enabled {
		t.Error("saved.Enabled = false, want true")
	}

	prefs, err := c.NotificationPreferences(ctx)
	if err != nil {
		t.Fatalf("NotificationPreferences() error = %v", err)
	}
	i := slices.IndexFunc(prefs, func(p admin.NotificationPreference) bool { return p.Type == "document" })
	if i < 0 || !prefs[i].Enabled {
		t.Errorf("NotificationPreferences() = %+v, want document enabled", prefs)
	}
}
