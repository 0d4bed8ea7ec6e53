package mockbackend

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/portfolio-pulse/internal/admin"
	"github.com/tjfontaine/portfolio-pulse/internal/stream"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// cannedReply picks a reply by keyword.
func cannedReply(message string) string {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "skill"):
		return "I mostly write Go and TypeScript, usually on cloud infrastructure."
	case strings.Contains(m, "project"):
		return "Have a look at the projects page for recent work, including the analytics behind this site."
	case strings.Contains(m, "contact"), strings.Contains(m, "hire"):
		return "The contact form is the quickest way to reach me."
	case strings.Contains(m, "resume"), strings.Contains(m, "cv"):
		return "You can download my resume from the home page."
	default:
		return fmt.Sprintf("Thanks for asking about %q. This is the local development backend, so replies are canned.", message)
	}
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "Message and sessionId are required")
		return
	}
	AddLogField(r.Context(), "session_id", req.SessionID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	s.store.appendChat(req.SessionID, s.now().UTC(), admin.ConversationMessage{
		Role: "user", Content: req.Message, Timestamp: s.now().UTC(),
	})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	reply := cannedReply(req.Message)
	for i, chunk := range strings.SplitAfter(reply, " ") {
		if i > 0 && !s.sleep(r.Context(), s.chunkDelay) {
			s.logger.Debug("chat stream abandoned", slog.String("session_id", req.SessionID))
			return
		}
		writeFrame(w, stream.Frame{Type: stream.FrameChunk, Content: chunk})
		flusher.Flush()
	}
	writeFrame(w, stream.Frame{Type: stream.FrameComplete, Message: reply})
	flusher.Flush()

	s.store.appendChat(req.SessionID, s.now().UTC(), admin.ConversationMessage{
		Role: "assistant", Content: reply, Timestamp: s.now().UTC(),
	})
}

func writeFrame(w http.ResponseWriter, f stream.Frame) {
	data, _ := json.Marshal(f)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	deleted := s.store.deleteChat(sessionID)
	AddLogField(r.Context(), "session_id", sessionID)
	writeData(w, http.StatusOK, "Chat history cleared", map[string]bool{"deleted": deleted})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	since, err := queryTime(r, "startDate", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	until, err := queryTime(r, "endDate", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	var convs []admin.Conversation
	for _, c := range s.store.listConversations(q.Get("sessionId"), q.Get("search")) {
		if !since.IsZero() && c.UpdatedAt.Before(since) {
			continue
		}
		if !until.IsZero() && c.UpdatedAt.After(until) {
			continue
		}
		convs = append(convs, c)
	}

	start, end, p := paginate(len(convs), page, min(limit, 100))
	writeData(w, http.StatusOK, "", admin.ConversationPage{
		Conversations: convs[start:end],
		Pagination:    p,
		Filters: map[string]any{
			"sessionId": q.Get("sessionId"),
			"search":    q.Get("search"),
		},
	})
}
