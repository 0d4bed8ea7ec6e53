package mockbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tjfontaine/portfolio-pulse/internal/admin"
)

const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
)

var processingSteps = []string{
	"Document received",
	"Extracting text content",
	"Splitting content into chunks",
	"Generating embeddings",
	"Updating search index",
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", s.store.listDocuments())
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.store.document(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	writeData(w, http.StatusOK, "", doc)
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var in admin.DocumentInput
	if err := decodeJSON(w, r, &in); err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}

	now := s.now().UTC()
	doc := admin.Document{
		ID:          "doc_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Title:       in.Title,
		Description: in.Description,
		Content:     in.Content,
		Status:      StatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.store.putDocument(doc)
	AddLogField(r.Context(), "document_id", doc.ID)

	s.process(doc.ID, in.LogID)
	writeData(w, http.StatusCreated, "Document created", doc)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in admin.DocumentInput
	if err := decodeJSON(w, r, &in); err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reprocess := in.Content != ""
	doc, ok := s.store.updateDocument(id, func(d *admin.Document) {
		if in.Title != "" {
			d.Title = in.Title
		}
		if in.Description != "" {
			d.Description = in.Description
		}
		if reprocess {
			d.Content = in.Content
			d.Status = StatusProcessing
		}
		d.UpdatedAt = s.now().UTC()
	})
	if !ok {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	AddLogField(r.Context(), "document_id", id)

	if reprocess {
		s.process(id, in.LogID)
	} else {
		s.publish(id, in.LogID, "Document metadata updated", "success")
	}
	writeData(w, http.StatusOK, "Document updated", doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.store.deleteDocument(id) {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	AddLogField(r.Context(), "document_id", id)
	s.publish(id, "", "Document deleted", "info")
	writeData(w, http.StatusOK, "Document deleted", nil)
}

// publish sends a log line to the document's stream and, when set, to the
// stream the client opened before the document had an id.
func (s *Server) publish(docID, logID, message, typ string) {
	s.broadcaster.Publish(docID, message, typ)
	if logID != "" && logID != docID {
		s.broadcaster.Publish(logID, message, typ)
	}
}

// process runs the processing steps in the background. The first step is
// published before it returns.
func (s *Server) process(docID, logID string) {
	s.publish(docID, logID, processingSteps[0], "info")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for _, step := range processingSteps[1:] {
			if !s.sleep(context.Background(), s.stepDelay) {
				return
			}
			s.publish(docID, logID, step, "info")
		}
		if _, ok := s.store.updateDocument(docID, func(d *admin.Document) {
			d.Status = StatusReady
			d.UpdatedAt = s.now().UTC()
		}); !ok {
			s.publish(docID, logID, "Document was deleted during processing", "error")
			return
		}
		s.publish(docID, logID, "Document processed successfully", "success")
		s.logger.Info("document processed", slog.String("document_id", docID))
	}()
}

// handleDocumentLogs streams a document's processing log as Server-Sent
// Events. Lines newer than Last-Event-ID are replayed first.
func (s *Server) handleDocumentLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	lastID, _ := strconv.ParseInt(r.Header.Get("Last-Event-ID"), 10, 64)
	backlog, events, unsubscribe := s.broadcaster.Subscribe(id, lastID)
	defer unsubscribe()
	AddLogField(r.Context(), "document_id", id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "retry: 3000\n: connected\n\n")
	for _, ev := range backlog {
		writeLogEvent(w, ev)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.quit:
			return
		case ev := <-events:
			writeLogEvent(w, ev)
			flusher.Flush()
		}
	}
}

func writeLogEvent(w http.ResponseWriter, ev LogEvent) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "id: %d\ndata: %s\n\n", ev.ID, data)
}
