package mockbackend

import (
	"cmp"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tjfontaine/portfolio-pulse/internal/admin"
)

// endpointTypes maps dedicated interaction routes to the type they record.
// The generic "track" route takes the type from the body.
var endpointTypes = map[string]string{
	"resume-download": "resume_download",
	"page-visit":      "page_visit",
	"button-click":    "button_click",
	"form-submission": "form_submission",
	"track":           "",
}

type interactionBody struct {
	Type      string         `json:"type"`
	Page      string         `json:"page"`
	Element   string         `json:"element"`
	Metadata  map[string]any `json:"metadata"`
	SessionID string         `json:"sessionId"`
}

func (s *Server) handleRecordInteraction(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	typ, ok := endpointTypes[endpoint]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown interaction endpoint")
		return
	}

	var body interactionBody
	if err := decodeJSON(w, r, &body); err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if typ == "" {
		typ = body.Type
	}
	if typ == "" {
		writeError(w, http.StatusBadRequest, "Interaction type is required")
		return
	}

	in := admin.Interaction{
		ID:        uuid.NewString(),
		Type:      typ,
		Page:      body.Page,
		Element:   body.Element,
		Metadata:  body.Metadata,
		SessionID: body.SessionID,
		Timestamp: s.now().UTC(),
	}
	s.store.addInteraction(in)
	AddLogField(r.Context(), "interaction_type", typ)

	writeData(w, http.StatusCreated, "Interaction recorded", map[string]string{"id": in.ID, "type": typ})
}

func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := queryInt(r, "pageNum", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit = min(limit, 100)

	f := interactionFilter{
		Type:      q.Get("type"),
		Page:      q.Get("page"),
		SessionID: q.Get("sessionId"),
	}
	if f.Since, err = queryTime(r, "startDate", false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Until, err = queryTime(r, "endDate", true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sortBy := cmp.Or(q.Get("sortBy"), "timestamp")
	sortOrder := cmp.Or(q.Get("sortOrder"), "desc")
	all := s.store.listInteractions(f, sortBy, sortOrder != "asc")

	start, end, p := paginate(len(all), page, limit)
	writeData(w, http.StatusOK, "", admin.InteractionPage{
		Interactions: slices.Clip(all[start:end]),
		Pagination:   p,
		Filters: map[string]any{
			"type":      f.Type,
			"page":      f.Page,
			"sessionId": f.SessionID,
			"sortBy":    sortBy,
			"sortOrder": sortOrder,
		},
	})
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 7)
	if err != nil || days > 365 {
		writeError(w, http.StatusBadRequest, "invalid days")
		return
	}
	writeData(w, http.StatusOK, "", s.dashboardStats(days))
}

func (s *Server) dashboardStats(days int) admin.DashboardStats {
	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))

	stats := admin.DashboardStats{Days: days}
	byType := make(map[string]int)
	byPage := make(map[string]int)
	byDay := make(map[string]int)
	sessions := make(map[string]struct{})

	for _, in := range s.store.listInteractions(interactionFilter{Since: since}, "timestamp", false) {
		stats.TotalInteractions++
		byType[in.Type]++
		byDay[in.Timestamp.Format(time.DateOnly)]++
		if in.Page != "" {
			byPage[in.Page]++
		}
		if in.SessionID != "" {
			sessions[in.SessionID] = struct{}{}
		}
		switch in.Type {
		case "page_visit":
			stats.PageVisits++
		case "button_click":
			stats.ButtonClicks++
		case "resume_download":
			stats.ResumeDownloads++
		}
	}
	stats.UniqueSessions = len(sessions)

	for _, c := range s.store.listConversations("", "") {
		if !c.UpdatedAt.Before(since) {
			stats.ChatSessions++
		}
	}

	stats.ByType = rank(byType, 0)
	stats.TopPages = rank(byPage, 5)
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		stats.Daily = append(stats.Daily, admin.DailyCount{Date: key, Count: byDay[key]})
	}
	return stats
}

// rank orders counts descending, ties by key, keeping at most limit entries
// when limit is positive.
func rank(counts map[string]int, limit int) []admin.Count {
	out := make([]admin.Count, 0, len(counts))
	for k, n := range counts {
		out = append(out, admin.Count{Key: k, Count: n})
	}
	slices.SortFunc(out, func(a, b admin.Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
