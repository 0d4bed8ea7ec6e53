package mockbackend

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tjfontaine/portfolio-pulse/internal/admin"
)

// store holds the backend's in-memory data.
type store struct {
	mu            sync.RWMutex
	interactions  []admin.Interaction
	conversations map[string]*admin.Conversation
	documents     map[string]*admin.Document
	preferences   map[string]admin.NotificationPreference
}

func newStore() *store {
	return &store{
		conversations: make(map[string]*admin.Conversation),
		documents:     make(map[string]*admin.Document),
		preferences: map[string]admin.NotificationPreference{
			"chat":     {Type: "chat", Enabled: true},
			"resume":   {Type: "resume", Enabled: true},
			"document": {Type: "document", Enabled: false},
		},
	}
}

func (s *store) addInteraction(in admin.Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, in)
}

type interactionFilter struct {
	Type      string
	Page      string
	SessionID string
	Since     time.Time
	Until     time.Time
}

func (f interactionFilter) match(in admin.Interaction) bool {
	switch {
	case f.Type != "" && in.Type != f.Type:
		return false
	case f.Page != "" && in.Page != f.Page:
		return false
	case f.SessionID != "" && in.SessionID != f.SessionID:
		return false
	case !f.Since.IsZero() && in.Timestamp.Before(f.Since):
		return false
	case !f.Until.IsZero() && in.Timestamp.After(f.Until):
		return false
	}
	return true
}

func (s *store) listInteractions(f interactionFilter, sortBy string, desc bool) []admin.Interaction {
	s.mu.RLock()
	var out []admin.Interaction
	for _, in := range s.interactions {
		if f.match(in) {
			out = append(out, in)
		}
	}
	s.mu.RUnlock()

	key := func(a, b admin.Interaction) int {
		switch sortBy {
		case "type":
			return cmp.Compare(a.Type, b.Type)
		case "page":
			return cmp.Compare(a.Page, b.Page)
		default:
			return a.Timestamp.Compare(b.Timestamp)
		}
	}
	slices.SortStableFunc(out, func(a, b admin.Interaction) int {
		if desc {
			return key(b, a)
		}
		return key(a, b)
	})
	return out
}

func (s *store) appendChat(sessionID string, now time.Time, msgs ...admin.ConversationMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[sessionID]
	if !ok {
		conv = &admin.Conversation{ID: "conv_" + sessionID, SessionID: sessionID, CreatedAt: now}
		s.conversations[sessionID] = conv
	}
	conv.Messages = append(conv.Messages, msgs...)
	conv.UpdatedAt = now
}

func (s *store) deleteChat(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conversations[sessionID]
	delete(s.conversations, sessionID)
	return ok
}

func (s *store) listConversations(sessionID, search string) []admin.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search = strings.ToLower(search)
	var out []admin.Conversation
	for _, c := range s.conversations {
		if sessionID != "" && c.SessionID != sessionID {
			continue
		}
		if search != "" && !slices.ContainsFunc(c.Messages, func(m admin.ConversationMessage) bool {
			return strings.Contains(strings.ToLower(m.Content), search)
		}) {
			continue
		}
		cp := *c
		cp.Messages = slices.Clone(c.Messages)
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b admin.Conversation) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out
}

func (s *store) putDocument(d admin.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[d.ID] = &d
}

func (s *store) document(id string) (admin.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[id]
	if !ok {
		return admin.Document{}, false
	}
	return *d, true
}

func (s *store) updateDocument(id string, fn func(*admin.Document)) (admin.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return admin.Document{}, false
	}
	fn(d)
	return *d, true
}

func (s *store) deleteDocument(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.documents[id]
	delete(s.documents, id)
	return ok
}

func (s *store) listDocuments() []admin.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]admin.Document, 0, len(s.documents))
	for _, d := range s.documents {
		out = append(out, *d)
	}
	slices.SortFunc(out, func(a, b admin.Document) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

func (s *store) listPreferences() []admin.NotificationPreference {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]admin.NotificationPreference, 0, len(s.preferences))
	for _, p := range s.preferences {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b admin.NotificationPreference) int {
		return cmp.Compare(a.Type, b.Type)
	})
	return out
}

func (s *store) putPreference(p admin.NotificationPreference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[p.Type] = p
}
