package admin

import (
	"encoding/json"
	"time"
)

// Envelope is the backend's response wrapper. Success is absent on some
// endpoints; absence means success.
type Envelope struct {
	Success *bool           `json:"success,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK reports whether the envelope signals success.
func (e Envelope) OK() bool {
	return e.Success == nil || *e.Success
}

// Admin is the authenticated administrator.
type Admin struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	Role      string     `json:"role,omitempty"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

// Credentials are posted to the login endpoint.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the data of a successful login.
type LoginResult struct {
	AccessToken string `json:"accessToken"`
	Admin       Admin  `json:"admin"`
}

// Count is a labelled counter used by the dashboard series.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// DailyCount is one point of a per-day series.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DashboardStats aggregates interactions over a trailing window.
type DashboardStats struct {
	Days              int          `json:"days"`
	TotalInteractions int          `json:"totalInteractions"`
	UniqueSessions    int          `json:"uniqueSessions"`
	PageVisits        int          `json:"pageVisits"`
	ButtonClicks      int          `json:"buttonClicks"`
	ResumeDownloads   int          `json:"resumeDownloads"`
	ChatSessions      int          `json:"chatSessions"`
	ByType            []Count      `json:"byType"`
	TopPages          []Count      `json:"topPages"`
	Daily             []DailyCount `json:"daily"`
}

// Interaction is a recorded visitor event.
type Interaction struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Page      string         `json:"page"`
	Element   string         `json:"element,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	SessionID string         `json:"sessionId"`
	Timestamp time.Time      `json:"timestamp"`
}

// Pagination describes one page of a list result.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// InteractionQuery filters and pages the interactions list.
type InteractionQuery struct {
	PageNum   int    `url:"pageNum,omitempty"`
	Limit     int    `url:"limit,omitempty"`
	SortBy    string `url:"sortBy,omitempty"`
	SortOrder string `url:"sortOrder,omitempty"`
	Type      string `url:"type,omitempty"`
	Page      string `url:"page,omitempty"`
	SessionID string `url:"sessionId,omitempty"`
	StartDate string `url:"startDate,omitempty"`
	EndDate   string `url:"endDate,omitempty"`
}

// InteractionPage is one page of interactions.
type InteractionPage struct {
	Interactions []Interaction  `json:"interactions"`
	Pagination   Pagination     `json:"pagination"`
	Filters      map[string]any `json:"filters,omitempty"`
}

// ConversationQuery filters and pages the chat conversations list.
type ConversationQuery struct {
	Page      int    `url:"page,omitempty"`
	Limit     int    `url:"limit,omitempty"`
	SessionID string `url:"sessionId,omitempty"`
	Search    string `url:"search,omitempty"`
	StartDate string `url:"startDate,omitempty"`
	EndDate   string `url:"endDate,omitempty"`
}

// ConversationMessage is one turn of a logged chat.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is a logged chat session.
type Conversation struct {
	ID        string                `json:"id"`
	SessionID string                `json:"sessionId"`
	Messages  []ConversationMessage `json:"messages"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// ConversationPage is one page of chat conversations.
type ConversationPage struct {
	Conversations []Conversation `json:"conversations"`
	Pagination    Pagination     `json:"pagination"`
	Filters       map[string]any `json:"filters,omitempty"`
}

// Document is a knowledge-base document processed by the backend.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content,omitempty"`
	Status      string    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DocumentInput creates or patches a document. Empty fields are left
// unchanged by an update. LogID names an already-open processing log stream,
// typically a temporary id opened before the document existed.
type DocumentInput struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`
	LogID       string `json:"logId,omitempty"`
}

// NotificationPreference toggles one kind of admin notification.
type NotificationPreference struct {
	Type     string         `json:"type"`
	Enabled  bool           `json:"enabled"`
	Settings map[string]any `json:"settings,omitempty"`
}
