package domain

import (
	"strings"
	"time"
)

// FallbackAnswer is returned verbatim whenever an answer cannot be grounded
// in the supplied context.
const FallbackAnswer = "I don't know based on the selected text."

// Mode selects how context is gathered for a query
type Mode string

const (
	// ModeAugment retrieves context from the whole corpus
	ModeAugment Mode = "augment"
	// ModeStrict answers from the user-selected excerpt only
	ModeStrict Mode = "strict"
)

// Role is the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message
type Message struct {
	ID              string           `json:"id"`
	SessionID       string           `json:"session_id"`
	Role            Role             `json:"role"`
	Content         string           `json:"content"`
	Timestamp       time.Time        `json:"timestamp"`
	RetrievedChunks []RetrievedChunk `json:"retrieved_chunks,omitempty"`
}

// QueryRequest is the request to ask a question
type QueryRequest struct {
	Query        string  `json:"query" binding:"required"`
	SelectedText *string `json:"selected_text,omitempty"`
	Mode         Mode    `json:"mode,omitempty" binding:"omitempty,oneof=augment strict"`
	SessionID    string  `json:"session_id,omitempty"`
	TopK         int     `json:"top_k,omitempty" binding:"omitempty,min=1,max=50"`
}

// Normalize fills request defaults.
func (r *QueryRequest) Normalize(defaultTopK int) {
	if r.Mode == "" {
		r.Mode = ModeAugment
	}
	if r.TopK <= 0 {
		r.TopK = defaultTopK
	}
}

// HasSelectedText reports whether selected_text was supplied at all, blank or not.
func (r *QueryRequest) HasSelectedText() bool {
	return r.SelectedText != nil
}

// SelectedTextBlank reports whether the supplied selected_text holds only whitespace.
func (r *QueryRequest) SelectedTextBlank() bool {
	return r.SelectedText != nil && strings.TrimSpace(*r.SelectedText) == ""
}

// QueryResponse is the response to a query
type QueryResponse struct {
	Answer    string           `json:"answer"`
	Retrieved []RetrievedChunk `json:"retrieved"`
	SessionID string           `json:"session_id"`
	Mode      Mode             `json:"mode"`
}

// SessionRequest creates or resumes a chat session
type SessionRequest struct {
	SessionID       string         `json:"session_id,omitempty"`
	UserPreferences map[string]any `json:"user_preferences,omitempty"`
}

// SessionResponse is the response for a session request
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
	Created   bool      `json:"created"`
}

// Stats represents index and session statistics
type Stats struct {
	Collection   string `json:"collection"`
	IndexedCount uint64 `json:"indexed_chunks"`
	SessionStore string `json:"session_store"`
	Ready        bool   `json:"ready"`
}
