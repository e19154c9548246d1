package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askbook/internal/domain"
)

// MemorySessionStore keeps conversations for the lifetime of the process
type MemorySessionStore struct {
	mu       sync.Mutex
	messages map[string][]domain.Message
	prefs    map[string]map[string]any
}

var _ domain.SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty in-memory store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		messages: make(map[string][]domain.Message),
		prefs:    make(map[string]map[string]any),
	}
}

func (s *MemorySessionStore) Kind() string { return "memory" }

func (s *MemorySessionStore) Save(_ context.Context, sessionID string, role domain.Role, content string, chunks []domain.RetrievedChunk) (*domain.Message, error) {
	msg := domain.Message{
		ID:              uuid.New().String(),
		SessionID:       sessionID,
		Role:            role,
		Content:         content,
		Timestamp:       time.Now().UTC(),
		RetrievedChunks: append([]domain.RetrievedChunk(nil), chunks...),
	}

	s.mu.Lock()
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	s.mu.Unlock()

	return &msg, nil
}

// History returns a deep copy so callers never share a backing array
func (s *MemorySessionStore) History(_ context.Context, sessionID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.messages[sessionID]
	out := make([]domain.Message, len(src))
	for i, m := range src {
		m.RetrievedChunks = slices.Clone(m.RetrievedChunks)
		out[i] = m
	}
	return out, nil
}

func (s *MemorySessionStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, sessionID)
	delete(s.prefs, sessionID)
	return nil
}

func (s *MemorySessionStore) SavePreferences(_ context.Context, sessionID string, prefs map[string]any) error {
	cp := make(map[string]any, len(prefs))
	for k, v := range prefs {
		cp[k] = v
	}

	s.mu.Lock()
	s.prefs[sessionID] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Preferences(_ context.Context, sessionID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any, len(s.prefs[sessionID]))
	for k, v := range s.prefs[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (s *MemorySessionStore) Close() error { return nil }
