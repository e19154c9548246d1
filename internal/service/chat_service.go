package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/logger"
	"go.uber.org/zap"
)

// ChatService manages chat sessions on top of the session store
type ChatService struct {
	store  domain.SessionStore
	logger *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(store domain.SessionStore, logger *zap.Logger) *ChatService {
	return &ChatService{store: store, logger: logger}
}

// CreateOrGetSession resumes the given session or starts a new one. A
// session is reported as created whenever the caller did not name one.
func (s *ChatService) CreateOrGetSession(ctx context.Context, req domain.SessionRequest) (*domain.SessionResponse, error) {
	log := logger.FromContext(ctx, s.logger)

	created := strings.TrimSpace(req.SessionID) == ""
	sessionID := req.SessionID
	if created {
		sessionID = uuid.New().String()
	}

	if len(req.UserPreferences) > 0 {
		if err := s.store.SavePreferences(ctx, sessionID, req.UserPreferences); err != nil {
			return nil, fmt.Errorf("failed to save preferences: %w", err)
		}
	}

	messages, err := s.store.History(ctx, sessionID)
	if err != nil {
		log.Error("Failed to load session history", zap.String("session_id", sessionID), zap.Error(err))
		messages = []domain.Message{}
	}

	return &domain.SessionResponse{
		SessionID: sessionID,
		Messages:  messages,
		Created:   created,
	}, nil
}

// History returns the messages of a session in insertion order
func (s *ChatService) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidRequest)
	}
	return s.store.History(ctx, sessionID)
}

// Preferences returns the stored preferences of a session
func (s *ChatService) Preferences(ctx context.Context, sessionID string) (map[string]any, error) {
	return s.store.Preferences(ctx, sessionID)
}

// ClearSession removes a session's messages and preferences
func (s *ChatService) ClearSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session id is required", domain.ErrInvalidRequest)
	}
	if err := s.store.Clear(ctx, sessionID); err != nil {
		return err
	}
	logger.FromContext(ctx, s.logger).Info("Session cleared", zap.String("session_id", sessionID))
	return nil
}
