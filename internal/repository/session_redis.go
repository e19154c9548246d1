package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps each session as a JSON list so several processes can share it
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

var _ domain.SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore wraps an existing client. Keys are namespaced by prefix.
func NewRedisSessionStore(client *redis.Client, prefix string) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (s *RedisSessionStore) messagesKey(sessionID string) string {
	return s.prefix + "session:" + sessionID + ":messages"
}

func (s *RedisSessionStore) prefsKey(sessionID string) string {
	return s.prefix + "session:" + sessionID + ":preferences"
}

func (s *RedisSessionStore) Kind() string { return "redis" }

func (s *RedisSessionStore) Save(ctx context.Context, sessionID string, role domain.Role, content string, chunks []domain.RetrievedChunk) (*domain.Message, error) {
	msg := &domain.Message{
		ID:              uuid.New().String(),
		SessionID:       sessionID,
		Role:            role,
		Content:         content,
		Timestamp:       time.Now().UTC(),
		RetrievedChunks: chunks,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	if err := s.client.RPush(ctx, s.messagesKey(sessionID), data).Err(); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

func (s *RedisSessionStore) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	raw, err := s.client.LRange(ctx, s.messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, item := range raw {
		var msg domain.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *RedisSessionStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.messagesKey(sessionID), s.prefsKey(sessionID)).Err()
}

func (s *RedisSessionStore) SavePreferences(ctx context.Context, sessionID string, prefs map[string]any) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	return s.client.Set(ctx, s.prefsKey(sessionID), data, 0).Err()
}

func (s *RedisSessionStore) Preferences(ctx context.Context, sessionID string) (map[string]any, error) {
	data, err := s.client.Get(ctx, s.prefsKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	prefs := map[string]any{}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return prefs, nil
}

func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
