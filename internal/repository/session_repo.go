package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askbook/internal/domain"
)

// SQLSessionStore persists conversations in sqlite or postgres
type SQLSessionStore struct {
	db *DB
}

var _ domain.SessionStore = (*SQLSessionStore)(nil)

// NewSQLSessionStore creates a new SQL-backed session store
func NewSQLSessionStore(db *DB) *SQLSessionStore {
	return &SQLSessionStore{db: db}
}

// Kind returns the driver name
func (r *SQLSessionStore) Kind() string {
	return r.db.Driver()
}

// ensureConversation creates the conversation row on first use and returns its id
func (r *SQLSessionStore) ensureConversation(ctx context.Context, tx *sql.Tx, sessionID string, now time.Time) (string, error) {
	_, err := tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO conversations (id, session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET updated_at = excluded.updated_at
	`), uuid.New().String(), sessionID, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to upsert conversation: %w", err)
	}

	var id string
	err = tx.QueryRowContext(ctx, r.db.Rebind(`SELECT id FROM conversations WHERE session_id = ?`), sessionID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to load conversation: %w", err)
	}
	return id, nil
}

// Save appends a message to the session, creating the conversation if needed
func (r *SQLSessionStore) Save(ctx context.Context, sessionID string, role domain.Role, content string, chunks []domain.RetrievedChunk) (*domain.Message, error) {
	msg := &domain.Message{
		ID:              uuid.New().String(),
		SessionID:       sessionID,
		Role:            role,
		Content:         content,
		Timestamp:       time.Now().UTC(),
		RetrievedChunks: chunks,
	}

	var chunksJSON sql.NullString
	if len(chunks) > 0 {
		data, err := json.Marshal(chunks)
		if err != nil {
			return nil, fmt.Errorf("failed to encode retrieved chunks: %w", err)
		}
		chunksJSON = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	convID, err := r.ensureConversation(ctx, tx, sessionID, msg.Timestamp)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO messages (id, conversation_id, role, content, timestamp, retrieved_chunks)
		VALUES (?, ?, ?, ?, ?, ?)
	`), msg.ID, convID, string(msg.Role), msg.Content, msg.Timestamp, chunksJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return msg, nil
}

// History returns messages in insertion order; unknown sessions yield an empty slice
func (r *SQLSessionStore) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT m.id, m.role, m.content, m.timestamp, m.retrieved_chunks
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.session_id = ?
		ORDER BY m.seq ASC
	`), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		msg := domain.Message{SessionID: sessionID}
		var role string
		var chunksJSON sql.NullString

		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.Timestamp, &chunksJSON); err != nil {
			return nil, err
		}
		msg.Role = domain.Role(role)

		if chunksJSON.Valid && chunksJSON.String != "" {
			if err := json.Unmarshal([]byte(chunksJSON.String), &msg.RetrievedChunks); err != nil {
				return nil, fmt.Errorf("failed to decode retrieved chunks: %w", err)
			}
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// Clear removes the conversation, its messages and preferences
func (r *SQLSessionStore) Clear(ctx context.Context, sessionID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM messages WHERE conversation_id IN (SELECT id FROM conversations WHERE session_id = ?)`,
		`DELETE FROM user_preferences WHERE session_id = ?`,
		`DELETE FROM conversations WHERE session_id = ?`,
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, r.db.Rebind(s), sessionID); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
	}
	return tx.Commit()
}

// SavePreferences stores the preferences document for a session
func (r *SQLSessionStore) SavePreferences(ctx context.Context, sessionID string, prefs map[string]any) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := r.ensureConversation(ctx, tx, sessionID, now); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO user_preferences (session_id, preferences, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET preferences = excluded.preferences, updated_at = excluded.updated_at
	`), sessionID, string(data), now, now)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return tx.Commit()
}

// Preferences returns the stored preferences, or an empty map
func (r *SQLSessionStore) Preferences(ctx context.Context, sessionID string) (map[string]any, error) {
	var data string
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT preferences FROM user_preferences WHERE session_id = ?
	`), sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}

	prefs := map[string]any{}
	if err := json.Unmarshal([]byte(data), &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return prefs, nil
}

// Close closes the database
func (r *SQLSessionStore) Close() error {
	return r.db.Close()
}
