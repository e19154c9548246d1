package service

import (
	"context"
	"testing"

	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreateOrGetSession(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemorySessionStore()
	svc := NewChatService(store, zap.NewNop())

	fresh, err := svc.CreateOrGetSession(ctx, domain.SessionRequest{})
	require.NoError(t, err)
	assert.True(t, fresh.Created)
	assert.NotEmpty(t, fresh.SessionID)
	assert.NotNil(t, fresh.Messages)
	assert.Empty(t, fresh.Messages)

	_, err = store.Save(ctx, fresh.SessionID, domain.RoleUser, "hello", nil)
	require.NoError(t, err)

	resumed, err := svc.CreateOrGetSession(ctx, domain.SessionRequest{
		SessionID:       fresh.SessionID,
		UserPreferences: map[string]any{"level": "beginner"},
	})
	require.NoError(t, err)
	assert.False(t, resumed.Created)
	assert.Equal(t, fresh.SessionID, resumed.SessionID)
	require.Len(t, resumed.Messages, 1)
	assert.Equal(t, "hello", resumed.Messages[0].Content)

	prefs, err := svc.Preferences(ctx, fresh.SessionID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"level": "beginner"}, prefs)

	// a caller-chosen id that was never used is still not "created"
	named, err := svc.CreateOrGetSession(ctx, domain.SessionRequest{SessionID: "chosen"})
	require.NoError(t, err)
	assert.False(t, named.Created)
	assert.Empty(t, named.Messages)
}

func TestHistoryAndClear(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemorySessionStore()
	svc := NewChatService(store, zap.NewNop())

	messages, err := svc.History(ctx, "unknown-sid")
	require.NoError(t, err)
	assert.Empty(t, messages)

	_, err = store.Save(ctx, "sid", domain.RoleUser, "hello", nil)
	require.NoError(t, err)
	messages, err = svc.History(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.RoleUser, messages[0].Role)

	require.NoError(t, svc.ClearSession(ctx, "sid"))
	messages, err = svc.History(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, messages)

	_, err = svc.History(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.ErrorIs(t, svc.ClearSession(ctx, " "), domain.ErrInvalidRequest)
}

func TestAdminService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	root := writeDocs(t, bookDocs)
	admin := NewAdminService(f.rt, f.ingest, f.store, root, zap.NewNop())

	stats, err := admin.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "book", stats.Collection)
	assert.Zero(t, stats.IndexedCount)
	assert.Equal(t, "memory", stats.SessionStore)
	assert.True(t, stats.Ready)

	report, err := admin.Ingest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, report.Stored)

	stats, err = admin.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), stats.IndexedCount)

	require.NoError(t, admin.Reset(ctx))
	stats, err = admin.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.IndexedCount)
}

func TestAdminService_StatsWithoutIndex(t *testing.T) {
	rt := &Runtime{}
	ingest := NewIngestService(rt, testIngestOptions(), zap.NewNop())
	admin := NewAdminService(rt, ingest, repository.NewMemorySessionStore(), "", zap.NewNop())

	stats, err := admin.GetStats(context.Background())
	require.NoError(t, err)
	assert.False(t, stats.Ready)
	assert.Zero(t, stats.IndexedCount)
}
