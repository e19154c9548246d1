package service

import (
	"context"
	"errors"
	"testing"

	"github.com/liliang-cn/askbook/internal/config"
	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/vectorindex/memory"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type unhealthyIndex struct {
	*memory.Index
}

func (unhealthyIndex) HealthCheck(context.Context) error {
	return errors.New("connection refused")
}

func TestRuntime_Ready(t *testing.T) {
	ctx := context.Background()

	var nilRuntime *Runtime
	assert.ErrorIs(t, nilRuntime.Ready(ctx), domain.ErrNotReady)

	assert.ErrorIs(t, (&Runtime{}).Ready(ctx), domain.ErrNotReady)

	f := newFixture(t)
	assert.NoError(t, f.rt.Ready(ctx))

	sick := &Runtime{Embedder: f.embedder, Completer: f.completer, Index: unhealthyIndex{memory.New()}}
	assert.ErrorIs(t, sick.Ready(ctx), domain.ErrNotReady)
	assert.Equal(t, "connection refused", sick.Checks(ctx)["vector_index"])

	broken := &Runtime{InitErr: domain.ErrNotConfigured}
	err := broken.Ready(ctx)
	assert.ErrorIs(t, err, domain.ErrNotReady)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestRuntime_Checks(t *testing.T) {
	checks := (&Runtime{}).Checks(context.Background())
	assert.Equal(t, "ok", checks["config"])
	assert.Equal(t, "not initialized", checks["llm"])
	assert.Equal(t, "not initialized", checks["vector_index"])
}

func TestNewRuntime_MissingCredentials(t *testing.T) {
	cfg := &config.Config{
		Vector: config.VectorConfig{Backend: "memory", Dimension: 8},
	}

	rt := NewRuntime(cfg, zap.NewNop())
	assert.ErrorIs(t, rt.InitErr, domain.ErrNotConfigured)
	assert.Nil(t, rt.Embedder)
	assert.Nil(t, rt.Completer)
	assert.NotNil(t, rt.Index)
	assert.ErrorIs(t, rt.Ready(context.Background()), domain.ErrNotReady)
	assert.NoError(t, rt.Close())
}

func TestNewRuntime_Configured(t *testing.T) {
	cfg := &config.Config{
		LLM:    config.LLMConfig{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1/v1", EmbeddingModel: "e", ChatModel: "c"},
		Vector: config.VectorConfig{Backend: "memory", Dimension: 8},
	}

	rt := NewRuntime(cfg, zap.NewNop())
	assert.NoError(t, rt.InitErr)
	assert.NoError(t, rt.Ready(context.Background()))
}
