package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/liliang-cn/askbook/internal/config"
	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/llm"
	"github.com/liliang-cn/askbook/internal/vectorindex"
	"go.uber.org/zap"
)

// Runtime holds the external collaborators every query depends on. It is
// built once at startup and shared by reference; a missing collaborator makes
// the service report not-ready instead of failing to start.
type Runtime struct {
	Embedder  domain.Embedder
	Completer domain.Completer
	Index     domain.VectorIndex
	// InitErr records why a collaborator could not be built.
	InitErr error
}

// NewRuntime builds the LLM client and vector index from config. Construction
// errors are kept in InitErr rather than returned.
func NewRuntime(cfg *config.Config, logger *zap.Logger) *Runtime {
	rt := &Runtime{}

	if err := cfg.Validate(); err != nil {
		logger.Warn("Configuration incomplete, service will report not ready", zap.Error(err))
		rt.InitErr = err
	}

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		logger.Warn("LLM client not initialized", zap.Error(err))
		rt.InitErr = errors.Join(rt.InitErr, err)
	} else {
		rt.Embedder = client
		rt.Completer = client
		logger.Info("LLM client initialized",
			zap.String("embedding_model", client.ModelName()),
			zap.String("chat_model", client.ChatModel()),
		)
	}

	index, err := vectorindex.New(cfg.Vector)
	if err != nil {
		logger.Warn("Vector index not initialized", zap.Error(err))
		rt.InitErr = errors.Join(rt.InitErr, err)
	} else {
		rt.Index = index
	}

	return rt
}

// Ready returns nil when queries can be answered
func (r *Runtime) Ready(ctx context.Context) error {
	if r == nil {
		return domain.ErrNotReady
	}
	if r.InitErr != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotReady, r.InitErr)
	}
	if r.Embedder == nil || r.Completer == nil {
		return fmt.Errorf("%w: llm client not initialized", domain.ErrNotReady)
	}
	if r.Index == nil {
		return fmt.Errorf("%w: vector index not initialized", domain.ErrNotReady)
	}
	if err := r.Index.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotReady, err)
	}
	return nil
}

// Checks reports the state of each collaborator for the readiness endpoint
func (r *Runtime) Checks(ctx context.Context) map[string]string {
	checks := map[string]string{
		"config":       "ok",
		"llm":          "ok",
		"vector_index": "ok",
	}
	if r.InitErr != nil {
		checks["config"] = r.InitErr.Error()
	}
	if r.Embedder == nil || r.Completer == nil {
		checks["llm"] = "not initialized"
	}
	switch {
	case r.Index == nil:
		checks["vector_index"] = "not initialized"
	default:
		if err := r.Index.HealthCheck(ctx); err != nil {
			checks["vector_index"] = err.Error()
		}
	}
	return checks
}

// Close releases the vector index connection
func (r *Runtime) Close() error {
	if r.Index != nil {
		return r.Index.Close()
	}
	return nil
}
