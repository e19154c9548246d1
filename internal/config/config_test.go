package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 1500, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, "book_chunks", cfg.Vector.Collection)
	assert.Equal(t, 768, cfg.Vector.Dimension)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, []string{".md", ".mdx", ".txt", ".pdf"}, cfg.Ingest.Extensions)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  chat_model: local\n"), 0o644))
	t.Setenv("ASKBOOK_LLM_API_KEY", "secret")
	t.Setenv("ASKBOOK_SESSION_STORE", "sqlite")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.LLM.APIKey)
	assert.Equal(t, "sqlite", cfg.Session.Store)
	assert.Equal(t, "local", cfg.LLM.ChatModel)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		LLM:    LLMConfig{APIKey: "key"},
		Vector: VectorConfig{Host: "localhost", Dimension: 768},
	}
	assert.NoError(t, cfg.Validate())

	cfg.LLM.APIKey = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
	assert.Contains(t, err.Error(), "llm.api_key")
}

func TestAddress(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "127.0.0.1", Port: 8000}}
	assert.Equal(t, "127.0.0.1:8000", cfg.Address())
}
