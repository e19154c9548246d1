// Package vectorindex selects the configured domain.VectorIndex backend.
package vectorindex

import (
	"fmt"

	"github.com/liliang-cn/askbook/internal/config"
	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/vectorindex/memory"
	"github.com/liliang-cn/askbook/internal/vectorindex/qdrant"
)

// New returns the backend named by cfg.Backend
func New(cfg config.VectorConfig) (domain.VectorIndex, error) {
	switch cfg.Backend {
	case "", "qdrant":
		return qdrant.New(qdrant.Config{
			Host:   cfg.Host,
			Port:   cfg.Port,
			APIKey: cfg.APIKey,
			UseTLS: cfg.UseTLS,
		})
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown vector backend %q", domain.ErrNotConfigured, cfg.Backend)
	}
}
