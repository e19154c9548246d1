package service

import (
	"context"

	"github.com/liliang-cn/askbook/internal/domain"
	"go.uber.org/zap"
)

// AdminService handles admin operations
type AdminService struct {
	rt      *Runtime
	ingest  *IngestService
	store   domain.SessionStore
	docsDir string
	logger  *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(rt *Runtime, ingest *IngestService, store domain.SessionStore, docsDir string, logger *zap.Logger) *AdminService {
	return &AdminService{
		rt:      rt,
		ingest:  ingest,
		store:   store,
		docsDir: docsDir,
		logger:  logger,
	}
}

// Ingest loads the configured docs directory, or dir when it is not empty
func (s *AdminService) Ingest(ctx context.Context, dir string) (*domain.IngestReport, error) {
	if dir == "" {
		dir = s.docsDir
	}
	return s.ingest.Ingest(ctx, dir)
}

// Reset empties the collection
func (s *AdminService) Reset(ctx context.Context) error {
	s.logger.Warn("Resetting collection", zap.String("collection", s.ingest.Collection()))
	return s.ingest.Reset(ctx)
}

// GetStats returns index and session store statistics
func (s *AdminService) GetStats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{
		Collection:   s.ingest.Collection(),
		SessionStore: s.store.Kind(),
		Ready:        s.rt.Ready(ctx) == nil,
	}
	if s.rt.Index == nil {
		return stats, nil
	}

	count, err := s.ingest.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.IndexedCount = count
	return stats, nil
}
