package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/logger"
	"github.com/liliang-cn/askbook/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Retriever finds the chunks nearest to a query
type Retriever struct {
	rt         *Runtime
	collection string
	logger     *zap.Logger
}

// NewRetriever creates a retriever over the given collection
func NewRetriever(rt *Runtime, collection string, logger *zap.Logger) *Retriever {
	return &Retriever{rt: rt, collection: collection, logger: logger}
}

// Retrieve returns at most topK chunks ordered by descending score. An
// uninitialized runtime or a missing collection yields an empty result.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedChunk, error) {
	ctx, span := tracing.Start(ctx, "retriever.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("top_k", topK))

	log := logger.FromContext(ctx, r.logger)
	if r.rt == nil || r.rt.Embedder == nil || r.rt.Index == nil {
		log.Warn("Retrieval skipped, runtime not initialized")
		return []domain.RetrievedChunk{}, nil
	}

	vector, err := r.rt.Embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := r.rt.Index.Search(ctx, r.collection, vector, topK)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn("Collection not found, nothing to retrieve", zap.String("collection", r.collection))
		return []domain.RetrievedChunk{}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search %s: %w", r.collection, err)
	}

	chunks := make([]domain.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		chunks = append(chunks, domain.RetrievedChunk{
			SourcePath: hit.Payload.SourcePath,
			ChunkID:    hit.ID,
			Text:       hit.Payload.Text,
			Score:      hit.Score,
			PageTitle:  hit.Payload.PageTitle,
		})
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	if topK > 0 && len(chunks) > topK {
		chunks = chunks[:topK]
	}

	span.SetAttributes(attribute.Int("retrieved", len(chunks)))
	log.Debug("Retrieved chunks", zap.Int("count", len(chunks)))
	return chunks, nil
}
