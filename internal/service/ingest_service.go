package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askbook/internal/chunker"
	"github.com/liliang-cn/askbook/internal/config"
	"github.com/liliang-cn/askbook/internal/corpus"
	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/logger"
	"github.com/liliang-cn/askbook/internal/metrics"
	"github.com/liliang-cn/askbook/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IngestOptions controls chunking, embedding and storage during ingestion
type IngestOptions struct {
	Collection     string
	Dimension      int
	Distance       domain.Distance
	ChunkSize      int
	ChunkOverlap   int
	TitleScanLines int
	Extensions     []string
	Workers        int
	EmbedBatchSize int
	ScrollPageSize int
}

// IngestOptionsFromConfig collects ingestion settings from the config sections
func IngestOptionsFromConfig(cfg *config.Config) IngestOptions {
	return IngestOptions{
		Collection:     cfg.Vector.Collection,
		Dimension:      cfg.Vector.Dimension,
		Distance:       domain.Distance(cfg.Vector.Distance),
		ChunkSize:      cfg.RAG.ChunkSize,
		ChunkOverlap:   cfg.RAG.ChunkOverlap,
		TitleScanLines: cfg.RAG.TitleScanLines,
		Extensions:     cfg.Ingest.Extensions,
		Workers:        cfg.Ingest.Workers,
		EmbedBatchSize: cfg.Ingest.EmbedBatchSize,
		ScrollPageSize: cfg.Vector.ScrollPageSize,
	}
}

// IngestService loads a corpus directory into the vector index. Chunks are
// deduplicated by content hash, so rerunning over an unchanged corpus stores nothing.
type IngestService struct {
	rt     *Runtime
	opts   IngestOptions
	logger *zap.Logger

	// mu serializes the dedup scan and upsert across workers and runs
	mu sync.Mutex
	// writes counts upserts and resets; a run whose view is older rescans
	writes uint64
}

// NewIngestService creates a new ingest service
func NewIngestService(rt *Runtime, opts IngestOptions, logger *zap.Logger) *IngestService {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 32
	}
	if opts.ScrollPageSize <= 0 {
		opts.ScrollPageSize = 1000
	}
	if opts.Distance == "" {
		opts.Distance = domain.DistanceCosine
	}
	return &IngestService{rt: rt, opts: opts, logger: logger}
}

// Collection returns the target collection name
func (s *IngestService) Collection() string {
	return s.opts.Collection
}

func (s *IngestService) index() (domain.VectorIndex, error) {
	if s.rt == nil || s.rt.Index == nil {
		return nil, fmt.Errorf("%w: vector index not initialized", domain.ErrNotReady)
	}
	return s.rt.Index, nil
}

// EnsureCollection creates the collection when missing. Losing a creation
// race to another process is not an error.
func (s *IngestService) EnsureCollection(ctx context.Context) error {
	index, err := s.index()
	if err != nil {
		return err
	}

	exists, err := index.CollectionExists(ctx, s.opts.Collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = index.CreateCollection(ctx, s.opts.Collection, s.opts.Dimension, s.opts.Distance)
	if err != nil && !errors.Is(err, domain.ErrCollectionExists) {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	s.logger.Info("Collection ready",
		zap.String("collection", s.opts.Collection),
		zap.Int("dimension", s.opts.Dimension),
	)
	return nil
}

// Reset drops the collection and recreates it empty
func (s *IngestService) Reset(ctx context.Context) error {
	index, err := s.index()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := index.CollectionExists(ctx, s.opts.Collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		if err := index.DeleteCollection(ctx, s.opts.Collection); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
		s.writes++
		s.logger.Info("Collection deleted", zap.String("collection", s.opts.Collection))
	}
	return s.EnsureCollection(ctx)
}

// Count returns the number of stored chunks; a missing collection counts as zero
func (s *IngestService) Count(ctx context.Context) (uint64, error) {
	index, err := s.index()
	if err != nil {
		return 0, err
	}
	n, err := index.Count(ctx, s.opts.Collection)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	return n, err
}

// ingestRun is the state shared by the workers of one Ingest call
type ingestRun struct {
	mu     sync.Mutex
	known  map[string]struct{}
	report domain.IngestReport
	// synced is the service write count known covers, guarded by IngestService.mu
	synced uint64
}

func (r *ingestRun) isKnown(hash string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.known[hash]
	return ok
}

// Ingest walks root and stores every chunk whose content hash is not yet indexed.
// A document that fails to load or embed is logged and counted, never fatal.
func (s *IngestService) Ingest(ctx context.Context, root string) (*domain.IngestReport, error) {
	if s.rt == nil || s.rt.Embedder == nil {
		return nil, fmt.Errorf("%w: embedder not initialized", domain.ErrNotReady)
	}
	if _, err := s.index(); err != nil {
		return nil, err
	}

	paths, err := corpus.Walk(root, s.opts.Extensions)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	known, err := s.scanHashes(ctx)
	synced := s.writes
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	s.logger.Info("Ingestion started",
		zap.String("root", root),
		zap.Int("documents", len(paths)),
		zap.Int("indexed_hashes", len(known)),
		zap.String("embedding_model", s.rt.Embedder.ModelName()),
	)

	run := &ingestRun{known: known, synced: synced}
	run.report.Documents = len(paths)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, path := range paths {
		g.Go(func() error {
			chunks, stored, err := s.ingestDocument(gctx, run, root, path)

			run.mu.Lock()
			defer run.mu.Unlock()
			if err != nil {
				s.logger.Error("Failed to ingest document", zap.String("path", path), zap.Error(err))
				metrics.IngestDocumentsTotal.WithLabelValues("failed").Inc()
				run.report.Failed++
				return nil
			}
			metrics.IngestDocumentsTotal.WithLabelValues("ok").Inc()
			run.report.Chunks += chunks
			run.report.Stored += stored
			run.report.Duplicates += chunks - stored
			return nil
		})
	}
	_ = g.Wait()

	report := run.report
	s.logger.Info("Ingestion finished",
		zap.Int("documents", report.Documents),
		zap.Int("failed", report.Failed),
		zap.Int("chunks", report.Chunks),
		zap.Int("stored", report.Stored),
		zap.Int("duplicates", report.Duplicates),
		zap.Duration("duration", time.Since(start)),
	)
	if err := ctx.Err(); err != nil {
		return &report, err
	}
	return &report, nil
}

// ingestDocument chunks, embeds and stores one file. Source paths are stored
// relative to root. It returns the number of chunks produced and the number newly stored.
func (s *IngestService) ingestDocument(ctx context.Context, run *ingestRun, root, path string) (int, int, error) {
	ctx, span := tracing.Start(ctx, "ingestor.Document")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	log := logger.FromContext(ctx, s.logger).With(zap.String("path", path))

	doc, err := corpus.Read(path, s.opts.TitleScanLines)
	if err != nil {
		span.RecordError(err)
		return 0, 0, err
	}
	if rel, err := filepath.Rel(root, path); err == nil {
		doc.Path = filepath.ToSlash(rel)
	}

	texts := chunker.Split(doc.Text, s.opts.ChunkSize, s.opts.ChunkOverlap)
	seen := make(map[string]struct{}, len(texts))
	var pending []domain.DocumentChunk
	for i, text := range texts {
		hash := chunker.Hash(text)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}
		if run.isKnown(hash) {
			continue
		}
		pending = append(pending, domain.DocumentChunk{
			ChunkID:     uuid.New().String(),
			Text:        text,
			SourcePath:  doc.Path,
			PageTitle:   doc.Title,
			ContentHash: hash,
			ChunkIndex:  i,
		})
	}
	log.Debug("Document chunked", zap.Int("chunks", len(texts)), zap.Int("new", len(pending)))

	if len(pending) == 0 {
		metrics.IngestChunksTotal.WithLabelValues("duplicate").Add(float64(len(texts)))
		return len(texts), 0, nil
	}

	if err := s.embed(ctx, pending); err != nil {
		span.RecordError(err)
		return 0, 0, err
	}

	stored, err := s.store(ctx, run, pending)
	if err != nil {
		span.RecordError(err)
		return 0, 0, err
	}

	metrics.IngestChunksTotal.WithLabelValues("stored").Add(float64(stored))
	metrics.IngestChunksTotal.WithLabelValues("duplicate").Add(float64(len(texts) - stored))
	span.SetAttributes(attribute.Int("chunks", len(texts)), attribute.Int("stored", stored))
	if len(texts) > stored {
		log.Info("Skipped duplicate chunks", zap.Int("duplicates", len(texts)-stored))
	}
	return len(texts), stored, nil
}

func (s *IngestService) embed(ctx context.Context, chunks []domain.DocumentChunk) error {
	for start := 0; start < len(chunks); start += s.opts.EmbedBatchSize {
		end := min(start+s.opts.EmbedBatchSize, len(chunks))

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		vectors, err := s.rt.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts))
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
	}
	return nil
}

// store upserts the chunks whose hashes are still unknown. The collection is
// rescanned only when another run wrote or reset since this run last looked.
func (s *IngestService) store(ctx context.Context, run *ingestRun, chunks []domain.DocumentChunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.synced != s.writes {
		existing, err := s.scanHashes(ctx)
		if err != nil {
			return 0, err
		}
		run.mu.Lock()
		run.known = existing
		run.mu.Unlock()
		run.synced = s.writes
	}

	run.mu.Lock()
	points := make([]domain.IndexedPoint, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := run.known[c.ContentHash]; ok {
			continue
		}
		points = append(points, c.Point())
	}
	run.mu.Unlock()

	if len(points) == 0 {
		return 0, nil
	}
	if err := s.rt.Index.Upsert(ctx, s.opts.Collection, points); err != nil {
		return 0, fmt.Errorf("failed to upsert chunks: %w", err)
	}

	run.mu.Lock()
	for _, p := range points {
		run.known[p.Payload.ContentHash] = struct{}{}
	}
	run.mu.Unlock()
	s.writes++
	run.synced = s.writes

	return len(points), nil
}

// scanHashes pages through the whole collection collecting content hashes
func (s *IngestService) scanHashes(ctx context.Context) (map[string]struct{}, error) {
	hashes := make(map[string]struct{})
	cursor := ""
	for {
		points, next, err := s.rt.Index.Scroll(ctx, s.opts.Collection, s.opts.ScrollPageSize, cursor)
		if errors.Is(err, domain.ErrNotFound) {
			return hashes, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan existing chunks: %w", err)
		}
		for _, p := range points {
			if p.Payload.ContentHash != "" {
				hashes[p.Payload.ContentHash] = struct{}{}
			}
		}
		if next == "" {
			return hashes, nil
		}
		cursor = next
	}
}
