package service

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/liliang-cn/askbook/internal/chunker"
	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/vectorindex/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIngest_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	root := writeDocs(t, bookDocs)

	first, err := f.ingest.Ingest(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Documents)
	assert.Equal(t, 0, first.Failed)
	assert.Equal(t, 4, first.Chunks)
	assert.Equal(t, 4, first.Stored)

	embedded := f.embedder.Calls()

	second, err := f.ingest.Ingest(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Stored)
	assert.Equal(t, 4, second.Duplicates)
	assert.Equal(t, embedded, f.embedder.Calls(), "known chunks are not re-embedded")

	count, err := f.ingest.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)
}

func TestIngest_CollapsesIdenticalPassagesAcrossDocuments(t *testing.T) {
	ctx := context.Background()
	same := "# Shared\n\nThe same paragraph appears in two chapters."

	for _, workers := range []int{1, 4} {
		f := newFixture(t)
		opts := testIngestOptions()
		opts.Workers = workers
		ingest := NewIngestService(f.rt, opts, zap.NewNop())

		root := writeDocs(t, map[string]string{
			"a.md": same,
			"b.md": same,
			"c.md": "# Other\n\nSomething else entirely.",
		})

		report, err := ingest.Ingest(ctx, root)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Stored, "workers=%d", workers)
		assert.Equal(t, 1, report.Duplicates, "workers=%d", workers)

		count, err := ingest.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), count, "workers=%d", workers)
	}
}

// scrollCounter counts full-collection scan pages
type scrollCounter struct {
	*memory.Index
	scrolls atomic.Int64
}

func (c *scrollCounter) Scroll(ctx context.Context, name string, limit int, cursor string) ([]domain.IndexedPoint, string, error) {
	c.scrolls.Add(1)
	return c.Index.Scroll(ctx, name, limit, cursor)
}

func TestIngest_ScansCollectionOncePerRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	index := &scrollCounter{Index: f.index}
	rt := &Runtime{Embedder: f.embedder, Completer: f.completer, Index: index}
	ingest := NewIngestService(rt, testIngestOptions(), zap.NewNop())
	root := writeDocs(t, bookDocs)

	report, err := ingest.Ingest(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Stored)
	assert.Equal(t, int64(1), index.scrolls.Load(), "empty collection is scanned once")

	index.scrolls.Store(0)
	report, err = ingest.Ingest(ctx, root)
	require.NoError(t, err)
	assert.Zero(t, report.Stored)
	assert.Equal(t, int64(2), index.scrolls.Load(), "four points in pages of two")
}

func TestStore_RescansAfterAnotherRunWrote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.ingest.Ingest(ctx, writeDocs(t, bookDocs))
	require.NoError(t, err)

	// a run that started before the writes above
	stale := &ingestRun{known: map[string]struct{}{}}
	text := bookDocs["ros2.md"]
	chunk := domain.DocumentChunk{
		ChunkID:     "00000000-0000-0000-0000-000000000001",
		Text:        text,
		SourcePath:  "copy/ros2.md",
		ContentHash: chunker.Hash(text),
		Embedding:   bagOfWords(text),
	}

	stored, err := f.ingest.store(ctx, stale, []domain.DocumentChunk{chunk})
	require.NoError(t, err)
	assert.Zero(t, stored)
	assert.Len(t, stale.known, 4)

	count, err := f.ingest.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)
}

func TestStore_RescansAfterReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	root := writeDocs(t, map[string]string{"ros2.md": bookDocs["ros2.md"]})
	_, err := f.ingest.Ingest(ctx, root)
	require.NoError(t, err)

	f.ingest.mu.Lock()
	run := &ingestRun{known: map[string]struct{}{chunker.Hash(bookDocs["ros2.md"]): {}}, synced: f.ingest.writes}
	f.ingest.mu.Unlock()
	require.NoError(t, f.ingest.Reset(ctx))

	text := bookDocs["ros2.md"]
	stored, err := f.ingest.store(ctx, run, []domain.DocumentChunk{{
		ChunkID:     "00000000-0000-0000-0000-000000000002",
		Text:        text,
		SourcePath:  "ros2.md",
		ContentHash: chunker.Hash(text),
		Embedding:   bagOfWords(text),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, stored, "hashes known before the reset are gone")
}

func TestIngest_StoresChunkPayload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	root := writeDocs(t, map[string]string{"ros2.md": bookDocs["ros2.md"]})

	_, err := f.ingest.Ingest(ctx, root)
	require.NoError(t, err)

	points, next, err := f.index.Scroll(ctx, "book", 10, "")
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, points, 1)

	p := points[0]
	assert.NotEmpty(t, p.ID)
	assert.Len(t, p.Vector, testDim)
	assert.Equal(t, "ROS 2", p.Payload.PageTitle)
	assert.Equal(t, bookDocs["ros2.md"], p.Payload.Text)
	assert.Equal(t, "ros2.md", p.Payload.SourcePath)
	assert.Len(t, p.Payload.ContentHash, 64)
	assert.Equal(t, 0, p.Payload.ChunkIndex)
}

func TestIngest_FailedDocumentDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.embedder.failOn = "POISON"

	docs := map[string]string{
		"good.md":    "# Good\n\nA perfectly fine chapter.",
		"bad.md":     "# Bad\n\nPOISON in this chapter.",
		"broken.pdf": "not really a pdf",
	}
	report, err := f.ingest.Ingest(ctx, writeDocs(t, docs))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Documents)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Stored)

	// a rerun after fixing the provider stores only what is missing
	f.embedder.failOn = ""
	report, err = f.ingest.Ingest(ctx, writeDocs(t, docs))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stored)
}

func TestIngest_Errors(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	_, err := f.ingest.Ingest(ctx, "/does/not/exist")
	assert.Error(t, err)

	notReady := NewIngestService(&Runtime{}, testIngestOptions(), zap.NewNop())
	_, err = notReady.Ingest(ctx, t.TempDir())
	assert.ErrorIs(t, err, domain.ErrNotReady)
}

func TestEnsureCollection_ToleratesExisting(t *testing.T) {
	ctx := context.Background()
	index := memory.New()
	require.NoError(t, index.CreateCollection(ctx, "book", testDim, domain.DistanceCosine))

	ingest := NewIngestService(&Runtime{Index: index}, testIngestOptions(), zap.NewNop())
	assert.NoError(t, ingest.EnsureCollection(ctx))
	assert.NoError(t, ingest.EnsureCollection(ctx))
}

func TestReset_EmptiesCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.ingest.Ingest(ctx, writeDocs(t, bookDocs))
	require.NoError(t, err)

	require.NoError(t, f.ingest.Reset(ctx))
	count, err := f.ingest.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	exists, err := f.index.CollectionExists(ctx, "book")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCount_MissingCollectionIsZero(t *testing.T) {
	f := newFixture(t)
	count, err := f.ingest.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
