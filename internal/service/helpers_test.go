package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/repository"
	"github.com/liliang-cn/askbook/internal/vectorindex/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDim = 16

// stubEmbedder builds bag-of-words vectors so similar texts score higher
type stubEmbedder struct {
	mu      sync.Mutex
	calls   int
	failOn  string
	panicky bool
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if e.panicky {
		panic("embedder exploded")
	}
	e.mu.Lock()
	e.calls += len(texts)
	e.mu.Unlock()

	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if e.failOn != "" && strings.Contains(text, e.failOn) {
			return nil, errors.New("embedding provider unavailable")
		}
		out = append(out, bagOfWords(text))
	}
	return out, nil
}

func (e *stubEmbedder) ModelName() string { return "stub-embedding" }

func (e *stubEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

var vocabulary = []string{
	"ros", "dds", "middleware", "transport", "gazebo", "physics", "simulates", "isaac",
	"nvidia", "photorealistic", "vision", "language", "action", "robot", "chapter", "shared",
}

// bagOfWords counts vocabulary words, one dimension each, over a small baseline
func bagOfWords(text string) []float32 {
	v := make([]float32, testDim)
	for i := range v {
		v[i] = 0.01
	}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,?!#:")
		for i, term := range vocabulary {
			if w == term {
				v[i]++
			}
		}
	}
	return v
}

// stubCompleter records prompts and answers through fn
type stubCompleter struct {
	mu      sync.Mutex
	fn      func(system, user string) (string, error)
	systems []string
	users   []string
}

func (c *stubCompleter) Complete(_ context.Context, system, user string) (string, error) {
	c.mu.Lock()
	c.systems = append(c.systems, system)
	c.users = append(c.users, user)
	fn := c.fn
	c.mu.Unlock()

	if fn == nil {
		return "stub answer", nil
	}
	return fn(system, user)
}

func (c *stubCompleter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.users)
}

func (c *stubCompleter) LastUser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.users) == 0 {
		return ""
	}
	return c.users[len(c.users)-1]
}

func answerWith(text string) func(string, string) (string, error) {
	return func(string, string) (string, error) { return text, nil }
}

// failingStore accepts reads but rejects every write
type failingStore struct {
	*repository.MemorySessionStore
}

func (failingStore) Save(context.Context, string, domain.Role, string, []domain.RetrievedChunk) (*domain.Message, error) {
	return nil, errors.New("database is locked")
}

var testPersona = Persona{Book: "the Robotics book", Topics: "ROS 2 and simulation"}

type fixture struct {
	rt        *Runtime
	index     *memory.Index
	embedder  *stubEmbedder
	completer *stubCompleter
	store     *repository.MemorySessionStore
	ingest    *IngestService
	retriever *Retriever
	generator *Generator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		index:     memory.New(),
		embedder:  &stubEmbedder{},
		completer: &stubCompleter{},
		store:     repository.NewMemorySessionStore(),
	}
	f.rt = &Runtime{Embedder: f.embedder, Completer: f.completer, Index: f.index}
	f.ingest = NewIngestService(f.rt, testIngestOptions(), zap.NewNop())
	f.retriever = NewRetriever(f.rt, "book", zap.NewNop())
	f.generator = NewGenerator(f.rt, testPersona, zap.NewNop())
	return f
}

func (f *fixture) orchestrator(guard Guard) *OrchestratorService {
	return NewOrchestratorService(f.retriever, f.generator, guard, f.store, testPersona, 5, zap.NewNop())
}

func testIngestOptions() IngestOptions {
	return IngestOptions{
		Collection:     "book",
		Dimension:      testDim,
		Distance:       domain.DistanceCosine,
		ChunkSize:      1500,
		ChunkOverlap:   200,
		TitleScanLines: 10,
		Extensions:     []string{".md", ".mdx", ".txt", ".pdf"},
		Workers:        1,
		EmbedBatchSize: 2,
		ScrollPageSize: 2,
	}
}

func writeDocs(t *testing.T, docs map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range docs {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

var bookDocs = map[string]string{
	"ros2.md":       "# ROS 2\n\nROS 2 uses DDS as its middleware for publish subscribe transport.",
	"gazebo.md":     "# Gazebo\n\nGazebo simulates robots with physics engines and sensor plugins.",
	"isaac.mdx":     "# Isaac\n\nNVIDIA Isaac Sim renders photorealistic scenes for synthetic data.",
	"vla/intro.txt": "Vision language action models map camera images and instructions to robot actions.",
}

func strPtr(s string) *string { return &s }
