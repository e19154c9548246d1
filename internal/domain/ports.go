package domain

import "context"

// Embedder converts text into fixed-dimension vectors. Ingestion and retrieval
// must use the same model, otherwise relevance silently degrades.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// ModelName identifies the embedding model, logged so index and query use can be compared.
	ModelName() string
}

// Completer issues a single system+user completion request.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// VectorIndex stores vectors with payload and answers nearest-neighbour queries.
type VectorIndex interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)
	// CreateCollection returns ErrCollectionExists when the collection is already there.
	CreateCollection(ctx context.Context, collection string, dimension int, distance Distance) error
	DeleteCollection(ctx context.Context, collection string) error
	Upsert(ctx context.Context, collection string, points []IndexedPoint) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error)
	// Scroll pages through stored points; an empty next cursor means the end was reached.
	Scroll(ctx context.Context, collection string, limit int, cursor string) (points []IndexedPoint, next string, err error)
	Count(ctx context.Context, collection string) (uint64, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// SessionStore is the append-only per-session message log.
// History of an unknown session is empty, never an error.
type SessionStore interface {
	Save(ctx context.Context, sessionID string, role Role, content string, chunks []RetrievedChunk) (*Message, error)
	History(ctx context.Context, sessionID string) ([]Message, error)
	Clear(ctx context.Context, sessionID string) error
	SavePreferences(ctx context.Context, sessionID string, prefs map[string]any) error
	Preferences(ctx context.Context, sessionID string) (map[string]any, error)
	Kind() string
	Close() error
}
