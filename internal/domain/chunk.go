package domain

// Payload keys stored with every indexed point
const (
	PayloadKeyText        = "text"
	PayloadKeySourcePath  = "source_path"
	PayloadKeyPageTitle   = "page_title"
	PayloadKeyContentHash = "content_hash"
	PayloadKeyChunkIndex  = "chunk_index"
)

// DocumentChunk is a bounded slice of a source document, ready to be indexed.
// ContentHash depends on Text only.
type DocumentChunk struct {
	ChunkID     string    `json:"chunk_id"`
	Text        string    `json:"text"`
	SourcePath  string    `json:"source_path"`
	PageTitle   string    `json:"page_title"`
	Embedding   []float32 `json:"-"`
	ContentHash string    `json:"content_hash"`
	ChunkIndex  int       `json:"chunk_index"`
}

// Point converts the chunk into its persisted vector index form.
func (c DocumentChunk) Point() IndexedPoint {
	return IndexedPoint{
		ID:     c.ChunkID,
		Vector: c.Embedding,
		Payload: PointPayload{
			Text:        c.Text,
			SourcePath:  c.SourcePath,
			PageTitle:   c.PageTitle,
			ContentHash: c.ContentHash,
			ChunkIndex:  c.ChunkIndex,
		},
	}
}

// IndexedPoint is a vector plus payload as stored in the vector index.
type IndexedPoint struct {
	ID      string
	Vector  []float32
	Payload PointPayload
}

// PointPayload is the metadata attached to an indexed point
type PointPayload struct {
	Text        string
	SourcePath  string
	PageTitle   string
	ContentHash string
	ChunkIndex  int
}

// ScoredPoint is a nearest-neighbour search hit
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload PointPayload
}

// RetrievedChunk is a query-time passage returned to clients and stored with messages
type RetrievedChunk struct {
	SourcePath string  `json:"source_path"`
	ChunkID    string  `json:"chunk_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	PageTitle  string  `json:"page_title"`
}

// Distance is the similarity metric of a collection
type Distance string

const (
	DistanceCosine    Distance = "cosine"
	DistanceDot       Distance = "dot"
	DistanceEuclidean Distance = "euclidean"
)
