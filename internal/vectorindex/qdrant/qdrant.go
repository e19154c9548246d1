// Package qdrant implements domain.VectorIndex on the Qdrant gRPC client.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Config configures the Qdrant connection
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Index is a thin adapter over *qdrant.Client
type Index struct {
	client *qdrant.Client
}

var _ domain.VectorIndex = (*Index)(nil)

// New connects to Qdrant. The gRPC connection is established lazily.
func New(cfg Config) (*Index, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: vector.host", domain.ErrNotConfigured)
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &Index{client: client}, nil
}

func (s *Index) CollectionExists(ctx context.Context, collection string) (bool, error) {
	ok, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("%w: collection exists: %v", domain.ErrUpstream, err)
	}
	return ok, nil
}

func (s *Index) CreateCollection(ctx context.Context, collection string, dimension int, distance domain.Distance) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: toDistance(distance),
		}),
	})
	if err != nil {
		if alreadyExists(err) {
			return domain.ErrCollectionExists
		}
		return fmt.Errorf("%w: create collection: %v", domain.ErrUpstream, err)
	}
	return nil
}

func (s *Index) DeleteCollection(ctx context.Context, collection string) error {
	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		return wrapError("delete collection", err)
	}
	return nil
}

func (s *Index) Upsert(ctx context.Context, collection string, points []domain.IndexedPoint) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: toPayload(p.Payload),
		}
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("%w: upsert: %v", domain.ErrUpstream, err)
	}
	return nil
}

func (s *Index) Search(ctx context.Context, collection string, vector []float32, limit int) ([]domain.ScoredPoint, error) {
	if limit <= 0 {
		limit = 5
	}
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, wrapError("query", err)
	}

	results := make([]domain.ScoredPoint, 0, len(hits))
	for _, h := range hits {
		results = append(results, domain.ScoredPoint{
			ID:      pointID(h.GetId()),
			Score:   float64(h.GetScore()),
			Payload: fromPayload(h.GetPayload()),
		})
	}
	return results, nil
}

func (s *Index) Scroll(ctx context.Context, collection string, limit int, cursor string) ([]domain.IndexedPoint, string, error) {
	req := &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if cursor != "" {
		req.Offset = qdrant.NewID(cursor)
	}

	resp, err := s.client.GetPointsClient().Scroll(ctx, req)
	if err != nil {
		return nil, "", wrapError("scroll", err)
	}

	points := make([]domain.IndexedPoint, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		points = append(points, domain.IndexedPoint{
			ID:      pointID(p.GetId()),
			Payload: fromPayload(p.GetPayload()),
		})
	}

	next := ""
	if off := resp.GetNextPageOffset(); off != nil {
		next = pointID(off)
	}
	return points, next, nil
}

func (s *Index) Count(ctx context.Context, collection string) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, wrapError("count", err)
	}
	return n, nil
}

func (s *Index) HealthCheck(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: health check: %v", domain.ErrUpstream, err)
	}
	return nil
}

func (s *Index) Close() error {
	return s.client.Close()
}

func alreadyExists(err error) bool {
	if status.Code(err) == codes.AlreadyExists {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// notFound reports a missing collection ("Collection `x` doesn't exist!")
func notFound(err error) bool {
	if status.Code(err) == codes.NotFound {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "doesn't exist")
}

// wrapError maps a missing collection to ErrNotFound and everything else to ErrUpstream
func wrapError(op string, err error) error {
	if notFound(err) {
		return fmt.Errorf("%w: %s: %v", domain.ErrNotFound, op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrUpstream, op, err)
}

func toDistance(d domain.Distance) qdrant.Distance {
	switch d {
	case domain.DistanceDot:
		return qdrant.Distance_Dot
	case domain.DistanceEuclidean:
		return qdrant.Distance_Euclid
	default:
		return qdrant.Distance_Cosine
	}
}

func toPayload(p domain.PointPayload) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		domain.PayloadKeyText:        qdrant.NewValueString(p.Text),
		domain.PayloadKeySourcePath:  qdrant.NewValueString(p.SourcePath),
		domain.PayloadKeyPageTitle:   qdrant.NewValueString(p.PageTitle),
		domain.PayloadKeyContentHash: qdrant.NewValueString(p.ContentHash),
		domain.PayloadKeyChunkIndex:  qdrant.NewValueInt(int64(p.ChunkIndex)),
	}
}

func fromPayload(m map[string]*qdrant.Value) domain.PointPayload {
	return domain.PointPayload{
		Text:        m[domain.PayloadKeyText].GetStringValue(),
		SourcePath:  m[domain.PayloadKeySourcePath].GetStringValue(),
		PageTitle:   m[domain.PayloadKeyPageTitle].GetStringValue(),
		ContentHash: m[domain.PayloadKeyContentHash].GetStringValue(),
		ChunkIndex:  int(m[domain.PayloadKeyChunkIndex].GetIntegerValue()),
	}
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}
