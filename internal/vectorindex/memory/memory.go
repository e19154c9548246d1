// Package memory is an in-process domain.VectorIndex using brute-force similarity.
// It backs tests and local runs without a Qdrant server.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/liliang-cn/askbook/internal/domain"
)

type collection struct {
	dimension int
	distance  domain.Distance
	ids       []string
	points    map[string]domain.IndexedPoint
}

// Index keeps collections in memory, guarded by a RWMutex
type Index struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

var _ domain.VectorIndex = (*Index)(nil)

func New() *Index {
	return &Index{collections: make(map[string]*collection)}
}

func (s *Index) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *Index) CreateCollection(_ context.Context, name string, dimension int, distance domain.Distance) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return domain.ErrCollectionExists
	}
	s.collections[name] = &collection{
		dimension: dimension,
		distance:  distance,
		points:    make(map[string]domain.IndexedPoint),
	}
	return nil
}

func (s *Index) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *Index) Upsert(_ context.Context, name string, points []domain.IndexedPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	for _, p := range points {
		if len(p.Vector) != c.dimension {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(p.Vector), c.dimension)
		}
	}
	for _, p := range points {
		if _, exists := c.points[p.ID]; !exists {
			c.ids = append(c.ids, p.ID)
		}
		c.points[p.ID] = p
	}
	return nil
}

func (s *Index) Search(_ context.Context, name string, vector []float32, limit int) ([]domain.ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	if limit <= 0 {
		limit = 5
	}

	results := make([]domain.ScoredPoint, 0, len(c.ids))
	for _, id := range c.ids {
		p := c.points[id]
		results = append(results, domain.ScoredPoint{
			ID:      p.ID,
			Score:   score(c.distance, p.Vector, vector),
			Payload: p.Payload,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// Scroll pages in insertion order. The cursor is the position of the next point.
func (s *Index) Scroll(_ context.Context, name string, limit int, cursor string) ([]domain.IndexedPoint, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, "", fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	if limit <= 0 {
		limit = 10
	}

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, "", fmt.Errorf("invalid scroll cursor %q", cursor)
		}
		start = n
	}
	if start >= len(c.ids) {
		return []domain.IndexedPoint{}, "", nil
	}

	end := start + limit
	next := strconv.Itoa(end)
	if end >= len(c.ids) {
		end = len(c.ids)
		next = ""
	}
	points := make([]domain.IndexedPoint, 0, end-start)
	for _, id := range c.ids[start:end] {
		points = append(points, c.points[id])
	}
	return points, next, nil
}

func (s *Index) Count(_ context.Context, name string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return 0, fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	return uint64(len(c.ids)), nil
}

func (s *Index) HealthCheck(context.Context) error { return nil }

func (s *Index) Close() error { return nil }

// higher is always more similar
func score(d domain.Distance, a, b []float32) float64 {
	switch d {
	case domain.DistanceDot:
		return dot(a, b)
	case domain.DistanceEuclidean:
		return -euclidean(a, b)
	default:
		na, nb := math.Sqrt(dot(a, a)), math.Sqrt(dot(b, b))
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func euclidean(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
