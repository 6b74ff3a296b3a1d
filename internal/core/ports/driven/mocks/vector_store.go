package mocks

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// MockVectorStore is an in-memory implementation of VectorStore for testing.
// Search ranks by cosine similarity. Error hooks fail individual operations.
type MockVectorStore struct {
	mu          sync.RWMutex
	collections map[string]*mockCollection

	// Custom behavior hooks (optional)
	EnsureErr           error
	UpsertErr           error
	SearchErr           error
	DeleteByFilterErr   error
	DeletePointsErr     error
	DeleteCollectionErr error
	ListErr             error
	ScrollErr           error
	PingErr             error

	// UpsertCalls counts Upsert invocations, successful or not
	UpsertCalls int
}

type mockCollection struct {
	vectorSize int
	distance   domain.Distance
	points     map[string]domain.Point
}

// NewMockVectorStore creates an empty MockVectorStore
func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{
		collections: make(map[string]*mockCollection),
	}
}

var _ driven.VectorStore = (*MockVectorStore)(nil)

func (m *MockVectorStore) EnsureCollection(ctx context.Context, name string, vectorSize int, distance domain.Distance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EnsureErr != nil {
		return m.EnsureErr
	}
	if c, ok := m.collections[name]; ok {
		if c.vectorSize != vectorSize {
			return fmt.Errorf("%w: collection %s has vector size %d, want %d",
				domain.ErrEmbeddingMismatch, name, c.vectorSize, vectorSize)
		}
		return nil
	}
	m.collections[name] = &mockCollection{
		vectorSize: vectorSize,
		distance:   distance,
		points:     make(map[string]domain.Point),
	}
	return nil
}

func (m *MockVectorStore) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertCalls++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	c, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s: %w", collection, domain.ErrNotFound)
	}
	for _, p := range points {
		if len(p.Vector) != c.vectorSize {
			return fmt.Errorf("%w: vector size %d, want %d", domain.ErrVectorStore, len(p.Vector), c.vectorSize)
		}
	}
	for _, p := range points {
		c.points[p.ID] = p
	}
	return nil
}

func (m *MockVectorStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]domain.ScoredPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", collection, domain.ErrNotFound)
	}

	results := make([]domain.ScoredPoint, 0, len(c.points))
	for _, p := range c.points {
		results = append(results, domain.ScoredPoint{
			ID:      p.ID,
			Score:   cosine(vector, p.Vector),
			Payload: p.Payload,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].ID < results[j].ID
		}
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MockVectorStore) DeleteByFilter(ctx context.Context, collection, field, value string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteByFilterErr != nil {
		return 0, m.DeleteByFilterErr
	}
	c, ok := m.collections[collection]
	if !ok {
		return 0, nil
	}
	deleted := 0
	for id, p := range c.points {
		if v, ok := p.Payload[field].(string); ok && v == value {
			delete(c.points, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MockVectorStore) DeletePoints(ctx context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeletePointsErr != nil {
		return m.DeletePointsErr
	}
	c, ok := m.collections[collection]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(c.points, id)
	}
	return nil
}

func (m *MockVectorStore) DeleteCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteCollectionErr != nil {
		return m.DeleteCollectionErr
	}
	delete(m.collections, name)
	return nil
}

func (m *MockVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MockVectorStore) ScrollPoints(ctx context.Context, collection string, fn func(domain.ScoredPoint) error) error {
	m.mu.RLock()
	if m.ScrollErr != nil {
		m.mu.RUnlock()
		return m.ScrollErr
	}
	c, ok := m.collections[collection]
	if !ok {
		m.mu.RUnlock()
		return fmt.Errorf("collection %s: %w", collection, domain.ErrNotFound)
	}
	points := make([]domain.ScoredPoint, 0, len(c.points))
	for _, p := range c.points {
		points = append(points, domain.ScoredPoint{ID: p.ID, Payload: p.Payload})
	}
	m.mu.RUnlock()

	sort.Slice(points, func(i, j int) bool { return points[i].ID < points[j].ID })
	for _, p := range points {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockVectorStore) SampleEmbeddingModel(ctx context.Context, collection string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return "", nil
	}
	for _, p := range c.points {
		if model, ok := p.Payload[domain.PayloadEmbeddingModel].(string); ok {
			return model, nil
		}
	}
	return "", nil
}

func (m *MockVectorStore) Ping(ctx context.Context) error {
	return m.PingErr
}

// Helper methods for testing

// HasCollection reports whether a collection exists
func (m *MockVectorStore) HasCollection(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok
}

// PointCount returns the number of points in a collection
func (m *MockVectorStore) PointCount(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.collections[collection]; ok {
		return len(c.points)
	}
	return 0
}

// PointsForDocument returns the points tagged with a document id
func (m *MockVectorStore) PointsForDocument(collection, documentID string) []domain.Point {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil
	}
	var points []domain.Point
	for _, p := range c.points {
		if v, _ := p.Payload[domain.PayloadDocumentID].(string); v == documentID {
			points = append(points, p)
		}
	}
	sort.Slice(points, func(i, j int) bool {
		return chunkIndex(points[i]) < chunkIndex(points[j])
	})
	return points
}

// PutPoint stores a point directly, creating the collection if needed (for test setup)
func (m *MockVectorStore) PutPoint(collection string, p domain.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		c = &mockCollection{vectorSize: len(p.Vector), distance: domain.DistanceCosine, points: make(map[string]domain.Point)}
		m.collections[collection] = c
	}
	c.points[p.ID] = p
}

func chunkIndex(p domain.Point) int {
	switch v := p.Payload[domain.PayloadChunkIndex].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// MockVectorStoreDialer hands out a shared MockVectorStore
type MockVectorStoreDialer struct {
	mu     sync.Mutex
	Store  *MockVectorStore
	DialFn func(conn domain.Connection) error
	dialed []domain.Connection
}

// NewMockVectorStoreDialer creates a dialer backed by store
func NewMockVectorStoreDialer(store *MockVectorStore) *MockVectorStoreDialer {
	return &MockVectorStoreDialer{Store: store}
}

func (d *MockVectorStoreDialer) Dial(ctx context.Context, conn domain.Connection) (driven.VectorStore, error) {
	d.mu.Lock()
	d.dialed = append(d.dialed, conn)
	d.mu.Unlock()

	if d.DialFn != nil {
		if err := d.DialFn(conn); err != nil {
			return nil, err
		}
	}
	return d.Store, nil
}

// Dialed returns every connection passed to Dial
func (d *MockVectorStoreDialer) Dialed() []domain.Connection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Connection(nil), d.dialed...)
}
