package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// MockIndexRegistry is a mock implementation of IndexRegistry for testing
type MockIndexRegistry struct {
	mu        sync.RWMutex
	indexes   map[string]*domain.Index
	documents map[string]*domain.Document

	// Custom behavior hooks (optional)
	RegisterErr       error
	AddDocumentErr    error
	RemoveDocumentErr error
	DeleteIndexErr    error
	PingErr           error
}

// NewMockIndexRegistry creates a new MockIndexRegistry
func NewMockIndexRegistry() *MockIndexRegistry {
	return &MockIndexRegistry{
		indexes:   make(map[string]*domain.Index),
		documents: make(map[string]*domain.Document),
	}
}

var _ driven.IndexRegistry = (*MockIndexRegistry)(nil)

func (m *MockIndexRegistry) RegisterIndex(ctx context.Context, index *domain.Index) (*domain.Index, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RegisterErr != nil {
		return nil, false, m.RegisterErr
	}
	if existing, ok := m.indexes[index.Name]; ok {
		return cloneIndex(existing), false, nil
	}
	stored := cloneIndex(index)
	m.indexes[index.Name] = stored
	return cloneIndex(stored), true, nil
}

func (m *MockIndexRegistry) GetIndex(ctx context.Context, name string) (*domain.Index, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneIndex(idx), nil
}

func (m *MockIndexRegistry) ListIndexes(ctx context.Context) ([]*domain.Index, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Index, 0, len(m.indexes))
	for _, idx := range m.indexes {
		result = append(result, cloneIndex(idx))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *MockIndexRegistry) DeleteIndex(ctx context.Context, name string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteIndexErr != nil {
		return nil, m.DeleteIndexErr
	}
	idx, ok := m.indexes[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for _, id := range idx.DocumentIDs {
		delete(m.documents, id)
	}
	delete(m.indexes, name)
	return append([]string(nil), idx.DocumentIDs...), nil
}

func (m *MockIndexRegistry) AddDocument(ctx context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddDocumentErr != nil {
		return m.AddDocumentErr
	}
	idx, ok := m.indexes[doc.IndexName]
	if !ok {
		return fmt.Errorf("index %s: %w", doc.IndexName, domain.ErrNotFound)
	}
	stored := *doc
	m.documents[doc.ID] = &stored
	if !idx.HasDocument(doc.ID) {
		idx.DocumentIDs = append(idx.DocumentIDs, doc.ID)
	}
	return nil
}

func (m *MockIndexRegistry) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *doc
	return &out, nil
}

func (m *MockIndexRegistry) ListDocuments(ctx context.Context, indexName string) ([]*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[indexName]
	if !ok {
		return nil, domain.ErrNotFound
	}
	result := make([]*domain.Document, 0, len(idx.DocumentIDs))
	for _, id := range idx.DocumentIDs {
		if doc, ok := m.documents[id]; ok {
			out := *doc
			result = append(result, &out)
		}
	}
	return result, nil
}

func (m *MockIndexRegistry) RemoveDocument(ctx context.Context, indexName, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoveDocumentErr != nil {
		return m.RemoveDocumentErr
	}
	idx, ok := m.indexes[indexName]
	if !ok || !idx.HasDocument(documentID) {
		return domain.ErrNotFound
	}
	ids := idx.DocumentIDs[:0]
	for _, id := range idx.DocumentIDs {
		if id != documentID {
			ids = append(ids, id)
		}
	}
	idx.DocumentIDs = ids
	delete(m.documents, documentID)
	return nil
}

func (m *MockIndexRegistry) Ping(ctx context.Context) error {
	return m.PingErr
}

// DocumentCount returns the number of stored documents across all indexes (for test assertions)
func (m *MockIndexRegistry) DocumentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.documents)
}

func cloneIndex(idx *domain.Index) *domain.Index {
	out := *idx
	out.DocumentIDs = append([]string{}, idx.DocumentIDs...)
	return &out
}
