// Package memory provides process-local adapters used when no external backend is configured.
// Nothing here survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IndexRegistry = (*Registry)(nil)

// Registry implements IndexRegistry in process memory.
// Records are copied on the way in and out so callers never share state with the store.
type Registry struct {
	mu        sync.RWMutex
	indexes   map[string]*domain.Index
	documents map[string]*domain.Document
}

// NewRegistry creates an empty in-memory registry
func NewRegistry() *Registry {
	return &Registry{
		indexes:   make(map[string]*domain.Index),
		documents: make(map[string]*domain.Document),
	}
}

func (r *Registry) RegisterIndex(ctx context.Context, index *domain.Index) (*domain.Index, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.indexes[index.Name]; ok {
		return copyIndex(existing), false, nil
	}
	stored := copyIndex(index)
	r.indexes[index.Name] = stored
	return copyIndex(stored), true, nil
}

func (r *Registry) GetIndex(ctx context.Context, name string) (*domain.Index, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.indexes[name]
	if !ok {
		return nil, fmt.Errorf("index %s: %w", name, domain.ErrNotFound)
	}
	return copyIndex(idx), nil
}

func (r *Registry) ListIndexes(ctx context.Context) ([]*domain.Index, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Index, 0, len(r.indexes))
	for _, idx := range r.indexes {
		result = append(result, copyIndex(idx))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *Registry) DeleteIndex(ctx context.Context, name string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.indexes[name]
	if !ok {
		return nil, fmt.Errorf("index %s: %w", name, domain.ErrNotFound)
	}
	for _, id := range idx.DocumentIDs {
		delete(r.documents, id)
	}
	delete(r.indexes, name)
	return append([]string{}, idx.DocumentIDs...), nil
}

func (r *Registry) AddDocument(ctx context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.indexes[doc.IndexName]
	if !ok {
		return fmt.Errorf("index %s: %w", doc.IndexName, domain.ErrNotFound)
	}
	stored := *doc
	r.documents[doc.ID] = &stored
	if !idx.HasDocument(doc.ID) {
		idx.DocumentIDs = append(idx.DocumentIDs, doc.ID)
	}
	return nil
}

func (r *Registry) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	out := *doc
	return &out, nil
}

func (r *Registry) ListDocuments(ctx context.Context, indexName string) ([]*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.indexes[indexName]
	if !ok {
		return nil, fmt.Errorf("index %s: %w", indexName, domain.ErrNotFound)
	}
	result := make([]*domain.Document, 0, len(idx.DocumentIDs))
	for _, id := range idx.DocumentIDs {
		if doc, ok := r.documents[id]; ok {
			out := *doc
			result = append(result, &out)
		}
	}
	return result, nil
}

func (r *Registry) RemoveDocument(ctx context.Context, indexName, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.indexes[indexName]
	if !ok {
		return fmt.Errorf("index %s: %w", indexName, domain.ErrNotFound)
	}
	if !idx.HasDocument(documentID) {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}

	remaining := make([]string, 0, len(idx.DocumentIDs)-1)
	for _, id := range idx.DocumentIDs {
		if id != documentID {
			remaining = append(remaining, id)
		}
	}
	idx.DocumentIDs = remaining
	delete(r.documents, documentID)
	return nil
}

func (r *Registry) Ping(ctx context.Context) error {
	return nil
}

func copyIndex(idx *domain.Index) *domain.Index {
	out := *idx
	out.DocumentIDs = append([]string{}, idx.DocumentIDs...)
	return &out
}
