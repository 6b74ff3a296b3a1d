package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// IndexRegistry is the metadata repository for indexes and their documents.
// It is authoritative for membership, independent of the vector store.
type IndexRegistry interface {
	// RegisterIndex creates the index if absent.
	// An existing record is returned unchanged with created=false.
	RegisterIndex(ctx context.Context, index *domain.Index) (stored *domain.Index, created bool, err error)

	// GetIndex retrieves an index with its ordered document ids
	GetIndex(ctx context.Context, name string) (*domain.Index, error)

	// ListIndexes returns every index ordered by name
	ListIndexes(ctx context.Context) ([]*domain.Index, error)

	// DeleteIndex removes the index and every document it owns.
	// Returns the ids of the removed documents.
	DeleteIndex(ctx context.Context, name string) ([]string, error)

	// AddDocument stores a document and appends it to its index.
	// The index must already exist.
	AddDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by id
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns an index's documents in membership order
	ListDocuments(ctx context.Context, indexName string) ([]*domain.Document, error)

	// RemoveDocument deletes a document and drops it from its index.
	// Both must exist.
	RemoveDocument(ctx context.Context, indexName, documentID string) error

	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
}
