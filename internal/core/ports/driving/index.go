package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// IndexService manages indexes and their document records
type IndexService interface {
	// List returns every registered index
	List(ctx context.Context) ([]domain.IndexSummary, error)

	// Create registers an empty index. created is false when it already existed.
	Create(ctx context.Context, req domain.CreateIndexRequest) (summary *domain.IndexSummary, created bool, err error)

	// ListDocuments returns the documents of an index in upload order
	ListDocuments(ctx context.Context, indexName string) ([]*domain.Document, error)

	// GetDocument returns one document of an index
	GetDocument(ctx context.Context, indexName, documentID string) (*domain.Document, error)

	// DeleteDocument removes a document's points and then its record
	DeleteDocument(ctx context.Context, indexName, documentID string, conn domain.Connection) error

	// DeleteIndex removes an index, its documents and its collection.
	// A failed collection drop is reported in the result rather than returned.
	DeleteIndex(ctx context.Context, indexName string, conn domain.Connection) (*domain.DeleteIndexResult, error)
}
