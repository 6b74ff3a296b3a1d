package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// VectorStore is a collection-oriented vector database client.
// Implementations speak one wire protocol; consumers depend only on this interface.
type VectorStore interface {
	// EnsureCollection creates the collection if absent. Existing collections are left untouched.
	// Returns ErrEmbeddingMismatch if the collection exists with a different vector size.
	EnsureCollection(ctx context.Context, name string, vectorSize int, distance domain.Distance) error

	// Upsert inserts or overwrites points by id. The batch succeeds or fails as a whole.
	Upsert(ctx context.Context, collection string, points []domain.Point) error

	// Search returns the nearest points, highest score first.
	// Returns ErrNotFound if the collection does not exist.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]domain.ScoredPoint, error)

	// DeleteByFilter deletes every point whose payload field equals value.
	// Matching ids are resolved with a scan before the delete is issued,
	// so a point inserted between the two steps survives.
	DeleteByFilter(ctx context.Context, collection, field, value string) (int, error)

	// DeletePoints deletes points by id
	DeletePoints(ctx context.Context, collection string, ids []string) error

	// DeleteCollection drops a collection. A missing collection is not an error.
	DeleteCollection(ctx context.Context, name string) error

	// ListCollections returns the names of all collections
	ListCollections(ctx context.Context) ([]string, error)

	// ScrollPoints pages through every point in a collection (payload only, no vectors)
	ScrollPoints(ctx context.Context, collection string, fn func(domain.ScoredPoint) error) error

	// SampleEmbeddingModel returns the embedding_model payload of one point,
	// or "" if the collection is empty or missing.
	SampleEmbeddingModel(ctx context.Context, collection string) (string, error)

	// Ping probes the endpoint
	Ping(ctx context.Context) error
}

// VectorStoreDialer produces validated vector store clients.
// Dial probes the endpoint and fails fast with ErrConnection if it is unreachable.
type VectorStoreDialer interface {
	Dial(ctx context.Context, conn domain.Connection) (VectorStore, error)
}
