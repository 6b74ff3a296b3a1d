package domain

import "errors"

// Domain errors - used across all layers.
// Each sentinel is a stable error category surfaced to callers.
var (
	// ErrValidation indicates bad metadata, an oversized upload or an unsupported file type
	ErrValidation = errors.New("validation failed")

	// ErrExtraction indicates the file content could not be parsed as its declared type
	ErrExtraction = errors.New("extraction failed")

	// ErrEmbedding indicates the embedding provider was unreachable or returned a malformed response
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection indicates the vector store was unreachable or rejected the probe
	ErrConnection = errors.New("vector store connection failed")

	// ErrSearch indicates a query embedding or vector store search failure
	ErrSearch = errors.New("search failed")

	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrIndexBusy indicates another operation holds the index lock
	ErrIndexBusy = errors.New("index busy")

	// ErrEmbeddingMismatch indicates an index or collection was built with a different embedding source
	ErrEmbeddingMismatch = errors.New("embedding model mismatch")

	// ErrPartialFailure indicates the vector store and the registry diverged mid-operation
	ErrPartialFailure = errors.New("partial failure")

	// ErrVectorStore indicates the vector store rejected a request
	ErrVectorStore = errors.New("vector store error")

	// ErrCollectionMissing indicates a registered index with documents has no collection
	// on the vector store it was checked against
	ErrCollectionMissing = errors.New("collection missing")
)

// Error categories reported to callers
const (
	CategoryValidation     = "validation"
	CategoryExtraction     = "extraction"
	CategoryEmbedding      = "embedding"
	CategoryConnection     = "connection"
	CategorySearch         = "search"
	CategoryNotFound       = "not_found"
	CategoryConflict       = "conflict"
	CategoryPartialFailure = "partial_failure"
	CategoryVectorStore    = "vector_store"
	CategoryInternal       = "internal"
)

// Category maps an error (possibly wrapped) to its stable category name.
// Partial failures take precedence since they usually wrap another category.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPartialFailure):
		return CategoryPartialFailure
	case errors.Is(err, ErrValidation):
		return CategoryValidation
	case errors.Is(err, ErrExtraction):
		return CategoryExtraction
	case errors.Is(err, ErrNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrIndexBusy), errors.Is(err, ErrEmbeddingMismatch), errors.Is(err, ErrCollectionMissing):
		return CategoryConflict
	case errors.Is(err, ErrSearch):
		return CategorySearch
	case errors.Is(err, ErrEmbedding):
		return CategoryEmbedding
	case errors.Is(err, ErrConnection):
		return CategoryConnection
	case errors.Is(err, ErrVectorStore):
		return CategoryVectorStore
	default:
		return CategoryInternal
	}
}
