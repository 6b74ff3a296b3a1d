package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Index is a named document collection. Its name doubles as the vector store collection name.
type Index struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	DocumentIDs    []string  `json:"document_ids"`
}

// NewIndex creates an index record with no documents
func NewIndex(name, description, embeddingModel string) *Index {
	return &Index{
		Name:           name,
		Description:    description,
		EmbeddingModel: embeddingModel,
		CreatedAt:      time.Now().UTC(),
		DocumentIDs:    []string{},
	}
}

// HasDocument reports whether id is a member of the index
func (i *Index) HasDocument(id string) bool {
	for _, docID := range i.DocumentIDs {
		if docID == id {
			return true
		}
	}
	return false
}

// DocumentCount returns the number of member documents
func (i *Index) DocumentCount() int {
	return len(i.DocumentIDs)
}

// Summary projects the index into its list view
func (i *Index) Summary() IndexSummary {
	return IndexSummary{
		Name:           i.Name,
		Description:    i.Description,
		DocumentCount:  i.DocumentCount(),
		CreatedAt:      i.CreatedAt,
		EmbeddingModel: i.EmbeddingModel,
	}
}

// IndexSummary is the list view of an index
type IndexSummary struct {
	Name           string    `json:"name" example:"handbook"`
	Description    string    `json:"description" example:"Employee handbook"`
	DocumentCount  int       `json:"document_count" example:"3"`
	CreatedAt      time.Time `json:"created_at"`
	EmbeddingModel string    `json:"embedding_model,omitempty" example:"text-embedding-3-small"`
}

// Document is the registry record of an ingested file.
// Its vectors live in the vector store, keyed by document_id in the point payload.
type Document struct {
	ID         string    `json:"id"`
	IndexName  string    `json:"index_name"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	Size       int64     `json:"size"`
	ChunkCount int       `json:"chunks_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// FileTypeOf derives a file type from a filename extension.
// "report.PDF" becomes "pdf"; a name without an extension yields "".
func FileTypeOf(filename string) string {
	ext := filepath.Ext(filename)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// CreateIndexRequest registers an empty index
type CreateIndexRequest struct {
	Name        string     `json:"name" example:"handbook"`
	Description string     `json:"description" example:"Employee handbook"`
	Connection  Connection `json:"-"`
}

// DeleteIndexResult reports the outcome of an index teardown.
// Local metadata is always removed; remote cleanup failure is reported, not swallowed.
type DeleteIndexResult struct {
	Status           string `json:"status" example:"success"`
	Message          string `json:"message" example:"Index deleted successfully"`
	DocumentsRemoved int    `json:"documents_removed"`
	RemoteCleanup    string `json:"remote_cleanup" example:"ok"`
	RemoteError      string `json:"remote_error,omitempty"`
}

// Remote cleanup outcomes
const (
	RemoteCleanupOK      = "ok"
	RemoteCleanupFailed  = "failed"
	RemoteCleanupSkipped = "skipped"
)

// RemoteCleanupSucceeded reports whether the vector store collection was dropped
func (r *DeleteIndexResult) RemoteCleanupSucceeded() bool {
	return r.RemoteCleanup == RemoteCleanupOK
}
