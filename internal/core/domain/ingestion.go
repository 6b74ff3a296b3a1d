package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MaxUploadBytes is the upload size ceiling (20 MiB)
const MaxUploadBytes = 20 * 1024 * 1024

// IngestionStage names a step of the upload pipeline
type IngestionStage string

const (
	StageValidating         IngestionStage = "validating"
	StageExtracting         IngestionStage = "extracting"
	StageChunking           IngestionStage = "chunking"
	StageEmbedding          IngestionStage = "embedding"
	StageConnecting         IngestionStage = "connecting"
	StageCollectionEnsuring IngestionStage = "collection_ensuring"
	StageUpserting          IngestionStage = "upserting"
	StageMetadataRecording  IngestionStage = "metadata_recording"
	StageDone               IngestionStage = "done"
)

// IngestionError is the terminal Failed(stage) state of an upload.
// It unwraps to the underlying category error.
type IngestionError struct {
	Stage IngestionStage
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed at %s: %v", e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// UploadMetadata is the JSON metadata sent with an upload
type UploadMetadata struct {
	IndexName      string         `json:"index_name" example:"handbook"`
	Description    string         `json:"description,omitempty" example:"Employee handbook"`
	ChunkSize      int            `json:"chunk_size" example:"1000"`
	ChunkOverlap   int            `json:"chunk_overlap" example:"200"`
	ChunkingMethod ChunkingMethod `json:"chunking_method" example:"recursive"`
}

// ParseUploadMetadata decodes metadata JSON, applying defaults for omitted fields
func ParseUploadMetadata(raw string) (UploadMetadata, error) {
	meta := UploadMetadata{
		ChunkSize:      DefaultChunkSize,
		ChunkOverlap:   DefaultChunkOverlap,
		ChunkingMethod: ChunkingRecursive,
	}
	if strings.TrimSpace(raw) == "" {
		return meta, fmt.Errorf("%w: metadata is required", ErrValidation)
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return meta, fmt.Errorf("%w: invalid metadata: %v", ErrValidation, err)
	}
	if meta.ChunkingMethod == "" {
		meta.ChunkingMethod = ChunkingRecursive
	}
	return meta, nil
}

// Validate checks the metadata before any processing begins
func (m UploadMetadata) Validate() error {
	if strings.TrimSpace(m.IndexName) == "" {
		return fmt.Errorf("%w: index_name is required", ErrValidation)
	}
	if err := ValidateIndexName(m.IndexName); err != nil {
		return err
	}
	opts := m.ChunkOptions()
	if err := opts.Validate(); err != nil {
		return err
	}
	if m.ChunkOverlap >= m.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			ErrValidation, m.ChunkOverlap, m.ChunkSize)
	}
	return nil
}

// ChunkOptions extracts the chunking parameters
func (m UploadMetadata) ChunkOptions() ChunkOptions {
	return ChunkOptions{
		Size:    m.ChunkSize,
		Overlap: m.ChunkOverlap,
		Method:  m.ChunkingMethod,
	}
}

// ValidateIndexName rejects names that cannot be used as a collection name in a URL path
func ValidateIndexName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: index name is required", ErrValidation)
	}
	if len(name) > 255 {
		return fmt.Errorf("%w: index name too long", ErrValidation)
	}
	if strings.ContainsAny(name, "/\\?#%") || strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: invalid index name %q", ErrValidation, name)
	}
	return nil
}

// UploadRequest is a single document upload
type UploadRequest struct {
	Filename   string
	Content    []byte
	Metadata   UploadMetadata
	Connection Connection
}

// UploadResult is returned after a successful ingestion
type UploadResult struct {
	DocumentID      string `json:"document_id"`
	Filename        string `json:"filename"`
	ChunksProcessed int    `json:"chunks_processed"`
	Status          string `json:"status" example:"success"`
}

// StatusSuccess is the status string of successful mutations
const StatusSuccess = "success"
