package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// IngestionService turns uploaded files into searchable vectors
type IngestionService interface {
	// Ingest runs the upload pipeline. Failures are *domain.IngestionError values
	// naming the stage that failed.
	Ingest(ctx context.Context, req domain.UploadRequest) (*domain.UploadResult, error)
}
