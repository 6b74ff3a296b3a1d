package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// ConnectionService probes vector store endpoints
type ConnectionService interface {
	Test(ctx context.Context, conn domain.Connection) error
	ListCollections(ctx context.Context, conn domain.Connection) ([]string, error)
}
