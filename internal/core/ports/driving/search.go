package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// SearchService answers free-text queries against one index
type SearchService interface {
	// Search embeds the query and returns the nearest chunks, highest score first.
	// A registered index whose collection was never created yields no results.
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)
}
