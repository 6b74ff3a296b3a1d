package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Ensure searchService implements SearchService
var _ driving.SearchService = (*searchService)(nil)

// SearchConfig holds the dependencies of the search service
type SearchConfig struct {
	Registry          driven.IndexRegistry
	Embedder          driven.EmbeddingService
	Dialer            driven.VectorStoreDialer
	DefaultConnection domain.Connection
	Logger            *slog.Logger
}

type searchService struct {
	registry driven.IndexRegistry
	embedder driven.EmbeddingService
	stores   vectorStores
	logger   *slog.Logger
}

// NewSearchService creates a new SearchService
func NewSearchService(cfg SearchConfig) driving.SearchService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &searchService{
		registry: cfg.Registry,
		embedder: cfg.Embedder,
		stores:   vectorStores{dialer: cfg.Dialer, fallback: cfg.DefaultConnection},
		logger:   logger,
	}
}

func (s *searchService) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	start := time.Now()

	idx, err := s.registry.GetIndex(ctx, req.IndexName)
	if err != nil {
		return nil, err
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrValidation)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}
	if limit > domain.MaxSearchLimit {
		limit = domain.MaxSearchLimit
	}

	model := s.embedder.Model()
	if idx.EmbeddingModel != "" && idx.EmbeddingModel != model {
		return nil, fmt.Errorf("%w: index %s was built with %s, current model is %s",
			domain.ErrEmbeddingMismatch, idx.Name, idx.EmbeddingModel, model)
	}

	store, err := s.stores.dial(ctx, req.Connection)
	if err != nil {
		return nil, err
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", domain.ErrSearch, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected one query embedding, got %d", domain.ErrSearch, len(vectors))
	}

	points, err := store.Search(ctx, idx.Name, vectors[0], limit)
	if errors.Is(err, domain.ErrNotFound) {
		// Registered but nothing was ever uploaded
		return &domain.SearchResponse{Results: []domain.SearchHit{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearch, err)
	}

	hits := make([]domain.SearchHit, len(points))
	for i, p := range points {
		hits[i] = domain.HitFromPoint(p)
	}

	s.logger.Debug("search complete",
		"index", idx.Name,
		"limit", limit,
		"results", len(hits),
		"duration", time.Since(start),
	)
	return &domain.SearchResponse{Results: hits}, nil
}
