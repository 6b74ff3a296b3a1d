package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Ensure indexService implements IndexService
var _ driving.IndexService = (*indexService)(nil)

// IndexConfig holds the dependencies of the index service
type IndexConfig struct {
	Registry          driven.IndexRegistry
	Embedder          driven.EmbeddingService
	Dialer            driven.VectorStoreDialer
	Locker            *IndexLocker
	DefaultConnection domain.Connection
	Logger            *slog.Logger
}

type indexService struct {
	registry driven.IndexRegistry
	embedder driven.EmbeddingService
	stores   vectorStores
	locker   *IndexLocker
	logger   *slog.Logger
}

// NewIndexService creates a new IndexService
func NewIndexService(cfg IndexConfig) driving.IndexService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &indexService{
		registry: cfg.Registry,
		embedder: cfg.Embedder,
		stores:   vectorStores{dialer: cfg.Dialer, fallback: cfg.DefaultConnection},
		locker:   cfg.Locker,
		logger:   logger,
	}
}

func (s *indexService) List(ctx context.Context) ([]domain.IndexSummary, error) {
	indexes, err := s.registry.ListIndexes(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.IndexSummary, len(indexes))
	for i, idx := range indexes {
		summaries[i] = idx.Summary()
	}
	return summaries, nil
}

// Create registers an empty index. With a usable connection the collection is
// created first so the record never points at a collection that cannot exist.
func (s *indexService) Create(ctx context.Context, req domain.CreateIndexRequest) (*domain.IndexSummary, bool, error) {
	if err := domain.ValidateIndexName(req.Name); err != nil {
		return nil, false, err
	}
	model := s.embedder.Model()

	var stored *domain.Index
	var created bool
	err := s.locker.WithIndex(ctx, req.Name, func(ctx context.Context) error {
		existing, err := s.registry.GetIndex(ctx, req.Name)
		switch {
		case err == nil:
			if existing.EmbeddingModel != "" && existing.EmbeddingModel != model {
				return fmt.Errorf("%w: index %s was built with %s, current model is %s",
					domain.ErrEmbeddingMismatch, req.Name, existing.EmbeddingModel, model)
			}
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		if !req.Connection.Or(s.stores.fallback).IsZero() {
			store, err := s.stores.dial(ctx, req.Connection)
			if err != nil {
				return err
			}
			if err := store.EnsureCollection(ctx, req.Name, s.embedder.Dimensions(), domain.DistanceCosine); err != nil {
				return asCategory(domain.ErrVectorStore, err)
			}
		}

		stored, created, err = s.registry.RegisterIndex(ctx, domain.NewIndex(req.Name, req.Description, model))
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.Info("index created", "index", stored.Name, "embedding_model", stored.EmbeddingModel)
	}
	summary := stored.Summary()
	return &summary, created, nil
}

func (s *indexService) ListDocuments(ctx context.Context, indexName string) ([]*domain.Document, error) {
	return s.registry.ListDocuments(ctx, indexName)
}

func (s *indexService) GetDocument(ctx context.Context, indexName, documentID string) (*domain.Document, error) {
	if _, err := s.registry.GetIndex(ctx, indexName); err != nil {
		return nil, err
	}
	doc, err := s.registry.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.IndexName != indexName {
		return nil, fmt.Errorf("document %s in index %s: %w", documentID, indexName, domain.ErrNotFound)
	}
	return doc, nil
}

// DeleteDocument removes points before the record, so a failure never leaves
// a record whose points are gone.
func (s *indexService) DeleteDocument(ctx context.Context, indexName, documentID string, conn domain.Connection) error {
	idx, err := s.registry.GetIndex(ctx, indexName)
	if err != nil {
		return err
	}
	if !idx.HasDocument(documentID) {
		return fmt.Errorf("document %s in index %s: %w", documentID, indexName, domain.ErrNotFound)
	}

	store, err := s.stores.dial(ctx, conn)
	if err != nil {
		return err
	}

	return s.locker.WithIndex(ctx, indexName, func(ctx context.Context) error {
		// Re-read under the lock; a concurrent delete may have won
		idx, err := s.registry.GetIndex(ctx, indexName)
		if err != nil {
			return err
		}
		if !idx.HasDocument(documentID) {
			return fmt.Errorf("document %s in index %s: %w", documentID, indexName, domain.ErrNotFound)
		}

		deleted, err := store.DeleteByFilter(ctx, indexName, domain.PayloadDocumentID, documentID)
		if err != nil {
			return asCategory(domain.ErrVectorStore, err)
		}

		if err := s.registry.RemoveDocument(ctx, indexName, documentID); err != nil {
			s.logger.Error("document points removed but registry update failed",
				"index", indexName,
				"document_id", documentID,
				"points_removed", deleted,
				"error", err,
			)
			return fmt.Errorf("%w: %d points removed but the registry still lists %s: %v",
				domain.ErrPartialFailure, deleted, documentID, err)
		}

		s.logger.Info("document deleted", "index", indexName, "document_id", documentID, "points_removed", deleted)
		return nil
	})
}

// DeleteIndex always removes local metadata. The collection drop is attempted
// afterwards and its outcome reported in the result.
func (s *indexService) DeleteIndex(ctx context.Context, indexName string, conn domain.Connection) (*domain.DeleteIndexResult, error) {
	if _, err := s.registry.GetIndex(ctx, indexName); err != nil {
		return nil, err
	}

	var result *domain.DeleteIndexResult
	err := s.locker.WithIndex(ctx, indexName, func(ctx context.Context) error {
		removed, err := s.registry.DeleteIndex(ctx, indexName)
		if err != nil {
			return err
		}

		result = &domain.DeleteIndexResult{
			Status:           domain.StatusSuccess,
			Message:          "Index deleted successfully",
			DocumentsRemoved: len(removed),
		}
		s.dropCollection(ctx, indexName, conn, result)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("index deleted",
		"index", indexName,
		"documents_removed", result.DocumentsRemoved,
		"remote_cleanup", result.RemoteCleanup,
	)
	return result, nil
}

func (s *indexService) dropCollection(ctx context.Context, indexName string, conn domain.Connection, result *domain.DeleteIndexResult) {
	if conn.Or(s.stores.fallback).IsZero() {
		result.RemoteCleanup = domain.RemoteCleanupSkipped
		result.RemoteError = "no vector store connection configured"
		return
	}

	store, err := s.stores.dial(ctx, conn)
	if err == nil {
		err = store.DeleteCollection(ctx, indexName)
	}
	if err != nil {
		s.logger.Warn("collection drop failed after index delete", "index", indexName, "error", err)
		result.RemoteCleanup = domain.RemoteCleanupFailed
		result.RemoteError = err.Error()
		return
	}
	result.RemoteCleanup = domain.RemoteCleanupOK
}
