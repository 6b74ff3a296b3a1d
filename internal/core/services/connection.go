package services

import (
	"context"
	"log/slog"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Ensure connectionService implements ConnectionService
var _ driving.ConnectionService = (*connectionService)(nil)

type connectionService struct {
	stores vectorStores
	logger *slog.Logger
}

// NewConnectionService creates a ConnectionService. Requests without a URL use fallback.
func NewConnectionService(dialer driven.VectorStoreDialer, fallback domain.Connection, logger *slog.Logger) driving.ConnectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &connectionService{
		stores: vectorStores{dialer: dialer, fallback: fallback},
		logger: logger,
	}
}

func (s *connectionService) Test(ctx context.Context, conn domain.Connection) error {
	_, err := s.stores.dial(ctx, conn)
	if err != nil {
		s.logger.Info("vector store connection test failed", "url", conn.Or(s.stores.fallback).URL, "error", err)
	}
	return err
}

func (s *connectionService) ListCollections(ctx context.Context, conn domain.Connection) ([]string, error) {
	store, err := s.stores.dial(ctx, conn)
	if err != nil {
		return nil, err
	}
	names, err := store.ListCollections(ctx)
	if err != nil {
		return nil, asCategory(domain.ErrConnection, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
