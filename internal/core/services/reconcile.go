package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Ensure reconcileService implements ReconcileService
var _ driving.ReconcileService = (*reconcileService)(nil)

// Reconcile response statuses
const (
	ReconcileStatusCompleted = "completed"
	ReconcileStatusQueued    = "queued"
)

// ReconcileConfig holds the dependencies of the reconciliation sweep
type ReconcileConfig struct {
	Registry          driven.IndexRegistry
	Dialer            driven.VectorStoreDialer
	Locker            *IndexLocker
	TaskQueue         driven.TaskQueue // Optional: required for async sweeps
	DefaultConnection domain.Connection
	Logger            *slog.Logger
}

type reconcileService struct {
	registry driven.IndexRegistry
	stores   vectorStores
	locker   *IndexLocker
	queue    driven.TaskQueue
	logger   *slog.Logger
}

// NewReconcileService creates a new ReconcileService
func NewReconcileService(cfg ReconcileConfig) driving.ReconcileService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &reconcileService{
		registry: cfg.Registry,
		stores:   vectorStores{dialer: cfg.Dialer, fallback: cfg.DefaultConnection},
		locker:   cfg.Locker,
		queue:    cfg.TaskQueue,
		logger:   logger,
	}
}

// Reconcile runs inline or queues a reconcile_index task. Queued tasks never carry
// credentials, so an async sweep only runs against the default connection.
func (s *reconcileService) Reconcile(ctx context.Context, req domain.ReconcileRequest) (*domain.ReconcileResponse, error) {
	if _, err := s.registry.GetIndex(ctx, req.IndexName); err != nil {
		return nil, err
	}

	if !req.Async {
		report, err := s.ReconcileIndex(ctx, req.IndexName, req.Connection)
		if err != nil {
			return nil, err
		}
		return &domain.ReconcileResponse{Status: ReconcileStatusCompleted, Report: report}, nil
	}

	if s.queue == nil {
		return nil, errors.New("task queue not configured")
	}
	if s.stores.fallback.IsZero() {
		return nil, fmt.Errorf("%w: async reconcile requires a configured default vector store", domain.ErrValidation)
	}
	if !req.Connection.IsZero() && req.Connection.Key() != s.stores.fallback.Key() {
		return nil, fmt.Errorf("%w: async reconcile only runs against the default vector store", domain.ErrValidation)
	}

	task := domain.NewReconcileIndexTask(req.IndexName)
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue reconcile task: %w", err)
	}
	s.logger.Info("reconcile queued", "index", req.IndexName, "task_id", task.ID)
	return &domain.ReconcileResponse{Status: ReconcileStatusQueued, TaskID: task.ID}, nil
}

// ReconcileIndex makes the registry and the collection agree:
// points whose document is not a member are deleted, and members without
// any points are dropped from the registry.
func (s *reconcileService) ReconcileIndex(ctx context.Context, indexName string, conn domain.Connection) (*domain.ReconcileReport, error) {
	if _, err := s.registry.GetIndex(ctx, indexName); err != nil {
		return nil, err
	}
	store, err := s.stores.dial(ctx, conn)
	if err != nil {
		return nil, err
	}

	var report *domain.ReconcileReport
	err = s.locker.WithIndex(ctx, indexName, func(ctx context.Context) error {
		// Re-read under the lock; membership may have changed while waiting
		idx, err := s.registry.GetIndex(ctx, indexName)
		if err != nil {
			return err
		}
		report, err = s.sweep(ctx, store, idx)
		return err
	})
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if !report.Clean() {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "reconcile complete",
		"index", indexName,
		"points_scanned", report.PointsScanned,
		"orphan_points_deleted", report.OrphanPointsDeleted,
		"dangling_documents_removed", report.DanglingDocumentsRemoved,
		"duration", report.Took,
	)
	return report, nil
}

func (s *reconcileService) sweep(ctx context.Context, store driven.VectorStore, idx *domain.Index) (*domain.ReconcileReport, error) {
	start := time.Now()
	report := &domain.ReconcileReport{IndexName: idx.Name}

	pointsPerDoc := make(map[string]int)
	var orphans []string
	err := store.ScrollPoints(ctx, idx.Name, func(p domain.ScoredPoint) error {
		report.PointsScanned++
		docID := p.PayloadString(domain.PayloadDocumentID)
		if docID == "" || !idx.HasDocument(docID) {
			orphans = append(orphans, p.ID)
			return nil
		}
		pointsPerDoc[docID]++
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		// A missing collection never drops registry documents
		if len(idx.DocumentIDs) > 0 {
			return nil, fmt.Errorf("%w: %s not found on this vector store, keeping %d registered documents",
				domain.ErrCollectionMissing, idx.Name, len(idx.DocumentIDs))
		}
		report.Took = time.Since(start)
		return report, nil
	}
	if err != nil {
		return nil, asCategory(domain.ErrVectorStore, err)
	}

	if len(orphans) > 0 {
		if err := store.DeletePoints(ctx, idx.Name, orphans); err != nil {
			return nil, asCategory(domain.ErrVectorStore, err)
		}
		report.OrphanPointsDeleted = len(orphans)
	}

	for _, docID := range idx.DocumentIDs {
		if pointsPerDoc[docID] > 0 {
			continue
		}
		if err := s.registry.RemoveDocument(ctx, idx.Name, docID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		report.DanglingDocumentsRemoved++
		report.DanglingDocumentIDs = append(report.DanglingDocumentIDs, docID)
	}

	report.Took = time.Since(start)
	return report, nil
}

// ReconcileAll sweeps every index and keeps going past individual failures
func (s *reconcileService) ReconcileAll(ctx context.Context) ([]*domain.ReconcileReport, error) {
	indexes, err := s.registry.ListIndexes(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]*domain.ReconcileReport, 0, len(indexes))
	var errs []error
	for _, idx := range indexes {
		report, err := s.ReconcileIndex(ctx, idx.Name, domain.Connection{})
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted since the listing
			continue
		}
		if err != nil {
			s.logger.Error("reconcile failed", "index", idx.Name, "error", err)
			errs = append(errs, fmt.Errorf("index %s: %w", idx.Name, err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

func (s *reconcileService) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	return s.queue.GetTask(ctx, taskID)
}
