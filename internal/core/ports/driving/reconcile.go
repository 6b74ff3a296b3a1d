package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// ReconcileService repairs drift between the registry and the vector store
type ReconcileService interface {
	// Reconcile runs a sweep inline, or queues it when req.Async is set
	Reconcile(ctx context.Context, req domain.ReconcileRequest) (*domain.ReconcileResponse, error)

	// ReconcileIndex deletes orphan points and drops dangling documents of one index
	ReconcileIndex(ctx context.Context, indexName string, conn domain.Connection) (*domain.ReconcileReport, error)

	// ReconcileAll sweeps every index over the default connection
	ReconcileAll(ctx context.Context) ([]*domain.ReconcileReport, error)

	// GetTask reports a queued sweep
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
}
