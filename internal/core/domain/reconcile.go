package domain

import "time"

// ReconcileReport summarises one reconciliation pass over an index.
// Orphan points have a document_id the registry does not know; dangling documents
// are registry records with no remaining points.
type ReconcileReport struct {
	IndexName                string        `json:"index_name"`
	PointsScanned            int           `json:"points_scanned"`
	OrphanPointsDeleted      int           `json:"orphan_points_deleted"`
	DanglingDocumentsRemoved int           `json:"dangling_documents_removed"`
	DanglingDocumentIDs      []string      `json:"dangling_document_ids,omitempty"`
	Took                     time.Duration `json:"took" swaggertype:"integer" example:"1500000"`
}

// Clean reports whether the index was already consistent
func (r *ReconcileReport) Clean() bool {
	return r.OrphanPointsDeleted == 0 && r.DanglingDocumentsRemoved == 0
}

// ReconcileRequest asks for a reconciliation of one index
type ReconcileRequest struct {
	IndexName  string
	Connection Connection
	Async      bool
}

// ReconcileResponse carries either a finished report or a queued task id
type ReconcileResponse struct {
	Status string           `json:"status" example:"completed"`
	TaskID string           `json:"task_id,omitempty"`
	Report *ReconcileReport `json:"report,omitempty"`
}
