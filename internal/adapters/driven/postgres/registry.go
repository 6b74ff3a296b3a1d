package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IndexRegistry = (*Registry)(nil)

// Registry implements IndexRegistry on the indexes and documents tables.
// Membership is the set of document rows for an index, ordered by position.
type Registry struct {
	db *DB
}

// NewRegistry creates a PostgreSQL-backed index registry
func NewRegistry(db *DB) *Registry {
	return &Registry{db: db}
}

func (r *Registry) RegisterIndex(ctx context.Context, index *domain.Index) (*domain.Index, bool, error) {
	query := `
		INSERT INTO indexes (name, description, embedding_model, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING
		RETURNING name
	`

	var name string
	err := r.db.QueryRowContext(ctx, query,
		index.Name,
		index.Description,
		index.EmbeddingModel,
		index.CreatedAt,
	).Scan(&name)

	created := true
	if errors.Is(err, sql.ErrNoRows) {
		created = false
	} else if err != nil {
		return nil, false, fmt.Errorf("register index %s: %w", index.Name, err)
	}

	stored, err := r.GetIndex(ctx, index.Name)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (r *Registry) GetIndex(ctx context.Context, name string) (*domain.Index, error) {
	query := `
		SELECT name, description, embedding_model, created_at
		FROM indexes
		WHERE name = $1
	`

	var idx domain.Index
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&idx.Name,
		&idx.Description,
		&idx.EmbeddingModel,
		&idx.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get index %s: %w", name, err)
	}

	idx.DocumentIDs, err = r.memberIDs(ctx, name)
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

func (r *Registry) memberIDs(ctx context.Context, indexName string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM documents WHERE index_name = $1 ORDER BY position`, indexName)
	if err != nil {
		return nil, fmt.Errorf("list members of %s: %w", indexName, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Registry) ListIndexes(ctx context.Context) ([]*domain.Index, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, description, embedding_model, created_at
		FROM indexes
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	defer rows.Close()

	var result []*domain.Index
	byName := make(map[string]*domain.Index)
	for rows.Next() {
		idx := &domain.Index{DocumentIDs: []string{}}
		if err := rows.Scan(&idx.Name, &idx.Description, &idx.EmbeddingModel, &idx.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, idx)
		byName[idx.Name] = idx
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := r.db.QueryContext(ctx, `SELECT index_name, id FROM documents ORDER BY index_name, position`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer members.Close()

	for members.Next() {
		var indexName, id string
		if err := members.Scan(&indexName, &id); err != nil {
			return nil, err
		}
		if idx, ok := byName[indexName]; ok {
			idx.DocumentIDs = append(idx.DocumentIDs, id)
		}
	}
	return result, members.Err()
}

func (r *Registry) DeleteIndex(ctx context.Context, name string) ([]string, error) {
	var removed []string

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		// Lock the row first so a concurrent AddDocument cannot slip in
		var locked string
		err := tx.QueryRowContext(ctx, `SELECT name FROM indexes WHERE name = $1 FOR UPDATE`, name).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("index %s: %w", name, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `DELETE FROM documents WHERE index_name = $1 RETURNING id`, name)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			removed = append(removed, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM indexes WHERE name = $1`, name)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("delete index %s: %w", name, err)
	}
	if removed == nil {
		removed = []string{}
	}
	return removed, nil
}

func (r *Registry) AddDocument(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (id, index_name, filename, file_type, size, chunks_count, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			file_type = EXCLUDED.file_type,
			size = EXCLUDED.size,
			chunks_count = EXCLUDED.chunks_count,
			uploaded_at = EXCLUDED.uploaded_at
	`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.IndexName,
		doc.Filename,
		doc.FileType,
		doc.Size,
		doc.ChunkCount,
		doc.UploadedAt,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("index %s: %w", doc.IndexName, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("add document %s: %w", doc.ID, err)
	}
	return nil
}

const documentColumns = `id, index_name, filename, file_type, size, chunks_count, uploaded_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	err := row.Scan(
		&doc.ID,
		&doc.IndexName,
		&doc.Filename,
		&doc.FileType,
		&doc.Size,
		&doc.ChunkCount,
		&doc.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *Registry) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

func (r *Registry) ListDocuments(ctx context.Context, indexName string) ([]*domain.Document, error) {
	if err := r.requireIndex(ctx, indexName); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE index_name = $1 ORDER BY position`, indexName)
	if err != nil {
		return nil, fmt.Errorf("list documents for %s: %w", indexName, err)
	}
	defer rows.Close()

	docs := []*domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *Registry) RemoveDocument(ctx context.Context, indexName, documentID string) error {
	if err := r.requireIndex(ctx, indexName); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE id = $1 AND index_name = $2`, documentID, indexName)
	if err != nil {
		return fmt.Errorf("remove document %s: %w", documentID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	return nil
}

func (r *Registry) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Registry) requireIndex(ctx context.Context, name string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM indexes WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("index %s: %w", name, domain.ErrNotFound)
	}
	return nil
}
