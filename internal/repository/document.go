package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scmclimited/deep-rag-core/internal/model"
	"github.com/scmclimited/deep-rag-core/internal/service"
)

// DocumentRepo implements service.DocumentRepository against the documents
// table of §6's schema. It also satisfies graph.DocumentTitleFetcher, so the
// same repository resolves titles for citation rendering.
type DocumentRepo struct {
	pool *pgxpool.Pool
}

// NewDocumentRepo creates a DocumentRepo.
func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

// Compile-time check.
var _ service.DocumentRepository = (*DocumentRepo)(nil)

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (doc_id, title, source_path, mime_type, size_bytes, index_status, meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)`,
		doc.ID, doc.Title, doc.SourcePath, doc.MimeType, doc.SizeBytes,
		string(doc.IndexStatus), nullableJSON(doc.Metadata), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.DocumentRepo.Create: %w: %v", service.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	doc := &model.Document{}
	var indexStatus string
	var metaJSON []byte

	err := r.pool.QueryRow(ctx, `
		SELECT doc_id, title, source_path, mime_type, size_bytes, checksum,
			index_status, chunk_count, meta, created_at, updated_at
		FROM documents WHERE doc_id = $1`, id,
	).Scan(
		&doc.ID, &doc.Title, &doc.SourcePath, &doc.MimeType, &doc.SizeBytes, &doc.Checksum,
		&indexStatus, &doc.ChunkCount, &metaJSON, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("repository.DocumentRepo.GetByID: %w: %s", service.ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.DocumentRepo.GetByID: %w: %v", service.ErrStoreUnavailable, err)
	}

	doc.IndexStatus = model.IndexStatus(indexStatus)
	doc.Metadata = json.RawMessage(metaJSON)
	return doc, nil
}

// GetByTitle resolves a document by exact title match, for callers that
// accept a human-supplied identifier instead of a doc-id.
func (r *DocumentRepo) GetByTitle(ctx context.Context, title string) (*model.Document, error) {
	doc := &model.Document{}
	var indexStatus string
	var metaJSON []byte

	err := r.pool.QueryRow(ctx, `
		SELECT doc_id, title, source_path, mime_type, size_bytes, checksum,
			index_status, chunk_count, meta, created_at, updated_at
		FROM documents WHERE title = $1 ORDER BY created_at DESC LIMIT 1`, title,
	).Scan(
		&doc.ID, &doc.Title, &doc.SourcePath, &doc.MimeType, &doc.SizeBytes, &doc.Checksum,
		&indexStatus, &doc.ChunkCount, &metaJSON, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("repository.DocumentRepo.GetByTitle: %w: %s", service.ErrDocumentNotFound, title)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.DocumentRepo.GetByTitle: %w: %v", service.ErrStoreUnavailable, err)
	}

	doc.IndexStatus = model.IndexStatus(indexStatus)
	doc.Metadata = json.RawMessage(metaJSON)
	return doc, nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, id string, status model.IndexStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET index_status = $1, updated_at = $2 WHERE doc_id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository.DocumentRepo.UpdateStatus: %w: %v", service.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *DocumentRepo) UpdateChecksum(ctx context.Context, id, checksum string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET checksum = $1, updated_at = $2 WHERE doc_id = $3`,
		checksum, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository.DocumentRepo.UpdateChecksum: %w: %v", service.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *DocumentRepo) UpdateChunkCount(ctx context.Context, id string, count int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET chunk_count = $1, updated_at = $2 WHERE doc_id = $3`,
		count, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository.DocumentRepo.UpdateChunkCount: %w: %v", service.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *DocumentRepo) ListDocuments(ctx context.Context, limit int) ([]model.Document, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT doc_id, title, source_path, mime_type, size_bytes, checksum,
			index_status, chunk_count, created_at, updated_at
		FROM documents ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("repository.DocumentRepo.ListDocuments: %w: %v", service.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		var indexStatus string
		if err := rows.Scan(
			&d.ID, &d.Title, &d.SourcePath, &d.MimeType, &d.SizeBytes, &d.Checksum,
			&indexStatus, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("repository.DocumentRepo.ListDocuments: scan: %w", err)
		}
		d.IndexStatus = model.IndexStatus(indexStatus)
		docs = append(docs, d)
	}
	return docs, nil
}

// Delete removes a document and, via the doc_id foreign key's ON DELETE
// CASCADE, all of its chunks.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE doc_id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository.DocumentRepo.Delete: %w: %v", service.ErrStoreUnavailable, err)
	}
	return nil
}
