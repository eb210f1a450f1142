package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scmclimited/deep-rag-core/internal/model"
	"github.com/scmclimited/deep-rag-core/internal/service"
)

// Structure-retrieval strategies, per §4.1.6.
const (
	StrategyFirstPages = "first_pages"
	StrategyAllPages   = "all_pages"
	StrategySequential = "sequential"
)

// structureNeutralLex and structureNeutralVec are assigned to
// structure-fetched chunks: they were not
// ranked against a query, so they carry a flat, middling relevance rather
// than an unearned high or low one.
const (
	structureNeutralLex = 0.5
	structureNeutralVec = 0.5
)

// StructureRepository implements service.StructureFetcher, returning a
// document's chunks in document order instead of by query relevance.
type StructureRepository struct {
	pool *pgxpool.Pool
}

// NewStructureRepository creates a StructureRepository.
func NewStructureRepository(pool *pgxpool.Pool) *StructureRepository {
	return &StructureRepository{pool: pool}
}

// Compile-time check.
var _ service.StructureFetcher = (*StructureRepository)(nil)

// FetchByStructure returns up to max chunks of docID, in document order,
// selected per strategy: first_pages takes the earliest pages, all_pages
// takes one representative chunk per page up to max pages, and sequential
// takes the first max chunks by chunk_index regardless of page boundaries.
func (r *StructureRepository) FetchByStructure(ctx context.Context, docID string, max int, strategy string) ([]service.Candidate, error) {
	var query string
	switch strategy {
	case StrategyAllPages:
		query = `
			SELECT DISTINCT ON (page_start) chunk_id, doc_id, text, page_start, page_end, content_type, image_path
			FROM chunks WHERE doc_id = $1
			ORDER BY page_start, chunk_index
			LIMIT $2`
	case StrategyFirstPages:
		query = `
			SELECT chunk_id, doc_id, text, page_start, page_end, content_type, image_path
			FROM chunks WHERE doc_id = $1
			ORDER BY page_start NULLS LAST, chunk_index
			LIMIT $2`
	default: // StrategySequential
		query = `
			SELECT chunk_id, doc_id, text, page_start, page_end, content_type, image_path
			FROM chunks WHERE doc_id = $1
			ORDER BY chunk_index
			LIMIT $2`
	}

	rows, err := r.pool.Query(ctx, query, docID, max)
	if err != nil {
		return nil, fmt.Errorf("repository.StructureRepository.FetchByStructure: %w: %v", service.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []service.Candidate
	for rows.Next() {
		var c service.Candidate
		var contentType string
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Text, &c.PageStart, &c.PageEnd, &contentType, &c.ImagePath); err != nil {
			return nil, fmt.Errorf("repository.StructureRepository.FetchByStructure: scan: %w", err)
		}
		c.ContentType = model.ContentType(contentType)
		c.Lex = structureNeutralLex
		c.Vec = structureNeutralVec
		out = append(out, c)
	}
	return out, nil
}
