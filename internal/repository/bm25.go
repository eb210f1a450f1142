package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scmclimited/deep-rag-core/internal/model"
	"github.com/scmclimited/deep-rag-core/internal/service"
)

// LexicalRepository implements service.LexicalSearcher against the lex
// tsvector column and its GIN index, per §4.1.2.
type LexicalRepository struct {
	pool *pgxpool.Pool
}

// NewLexicalRepository creates a LexicalRepository.
func NewLexicalRepository(pool *pgxpool.Pool) *LexicalRepository {
	return &LexicalRepository{pool: pool}
}

// Compile-time check.
var _ service.LexicalSearcher = (*LexicalRepository)(nil)

// SearchLexical ranks chunks by ts_rank_cd against a plain tsquery built from
// the already-sanitized query text, normalizing the rank to [0,1] against
// the strongest match in the returned page so it composes with vector and
// cross-encoder scores on the same scale.
func (r *LexicalRepository) SearchLexical(ctx context.Context, sanitizedQuery string, docIDs []string, limit int) ([]service.Candidate, error) {
	if sanitizedQuery == "" {
		return nil, nil
	}

	query := `
		SELECT chunk_id, doc_id, text, page_start, page_end, content_type, image_path,
			ts_rank_cd(lex, plainto_tsquery('english', $1)) AS rank
		FROM chunks
		WHERE lex @@ plainto_tsquery('english', $1)`
	args := []interface{}{sanitizedQuery}

	if len(docIDs) > 0 {
		query += ` AND doc_id = ANY($2)`
		args = append(args, docIDs)
	}
	query += fmt.Sprintf(` ORDER BY rank DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository.LexicalRepository.SearchLexical: %w: %v", service.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []service.Candidate
	var maxRank float64
	for rows.Next() {
		var c service.Candidate
		var contentType string
		var rank float64
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Text, &c.PageStart, &c.PageEnd, &contentType, &c.ImagePath, &rank); err != nil {
			return nil, fmt.Errorf("repository.LexicalRepository.SearchLexical: scan: %w", err)
		}
		c.ContentType = model.ContentType(contentType)
		c.Lex = rank
		if rank > maxRank {
			maxRank = rank
		}
		out = append(out, c)
	}

	if maxRank > 0 {
		for i := range out {
			out[i].Lex = out[i].Lex / maxRank
		}
	}
	return out, nil
}
