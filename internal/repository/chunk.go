package repository

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scmclimited/deep-rag-core/internal/model"
	"github.com/scmclimited/deep-rag-core/internal/service"
)

// ChunkRepo persists chunks and serves the dense-vector half of retrieval,
// plus embedding hydration, against the chunks table of §6's schema.
type ChunkRepo struct {
	pool *pgxpool.Pool
}

// NewChunkRepo creates a ChunkRepo.
func NewChunkRepo(pool *pgxpool.Pool) *ChunkRepo {
	return &ChunkRepo{pool: pool}
}

// Compile-time checks.
var (
	_ service.ChunkStore        = (*ChunkRepo)(nil)
	_ service.DenseSearcher     = (*ChunkRepo)(nil)
	_ service.EmbeddingFetcher  = (*ChunkRepo)(nil)
	_ service.ChunkStatsFetcher = (*ChunkRepo)(nil)
)

// BulkInsert stores embedded chunks for a document using pgx batching. The
// lex tsvector column is derived from text at write time so lexical search
// never recomputes it per query.
func (r *ChunkRepo) BulkInsert(ctx context.Context, documentID string, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		embedding := pgvector.NewVector(c.Embedding)
		batch.Queue(`
			INSERT INTO chunks (
				chunk_id, doc_id, chunk_index, page_start, page_end, section,
				text, is_ocr, is_figure, content_type, image_path, content_hash,
				lex, emb, meta
			) VALUES (
				$1, $2, $3, $4, $5, $6,
				$7, $8, $9, $10, $11, $12,
				to_tsvector('english', $7), $13, $14::jsonb
			)`,
			c.ID, documentID, c.ChunkIndex, c.PageStart, c.PageEnd, c.Section,
			c.Text, c.IsOCR, c.IsFigure, string(c.ContentType), c.ImagePath, c.ContentHash,
			embedding, nullableJSON(c.Metadata),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(chunks); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("repository.ChunkRepo.BulkInsert: chunk %d: %w: %v", i, service.ErrStoreUnavailable, err)
		}
	}

	return nil
}

// SearchVector ranks chunks by cosine similarity to queryVec, scoped to
// docIDs when non-empty, per §4.1.2's dense candidate generation.
func (r *ChunkRepo) SearchVector(ctx context.Context, queryVec []float32, docIDs []string, limit int) ([]service.Candidate, error) {
	embedding := pgvector.NewVector(queryVec)

	query := `
		SELECT chunk_id, doc_id, text, page_start, page_end, content_type, image_path,
			1 - (emb <=> $1::vector) AS similarity
		FROM chunks
		WHERE emb IS NOT NULL`
	args := []interface{}{embedding}

	if len(docIDs) > 0 {
		query += ` AND doc_id = ANY($2)`
		args = append(args, docIDs)
	}
	query += fmt.Sprintf(` ORDER BY emb <=> $1::vector LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository.ChunkRepo.SearchVector: %w: %v", service.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []service.Candidate
	for rows.Next() {
		var c service.Candidate
		var contentType string
		var sim float64
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Text, &c.PageStart, &c.PageEnd, &contentType, &c.ImagePath, &sim); err != nil {
			return nil, fmt.Errorf("repository.ChunkRepo.SearchVector: scan: %w", err)
		}
		c.ContentType = model.ContentType(contentType)
		if sim < 0 {
			sim = 0
		}
		c.Vec = sim
		out = append(out, c)
	}
	return out, nil
}

// FetchEmbeddings hydrates the full embedding for a set of chunks, read back
// as text rather than the typed vector codec so the malformed-literal repair
// path of §4.1.3 has somewhere to run. A chunk whose stored literal cannot be
// repaired into valid floats is logged and excluded — never silently
// substituted with a zero vector — while the rest of the batch proceeds.
func (r *ChunkRepo) FetchEmbeddings(ctx context.Context, chunkIDs []string) (map[string][]float32, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT chunk_id, emb::text FROM chunks WHERE chunk_id = ANY($1)`, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("repository.ChunkRepo.FetchEmbeddings: %w: %v", service.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string][]float32, len(chunkIDs))
	for rows.Next() {
		var chunkID string
		var raw *string
		if err := rows.Scan(&chunkID, &raw); err != nil {
			return nil, fmt.Errorf("repository.ChunkRepo.FetchEmbeddings: scan: %w", err)
		}
		if raw == nil {
			continue
		}
		vec, err := parseVectorLiteral(*raw)
		if err != nil {
			slog.Error("repository: malformed persisted vector, excluding chunk from ranking",
				"chunk_id", chunkID, "error", err)
			continue
		}
		out[chunkID] = vec
	}
	return out, nil
}

// Stats computes the document-structure diagnostics ingest leaves behind:
// chunk count by content type and the page range actually observed,
// grounded on the Python original's diagnostics report.
func (r *ChunkRepo) Stats(ctx context.Context, documentID string) (service.ChunkStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT content_type, count(*), min(page_start), max(page_end)
		FROM chunks WHERE doc_id = $1 GROUP BY content_type`, documentID)
	if err != nil {
		return service.ChunkStats{}, fmt.Errorf("repository.ChunkRepo.Stats: %w: %v", service.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	stats := service.ChunkStats{ContentTypeCounts: map[model.ContentType]int{}}
	for rows.Next() {
		var contentType string
		var count int
		var minPage, maxPage *int
		if err := rows.Scan(&contentType, &count, &minPage, &maxPage); err != nil {
			return service.ChunkStats{}, fmt.Errorf("repository.ChunkRepo.Stats: scan: %w", err)
		}
		stats.ContentTypeCounts[model.ContentType(contentType)] = count
		stats.Count += count
		if minPage != nil && (stats.FirstPage == nil || *minPage < *stats.FirstPage) {
			stats.FirstPage = minPage
		}
		if maxPage != nil && (stats.LastPage == nil || *maxPage > *stats.LastPage) {
			stats.LastPage = maxPage
		}
	}
	return stats, nil
}

// brokenExponentRe matches a digit immediately followed by a bare +/- sign
// and trailing digits with no 'e' — the broken-scientific-notation shape a
// upstream float-to-string conversion can emit (e.g. "1.23-05" meaning
// "1.23e-05").
var brokenExponentRe = regexp.MustCompile(`(\d)([+-])(\d+)$`)

// parseVectorLiteral parses a pgvector text literal like "[0.1,-0.2,3e-05]"
// into a float32 slice, first repairing any broken-scientific-notation
// tokens per §4.1.3.
func parseVectorLiteral(raw string) ([]float32, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "[")
	trimmed = strings.TrimSuffix(trimmed, "]")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty vector literal", service.ErrVectorParse)
	}

	tokens := strings.Split(trimmed, ",")
	out := make([]float32, len(tokens))
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if !strings.ContainsAny(tok, "eE") {
			tok = brokenExponentRe.ReplaceAllString(tok, "${1}e${2}${3}")
		}
		f, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: token %q: %v", service.ErrVectorParse, tok, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
