package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/scmclimited/deep-rag-core/internal/graph"
	"github.com/scmclimited/deep-rag-core/internal/service"
)

// CheckpointRepo implements graph.CheckpointStore against the
// thread_tracking table, storing the full graph state as JSONB alongside
// a handful of denormalized columns useful for operator queries.
type CheckpointRepo struct {
	pool *pgxpool.Pool
}

// NewCheckpointRepo creates a CheckpointRepo.
func NewCheckpointRepo(pool *pgxpool.Pool) *CheckpointRepo {
	return &CheckpointRepo{pool: pool}
}

// Compile-time check.
var _ graph.CheckpointStore = (*CheckpointRepo)(nil)

// Load returns the most recently saved state for threadID, or (nil, nil) if
// no row exists yet.
func (r *CheckpointRepo) Load(ctx context.Context, threadID string) (*graph.State, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT graphstate FROM thread_tracking WHERE thread_id = $1 ORDER BY created_at DESC LIMIT 1`,
		threadID,
	).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository.CheckpointRepo.Load: %w: %v", service.ErrStoreUnavailable, err)
	}
	if raw == nil {
		return nil, nil
	}

	var s graph.State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("repository.CheckpointRepo.Load: decode state: %w", err)
	}
	return &s, nil
}

// Save upserts the graph state for threadID, keeping denormalized columns
// (query_text, doc_ids, final_answer, cross_doc, completed_at) in sync so
// the run is inspectable without decoding graphstate.
func (r *CheckpointRepo) Save(ctx context.Context, threadID string, s graph.State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("repository.CheckpointRepo.Save: encode state: %w", err)
	}

	var completedAt *time.Time
	if s.Answer != "" {
		now := time.Now().UTC()
		completedAt = &now
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO thread_tracking (
			id, thread_id, query_text, doc_ids, final_answer, graphstate,
			entry_point, cross_doc, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10)
		ON CONFLICT (thread_id) DO UPDATE SET
			query_text   = EXCLUDED.query_text,
			doc_ids      = EXCLUDED.doc_ids,
			final_answer = EXCLUDED.final_answer,
			graphstate   = EXCLUDED.graphstate,
			cross_doc    = EXCLUDED.cross_doc,
			completed_at = EXCLUDED.completed_at`,
		uuid.NewString(), threadID, s.Question, pq.Array(s.DocIDs), s.Answer, raw,
		"agent_graph", s.CrossDoc, time.Now().UTC(), completedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.CheckpointRepo.Save: %w: %v", service.ErrStoreUnavailable, err)
	}
	return nil
}
