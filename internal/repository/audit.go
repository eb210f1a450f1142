package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

// AuditRepo implements service.AuditLogger, writing one immutable row per
// pipeline and graph event worth a trail: ingestion, deletion, abstains,
// and per-step graph activity.
type AuditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepo creates an AuditRepo.
func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Compile-time check.
var _ service.AuditLogger = (*AuditRepo)(nil)

// Log inserts an audit entry. resourceID/resourceType are stored empty
// rather than as pointers when the caller has nothing to report.
func (r *AuditRepo) Log(ctx context.Context, action string, threadID *string, resourceID, resourceType string) error {
	var resID, resType *string
	if resourceID != "" {
		resID = &resourceID
	}
	if resourceType != "" {
		resType = &resourceType
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, thread_id, action, resource_id, resource_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), threadID, action, resID, resType, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("repository.AuditRepo.Log: %w: %v", service.ErrStoreUnavailable, err)
	}
	return nil
}
