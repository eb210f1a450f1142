package model

import (
	"encoding/json"
	"time"
)

// Audit action constants.
const (
	AuditDocumentIngested = "DOCUMENT_INGESTED"
	AuditDocumentDeleted  = "DOCUMENT_DELETED"
	AuditQueryExecuted    = "QUERY_EXECUTED"
	AuditAnswerAbstained  = "ANSWER_ABSTAINED"
	AuditGraphStep        = "GRAPH_STEP"
)

// AuditLog represents an immutable audit trail entry.
type AuditLog struct {
	ID           string          `json:"id"`
	ThreadID     *string         `json:"threadId,omitempty"`
	Action       string          `json:"action"`
	ResourceID   *string         `json:"resourceId,omitempty"`
	ResourceType *string         `json:"resourceType,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}
