package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Ingester abstracts document registration and background processing.
// Enqueue dispatches to an async worker when one is configured, or runs
// the pipeline inline otherwise — either way this handler never blocks on
// it past the background goroutine below.
type Ingester interface {
	Ingest(ctx context.Context, title, sourcePath, mimeType string, sizeBytes int) (string, error)
	Enqueue(ctx context.Context, docID string) error
}

// IngestDeps bundles dependencies for the ingest handler.
type IngestDeps struct {
	Pipeline Ingester
}

// ingestRequest describes a document already staged at sourcePath (by an
// upload step this handler does not perform — object storage is an external
// collaborator).
type ingestRequest struct {
	Title      string `json:"title"`
	SourcePath string `json:"sourcePath"`
	MimeType   string `json:"mimeType"`
	SizeBytes  int    `json:"sizeBytes"`
}

// IngestDocument handles POST /api/ingest. It registers the document as
// Pending, fires the pipeline in a background goroutine, and returns 202
// Accepted without waiting for indexing to complete.
func IngestDocument(deps IngestDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid request body"})
			return
		}
		if req.Title == "" || req.SourcePath == "" || req.MimeType == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "title, sourcePath, and mimeType are required"})
			return
		}

		docID, err := deps.Pipeline.Ingest(r.Context(), req.Title, req.SourcePath, req.MimeType, req.SizeBytes)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
			return
		}

		go func(id string) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := deps.Pipeline.Enqueue(ctx, id); err != nil {
				slog.Error("ingest handler: pipeline failed", "document_id", id, "error", err)
			}
		}(docID)

		respondJSON(w, http.StatusAccepted, envelope{
			Success: true,
			Data: map[string]string{
				"documentId": docID,
				"status":     "processing",
			},
		})
	}
}
