package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

// envelope is the uniform JSON response shape for every handler in this
// package.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// CacheInvalidator drops cached retrieval results scoped to a document,
// kept separate so tests can wire DocumentDeps without a cache.
type CacheInvalidator interface {
	InvalidateDocument(docID string)
}

// DocumentDeps bundles the dependencies shared by the document CRUD
// handlers.
type DocumentDeps struct {
	Docs      service.DocumentRepository
	Inspector *service.InspectorService
	Cache     CacheInvalidator // optional
}

// ListDocuments handles GET /api/documents.
func ListDocuments(deps DocumentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}

		docs, err := deps.Docs.ListDocuments(r.Context(), limit)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to list documents"})
			return
		}
		respondJSON(w, http.StatusOK, envelope{Success: true, Data: docs})
	}
}

// InspectDocument handles GET /api/documents/{idOrTitle}.
func InspectDocument(deps DocumentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idOrTitle := chi.URLParam(r, "id")
		if idOrTitle == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "document id required"})
			return
		}

		report, err := deps.Inspector.Inspect(r.Context(), idOrTitle)
		if err != nil {
			if errors.Is(err, service.ErrDocumentNotFound) {
				respondJSON(w, http.StatusNotFound, envelope{Success: false, Error: "document not found"})
				return
			}
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to inspect document"})
			return
		}
		respondJSON(w, http.StatusOK, envelope{Success: true, Data: report})
	}
}

// DeleteDocument handles DELETE /api/documents/{id}.
func DeleteDocument(deps DocumentDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "document id required"})
			return
		}

		if _, err := deps.Docs.GetByID(r.Context(), id); err != nil {
			if errors.Is(err, service.ErrDocumentNotFound) {
				respondJSON(w, http.StatusNotFound, envelope{Success: false, Error: "document not found"})
				return
			}
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to look up document"})
			return
		}

		if err := deps.Docs.Delete(r.Context(), id); err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to delete document"})
			return
		}
		if deps.Cache != nil {
			deps.Cache.InvalidateDocument(id)
		}

		respondJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]string{"documentId": id}})
	}
}
