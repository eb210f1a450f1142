package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

// Retriever abstracts the hybrid retrieval engine for the standalone
// retrieve endpoint, distinct from the full ask pipeline.
type Retriever interface {
	Retrieve(ctx context.Context, p service.RetrieveParams) ([]service.Candidate, error)
}

// RetrieveDeps bundles dependencies for the retrieve handler.
type RetrieveDeps struct {
	Retriever Retriever
	K         int
	KLex      int
	KVec      int
}

type retrieveRequest struct {
	Query    string   `json:"query"`
	DocID    string   `json:"docId"`
	Scope    []string `json:"scope"`
	CrossDoc bool     `json:"crossDoc"`
	K        int      `json:"k"`
}

// RetrieveChunks handles POST /api/retrieve, exposing the ranked-candidate
// list produced by the hybrid retrieval engine without running it through
// the agent graph.
func RetrieveChunks(deps RetrieveDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req retrieveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid request body"})
			return
		}
		if req.Query == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "query is required"})
			return
		}

		k := req.K
		if k <= 0 {
			k = deps.K
		}

		candidates, err := deps.Retriever.Retrieve(r.Context(), service.RetrieveParams{
			Query:    req.Query,
			K:        k,
			KLex:     deps.KLex,
			KVec:     deps.KVec,
			DocID:    req.DocID,
			Scope:    req.Scope,
			CrossDoc: req.CrossDoc,
		})
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "retrieval failed"})
			return
		}

		respondJSON(w, http.StatusOK, envelope{Success: true, Data: candidates})
	}
}
