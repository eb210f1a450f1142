package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/scmclimited/deep-rag-core/internal/graph"
)

// GraphRunner runs one agent-graph invocation to completion.
type GraphRunner interface {
	Run(ctx context.Context, entry graph.State) (graph.State, error)
}

// AskDeps bundles dependencies for the ask handler.
type AskDeps struct {
	Runner GraphRunner
}

type askRequest struct {
	ThreadID       string   `json:"threadId"`
	Question       string   `json:"question"`
	DocID          string   `json:"docId"`
	SelectedDocIDs []string `json:"selectedDocIds"`
	UploadedDocIDs []string `json:"uploadedDocIds"`
	CrossDoc       bool     `json:"crossDoc"`
}

type askResponse struct {
	ThreadID    string              `json:"threadId"`
	Answer      string              `json:"answer"`
	Confidence  float64             `json:"confidence"`
	Action      string              `json:"action"`
	Iterations  int                 `json:"iterations"`
	Citations   []string            `json:"citations,omitempty"`
	DocMap      []graph.DocMapEntry `json:"docMap,omitempty"`
}

// AskQuestion handles POST /api/ask. It runs the full planner through
// citation-pruner pipeline for one question and returns the gated answer.
func AskQuestion(deps AskDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid request body"})
			return
		}
		if req.Question == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "question is required"})
			return
		}
		if req.ThreadID == "" {
			req.ThreadID = uuid.NewString()
		}

		entry := graph.NewEntryState(req.ThreadID, req.Question, req.DocID, req.SelectedDocIDs, req.UploadedDocIDs, req.CrossDoc)

		final, err := deps.Runner.Run(r.Context(), entry)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "failed to answer question"})
			return
		}

		respondJSON(w, http.StatusOK, envelope{Success: true, Data: askResponse{
			ThreadID:   final.ThreadID,
			Answer:     final.Answer,
			Confidence: final.Confidence,
			Action:     string(final.Action),
			Iterations: final.Iterations,
			Citations:  final.Citations,
			DocMap:     final.DocMap,
		}})
	}
}
