// Package graph implements the agent state machine: planner, retriever,
// compressor, critic, refine-retrieve, synthesizer, and citation pruner,
// wired together by a checkpoint-aware runner.
package graph

import (
	"context"

	"github.com/scmclimited/deep-rag-core/internal/model"
	"github.com/scmclimited/deep-rag-core/internal/service"
)

// State is the explicit pipeline state threaded through every node. Fields
// mirror the per-invocation record the runner checkpoints by thread-id.
type State struct {
	ThreadID string `json:"threadId"`
	Question string `json:"question"`
	Plan     string `json:"plan"`

	Evidence []service.Candidate `json:"evidence"`
	Notes    string              `json:"notes"`

	Answer     string      `json:"answer"`
	Confidence float64     `json:"confidence"`
	Action     model.Action `json:"action"`

	Iterations  int      `json:"iterations"`
	Refinements []string `json:"refinements"`

	// Scope fields. SelectedDocIDs is nil when the caller supplied no
	// selection at all, and non-nil-empty when the caller explicitly
	// deselected every document — the two are semantically distinct
	// per the entry-point contract.
	DocID          string   `json:"docId,omitempty"`
	SelectedDocIDs []string `json:"selectedDocIds"`
	UploadedDocIDs []string `json:"uploadedDocIds,omitempty"`
	DocIDs         []string `json:"docIds,omitempty"`
	CrossDoc       bool     `json:"crossDoc"`

	Citations []string `json:"citations,omitempty"`
	DocMap    []DocMapEntry `json:"docMap,omitempty"`
	Pages     []int         `json:"pages,omitempty"`

	ChunkToLetter     map[string]string `json:"chunkToLetter,omitempty"`
	LetterToDocPrefix map[string]string `json:"letterToDocPrefix,omitempty"`
	LetterToChunk     map[string]string `json:"letterToChunk,omitempty"`
}

// DocMapEntry reports whether a document observed in evidence survived
// citation pruning into the final answer.
type DocMapEntry struct {
	DocID string `json:"docId"`
	Title string `json:"title"`
	Used  bool   `json:"used"`
}

// NewEntryState builds the initial state for one graph invocation per the
// entry-point contract of §4.2.1: doc_id and selected_doc_ids are always
// set explicitly from the caller's scope, never left to a checkpoint's
// stale value.
func NewEntryState(threadID, question string, docID string, selectedDocIDs, uploadedDocIDs []string, crossDoc bool) State {
	return State{
		ThreadID:       threadID,
		Question:       question,
		DocID:          docID,
		SelectedDocIDs: selectedDocIDs,
		UploadedDocIDs: uploadedDocIDs,
		CrossDoc:       crossDoc,
	}
}

// Node is one pure step of the graph: it receives the merged state and
// returns the next state (already merged — the runner persists it as-is).
type Node func(ctx context.Context, s State) (State, error)
