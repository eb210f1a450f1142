package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CheckpointStore persists graph state by thread-id. Load returns (nil, nil)
// when no checkpoint exists for the thread yet.
type CheckpointStore interface {
	Load(ctx context.Context, threadID string) (*State, error)
	Save(ctx context.Context, threadID string, s State) error
}

// Runner drives one invocation of the agent graph: planner, retriever,
// compressor, critic, an optional refine-retrieve/compressor loop, then
// synthesizer and citation pruner, checkpointing state after every node.
type Runner struct {
	store          CheckpointStore
	planner        *Planner
	retriever      *Retriever
	compressor     *Compressor
	critic         *Critic
	refineRetrieve *RefineRetrieve
	synthesizer    *Synthesizer
	citationPruner *CitationPruner
	maxIters       int
	logger         *steplog
}

// NewRunner wires one Runner from its constituent nodes.
func NewRunner(store CheckpointStore, planner *Planner, retriever *Retriever, compressor *Compressor, critic *Critic, refineRetrieve *RefineRetrieve, synthesizer *Synthesizer, citationPruner *CitationPruner, maxIters int) *Runner {
	return &Runner{
		store:          store,
		planner:        planner,
		retriever:      retriever,
		compressor:     compressor,
		critic:         critic,
		refineRetrieve: refineRetrieve,
		synthesizer:    synthesizer,
		citationPruner: citationPruner,
		maxIters:       maxIters,
		logger:         newStepLog(),
	}
}

// Run merges any checkpointed state for entry.ThreadID with the caller's
// entry state — caller-supplied scope fields always win, per the
// entry-point contract — then walks the graph to completion.
func (r *Runner) Run(ctx context.Context, entry State) (State, error) {
	s, err := r.mergeWithCheckpoint(ctx, entry)
	if err != nil {
		return State{}, fmt.Errorf("graph.Runner: %w", err)
	}

	s, err = r.step(ctx, "planner", s, r.planner.Run)
	if err != nil {
		return s, err
	}

	s, err = r.step(ctx, "retriever", s, r.retriever.Run)
	if err != nil {
		return s, err
	}

	for {
		s, err = r.step(ctx, "compressor", s, r.compressor.Run)
		if err != nil {
			return s, err
		}

		s, err = r.step(ctx, "critic", s, r.critic.Run)
		if err != nil {
			return s, err
		}

		if !r.shouldRefine(s) {
			break
		}

		s, err = r.step(ctx, "refine_retrieve", s, r.refineRetrieve.Run)
		if err != nil {
			// Refinement failures don't corrupt prior evidence: synthesize on
			// whatever was gathered before the failed round instead of
			// failing the whole request.
			slog.Warn("graph.Runner: refine_retrieve failed, synthesizing on prior evidence", "thread_id", s.ThreadID, "error", err)
			break
		}
	}

	s, err = r.step(ctx, "synthesizer", s, r.synthesizer.Run)
	if err != nil {
		return s, err
	}

	s, err = r.step(ctx, "citation_pruner", s, r.citationPruner.Run)
	if err != nil {
		return s, err
	}

	return s, nil
}

// shouldRefine implements the conditional edge of §4.3. The critic already
// clears refinements when its own heuristic says to proceed to synthesis,
// so this checks for a non-empty list plus the iteration bound.
func (r *Runner) shouldRefine(s State) bool {
	return len(s.Refinements) > 0 && s.Iterations <= r.maxIters
}

func (r *Runner) mergeWithCheckpoint(ctx context.Context, entry State) (State, error) {
	if entry.ThreadID == "" {
		return entry, nil
	}

	checkpoint, err := r.store.Load(ctx, entry.ThreadID)
	if err != nil {
		return State{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if checkpoint == nil {
		return entry, nil
	}

	merged := *checkpoint
	merged.Question = entry.Question
	merged.DocID = entry.DocID
	merged.SelectedDocIDs = entry.SelectedDocIDs
	merged.UploadedDocIDs = entry.UploadedDocIDs
	merged.CrossDoc = entry.CrossDoc
	return merged, nil
}

func (r *Runner) step(ctx context.Context, name string, s State, node Node) (State, error) {
	start := time.Now()

	next, err := node(ctx, s)
	if err != nil {
		r.logger.record(name, s.Iterations, time.Since(start), err)
		return next, fmt.Errorf("graph.Runner: node %s: %w", name, err)
	}

	r.logger.record(name, next.Iterations, time.Since(start), nil)

	if next.ThreadID != "" {
		if err := r.store.Save(ctx, next.ThreadID, next); err != nil {
			return next, fmt.Errorf("graph.Runner: save checkpoint after %s: %w", name, err)
		}
	}

	return next, nil
}
