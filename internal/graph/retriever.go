package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

// Retriever is the graph's retrieval node, wrapping the hybrid retrieval
// engine with the scope-resolution and evidence-merge contract of §4.2.3.
type Retriever struct {
	svc  *service.RetrieverService
	k    int
	kLex int
	kVec int
}

// NewRetriever creates a Retriever with the default retrieval breadth
// (K_RETRIEVER, K_LEX, K_VEC).
func NewRetriever(svc *service.RetrieverService, k, kLex, kVec int) *Retriever {
	return &Retriever{svc: svc, k: k, kLex: kLex, kVec: kVec}
}

// Run implements Node.
func (r *Retriever) Run(ctx context.Context, s State) (State, error) {
	scope := resolveScope(s)

	if !s.CrossDoc && s.SelectedDocIDs != nil && len(scope) == 0 {
		s.Evidence = nil
		s.DocIDs = nil
		return s, nil
	}

	query := strings.TrimSpace(s.Question + "  " + s.Plan)

	candidates, err := r.svc.Retrieve(ctx, service.RetrieveParams{
		Query:    query,
		K:        r.k,
		KLex:     r.kLex,
		KVec:     r.kVec,
		DocID:    s.DocID,
		Scope:    scope,
		CrossDoc: s.CrossDoc,
	})
	if err != nil {
		return s, fmt.Errorf("graph.Retriever: %w", err)
	}

	s.Evidence = mergeEvidence(s.Evidence, candidates)
	s.DocIDs = observedDocIDs(s.Evidence)
	return s, nil
}
