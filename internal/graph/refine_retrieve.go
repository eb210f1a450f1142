package graph

import (
	"context"
	"fmt"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

const (
	refineK        = 12
	refineKLexVec  = 72
)

// RefineRetrieve re-issues retrieval for each refinement the critic proposed,
// per §4.2.6, then routes back to the compressor.
type RefineRetrieve struct {
	svc *service.RetrieverService
}

// NewRefineRetrieve creates a RefineRetrieve node.
func NewRefineRetrieve(svc *service.RetrieverService) *RefineRetrieve {
	return &RefineRetrieve{svc: svc}
}

// Run implements Node.
func (r *RefineRetrieve) Run(ctx context.Context, s State) (State, error) {
	scope := resolveScope(s)

	for _, query := range s.Refinements {
		hits, err := r.svc.Retrieve(ctx, service.RetrieveParams{
			Query:    query,
			K:        refineK,
			KLex:     refineKLexVec,
			KVec:     refineKLexVec,
			DocID:    s.DocID,
			Scope:    scope,
			CrossDoc: s.CrossDoc,
		})
		if err != nil {
			return s, fmt.Errorf("graph.RefineRetrieve: %w", err)
		}

		if s.CrossDoc && len(scope) > 0 && len(hits) < refineK {
			supplement, err := r.svc.RetrieveExcludingScope(ctx, query, scope, refineKLexVec, refineKLexVec)
			if err != nil {
				return s, fmt.Errorf("graph.RefineRetrieve: %w", err)
			}
			hits = mergeEvidence(hits, supplement)
		}

		s.Evidence = mergeEvidence(s.Evidence, hits)
	}

	s.DocIDs = observedDocIDs(s.Evidence)
	s.Refinements = nil
	return s, nil
}
