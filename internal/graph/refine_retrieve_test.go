package graph

import (
	"context"
	"testing"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

func TestRefineRetrieve_Run_MergesHitsAndClearsRefinements(t *testing.T) {
	lex := []service.Candidate{{ChunkID: "c1", DocumentID: "d1", Text: "a"}}
	svc := newGraphTestRetrieverSvc(lex, nil)
	rr := NewRefineRetrieve(svc)

	got, err := rr.Run(context.Background(), State{
		Refinements: []string{"refine one", "refine two"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Refinements != nil {
		t.Errorf("Refinements = %v, want nil after processing", got.Refinements)
	}
	if len(got.Evidence) == 0 {
		t.Fatal("expected evidence to be populated from refinement retrieval")
	}
}

func TestRefineRetrieve_Run_NoRefinementsIsNoop(t *testing.T) {
	svc := newGraphTestRetrieverSvc(nil, nil)
	rr := NewRefineRetrieve(svc)

	got, err := rr.Run(context.Background(), State{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got.Evidence) != 0 {
		t.Errorf("Evidence = %v, want empty", got.Evidence)
	}
}
