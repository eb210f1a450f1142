package graph

import (
	"context"
	"testing"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

type graphMockQueryEmbedder struct{ vec []float32 }

func (m *graphMockQueryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vec
	}
	return out, nil
}

func (m *graphMockQueryEmbedder) EmbedMultimodal(ctx context.Context, text string, image []byte) ([]float32, error) {
	return m.vec, nil
}

type graphMockLexicalSearcher struct{ results []service.Candidate }

func (m *graphMockLexicalSearcher) SearchLexical(ctx context.Context, query string, docIDs []string, limit int) ([]service.Candidate, error) {
	return m.results, nil
}

type graphMockDenseSearcher struct{ results []service.Candidate }

func (m *graphMockDenseSearcher) SearchVector(ctx context.Context, queryVec []float32, docIDs []string, limit int) ([]service.Candidate, error) {
	return m.results, nil
}

type graphMockEmbeddingFetcher struct{}

func (m *graphMockEmbeddingFetcher) FetchEmbeddings(ctx context.Context, chunkIDs []string) (map[string][]float32, error) {
	return map[string][]float32{}, nil
}

type graphMockStructureFetcher struct{}

func (m *graphMockStructureFetcher) FetchByStructure(ctx context.Context, docID string, max int, strategy string) ([]service.Candidate, error) {
	return nil, nil
}

func newGraphTestRetrieverSvc(lex, vec []service.Candidate) *service.RetrieverService {
	return service.NewRetrieverService(
		&graphMockQueryEmbedder{vec: []float32{1, 0, 0, 0}},
		&graphMockLexicalSearcher{results: lex},
		&graphMockDenseSearcher{results: vec},
		&graphMockEmbeddingFetcher{},
		&graphMockStructureFetcher{},
	)
}

func TestRetriever_Run_EmptyScopeNoCrossDoc(t *testing.T) {
	svc := newGraphTestRetrieverSvc(nil, nil)
	r := NewRetriever(svc, 8, 60, 60)

	got, err := r.Run(context.Background(), State{
		Question:       "q",
		SelectedDocIDs: []string{},
		CrossDoc:       false,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Evidence != nil || got.DocIDs != nil {
		t.Errorf("expected empty evidence and doc ids, got %+v", got)
	}
}

func TestRetriever_Run_CombinesQuestionAndPlan(t *testing.T) {
	lex := []service.Candidate{{ChunkID: "c1", DocumentID: "d1", Text: "hello", Lex: 0.5}}
	svc := newGraphTestRetrieverSvc(lex, nil)
	r := NewRetriever(svc, 8, 60, 60)

	got, err := r.Run(context.Background(), State{Question: "what is x", Plan: "look up x"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got.Evidence) == 0 {
		t.Fatal("expected evidence to be populated")
	}
	if len(got.DocIDs) != 1 || got.DocIDs[0] != "d1" {
		t.Errorf("DocIDs = %v, want [d1]", got.DocIDs)
	}
}

func TestRetriever_Run_MergesWithPriorEvidence(t *testing.T) {
	lex := []service.Candidate{{ChunkID: "c2", DocumentID: "d1", Text: "fresh"}}
	svc := newGraphTestRetrieverSvc(lex, nil)
	r := NewRetriever(svc, 8, 60, 60)

	prior := []service.Candidate{{ChunkID: "c1", DocumentID: "d0", Text: "prior"}}
	got, err := r.Run(context.Background(), State{Question: "q", Evidence: prior})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got.Evidence) != 2 {
		t.Fatalf("len(Evidence) = %d, want 2", len(got.Evidence))
	}
}
