package graph

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/scmclimited/deep-rag-core/internal/model"
	"github.com/scmclimited/deep-rag-core/internal/service"
)

type memCheckpointStore struct {
	mu    sync.Mutex
	saved map[string]State
}

func newMemCheckpointStore() *memCheckpointStore {
	return &memCheckpointStore{saved: make(map[string]State)}
}

func (m *memCheckpointStore) Load(ctx context.Context, threadID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.saved[threadID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memCheckpointStore) Save(ctx context.Context, threadID string, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[threadID] = s
	return nil
}

func TestRunner_Run_HappyPathAnswersWithoutRefinement(t *testing.T) {
	store := newMemCheckpointStore()
	planner := NewPlanner(&mockGenAI{response: "1. find the number"})

	lex := []service.Candidate{
		{ChunkID: "c1", DocumentID: "d1", Text: "Revenue grew 10%.", PageStart: intPtr(1), Lex: 0.8, Vec: 0.6, CE: 0.6},
		{ChunkID: "c2", DocumentID: "d1", Text: "Net income also rose.", PageStart: intPtr(2), Lex: 0.7, Vec: 0.5, CE: 0.5},
	}
	svc := newGraphTestRetrieverSvc(lex, nil)
	retriever := NewRetriever(svc, 8, 60, 60)
	compressor := NewCompressor()
	critic := NewCritic(&mockGenAI{response: "unused"}, 3)
	refine := NewRefineRetrieve(svc)

	docs := &mockTitleFetcher{titles: map[string]string{"d1": "Quarterly Report"}}
	gen := service.NewGeneratorService(&mockGenAI{response: "Revenue grew. [A]\n\nSources:\n- [A] [DOC: d1]"}, "test-model")
	synth := NewSynthesizer(gen, docs, confidentWeights, 0.2, 0.6, 40, 30)
	pruner := NewCitationPruner(docs)

	runner := NewRunner(store, planner, retriever, compressor, critic, refine, synth, pruner, 3)

	entry := NewEntryState("thread-1", "how did revenue change", "", nil, nil, false)
	got, err := runner.Run(context.Background(), entry)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Action != model.ActionAnswer {
		t.Fatalf("Action = %v, want answer; answer=%q", got.Action, got.Answer)
	}

	saved, err := store.Load(context.Background(), "thread-1")
	if err != nil || saved == nil {
		t.Fatalf("expected checkpoint saved, err=%v saved=%v", err, saved)
	}
}

func TestRunner_Run_EntryScopeOverwritesCheckpoint(t *testing.T) {
	store := newMemCheckpointStore()
	store.saved["thread-2"] = State{
		ThreadID:       "thread-2",
		SelectedDocIDs: []string{"stale-doc"},
		DocID:          "stale-doc",
		Iterations:     2,
	}

	planner := NewPlanner(&mockGenAI{response: "plan"})
	svc := newGraphTestRetrieverSvc(nil, nil)
	retriever := NewRetriever(svc, 8, 60, 60)
	compressor := NewCompressor()
	critic := NewCritic(&mockGenAI{response: ""}, 3)
	refine := NewRefineRetrieve(svc)
	docs := &mockTitleFetcher{}
	gen := service.NewGeneratorService(&mockGenAI{response: "answer"}, "test-model")
	synth := NewSynthesizer(gen, docs, timidWeights, 0.2, 0.6, 40, 30)
	pruner := NewCitationPruner(docs)

	runner := NewRunner(store, planner, retriever, compressor, critic, refine, synth, pruner, 3)

	entry := NewEntryState("thread-2", "new question", "fresh-doc", []string{}, nil, false)
	got, err := runner.Run(context.Background(), entry)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.DocID != "fresh-doc" {
		t.Errorf("DocID = %q, want fresh-doc to overwrite checkpoint", got.DocID)
	}
}

type graphFailingQueryEmbedder struct{}

func (m *graphFailingQueryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding service unavailable")
}

func (m *graphFailingQueryEmbedder) EmbedMultimodal(ctx context.Context, text string, image []byte) ([]float32, error) {
	return nil, fmt.Errorf("embedding service unavailable")
}

func TestRunner_Run_RefineRetrieveFailureKeepsPriorEvidence(t *testing.T) {
	store := newMemCheckpointStore()
	planner := NewPlanner(&mockGenAI{response: "1. find the number"})

	weakEvidence := []service.Candidate{
		{ChunkID: "c1", DocumentID: "d1", Text: "Revenue grew 10%.", PageStart: intPtr(1), Lex: 0, Vec: 0, CE: 0},
	}
	svc := newGraphTestRetrieverSvc(weakEvidence, nil)
	retriever := NewRetriever(svc, 8, 60, 60)
	compressor := NewCompressor()
	critic := NewCritic(&mockGenAI{response: "more detail on revenue"}, 3)

	failingSvc := service.NewRetrieverService(
		&graphFailingQueryEmbedder{},
		&graphMockLexicalSearcher{},
		&graphMockDenseSearcher{},
		&graphMockEmbeddingFetcher{},
		&graphMockStructureFetcher{},
	)
	refine := NewRefineRetrieve(failingSvc)

	docs := &mockTitleFetcher{titles: map[string]string{"d1": "Quarterly Report"}}
	gen := service.NewGeneratorService(&mockGenAI{response: "Revenue grew. [A]\n\nSources:\n- [A] [DOC: d1]"}, "test-model")
	synth := NewSynthesizer(gen, docs, confidentWeights, 0.2, 0.6, 40, 30)
	pruner := NewCitationPruner(docs)

	runner := NewRunner(store, planner, retriever, compressor, critic, refine, synth, pruner, 3)

	entry := NewEntryState("thread-3", "how did revenue change", "", nil, nil, false)
	got, err := runner.Run(context.Background(), entry)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil: refine_retrieve failure must not abort the request", err)
	}
	if len(got.Evidence) != 1 || got.Evidence[0].ChunkID != "c1" {
		t.Fatalf("Evidence = %v, want prior evidence preserved", got.Evidence)
	}
	if got.Action != model.ActionAnswer {
		t.Fatalf("Action = %v, want answer despite refine_retrieve failure", got.Action)
	}
}

func TestRunner_ShouldRefine(t *testing.T) {
	r := &Runner{maxIters: 3}
	if r.shouldRefine(State{Refinements: nil}) {
		t.Error("expected false for nil refinements")
	}
	if !r.shouldRefine(State{Refinements: []string{"x"}, Iterations: 1}) {
		t.Error("expected true for pending refinements within bound")
	}
	if r.shouldRefine(State{Refinements: []string{"x"}, Iterations: 5}) {
		t.Error("expected false once iteration bound exceeded")
	}
}
