package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

func TestCritic_Run_HighConfidenceSkipsRefinement(t *testing.T) {
	llm := &mockGenAI{response: "should not be called"}
	c := NewCritic(llm, 3)

	evidence := []service.Candidate{
		{ChunkID: "1", CE: 0.5},
		{ChunkID: "2", CE: 0.4},
		{ChunkID: "3", CE: 0.35},
	}

	got, err := c.Run(context.Background(), State{Evidence: evidence, Iterations: 0})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Refinements != nil {
		t.Errorf("Refinements = %v, want nil", got.Refinements)
	}
}

func TestCritic_Run_MaxItersForcesSynthesis(t *testing.T) {
	c := NewCritic(&mockGenAI{response: "ignored"}, 2)

	got, err := c.Run(context.Background(), State{Evidence: nil, Iterations: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Refinements != nil {
		t.Errorf("Refinements = %v, want nil at iteration bound", got.Refinements)
	}
}

func TestCritic_Run_WeakEvidenceRequestsRefinement(t *testing.T) {
	llm := &mockGenAI{response: "revenue figures by quarter\nbreakdown by region!!"}
	c := NewCritic(llm, 3)

	got, err := c.Run(context.Background(), State{Question: "what changed", Iterations: 0})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got.Refinements) != 2 {
		t.Fatalf("Refinements = %v, want 2", got.Refinements)
	}
	if got.Refinements[1] != "breakdown by region" {
		t.Errorf("Refinements[1] = %q, want special chars collapsed", got.Refinements[1])
	}
	if got.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", got.Iterations)
	}
}

func TestCritic_Run_CapsRefinementsAtTwo(t *testing.T) {
	llm := &mockGenAI{response: "one\ntwo\nthree"}
	c := NewCritic(llm, 3)

	got, err := c.Run(context.Background(), State{Question: "q"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got.Refinements) != 2 {
		t.Fatalf("len(Refinements) = %d, want 2", len(got.Refinements))
	}
}

func TestCritic_Run_MultiDocHeuristicUsesBreadthPrompt(t *testing.T) {
	llm := &mockGenAI{response: "doc titles\nstructure"}
	c := NewCritic(llm, 3)

	_, err := c.Run(context.Background(), State{Question: "what are the contents of these documents?"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if llm.lastSys != criticBreadthSystemPrompt {
		t.Errorf("expected breadth prompt for multi-doc question, got %q", llm.lastSys)
	}
}

func TestCritic_Run_LLMFailurePropagates(t *testing.T) {
	c := NewCritic(&mockGenAI{err: errors.New("quota exceeded")}, 3)
	if _, err := c.Run(context.Background(), State{Question: "q"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCountStrongChunks(t *testing.T) {
	evidence := []service.Candidate{
		{CE: 0.31},
		{CE: 0.1, Lex: 1, Vec: 1},
		{CE: 0.1, Lex: 0, Vec: 1},
	}
	if got := countStrongChunks(evidence); got != 2 {
		t.Errorf("countStrongChunks() = %d, want 2", got)
	}
}
