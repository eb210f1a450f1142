package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

const plannerSystemPrompt = `You decompose a user's question into 1-3 concrete sub-goals for a
document retrieval agent. Respond with a short numbered list. Do not answer the question itself,
only plan how to find the answer.`

// Planner is the graph's entry node: it turns a question into a short plan
// the retriever uses to broaden its query.
type Planner struct {
	llm service.GenAIClient
}

// NewPlanner creates a Planner.
func NewPlanner(llm service.GenAIClient) *Planner {
	return &Planner{llm: llm}
}

// Run implements Node. Failure: LLM failure propagates per §4.2.2.
func (p *Planner) Run(ctx context.Context, s State) (State, error) {
	if strings.TrimSpace(s.Question) == "" {
		return s, fmt.Errorf("graph.Planner: question is empty")
	}

	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(s.Question)
	if s.DocID != "" {
		sb.WriteString("\nDocument context: ")
		sb.WriteString(s.DocID)
	}

	plan, err := p.llm.GenerateContent(ctx, plannerSystemPrompt, sb.String())
	if err != nil {
		return s, fmt.Errorf("graph.Planner: %w", err)
	}

	s.Plan = strings.TrimSpace(plan)
	return s, nil
}
