package graph

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

const (
	criticStrongCEThreshold = 0.30
	criticConfidenceGate    = 0.6
	criticMaxRefinements    = 2
)

const criticRefinementSystemPrompt = `Given a question, a plan, and the evidence gathered so far, propose up to two
short follow-up search queries that would fill the gaps in the evidence. Reply with one query per line, no numbering,
no commentary.`

const criticBreadthSystemPrompt = `The question asks about multiple documents as a whole. Propose up to two short
search queries that would surface per-document metadata and structural coverage (titles, sections, document count)
rather than narrow factual detail. Reply with one query per line, no numbering, no commentary.`

var multiDocHeuristicRe = regexp.MustCompile(`(?i)\b(all documents|these documents|contents of|share the contents|what documents)\b`)

// Critic scores the evidence gathered so far and decides whether to proceed
// to synthesis or request another round of retrieval, per §4.2.5.
type Critic struct {
	llm      service.GenAIClient
	maxIters int
}

// NewCritic creates a Critic bounded by maxIters (MAX_ITERS).
func NewCritic(llm service.GenAIClient, maxIters int) *Critic {
	return &Critic{llm: llm, maxIters: maxIters}
}

// Run implements Node.
func (c *Critic) Run(ctx context.Context, s State) (State, error) {
	strong := countStrongChunks(s.Evidence)
	h := 0.4 + 0.1*float64(strong)
	if h > 0.9 {
		h = 0.9
	}

	if h >= criticConfidenceGate || s.Iterations >= c.maxIters {
		s.Refinements = nil
		return s, nil
	}

	prompt := criticRefinementSystemPrompt
	if multiDocHeuristicRe.MatchString(s.Question) {
		prompt = criticBreadthSystemPrompt
	}

	raw, err := c.llm.GenerateContent(ctx, prompt, criticUserPrompt(s))
	if err != nil {
		return s, fmt.Errorf("graph.Critic: %w", err)
	}

	s.Refinements = sanitizeRefinements(raw)
	s.Iterations++
	return s, nil
}

func criticUserPrompt(s State) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(s.Question)
	sb.WriteString("\nPlan: ")
	sb.WriteString(s.Plan)
	sb.WriteString("\nNotes so far:\n")
	sb.WriteString(s.Notes)
	return sb.String()
}

func countStrongChunks(evidence []service.Candidate) int {
	n := 0
	for _, c := range evidence {
		if c.CE > criticStrongCEThreshold || (c.Lex > 0 && c.Vec > 0) {
			n++
		}
	}
	return n
}

// sanitizeRefinements splits the LLM's line-per-query response, sanitizes
// each with the §4.1.1 lexical rules plus special-char collapsing, and caps
// the result at criticMaxRefinements.
func sanitizeRefinements(raw string) []string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, criticMaxRefinements)
	for _, line := range lines {
		cleaned := collapseSpecialChars(service.SanitizeLexicalQuery(line))
		if cleaned == "" {
			continue
		}
		out = append(out, cleaned)
		if len(out) == criticMaxRefinements {
			break
		}
	}
	return out
}

// collapseSpecialChars folds runs of punctuation down to a single space,
// cleaning up stray markdown bullets the LLM sometimes emits per refinement
// line, beyond what service.SanitizeLexicalQuery already strips.
func collapseSpecialChars(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	lastWasPunct := false
	for _, r := range raw {
		isPunct := strings.ContainsRune(".,;?!-_*#`", r)
		if isPunct {
			if !lastWasPunct {
				b.WriteRune(' ')
			}
			lastWasPunct = true
			continue
		}
		lastWasPunct = false
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
