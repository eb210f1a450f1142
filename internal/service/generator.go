package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// GenAIClient abstracts the Vertex AI Gemini generative model for testability.
type GenAIClient interface {
	GenerateContent(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

// EvidenceChunk is one piece of context made available to the synthesis
// prompt, already assigned its alphabetic citation letter.
type EvidenceChunk struct {
	Letter     string
	ChunkID    string
	DocumentID string
	DocTitle   string
	Text       string
	PageStart  *int
	PageEnd    *int
	Lex, Vec, CE float64
}

// GenerationResult is the output of a single synthesis call, before citation
// pruning.
type GenerationResult struct {
	Answer    string
	ModelUsed string
	LatencyMs int64
}

// GeneratorService produces grounded, alphabetically-cited answers using
// retrieved context. It owns prompt assembly and the per-page contribution
// block; confidence gating and context selection happen one layer up, in the
// synthesizer graph node, since they require the full pipeline state.
type GeneratorService struct {
	client GenAIClient
	model  string
}

// NewGeneratorService creates a GeneratorService.
func NewGeneratorService(client GenAIClient, model string) *GeneratorService {
	return &GeneratorService{client: client, model: model}
}

// Synthesize calls the LLM with the assembled evidence table and question,
// then appends the per-page contribution block verbatim to its answer.
func (s *GeneratorService) Synthesize(ctx context.Context, question string, evidence []EvidenceChunk) (*GenerationResult, error) {
	if question == "" {
		return nil, fmt.Errorf("service.Synthesize: question is empty")
	}
	if len(evidence) == 0 {
		return nil, fmt.Errorf("service.Synthesize: no evidence supplied")
	}

	start := time.Now()

	userPrompt := BuildSynthesisPrompt(question, evidence)

	raw, err := s.client.GenerateContent(ctx, synthesizerSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("service.Synthesize: %w", err)
	}

	answer := strings.TrimSpace(raw) + "\n\n" + BuildContributionBlock(evidence)

	return &GenerationResult{
		Answer:    answer,
		ModelUsed: s.model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

const synthesizerSystemPrompt = `You are a document analysis assistant that answers strictly from provided context.
Rules:
- Only use the available-chunks table below. Never speculate or use outside knowledge.
- Cite every factual claim with a bracketed letter matching the available-chunks table, e.g. [A], [B].
- If the context is insufficient to answer, say "I don't know." and cite nothing.
- End your answer with a "Sources:" section listing one "- [letter] [DOC: prefix]" line per letter you cited.`

// AssignLetters assigns alphabetic citation letters A..Z to evidence in
// order, building the maps the citation pruner resolves [A]/[B].. against.
// Evidence beyond 26 items is truncated — the prompt only carries the first
// 26 chunks regardless of caller-side selection limits.
func AssignLetters(candidates []Candidate, docTitles map[string]string) ([]EvidenceChunk, map[string]string, map[string]string, map[string]string) {
	chunkToLetter := make(map[string]string, len(candidates))
	letterToDocPrefix := make(map[string]string, len(candidates))
	letterToChunk := make(map[string]string, len(candidates))

	n := len(candidates)
	if n > 26 {
		n = 26
	}

	out := make([]EvidenceChunk, 0, n)
	for i := 0; i < n; i++ {
		c := candidates[i]
		letter := string(rune('A' + i))
		prefix := docPrefix(c.DocumentID)

		chunkToLetter[c.ChunkID] = letter
		letterToDocPrefix[letter] = prefix
		letterToChunk[letter] = c.ChunkID

		out = append(out, EvidenceChunk{
			Letter:     letter,
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			DocTitle:   docTitles[c.DocumentID],
			Text:       c.Text,
			PageStart:  c.PageStart,
			PageEnd:    c.PageEnd,
			Lex:        c.Lex,
			Vec:        c.Vec,
			CE:         c.CE,
		})
	}

	return out, chunkToLetter, letterToDocPrefix, letterToChunk
}

func docPrefix(docID string) string {
	id := strings.ReplaceAll(docID, "-", "")
	if len(id) >= 8 {
		return strings.ToLower(id[:8])
	}
	return strings.ToLower(id)
}

// BuildSynthesisPrompt assembles the available-chunks table, per-document
// clustered context, and sources-format example per §4.2.7.
func BuildSynthesisPrompt(question string, evidence []EvidenceChunk) string {
	var sb strings.Builder

	sb.WriteString("=== AVAILABLE CHUNKS ===\n")
	for _, e := range evidence {
		sb.WriteString(fmt.Sprintf("[%s] doc:%s \"%s\" — %s\n", e.Letter, docPrefix(e.DocumentID), e.DocTitle, preview(e.Text, 160)))
	}

	sb.WriteString("\n=== CONTEXT BY DOCUMENT ===\n")
	byDoc := groupByDocument(evidence)
	for _, docID := range byDoc.order {
		cluster := byDoc.groups[docID]
		label := cluster[0].DocTitle
		sb.WriteString(fmt.Sprintf("Document %s (%s):\n", docPrefix(docID), label))
		for _, e := range cluster {
			sb.WriteString(fmt.Sprintf("[%s] %s\n", e.Letter, e.Text))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("=== DOCUMENT ORDER INSTRUCTION ===\n")
	sb.WriteString("Address documents in the order they first appear above. Do not invent a document not listed.\n\n")

	sb.WriteString("=== QUESTION ===\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	sb.WriteString("=== SOURCES FORMAT EXAMPLE ===\n")
	sb.WriteString("Sources:\n- [A] [DOC: " + examplePrefix(evidence) + "]\n")

	return sb.String()
}

func examplePrefix(evidence []EvidenceChunk) string {
	if len(evidence) == 0 {
		return "00000000"
	}
	return docPrefix(evidence[0].DocumentID)
}

func preview(text string, n int) string {
	text = strings.TrimSpace(text)
	if len(text) <= n {
		return text
	}
	return text[:n] + "..."
}

type documentGroups struct {
	order  []string
	groups map[string][]EvidenceChunk
}

func groupByDocument(evidence []EvidenceChunk) documentGroups {
	g := documentGroups{groups: make(map[string][]EvidenceChunk)}
	for _, e := range evidence {
		if _, ok := g.groups[e.DocumentID]; !ok {
			g.order = append(g.order, e.DocumentID)
		}
		g.groups[e.DocumentID] = append(g.groups[e.DocumentID], e)
	}
	return g
}

// pageContribution is one (doc, page) group's aggregated confidence.
type pageContribution struct {
	docID        string
	docTitle     string
	page         int
	contribution float64
}

// BuildContributionBlock groups context chunks by (doc-id, page), computes
// per-group average confidence, aggregates to per-document average, ranks
// documents descending, and renders the "Documents used for analysis" block
// per §4.2.7. The block is appended verbatim and must survive citation
// pruning unchanged.
func BuildContributionBlock(evidence []EvidenceChunk) string {
	type pageKey struct {
		doc  string
		page int
	}
	groupScores := make(map[pageKey][]float64)
	groupTitle := make(map[pageKey]string)

	for _, e := range evidence {
		page := 0
		if e.PageStart != nil {
			page = *e.PageStart
		}
		var score float64
		if e.CE > 0 {
			score = 0.2*e.Lex + 0.3*e.Vec + 0.5*e.CE
		} else {
			score = 0.4*e.Lex + 0.6*e.Vec
		}
		score *= 100

		key := pageKey{doc: e.DocumentID, page: page}
		groupScores[key] = append(groupScores[key], score)
		groupTitle[key] = e.DocTitle
	}

	groupAvg := make(map[pageKey]float64, len(groupScores))
	for k, scores := range groupScores {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		groupAvg[k] = sum / float64(len(scores))
	}

	docScores := make(map[string][]float64)
	for k, avg := range groupAvg {
		docScores[k.doc] = append(docScores[k.doc], avg)
	}
	docAvg := make(map[string]float64, len(docScores))
	for doc, scores := range docScores {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		docAvg[doc] = sum / float64(len(scores))
	}

	docOrder := make([]string, 0, len(docAvg))
	for doc := range docAvg {
		docOrder = append(docOrder, doc)
	}
	sort.Slice(docOrder, func(i, j int) bool { return docAvg[docOrder[i]] > docAvg[docOrder[j]] })

	docRank := make(map[string]int, len(docOrder))
	for i, doc := range docOrder {
		docRank[doc] = i + 1
	}

	entries := make([]pageContribution, 0, len(groupAvg))
	for k, avg := range groupAvg {
		entries = append(entries, pageContribution{
			docID:        k.doc,
			docTitle:     groupTitle[k],
			page:         k.page,
			contribution: avg,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if docRank[a.docID] != docRank[b.docID] {
			return docRank[a.docID] < docRank[b.docID]
		}
		if a.contribution != b.contribution {
			return a.contribution > b.contribution
		}
		return a.page < b.page
	})

	var sb strings.Builder
	sb.WriteString("Documents used for analysis (ranked by contribution strength):\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("[%d] \"%s\" - Page: p%d - (contribution strength: %.1f%%)\n",
			docRank[e.docID], e.docTitle, e.page, e.contribution))
	}

	return strings.TrimRight(sb.String(), "\n")
}
