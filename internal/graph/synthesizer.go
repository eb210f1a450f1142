package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/scmclimited/deep-rag-core/internal/model"
	"github.com/scmclimited/deep-rag-core/internal/service"
)

const (
	synthesizerMaxContextChunks = 24
	synthesizerMaxChunksPerDoc  = 6
)

// DocumentTitleFetcher resolves a document-id to its display title for the
// available-chunks table and contribution block.
type DocumentTitleFetcher interface {
	GetByID(ctx context.Context, id string) (*model.Document, error)
}

// Synthesizer runs pre-LLM confidence gating, context selection, alphabetic
// citation assignment, and final answer generation, per §4.2.7.
type Synthesizer struct {
	gen        *service.GeneratorService
	docs       DocumentTitleFetcher
	weights    [11]float64
	abstainTh  float64
	clarifyTh  float64
	confDefault float64
	confExplicit float64
}

// NewSynthesizer creates a Synthesizer. abstainTh/clarifyTh gate the
// confidence-model action (0-1 scale); confDefault/confExplicit are the
// pre-LLM percentage thresholds (0-100 scale) per §4.2.7.
func NewSynthesizer(gen *service.GeneratorService, docs DocumentTitleFetcher, weights [11]float64, abstainTh, clarifyTh, confDefault, confExplicit float64) *Synthesizer {
	return &Synthesizer{
		gen:          gen,
		docs:         docs,
		weights:      weights,
		abstainTh:    abstainTh,
		clarifyTh:    clarifyTh,
		confDefault:  confDefault,
		confExplicit: confExplicit,
	}
}

// Run implements Node.
func (s *Synthesizer) Run(ctx context.Context, st State) (State, error) {
	features := service.BuildConfidenceFeatures(st.Evidence, st.Question, nil, nil)
	p := service.ConfidenceProbability(features, s.weights)
	action := service.DecideAction(p, s.abstainTh, s.clarifyTh)
	confidencePct := p * 100

	// Unscoped cross-doc queries keep the default threshold; any explicit
	// scope (including a scoped cross-doc query) drops to the lower one.
	threshold := s.confDefault
	if scopeExplicit(st) {
		threshold = s.confExplicit
	}

	if action == model.ActionAbstain || confidencePct < threshold {
		st.Answer = "I don't know."
		st.DocIDs = nil
		st.Confidence = confidencePct
		st.Action = model.ActionAbstain
		return st, nil
	}

	selected := selectContext(st.Evidence, synthesizerMaxContextChunks, synthesizerMaxChunksPerDoc)

	docTitles := make(map[string]string, len(selected))
	for _, c := range selected {
		if _, ok := docTitles[c.DocumentID]; ok || c.DocumentID == "" {
			continue
		}
		doc, err := s.docs.GetByID(ctx, c.DocumentID)
		if err != nil {
			return st, fmt.Errorf("graph.Synthesizer: resolve title: %w", err)
		}
		docTitles[c.DocumentID] = doc.Title
	}

	evidenceChunks, chunkToLetter, letterToDocPrefix, letterToChunk := service.AssignLetters(selected, docTitles)

	result, err := s.gen.Synthesize(ctx, st.Question, evidenceChunks)
	if err != nil {
		return st, fmt.Errorf("graph.Synthesizer: %w", err)
	}

	st.Answer = result.Answer
	st.Confidence = confidencePct
	st.Action = model.ActionAnswer
	st.DocIDs = observedDocIDs(selected)
	st.Pages = observedPages(selected)
	st.Citations = buildCitations(evidenceChunks)
	st.ChunkToLetter = chunkToLetter
	st.LetterToDocPrefix = letterToDocPrefix
	st.LetterToChunk = letterToChunk
	return st, nil
}

func observedPages(evidence []service.Candidate) []int {
	seen := make(map[int]bool)
	var out []int
	for _, c := range evidence {
		if c.PageStart == nil || seen[*c.PageStart] {
			continue
		}
		seen[*c.PageStart] = true
		out = append(out, *c.PageStart)
	}
	sort.Ints(out)
	return out
}

// buildCitations renders the pre-pruning citation strings of §4.2.7:
// `[i] doc:{prefix} {pages} (confidence: X.X%)`, one per document, ranked by
// average per-chunk confidence descending.
func buildCitations(evidence []service.EvidenceChunk) []string {
	type docAgg struct {
		pages  map[int]bool
		scores []float64
	}
	order := make([]string, 0)
	agg := make(map[string]*docAgg)

	for _, e := range evidence {
		a, ok := agg[e.DocumentID]
		if !ok {
			a = &docAgg{pages: make(map[int]bool)}
			agg[e.DocumentID] = a
			order = append(order, e.DocumentID)
		}
		if e.PageStart != nil {
			a.pages[*e.PageStart] = true
		}
		var score float64
		if e.CE > 0 {
			score = 0.2*e.Lex + 0.3*e.Vec + 0.5*e.CE
		} else {
			score = 0.4*e.Lex + 0.6*e.Vec
		}
		a.scores = append(a.scores, score*100)
	}

	type ranked struct {
		docID string
		avg   float64
		pages []int
	}
	rlist := make([]ranked, 0, len(order))
	for _, docID := range order {
		a := agg[docID]
		var sum float64
		for _, sc := range a.scores {
			sum += sc
		}
		avg := sum / float64(len(a.scores))
		pages := make([]int, 0, len(a.pages))
		for p := range a.pages {
			pages = append(pages, p)
		}
		sort.Ints(pages)
		rlist = append(rlist, ranked{docID: docID, avg: avg, pages: pages})
	}
	sort.Slice(rlist, func(i, j int) bool { return rlist[i].avg > rlist[j].avg })

	out := make([]string, 0, len(rlist))
	for i, r := range rlist {
		out = append(out, fmt.Sprintf("[%d] doc:%s %v (confidence: %.1f%%)", i+1, docPrefix(r.docID), r.pages, r.avg))
	}
	return out
}

// selectContext implements the three-pass selection of §4.2.7: first pass
// enforces the per-document cap, second pass fills remaining slots without
// violating it, third pass appends chunks carrying no document-id at all.
func selectContext(evidence []service.Candidate, maxTotal, maxPerDoc int) []service.Candidate {
	perDoc := make(map[string]int)
	var selected, deferred, undocumented []service.Candidate

	for _, c := range evidence {
		if c.DocumentID == "" {
			undocumented = append(undocumented, c)
			continue
		}
		if len(selected) >= maxTotal {
			break
		}
		if perDoc[c.DocumentID] < maxPerDoc {
			selected = append(selected, c)
			perDoc[c.DocumentID]++
		} else {
			deferred = append(deferred, c)
		}
	}

	for _, c := range deferred {
		if len(selected) >= maxTotal {
			break
		}
		selected = append(selected, c)
	}

	for _, c := range undocumented {
		if len(selected) >= maxTotal {
			break
		}
		selected = append(selected, c)
	}

	return selected
}
