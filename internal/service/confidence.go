package service

import (
	"math"
	"sort"
	"strings"

	"github.com/scmclimited/deep-rag-core/internal/model"
)

// ConfidenceFeatures holds the ten features the logistic model scores.
type ConfidenceFeatures struct {
	F1, F2, F3, F4, F5, F6, F7, F8, F9, F10 float64
}

var confidenceStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "in": true, "on": true,
	"to": true, "for": true, "and": true, "or": true, "is": true, "are": true,
	"what": true, "which": true, "who": true, "how": true, "does": true,
	"do": true, "this": true, "that": true, "with": true, "as": true,
	"at": true, "by": true, "it": true, "be": true,
}

// BuildConfidenceFeatures computes f1..f10 from ranked evidence and the raw
// query text. answerTokens/contextTokens are optional (f10 is 0 when unset).
func BuildConfidenceFeatures(evidence []Candidate, query string, answerTokens, contextTokens []string) ConfidenceFeatures {
	k := len(evidence)
	var f ConfidenceFeatures
	if k == 0 {
		return f
	}

	ce := rescueMetaQuery(evidence)

	// f1: max rerank score (ce, or vec if ce unavailable handled by rescue)
	maxCE := ce[0]
	for _, v := range ce {
		if v > maxCE {
			maxCE = v
		}
	}
	f.F1 = maxCE

	// f2: top1-top2 rerank margin
	if k >= 2 {
		sorted := append([]float64(nil), ce...)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		f.F2 = sorted[0] - sorted[1]
	}

	// f3, f4: mean / stddev of cosine
	var sumVec float64
	for _, c := range evidence {
		sumVec += c.Vec
	}
	meanVec := sumVec / float64(k)
	f.F3 = meanVec
	if k >= 2 {
		var sq float64
		for _, c := range evidence {
			d := c.Vec - meanVec
			sq += d * d
		}
		f.F4 = math.Sqrt(sq / float64(k))
	}

	// f5: fraction with vec >= 0.22
	var strongVec int
	for _, c := range evidence {
		if c.Vec >= 0.22 {
			strongVec++
		}
	}
	f.F5 = float64(strongVec) / float64(k)

	// f6: sum(lex) / (max(lex) * k)
	var sumLex, maxLex float64
	for _, c := range evidence {
		sumLex += c.Lex
		if c.Lex > maxLex {
			maxLex = c.Lex
		}
	}
	if maxLex > 0 {
		f.F6 = sumLex / (maxLex * float64(k))
	}

	// f7: term overlap with meaningful query terms
	meaningful := meaningfulTerms(query)
	if len(meaningful) > 0 {
		seen := make(map[string]bool)
		for _, c := range evidence {
			for _, t := range strings.Fields(strings.ToLower(c.Text)) {
				seen[strings.Trim(t, ".,;:!?\"'()")] = true
			}
		}
		var hit int
		for t := range meaningful {
			if seen[t] {
				hit++
			}
		}
		f.F7 = float64(hit) / float64(len(meaningful))
	}

	// f8: unique page-start count / k
	pages := make(map[int]bool)
	for _, c := range evidence {
		if c.PageStart != nil {
			pages[*c.PageStart] = true
		}
	}
	f.F8 = float64(len(pages)) / float64(k)

	// f9: unique doc count / k
	docs := make(map[string]bool)
	for _, c := range evidence {
		docs[c.DocumentID] = true
	}
	f.F9 = float64(len(docs)) / float64(k)

	// f10: Jaccard(answer, context) when provided
	if len(answerTokens) > 0 && len(contextTokens) > 0 {
		f.F10 = jaccard(answerTokens, contextTokens)
	}

	return f
}

// rescueMetaQuery implements the "meta-query rescue": if no candidate has
// lex>0, at least one has vec>0.4, and all ce are negative, ce is replaced
// with vec for every candidate before feature computation.
func rescueMetaQuery(evidence []Candidate) []float64 {
	ce := make([]float64, len(evidence))
	anyLex := false
	anyStrongVec := false
	allCENegative := true
	for i, c := range evidence {
		ce[i] = c.CE
		if c.Lex > 0 {
			anyLex = true
		}
		if c.Vec > 0.4 {
			anyStrongVec = true
		}
		if c.CE >= 0 {
			allCENegative = false
		}
	}
	if !anyLex && anyStrongVec && allCENegative {
		for i, c := range evidence {
			ce[i] = c.Vec
		}
	}
	return ce
}

func meaningfulTerms(query string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(query)) {
		t = strings.Trim(t, ".,;:!?\"'()")
		if t == "" || confidenceStopWords[t] {
			continue
		}
		out[t] = true
	}
	return out
}

func jaccard(a, b []string) float64 {
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[strings.ToLower(t)] = true
	}
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		setB[strings.ToLower(t)] = true
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	var inter int
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// ConfidenceProbability applies the logistic model: p = sigmoid(w0 + sum wi*fi).
func ConfidenceProbability(f ConfidenceFeatures, w [11]float64) float64 {
	z := w[0] +
		w[1]*f.F1 + w[2]*f.F2 + w[3]*f.F3 + w[4]*f.F4 + w[5]*f.F5 +
		w[6]*f.F6 + w[7]*f.F7 + w[8]*f.F8 + w[9]*f.F9 + w[10]*f.F10
	return 1.0 / (1.0 + math.Exp(-z))
}

// DecideAction maps a probability to the three-way gating action.
func DecideAction(p, abstainTh, clarifyTh float64) model.Action {
	switch {
	case p < abstainTh:
		return model.ActionAbstain
	case p < clarifyTh:
		return model.ActionClarify
	default:
		return model.ActionAnswer
	}
}
