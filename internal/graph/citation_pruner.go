package graph

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/scmclimited/deep-rag-core/internal/model"
)

const citationPrunerAbstainCap = 40.0

const contributionBlockMarker = "Documents used for analysis"

var (
	refBracketDocRe  = regexp.MustCompile(`(?i)\[DOC\s+([0-9a-f]{8})\]`)
	refBareDocRe     = regexp.MustCompile(`(?i)\bDOC\s+([0-9a-f]{8})\b`)
	refDocumentRe    = regexp.MustCompile(`(?i)\bDocument\s+([0-9a-f]{8})\b`)
	refDocColonRe    = regexp.MustCompile(`(?i)\bdoc:([0-9a-f]{8})\b`)
	refSourcesLineRe = regexp.MustCompile(`(?i)\[DOC:\s*([0-9a-f]{8})\s*\]`)
	refLetterRe      = regexp.MustCompile(`\[([A-Z])\]`)

	refusalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*i\s+don'?t\s+know`),
		regexp.MustCompile(`(?i)does\s+not\s+contain\s+the\s+answer`),
		regexp.MustCompile(`(?i)cannot\s+find\s+(this|that|the)\s+information`),
		regexp.MustCompile(`(?i)no\s+relevant\s+information\s+(was\s+)?found`),
		regexp.MustCompile(`(?i)unable\s+to\s+answer`),
	}
)

// CitationPruner rewrites the synthesizer's raw answer into its final form:
// document references resolved to titles, unused documents dropped, and
// refusal answers forced into an abstain result, per §4.2.8.
type CitationPruner struct {
	docs DocumentTitleFetcher
}

// NewCitationPruner creates a CitationPruner.
func NewCitationPruner(docs DocumentTitleFetcher) *CitationPruner {
	return &CitationPruner{docs: docs}
}

// Run implements Node.
func (c *CitationPruner) Run(ctx context.Context, s State) (State, error) {
	if s.Action == model.ActionAbstain {
		return s, nil
	}

	body, contribBlock := splitContributionBlock(s.Answer)

	if isRefusal(body) {
		s.Action = model.ActionAbstain
		s.DocIDs = nil
		s.Pages = nil
		s.Citations = nil
		s.DocMap = nil
		if s.Confidence > citationPrunerAbstainCap {
			s.Confidence = citationPrunerAbstainCap
		}
		return s, nil
	}

	titles := make(map[string]string, len(s.DocIDs))
	for _, id := range s.DocIDs {
		doc, err := c.docs.GetByID(ctx, id)
		if err != nil {
			return s, fmt.Errorf("graph.CitationPruner: resolve title: %w", err)
		}
		titles[id] = doc.Title
	}

	prefixToDoc := make(map[string]string, len(s.DocIDs))
	for _, id := range s.DocIDs {
		prefixToDoc[docPrefix(id)] = id
	}

	prose, sourceLines := splitSourcesSection(body)

	used := make(map[string]bool)
	markUsed := func(prefix string) {
		if id, ok := prefixToDoc[prefix]; ok {
			used[id] = true
		}
	}
	for _, m := range refBracketDocRe.FindAllStringSubmatch(prose, -1) {
		markUsed(strings.ToLower(m[1]))
	}
	for _, m := range refBareDocRe.FindAllStringSubmatch(prose, -1) {
		markUsed(strings.ToLower(m[1]))
	}
	for _, m := range refDocumentRe.FindAllStringSubmatch(prose, -1) {
		markUsed(strings.ToLower(m[1]))
	}
	for _, m := range refDocColonRe.FindAllStringSubmatch(prose, -1) {
		markUsed(strings.ToLower(m[1]))
	}
	for _, m := range refLetterRe.FindAllStringSubmatch(prose, -1) {
		if prefix, ok := s.LetterToDocPrefix[m[1]]; ok {
			markUsed(prefix)
		}
	}
	// A Sources line carrying a letter is only "used" if that letter was
	// actually cited in prose above; a bare "[DOC: prefix]" line with no
	// letter has no other citation signal, so its presence is the signal.
	for _, line := range sourceLines {
		if refLetterRe.MatchString(line) {
			continue
		}
		if m := refSourcesLineRe.FindStringSubmatch(line); m != nil {
			markUsed(strings.ToLower(m[1]))
		}
	}

	rewritten := rewriteDocReferences(body, titles, prefixToDoc)
	rewritten = rewriteSourcesSection(rewritten, s.LetterToDocPrefix, prefixToDoc, titles, used)

	var finalAnswer strings.Builder
	finalAnswer.WriteString(strings.TrimRight(rewritten, "\n"))
	if contribBlock != "" {
		finalAnswer.WriteString("\n\n")
		finalAnswer.WriteString(contribBlock)
	}
	s.Answer = finalAnswer.String()

	s.DocMap = buildDocMap(s.DocIDs, titles, used)
	s.DocIDs = filterUsed(s.DocIDs, used)
	s.Citations = filterCitationsByPrefix(s.Citations, prefixToDoc, used)
	if s.DocID != "" && !used[s.DocID] {
		s.DocID = ""
	}

	return s, nil
}

// splitContributionBlock separates the synthesizer's preserved contribution
// block from the rewritable answer body. The block must survive verbatim.
func splitContributionBlock(answer string) (body, block string) {
	idx := strings.Index(answer, contributionBlockMarker)
	if idx < 0 {
		return answer, ""
	}
	return strings.TrimRight(answer[:idx], "\n"), answer[idx:]
}

func isRefusal(body string) bool {
	trimmed := strings.TrimSpace(body)
	for _, re := range refusalPatterns {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

func rewriteDocReferences(body string, titles map[string]string, prefixToDoc map[string]string) string {
	titleFor := func(prefix string) (string, bool) {
		id, ok := prefixToDoc[strings.ToLower(prefix)]
		if !ok {
			return "", false
		}
		t, ok := titles[id]
		return t, ok
	}

	body = refBracketDocRe.ReplaceAllStringFunc(body, func(m string) string {
		sub := refBracketDocRe.FindStringSubmatch(m)
		if t, ok := titleFor(sub[1]); ok {
			return "[" + t + "]"
		}
		return m
	})
	body = refDocumentRe.ReplaceAllStringFunc(body, func(m string) string {
		sub := refDocumentRe.FindStringSubmatch(m)
		if t, ok := titleFor(sub[1]); ok {
			return t
		}
		return m
	})
	body = refDocColonRe.ReplaceAllStringFunc(body, func(m string) string {
		sub := refDocColonRe.FindStringSubmatch(m)
		if t, ok := titleFor(sub[1]); ok {
			return t
		}
		return m
	})
	body = refBareDocRe.ReplaceAllStringFunc(body, func(m string) string {
		sub := refBareDocRe.FindStringSubmatch(m)
		if t, ok := titleFor(sub[1]); ok {
			return t
		}
		return m
	})
	return body
}

// splitSourcesSection separates the prose above a "Sources:" heading from
// the bullet lines beneath it, so usage-marking can judge a bare "[DOC:
// prefix]" source line on its own terms instead of letting every entry in
// the Sources list count as used merely by appearing there.
func splitSourcesSection(body string) (prose string, sourceLines []string) {
	lines := strings.Split(body, "\n")
	inSources := false
	var proseLines []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.EqualFold(trimmed, "Sources:") {
			inSources = true
			continue
		}
		if !inSources {
			proseLines = append(proseLines, line)
			continue
		}
		if trimmed == "" {
			inSources = false
			continue
		}
		sourceLines = append(sourceLines, line)
	}
	return strings.Join(proseLines, "\n"), sourceLines
}

// rewriteSourcesSection rebuilds the "Sources:" list, keeping only letters or
// bare "[DOC: prefix]" references whose resolved document survived pruning,
// rendered as "- [A] Title" or "- [DOC: prefix] Title" respectively.
func rewriteSourcesSection(body string, letterToDocPrefix, prefixToDoc map[string]string, titles map[string]string, used map[string]bool) string {
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	inSources := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.EqualFold(trimmed, "Sources:") {
			inSources = true
			out = append(out, line)
			continue
		}
		if !inSources {
			out = append(out, line)
			continue
		}

		if m := refLetterRe.FindStringSubmatch(line); m != nil {
			letter := m[1]
			prefix, ok := letterToDocPrefix[letter]
			if !ok {
				continue
			}
			id, ok := prefixToDoc[prefix]
			if !ok || !used[id] {
				continue
			}
			out = append(out, fmt.Sprintf("- [%s] %s", letter, titles[id]))
			continue
		}

		if m := refSourcesLineRe.FindStringSubmatch(line); m != nil {
			prefix := strings.ToLower(m[1])
			id, ok := prefixToDoc[prefix]
			if !ok || !used[id] {
				continue
			}
			out = append(out, fmt.Sprintf("- [DOC: %s] %s", prefix, titles[id]))
			continue
		}

		if trimmed == "" {
			inSources = false
			out = append(out, line)
			continue
		}
		// non-citation line inside the sources block; drop it.
	}

	return strings.Join(out, "\n")
}

func filterUsed(docIDs []string, used map[string]bool) []string {
	out := make([]string, 0, len(docIDs))
	for _, id := range docIDs {
		if used[id] {
			out = append(out, id)
		}
	}
	return out
}

func filterCitationsByPrefix(citations []string, prefixToDoc map[string]string, used map[string]bool) []string {
	out := make([]string, 0, len(citations))
	for _, c := range citations {
		keep := false
		for prefix, id := range prefixToDoc {
			if used[id] && strings.Contains(c, "doc:"+prefix) {
				keep = true
				break
			}
		}
		if keep {
			out = append(out, c)
		}
	}
	return out
}

func buildDocMap(docIDs []string, titles map[string]string, used map[string]bool) []DocMapEntry {
	out := make([]DocMapEntry, 0, len(docIDs))
	for _, id := range docIDs {
		out = append(out, DocMapEntry{DocID: id, Title: titles[id], Used: used[id]})
	}
	return out
}
