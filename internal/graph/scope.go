package graph

import "github.com/scmclimited/deep-rag-core/internal/service"

// resolveScope builds the retrieval scope set: selected_doc_ids ∪
// uploaded_doc_ids ∪ {doc_id} when present, per §4.2.3.
func resolveScope(s State) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, id := range s.SelectedDocIDs {
		add(id)
	}
	for _, id := range s.UploadedDocIDs {
		add(id)
	}
	add(s.DocID)
	return out
}

// scopeExplicit reports whether the caller supplied any explicit document
// scope at all — used by the synthesizer's confidence-threshold choice.
func scopeExplicit(s State) bool {
	return len(s.SelectedDocIDs) > 0 || len(s.UploadedDocIDs) > 0 || s.DocID != ""
}

// mergeEvidence deduplicates by chunk-id, keeping each chunk's first-seen
// scores and preserving prior-evidence order ahead of newly retrieved
// chunks, per the "merged deduplicated by chunk-id" contract of §4.2.3/6.
func mergeEvidence(prior, fresh []service.Candidate) []service.Candidate {
	seen := make(map[string]bool, len(prior)+len(fresh))
	out := make([]service.Candidate, 0, len(prior)+len(fresh))
	for _, c := range prior {
		if seen[c.ChunkID] {
			continue
		}
		seen[c.ChunkID] = true
		out = append(out, c)
	}
	for _, c := range fresh {
		if seen[c.ChunkID] {
			continue
		}
		seen[c.ChunkID] = true
		out = append(out, c)
	}
	return out
}

// observedDocIDs returns the unique set of document ids present in evidence,
// in first-seen order.
func observedDocIDs(evidence []service.Candidate) []string {
	seen := make(map[string]bool, len(evidence))
	var out []string
	for _, c := range evidence {
		if c.DocumentID == "" || seen[c.DocumentID] {
			continue
		}
		seen[c.DocumentID] = true
		out = append(out, c.DocumentID)
	}
	return out
}
