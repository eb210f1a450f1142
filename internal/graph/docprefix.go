package graph

import "strings"

// docPrefix mirrors service.docPrefix: the first 8 hex characters of a
// document-id with dashes stripped, lowercased — the short form the LLM
// cites documents by in prompts and answers.
func docPrefix(docID string) string {
	id := strings.ReplaceAll(docID, "-", "")
	if len(id) >= 8 {
		return strings.ToLower(id[:8])
	}
	return strings.ToLower(id)
}
