package service

import "strings"

// SanitizeLexicalQuery prepares raw query text for the tsquery path: it
// replaces "&" with the word "and", strips characters that are special to
// tsquery syntax, drops leading bullet/dash characters, and normalizes
// whitespace. The original, unsanitized query is still used for embedding.
func SanitizeLexicalQuery(raw string) string {
	s := strings.ReplaceAll(raw, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '!', '|', ':', '*', '\'', '"':
			continue
		default:
			b.WriteRune(r)
		}
	}
	s = b.String()

	s = strings.TrimLeft(s, "-•* \t")
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// collapseSpecialChars additionally folds runs of punctuation down to a
// single space, used by the critic when sanitizing LLM-generated
// refinement sub-queries (which can contain stray markdown bullets).
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
