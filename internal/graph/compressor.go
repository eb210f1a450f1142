package graph

import (
	"context"
	"strings"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

const compressorMaxChunkChars = 1200

// Compressor reduces evidence to a bulleted summary, truncating each chunk
// to bound prompt size, per §4.2.4. Numbers and proper nouns are preserved
// verbatim since the summary is a direct excerpt, never a paraphrase.
type Compressor struct{}

// NewCompressor creates a Compressor.
func NewCompressor() *Compressor { return &Compressor{} }

// Run implements Node.
func (c *Compressor) Run(ctx context.Context, s State) (State, error) {
	s.Notes = buildNotes(s.Evidence)
	return s, nil
}

func buildNotes(evidence []service.Candidate) string {
	var sb strings.Builder
	for _, c := range evidence {
		text := strings.TrimSpace(truncateChunk(c.Text))
		if text == "" {
			continue
		}
		sb.WriteString("- ")
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncateChunk(text string) string {
	if len(text) <= compressorMaxChunkChars {
		return text
	}
	return text[:compressorMaxChunkChars]
}
