package service

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/scmclimited/deep-rag-core/internal/model"
)

// IngestChunk is a chunk candidate emitted by the chunker, one step before
// embedding and storage. It mirrors the 8-tuple of §4.4 step 3.
type IngestChunk struct {
	Text        string
	PageStart   int
	PageEnd     int
	Section     string
	IsOCR       bool
	IsFigure    bool
	ContentType model.ContentType
	ImagePath   string
	ContentHash string
}

// ChunkerService splits page text into overlapping word-budgeted chunks.
// The budget (25 words, 12-word overlap) is conservative enough to keep
// every chunk under CLIP's 77-token limit after multimodal embedding.
type ChunkerService struct {
	wordSize    int
	overlapWord int
}

// NewChunkerService creates a ChunkerService with the given word budget.
func NewChunkerService(wordSize, overlapWord int) *ChunkerService {
	if wordSize <= 0 {
		wordSize = 25
	}
	if overlapWord < 0 || overlapWord >= wordSize {
		overlapWord = 12
	}
	return &ChunkerService{wordSize: wordSize, overlapWord: overlapWord}
}

// Chunk splits one page's text into overlapping word-budgeted chunks by
// heading/paragraph boundary, per §4.4 step 3.
func (s *ChunkerService) Chunk(ctx context.Context, text string, pageStart, pageEnd int, isOCR bool) ([]IngestChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("service.Chunk: text is empty")
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("service.Chunk: no content after splitting")
	}

	segments := s.buildSegments(paragraphs)
	overlapped := s.applyOverlap(segments)

	chunks := make([]IngestChunk, 0, len(overlapped))
	for _, seg := range overlapped {
		content := strings.TrimSpace(seg.content)
		if content == "" {
			continue
		}
		chunks = append(chunks, IngestChunk{
			Text:        content,
			PageStart:   pageStart,
			PageEnd:     pageEnd,
			Section:     seg.sectionTitle,
			IsOCR:       isOCR,
			ContentType: model.ContentPDFText,
			ContentHash: sha256Hash(content),
		})
	}

	return chunks, nil
}

type segment struct {
	content      string
	sectionTitle string
}

// buildSegments merges small paragraphs and splits large ones to fit the
// word budget.
func (s *ChunkerService) buildSegments(paragraphs []string) []segment {
	var segments []segment
	var current strings.Builder
	currentSection := ""

	for _, para := range paragraphs {
		if title := extractSectionTitle(para); title != "" {
			currentSection = title
		}

		paraWords := wordCount(para)
		currentWords := wordCount(current.String())

		if currentWords > 0 && currentWords+paraWords > s.wordSize {
			segments = append(segments, segment{content: current.String(), sectionTitle: currentSection})
			current.Reset()
		}

		if paraWords > s.wordSize {
			if current.Len() > 0 {
				segments = append(segments, segment{content: current.String(), sectionTitle: currentSection})
				current.Reset()
			}
			for _, sub := range splitLargeParagraph(para, s.wordSize) {
				segments = append(segments, segment{content: sub, sectionTitle: currentSection})
			}
			continue
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(para)
	}

	if current.Len() > 0 {
		segments = append(segments, segment{content: current.String(), sectionTitle: currentSection})
	}

	return segments
}

// applyOverlap prepends the last overlapWord words of each segment to the
// next segment's content.
func (s *ChunkerService) applyOverlap(segments []segment) []segment {
	if len(segments) <= 1 {
		return segments
	}

	result := make([]segment, len(segments))
	result[0] = segments[0]

	for i := 1; i < len(segments); i++ {
		tail := lastNWords(segments[i-1].content, s.overlapWord)
		if tail != "" {
			result[i] = segment{
				content:      tail + " " + segments[i].content,
				sectionTitle: segments[i].sectionTitle,
			}
		} else {
			result[i] = segments[i]
		}
	}

	return result
}

// splitParagraphs splits text on blank lines into paragraphs.
func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	var result []string
	for _, p := range raw {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// splitLargeParagraph splits a paragraph exceeding wordSize into
// sentence-boundary-aware sub-chunks.
func splitLargeParagraph(para string, wordSize int) []string {
	sentences := splitSentences(para)
	var chunks []string
	var current strings.Builder

	for _, sent := range sentences {
		sentWords := wordCount(sent)
		currentWords := wordCount(current.String())

		if currentWords > 0 && currentWords+sentWords > wordSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	if len(chunks) == 0 && len(para) > 0 {
		chunks = splitByWords(para, wordSize)
	}

	return chunks
}

// splitSentences does a basic sentence split on ". ", "! ", "? ".
func splitSentences(text string) []string {
	var sentences []string
	current := strings.Builder{}

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}
	return sentences
}

// splitByWords splits text into chunks of exactly wordSize words.
func splitByWords(text string, wordSize int) []string {
	words := strings.Fields(text)
	if wordSize <= 0 {
		wordSize = 1
	}

	var chunks []string
	for i := 0; i < len(words); i += wordSize {
		end := i + wordSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}

// extractSectionTitle detects markdown-style headers (# Title, ## Section, etc).
func extractSectionTitle(para string) string {
	trimmed := strings.TrimSpace(para)
	if strings.HasPrefix(trimmed, "#") {
		title := strings.TrimLeft(trimmed, "# ")
		if title != "" {
			return title
		}
	}
	return ""
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// lastNWords returns the last n words of text.
func lastNWords(text string, n int) string {
	words := strings.Fields(text)
	if n >= len(words) {
		return text
	}
	return strings.Join(words[len(words)-n:], " ")
}

func sha256Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
