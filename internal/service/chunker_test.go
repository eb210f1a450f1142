package service

import (
	"context"
	"strings"
	"testing"
)

func TestChunker_BasicChunking(t *testing.T) {
	svc := NewChunkerService(12, 4) // small word budget for testing

	var paragraphs []string
	for i := 0; i < 20; i++ {
		paragraphs = append(paragraphs, "This is a test paragraph with enough words to contribute to the word count. It has multiple sentences. Each sentence adds to the overall length of the paragraph.")
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks, err := svc.Chunk(context.Background(), text, 4, 4, false)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}

	if len(chunks) < 2 {
		t.Errorf("expected at least 2 chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if c.Text == "" {
			t.Errorf("chunk[%d] has empty text", i)
		}
		if c.ContentHash == "" {
			t.Errorf("chunk[%d] has empty hash", i)
		}
		if c.PageStart != 4 {
			t.Errorf("chunk[%d] PageStart = %d, want 4", i, c.PageStart)
		}
	}
}

func TestChunker_OverlapApplied(t *testing.T) {
	svc := NewChunkerService(15, 5)

	var paragraphs []string
	for i := 0; i < 15; i++ {
		paragraphs = append(paragraphs, "Alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu nu xi omicron pi rho sigma tau upsilon.")
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks, err := svc.Chunk(context.Background(), text, 1, 1, false)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}

	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks for overlap test, got %d", len(chunks))
	}

	words0 := strings.Fields(chunks[0].Text)
	if len(words0) > 5 {
		lastFew := strings.Join(words0[len(words0)-3:], " ")
		if !strings.Contains(chunks[1].Text, lastFew) {
			t.Errorf("chunk[1] should contain overlap from chunk[0], looking for %q in chunk[1]", lastFew)
		}
	}
}

func TestChunker_SHA256Hash(t *testing.T) {
	svc := NewChunkerService(25, 12)

	text := "This is a simple document with just enough text to form a single chunk."
	chunks, err := svc.Chunk(context.Background(), text, 1, 1, false)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least 1 chunk")
	}
	if len(chunks[0].ContentHash) != 64 {
		t.Errorf("ContentHash length = %d, want 64", len(chunks[0].ContentHash))
	}

	chunks2, _ := svc.Chunk(context.Background(), text, 2, 2, false)
	if chunks[0].ContentHash != chunks2[0].ContentHash {
		t.Error("same content should produce same hash")
	}
}

func TestChunker_EmptyText(t *testing.T) {
	svc := NewChunkerService(25, 12)

	_, err := svc.Chunk(context.Background(), "", 1, 1, false)
	if err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestChunker_WhitespaceOnly(t *testing.T) {
	svc := NewChunkerService(25, 12)

	_, err := svc.Chunk(context.Background(), "   \n\n\t  \n  ", 1, 1, false)
	if err == nil {
		t.Fatal("expected error for whitespace-only text")
	}
}

func TestChunker_SectionTitleExtraction(t *testing.T) {
	svc := NewChunkerService(25, 12)

	text := `# Introduction

This document covers the legal framework for data privacy compliance.

## Section 1: GDPR

The General Data Protection Regulation applies to all EU citizens.

## Section 2: CCPA

California Consumer Privacy Act provides additional protections.`

	chunks, err := svc.Chunk(context.Background(), text, 1, 1, false)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least 1 chunk")
	}

	hasTitle := false
	for _, c := range chunks {
		if c.Section != "" {
			hasTitle = true
			break
		}
	}
	if !hasTitle {
		t.Error("expected at least one chunk to have a section title")
	}
}

func TestChunker_NoEmptyChunks(t *testing.T) {
	svc := NewChunkerService(12, 4)

	text := "First paragraph.\n\n\n\n\n\nSecond paragraph.\n\n\n\n\n\nThird paragraph."
	chunks, err := svc.Chunk(context.Background(), text, 1, 1, false)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}

	for i, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			t.Errorf("chunk[%d] is empty after trim", i)
		}
	}
}

func TestChunker_LargeParagraphSplit(t *testing.T) {
	svc := NewChunkerService(10, 3)

	var sentences []string
	for i := 0; i < 30; i++ {
		sentences = append(sentences, "This is sentence number that contains enough words to matter for word estimation.")
	}
	text := strings.Join(sentences, " ")

	chunks, err := svc.Chunk(context.Background(), text, 1, 1, false)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}

	if len(chunks) < 2 {
		t.Errorf("expected large paragraph to be split into multiple chunks, got %d", len(chunks))
	}
}

func TestChunker_SingleParagraph(t *testing.T) {
	svc := NewChunkerService(25, 12)

	text := "A simple short paragraph that fits in one chunk."
	chunks, err := svc.Chunk(context.Background(), text, 1, 1, false)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestChunker_DefaultParameters(t *testing.T) {
	svc := NewChunkerService(0, -1)
	if svc.wordSize != 25 {
		t.Errorf("wordSize = %d, want 25 (default)", svc.wordSize)
	}
	if svc.overlapWord != 12 {
		t.Errorf("overlapWord = %d, want 12 (default)", svc.overlapWord)
	}
}

func TestExtractSectionTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"# Introduction", "Introduction"},
		{"## Section 1", "Section 1"},
		{"### Subsection", "Subsection"},
		{"Normal paragraph", ""},
		{"", ""},
	}

	for _, tt := range tests {
		got := extractSectionTitle(tt.input)
		if got != tt.want {
			t.Errorf("extractSectionTitle(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSha256Hash(t *testing.T) {
	hash := sha256Hash("hello world")
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(hash))
	}
	if sha256Hash("hello world") != hash {
		t.Error("same input should produce same hash")
	}
	if sha256Hash("goodbye world") == hash {
		t.Error("different input should produce different hash")
	}
}
