package service

import (
	"fmt"
	"testing"
)

func benchEvidence(n int) []Candidate {
	candidates := make([]Candidate, n)
	for i := 0; i < n; i++ {
		page := (i % 10) + 1
		candidates[i] = Candidate{
			ChunkID:    fmt.Sprintf("chunk-%d", i),
			DocumentID: fmt.Sprintf("doc-%d", i%3),
			Text:       "Confidential information obligations survive termination for five years.",
			PageStart:  intPtr(page),
			PageEnd:    intPtr(page),
			Lex:        0.6,
			Vec:        0.72,
			CE:         0.4,
		}
	}
	return candidates
}

func BenchmarkBuildSynthesisPrompt(b *testing.B) {
	evidence, _, _, _ := AssignLetters(benchEvidence(24), nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = BuildSynthesisPrompt("What are the confidentiality obligations?", evidence)
	}
}

func BenchmarkBuildContributionBlock(b *testing.B) {
	evidence, _, _, _ := AssignLetters(benchEvidence(24), nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = BuildContributionBlock(evidence)
	}
}

func BenchmarkAssignLetters(b *testing.B) {
	candidates := benchEvidence(24)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _, _ = AssignLetters(candidates, nil)
	}
}
