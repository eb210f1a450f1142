package model

import "time"

// Action is the gating decision produced by the confidence model.
type Action string

const (
	ActionAbstain Action = "abstain"
	ActionClarify Action = "clarify"
	ActionAnswer  Action = "answer"
)

// Query represents one user question put to the graph.
type Query struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	QueryText string    `json:"queryText"`
	DocIDs    []string  `json:"docIds,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Answer is the final, possibly citation-pruned, response to a Query.
type Answer struct {
	ID              string    `json:"id"`
	QueryID         string    `json:"queryId"`
	Action          Action    `json:"action"`
	AnswerText      string    `json:"answerText"`
	ConfidenceScore float64   `json:"confidenceScore"`
	Iterations      int       `json:"iterations"`
	Citations       []Citation `json:"citations,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Citation links an answer sentence/claim back to a source chunk.
type Citation struct {
	AnswerID       string  `json:"answerId"`
	DocumentID     string  `json:"documentId"`
	ChunkID        string  `json:"chunkId"`
	RelevanceScore float64 `json:"relevanceScore"`
	Excerpt        string  `json:"excerpt,omitempty"`
	CitationIndex  int     `json:"citationIndex"`
}
