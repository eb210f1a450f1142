package service

import "errors"

// Sentinel error kinds. Checked with errors.Is at call boundaries.
var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrEmbeddingFailed  = errors.New("embedding failed")
	ErrVectorParse      = errors.New("malformed persisted vector")
	ErrLLMUnavailable   = errors.New("llm unavailable")
	ErrUnsupportedInput = errors.New("unsupported input type")
	ErrDocumentNotFound = errors.New("document not found")
)
