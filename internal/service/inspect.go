package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/scmclimited/deep-rag-core/internal/model"
)

// ChunkStats is the document-structure diagnostics report: chunk counts by
// content type and the page range observed during ingestion.
type ChunkStats struct {
	Count             int
	ContentTypeCounts map[model.ContentType]int
	FirstPage         *int
	LastPage          *int
}

// ChunkStatsFetcher computes ChunkStats for a document's chunks.
type ChunkStatsFetcher interface {
	Stats(ctx context.Context, documentID string) (ChunkStats, error)
}

// DocumentLookup resolves a document by id or by title, for callers that
// accept either kind of identifier.
type DocumentLookup interface {
	GetByID(ctx context.Context, id string) (*model.Document, error)
	GetByTitle(ctx context.Context, title string) (*model.Document, error)
}

// InspectReport bundles a document's metadata with its ingestion
// diagnostics.
type InspectReport struct {
	Document model.Document
	Stats    ChunkStats
}

// InspectorService answers inspectDocument, resolving either a doc-id or a
// title and reporting the chunk-level diagnostics the original's
// diagnostics report surfaced.
type InspectorService struct {
	docs   DocumentLookup
	chunks ChunkStatsFetcher
}

// NewInspectorService creates an InspectorService.
func NewInspectorService(docs DocumentLookup, chunks ChunkStatsFetcher) *InspectorService {
	return &InspectorService{docs: docs, chunks: chunks}
}

// Inspect resolves docIDOrTitle by id first, falling back to an exact title
// match, and attaches the chunk diagnostics for whichever document it finds.
func (s *InspectorService) Inspect(ctx context.Context, docIDOrTitle string) (*InspectReport, error) {
	doc, err := s.docs.GetByID(ctx, docIDOrTitle)
	if err != nil {
		if !errors.Is(err, ErrDocumentNotFound) {
			return nil, fmt.Errorf("service.InspectorService.Inspect: %w", err)
		}
		doc, err = s.docs.GetByTitle(ctx, docIDOrTitle)
		if err != nil {
			return nil, fmt.Errorf("service.InspectorService.Inspect: %w", err)
		}
	}

	stats, err := s.chunks.Stats(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("service.InspectorService.Inspect: %w", err)
	}

	return &InspectReport{Document: *doc, Stats: stats}, nil
}
