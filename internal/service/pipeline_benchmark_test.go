package service

import (
	"context"
	"testing"

	"github.com/scmclimited/deep-rag-core/internal/model"
)

type benchDocRepo struct{ doc *model.Document }

func (r *benchDocRepo) Create(_ context.Context, doc *model.Document) error {
	doc.ID = "bench-doc"
	return nil
}
func (r *benchDocRepo) GetByID(_ context.Context, _ string) (*model.Document, error) {
	return r.doc, nil
}
func (r *benchDocRepo) UpdateStatus(_ context.Context, _ string, _ model.IndexStatus) error {
	return nil
}
func (r *benchDocRepo) UpdateChecksum(_ context.Context, _ string, _ string) error { return nil }
func (r *benchDocRepo) UpdateChunkCount(_ context.Context, _ string, _ int) error  { return nil }
func (r *benchDocRepo) ListDocuments(_ context.Context, _ int) ([]model.Document, error) {
	return nil, nil
}
func (r *benchDocRepo) Delete(_ context.Context, _ string) error { return nil }

type benchPDF struct{ pages []ExtractedPage }

func (p *benchPDF) ExtractPDF(_ context.Context, _ string) ([]ExtractedPage, error) {
	return p.pages, nil
}

type benchOCR struct{}

func (o *benchOCR) OCRPage(_ context.Context, _ string, _ int) (string, error) { return "", nil }

type benchEmbedder struct{}

func (e *benchEmbedder) EmbedAndStore(_ context.Context, _ string, _ []IngestChunk) error {
	return nil
}

type benchAudit struct{}

func (a *benchAudit) Log(_ context.Context, _ string, _ *string, _, _ string) error {
	return nil
}

func BenchmarkPipeline_ProcessDocument(b *testing.B) {
	doc := &model.Document{
		ID:          "bench-doc",
		Title:       "Bench Document",
		SourcePath:  "uploads/bench-doc.pdf",
		MimeType:    "application/pdf",
		IndexStatus: model.IndexPending,
	}

	text := "The parties agree to maintain strict confidentiality of all proprietary information " +
		"exchanged under this agreement, including technical specifications, financial terms, and " +
		"any other materials marked as confidential at the time of disclosure."
	pages := []ExtractedPage{
		{Number: 1, Text: text},
		{Number: 2, Text: text},
	}

	svc := NewPipelineService(
		&benchDocRepo{doc: doc},
		&benchPDF{pages: pages},
		&benchOCR{},
		NewChunkerService(25, 12),
		&benchEmbedder{},
		&benchAudit{},
	)

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = svc.ProcessDocument(ctx, "bench-doc")
	}
}
