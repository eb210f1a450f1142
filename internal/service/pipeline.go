package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/scmclimited/deep-rag-core/internal/model"
)

var (
	processingMu sync.Mutex
	processing   = make(map[string]bool)
)

// minOCRChars is the per-page text threshold below which a page is sent to
// OCR instead of being trusted as extracted text, per §4.4 step 2.
const minOCRChars = 20

// ExtractedPage is one page of dispatched extraction: text plus any
// embedded images worth chunking separately.
type ExtractedPage struct {
	Number int
	Text   string
	IsOCR  bool
	Images []ExtractedImage
}

// ExtractedImage is an embedded image with its figure caption, if any.
type ExtractedImage struct {
	Path    string
	Caption string
}

// PDFExtractor extracts per-page text and embedded images from a PDF.
type PDFExtractor interface {
	ExtractPDF(ctx context.Context, path string) ([]ExtractedPage, error)
}

// OCRClient extracts text from a page image when native extraction yields
// too little text.
type OCRClient interface {
	OCRPage(ctx context.Context, path string, pageNumber int) (string, error)
}

// DocumentRepository abstracts document metadata persistence.
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, id string) (*model.Document, error)
	UpdateStatus(ctx context.Context, id string, status model.IndexStatus) error
	UpdateChecksum(ctx context.Context, id, checksum string) error
	UpdateChunkCount(ctx context.Context, id string, count int) error
	ListDocuments(ctx context.Context, limit int) ([]model.Document, error)
	Delete(ctx context.Context, id string) error
}

// AuditLogger abstracts audit logging.
type AuditLogger interface {
	Log(ctx context.Context, action string, threadID *string, resourceID, resourceType string) error
}

// JobPublisher dispatches an ingestion job to an async worker instead of
// running it inline. Optional: a PipelineService with no publisher runs
// ProcessDocument synchronously when Enqueue is called.
type JobPublisher interface {
	Publish(ctx context.Context, docID string) error
}

// PipelineService orchestrates the document ingestion pipeline: dispatch by
// extension, per-page extraction and OCR, chunking, multimodal embedding,
// and a transactional write of the document and its chunks.
type PipelineService struct {
	docRepo   DocumentRepository
	pdf       PDFExtractor
	ocr       OCRClient
	chunker   *ChunkerService
	embedder  Embedder
	audit     AuditLogger
	publisher JobPublisher
}

// SetPublisher attaches an async job publisher. Enqueue dispatches through
// it instead of running the pipeline inline, once set.
func (s *PipelineService) SetPublisher(p JobPublisher) { s.publisher = p }

// Embedder abstracts vector embedding and storage for ingest chunks.
type Embedder interface {
	EmbedAndStore(ctx context.Context, documentID string, chunks []IngestChunk) error
}

// NewPipelineService creates a PipelineService with all required dependencies.
func NewPipelineService(
	docRepo DocumentRepository,
	pdf PDFExtractor,
	ocr OCRClient,
	chunker *ChunkerService,
	embedder Embedder,
	audit AuditLogger,
) *PipelineService {
	return &PipelineService{
		docRepo:  docRepo,
		pdf:      pdf,
		ocr:      ocr,
		chunker:  chunker,
		embedder: embedder,
		audit:    audit,
	}
}

// ProcessDocument runs the full ingestion pipeline for a document already
// registered (Pending) in the document repository. Called through Enqueue
// (inline or via the job publisher) after Ingest has registered the document.
func (s *PipelineService) ProcessDocument(ctx context.Context, docID string) error {
	if !s.claimProcessing(docID) {
		return fmt.Errorf("pipeline.ProcessDocument: document %s is already being processed", docID)
	}
	defer s.releaseProcessing(docID)

	slog.Info("pipeline starting", "document_id", docID)

	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		return fmt.Errorf("pipeline.ProcessDocument: get document: %w", err)
	}

	if err := s.docRepo.UpdateStatus(ctx, docID, model.IndexProcessing); err != nil {
		return fmt.Errorf("pipeline.ProcessDocument: set processing: %w", err)
	}

	pages, err := s.extractPages(ctx, doc)
	if err != nil {
		s.failDocument(ctx, docID, "extract_failed", err)
		return fmt.Errorf("pipeline.ProcessDocument: extract: %w", err)
	}
	slog.Info("pipeline extracted pages", "document_id", docID, "page_count", len(pages))

	chunks, err := s.chunkPages(ctx, pages)
	if err != nil {
		s.failDocument(ctx, docID, "chunk_failed", err)
		return fmt.Errorf("pipeline.ProcessDocument: chunk: %w", err)
	}
	slog.Info("pipeline chunks created", "document_id", docID, "chunk_count", len(chunks))

	fullText := concatPageText(pages)
	hash := sha256.Sum256([]byte(fullText))
	checksum := hex.EncodeToString(hash[:])
	if err := s.docRepo.UpdateChecksum(ctx, docID, checksum); err != nil {
		slog.Warn("pipeline failed to store checksum", "document_id", docID, "error", err)
	}

	if err := s.embedder.EmbedAndStore(ctx, docID, chunks); err != nil {
		s.failDocument(ctx, docID, "embed_failed", err)
		return fmt.Errorf("pipeline.ProcessDocument: embed: %w", err)
	}

	if err := s.docRepo.UpdateStatus(ctx, docID, model.IndexIndexed); err != nil {
		return fmt.Errorf("pipeline.ProcessDocument: set indexed: %w", err)
	}
	if err := s.docRepo.UpdateChunkCount(ctx, docID, len(chunks)); err != nil {
		slog.Warn("pipeline failed to update chunk count", "document_id", docID, "error", err)
	}

	if s.audit != nil {
		if err := s.audit.Log(ctx, model.AuditDocumentIngested, nil, doc.ID, "document"); err != nil {
			slog.Warn("pipeline audit log failed", "document_id", docID, "error", err)
		}
	}

	slog.Info("pipeline completed", "document_id", docID, "chunk_count", len(chunks))
	return nil
}

// extractPages dispatches on the document's mime type / extension to the
// PDF or image handler, per §4.4 step 1. Text sources are not extracted
// here and return an error.
func (s *PipelineService) extractPages(ctx context.Context, doc *model.Document) ([]ExtractedPage, error) {
	switch classifySource(doc.MimeType, doc.SourcePath) {
	case model.ContentPDFText:
		if s.pdf == nil {
			return nil, fmt.Errorf("pipeline.extractPages: no PDF extractor configured")
		}
		pages, err := s.pdf.ExtractPDF(ctx, doc.SourcePath)
		if err != nil {
			return nil, err
		}
		return s.ocrThinPages(ctx, doc.SourcePath, pages)
	case model.ContentImage:
		caption, err := s.ocr.OCRPage(ctx, doc.SourcePath, 1)
		if err != nil {
			return nil, err
		}
		return []ExtractedPage{{Number: 1, Text: caption, IsOCR: true, Images: []ExtractedImage{{Path: doc.SourcePath}}}}, nil
	default:
		return nil, fmt.Errorf("pipeline.extractPages: text documents are read by the caller before ingest")
	}
}

// ocrThinPages replaces any page with fewer than minOCRChars of extracted
// text with an OCR pass, per §4.4 step 2.
func (s *PipelineService) ocrThinPages(ctx context.Context, sourcePath string, pages []ExtractedPage) ([]ExtractedPage, error) {
	if s.ocr == nil {
		return pages, nil
	}
	out := make([]ExtractedPage, len(pages))
	for i, p := range pages {
		if len(strings.TrimSpace(p.Text)) < minOCRChars {
			ocrText, err := s.ocr.OCRPage(ctx, sourcePath, p.Number)
			if err != nil {
				slog.Warn("pipeline OCR fallback failed", "page", p.Number, "error", err)
				out[i] = p
				continue
			}
			p.Text = ocrText
			p.IsOCR = true
		}
		out[i] = p
	}
	return out, nil
}

// classifySource maps a mime type / path to the dispatch bucket used by
// extractPages.
func classifySource(mimeType, path string) model.ContentType {
	switch {
	case mimeType == "application/pdf":
		return model.ContentPDFText
	case strings.HasPrefix(mimeType, "image/"):
		return model.ContentImage
	case mimeType == "text/plain":
		return model.ContentText
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return model.ContentPDFText
	case ".png", ".jpg", ".jpeg":
		return model.ContentImage
	default:
		return model.ContentText
	}
}

// chunkPages runs each page's text through the chunker and attaches any
// figure chunks for embedded images, per §4.4 step 3.
func (s *PipelineService) chunkPages(ctx context.Context, pages []ExtractedPage) ([]IngestChunk, error) {
	var all []IngestChunk
	for _, p := range pages {
		textChunks, err := s.chunker.Chunk(ctx, p.Text, p.Number, p.Number, p.IsOCR)
		if err != nil {
			slog.Warn("pipeline skipping unchunkable page", "page", p.Number, "error", err)
			continue
		}
		all = append(all, textChunks...)

		for _, img := range p.Images {
			caption := strings.TrimSpace(img.Caption)
			if caption == "" {
				continue
			}
			all = append(all, IngestChunk{
				Text:        caption,
				PageStart:   p.Number,
				PageEnd:     p.Number,
				IsFigure:    true,
				ContentType: model.ContentMultimodal,
				ImagePath:   img.Path,
				ContentHash: sha256Hash(caption + img.Path),
			})
		}
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("pipeline.chunkPages: no chunks produced")
	}
	return all, nil
}

func concatPageText(pages []ExtractedPage) string {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func (s *PipelineService) claimProcessing(docID string) bool {
	processingMu.Lock()
	defer processingMu.Unlock()
	if processing[docID] {
		return false
	}
	processing[docID] = true
	return true
}

func (s *PipelineService) releaseProcessing(docID string) {
	processingMu.Lock()
	defer processingMu.Unlock()
	delete(processing, docID)
}

// failDocument sets the document status to Failed with the failing stage
// logged; ingestion temp state for this document is the caller's
// responsibility to clean up.
func (s *PipelineService) failDocument(ctx context.Context, docID, stage string, origErr error) {
	_ = s.docRepo.UpdateStatus(ctx, docID, model.IndexFailed)
	slog.Error("pipeline stage failed", "document_id", docID, "stage", stage, "error", origErr)
}

// Ingest validates and registers a new document as Pending; it does not
// start processing (see Enqueue). The caller is expected to have already
// uploaded the source file to sourcePath.
func (s *PipelineService) Ingest(ctx context.Context, title, sourcePath, mimeType string, sizeBytes int) (string, error) {
	if !model.AllowedMimeTypes[mimeType] {
		return "", fmt.Errorf("pipeline.Ingest: unsupported mime type %q", mimeType)
	}
	if sizeBytes > model.MaxFileSizeBytes {
		return "", fmt.Errorf("pipeline.Ingest: file exceeds max size of %d bytes", model.MaxFileSizeBytes)
	}

	doc := &model.Document{
		Title:       title,
		SourcePath:  sourcePath,
		MimeType:    mimeType,
		SizeBytes:   sizeBytes,
		IndexStatus: model.IndexPending,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		return "", fmt.Errorf("pipeline.Ingest: create: %w", err)
	}

	return doc.ID, nil
}

// Enqueue dispatches ProcessDocument for docID through the configured
// JobPublisher, or runs it synchronously if none is set. Callers that want
// a non-blocking ingest response run this in their own goroutine.
func (s *PipelineService) Enqueue(ctx context.Context, docID string) error {
	if s.publisher != nil {
		return s.publisher.Publish(ctx, docID)
	}
	return s.ProcessDocument(ctx, docID)
}

// WaitIndexed polls the document repository until the document reaches
// Indexed or Failed status, or ctx is cancelled. Used by synchronous callers
// (tests, CLIs) that need ingestion to have completed before querying.
func (s *PipelineService) WaitIndexed(ctx context.Context, docID string, pollInterval time.Duration) (*model.Document, error) {
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		doc, err := s.docRepo.GetByID(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("pipeline.WaitIndexed: %w", err)
		}
		if doc.IndexStatus == model.IndexIndexed || doc.IndexStatus == model.IndexFailed {
			return doc, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("pipeline.WaitIndexed: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
