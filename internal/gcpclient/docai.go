package gcpclient

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DocumentAIAdapter implements service.OCRClient using Document AI's
// synchronous ProcessDocument call against an inline (non-GCS) page image,
// for pages whose native text extraction falls short of minOCRChars.
type DocumentAIAdapter struct {
	client    *documentai.DocumentProcessorClient
	processor string
	project   string
	location  string
}

// NewDocumentAIAdapter creates a Document AI client. processor is the full
// resource name projects/{p}/locations/{l}/processors/{id} for an OCR
// processor; location is the Document AI multi-region ("us" or "eu").
func NewDocumentAIAdapter(ctx context.Context, project, location, processor string) (*DocumentAIAdapter, error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("gcpclient.NewDocumentAIAdapter: %w", err)
	}

	return &DocumentAIAdapter{
		client:    client,
		processor: processor,
		project:   project,
		location:  location,
	}, nil
}

// OCRPage sends the page image at path (a PNG/JPEG rendered from the source
// PDF page, or the original file for an image document) to Document AI and
// returns the extracted text. pageNumber is used only for log context; the
// adapter OCRs whatever single-page content path holds.
func (a *DocumentAIAdapter) OCRPage(ctx context.Context, path string, pageNumber int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("gcpclient.DocumentAIAdapter.OCRPage: read %s: %w", path, err)
	}

	req := &documentaipb.ProcessRequest{
		Name: a.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeTypeForOCR(path),
			},
		},
	}

	resp, err := a.client.ProcessDocument(ctx, req)
	if err != nil {
		return "", fmt.Errorf("gcpclient.DocumentAIAdapter.OCRPage: %w", err)
	}
	if resp.Document == nil {
		return "", fmt.Errorf("gcpclient.DocumentAIAdapter.OCRPage: nil document in response")
	}

	slog.Info("docai ocr completed", "page", pageNumber, "chars", len(resp.Document.Text))
	return resp.Document.Text, nil
}

// mimeTypeForOCR guesses the MIME type Document AI needs from a file
// extension; PDFs pass through as-is, .jpg/.jpeg map to JPEG, and
// everything else is treated as PNG.
func mimeTypeForOCR(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	default:
		return "image/png"
	}
}

// HealthCheck verifies the Document AI connection by listing processors.
func (a *DocumentAIAdapter) HealthCheck(ctx context.Context) error {
	parent := fmt.Sprintf("projects/%s/locations/%s", a.project, a.location)
	req := &documentaipb.ListProcessorsRequest{Parent: parent}

	iter := a.client.ListProcessors(ctx, req)
	_, err := iter.Next()
	if err != nil && err != iterator.Done {
		return fmt.Errorf("gcpclient.DocumentAIAdapter.HealthCheck: %w", err)
	}

	slog.Info("docai health check passed", "project", a.project, "location", a.location)
	return nil
}

// Close releases the underlying gRPC connection.
func (a *DocumentAIAdapter) Close() error {
	return a.client.Close()
}
