package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// mockIngester implements Ingester for testing.
type mockIngester struct {
	mu          sync.Mutex
	ingestedID  string
	ingestErr   error
	processed   chan string
	processErr  error
}

func (m *mockIngester) Ingest(ctx context.Context, title, sourcePath, mimeType string, sizeBytes int) (string, error) {
	if m.ingestErr != nil {
		return "", m.ingestErr
	}
	return "doc-1", nil
}

func (m *mockIngester) Enqueue(ctx context.Context, docID string) error {
	m.mu.Lock()
	m.ingestedID = docID
	m.mu.Unlock()
	if m.processed != nil {
		m.processed <- docID
	}
	return m.processErr
}

func TestIngestDocument_Success(t *testing.T) {
	ing := &mockIngester{processed: make(chan string, 1)}
	handler := IngestDocument(IngestDeps{Pipeline: ing})

	body, _ := json.Marshal(ingestRequest{Title: "report", SourcePath: "/tmp/report.pdf", MimeType: "application/pdf", SizeBytes: 100})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body = %s", rec.Code, rec.Body.String())
	}

	select {
	case id := <-ing.processed:
		if id != "doc-1" {
			t.Errorf("processed doc = %q, want doc-1", id)
		}
	case <-time.After(time.Second):
		t.Fatal("pipeline was never invoked")
	}
}

func TestIngestDocument_MissingFields(t *testing.T) {
	ing := &mockIngester{}
	handler := IngestDocument(IngestDeps{Pipeline: ing})

	body, _ := json.Marshal(ingestRequest{Title: "report"})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestIngestDocument_InvalidBody(t *testing.T) {
	ing := &mockIngester{}
	handler := IngestDocument(IngestDeps{Pipeline: ing})

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestIngestDocument_RejectedByPipeline(t *testing.T) {
	ing := &mockIngester{ingestErr: fmt.Errorf("unsupported mime type")}
	handler := IngestDocument(IngestDeps{Pipeline: ing})

	body, _ := json.Marshal(ingestRequest{Title: "report", SourcePath: "/tmp/x", MimeType: "application/zip"})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
