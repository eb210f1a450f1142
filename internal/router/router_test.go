package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scmclimited/deep-rag-core/internal/graph"
	"github.com/scmclimited/deep-rag-core/internal/handler"
	"github.com/scmclimited/deep-rag-core/internal/model"
	"github.com/scmclimited/deep-rag-core/internal/service"
)

type mockDB struct{ err error }

func (m *mockDB) Ping(ctx context.Context) error { return m.err }

type stubDocRepo struct{}

func (s *stubDocRepo) Create(ctx context.Context, doc *model.Document) error { return nil }
func (s *stubDocRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	return nil, service.ErrDocumentNotFound
}
func (s *stubDocRepo) GetByTitle(ctx context.Context, title string) (*model.Document, error) {
	return nil, service.ErrDocumentNotFound
}
func (s *stubDocRepo) UpdateStatus(ctx context.Context, id string, status model.IndexStatus) error {
	return nil
}
func (s *stubDocRepo) UpdateChecksum(ctx context.Context, id, checksum string) error { return nil }
func (s *stubDocRepo) UpdateChunkCount(ctx context.Context, id string, count int) error {
	return nil
}
func (s *stubDocRepo) ListDocuments(ctx context.Context, limit int) ([]model.Document, error) {
	return nil, nil
}
func (s *stubDocRepo) Delete(ctx context.Context, id string) error { return nil }

type stubChunkStats struct{}

func (s *stubChunkStats) Stats(ctx context.Context, documentID string) (service.ChunkStats, error) {
	return service.ChunkStats{}, nil
}

type stubIngester struct{}

func (s *stubIngester) Ingest(ctx context.Context, title, sourcePath, mimeType string, sizeBytes int) (string, error) {
	return "doc-1", nil
}
func (s *stubIngester) Enqueue(ctx context.Context, docID string) error { return nil }

type stubRunner struct{}

func (s *stubRunner) Run(ctx context.Context, entry graph.State) (graph.State, error) {
	return entry, nil
}

type stubRetriever struct{}

func (s *stubRetriever) Retrieve(ctx context.Context, p service.RetrieveParams) ([]service.Candidate, error) {
	return nil, nil
}

func testDeps() *Dependencies {
	repo := &stubDocRepo{}
	return &Dependencies{
		DB:      &mockDB{},
		Version: "test",
		Documents: handler.DocumentDeps{
			Docs:      repo,
			Inspector: service.NewInspectorService(repo, &stubChunkStats{}),
		},
		Ingest:   handler.IngestDeps{Pipeline: &stubIngester{}},
		Ask:      handler.AskDeps{Runner: &stubRunner{}},
		Retrieve: handler.RetrieveDeps{Retriever: &stubRetriever{}},
	}
}

func TestRouter_Healthz(t *testing.T) {
	r := New(testDeps())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_ListDocuments(t *testing.T) {
	r := New(testDeps())

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_AskQuestion(t *testing.T) {
	r := New(testDeps())

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"what is this?"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	r := New(testDeps())

	req := httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
