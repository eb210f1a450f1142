package repository

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scmclimited/deep-rag-core/internal/model"
)

func TestParseVectorLiteral_WellFormed(t *testing.T) {
	got, err := parseVectorLiteral("[0.1,-0.2,3.5]")
	if err != nil {
		t.Fatalf("parseVectorLiteral() error = %v", err)
	}
	want := []float32{0.1, -0.2, 3.5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseVectorLiteral_RepairsBrokenExponent(t *testing.T) {
	got, err := parseVectorLiteral("[1.23-05,4.5+02]")
	if err != nil {
		t.Fatalf("parseVectorLiteral() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0] >= 0.001 {
		t.Errorf("got[0] = %v, want ~1.23e-05", got[0])
	}
	if got[1] < 100 {
		t.Errorf("got[1] = %v, want ~4.5e+02", got[1])
	}
}

func TestParseVectorLiteral_UnparseableToken(t *testing.T) {
	_, err := parseVectorLiteral("[0.1,notanumber]")
	if err == nil {
		t.Fatal("expected error for unparseable token")
	}
}

func TestParseVectorLiteral_Empty(t *testing.T) {
	_, err := parseVectorLiteral("[]")
	if err == nil {
		t.Fatal("expected error for empty vector literal")
	}
}

func setupChunkRepo(t *testing.T) (*ChunkRepo, *DocumentRepo, func()) {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, dbURL, 5)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	migrationSQL, err := os.ReadFile("../../migrations/0001_init.sql")
	if err != nil {
		pool.Close()
		t.Fatalf("read migration: %v", err)
	}
	if _, err := pool.Exec(ctx, string(migrationSQL)); err != nil {
		pool.Close()
		t.Fatalf("apply migration: %v", err)
	}

	return NewChunkRepo(pool), NewDocumentRepo(pool), func() { pool.Close() }
}

func newTestDocument() *model.Document {
	now := time.Now().UTC()
	return &model.Document{
		ID:          uuid.NewString(),
		Title:       "Quarterly Report",
		SourcePath:  "gs://bucket/report.pdf",
		MimeType:    "application/pdf",
		SizeBytes:   2048,
		IndexStatus: model.IndexPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestChunkRepo_BulkInsertAndSearchVector(t *testing.T) {
	repo, docRepo, cleanup := setupChunkRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := newTestDocument()
	if err := docRepo.Create(ctx, doc); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	vec := make([]float32, 768)
	vec[0] = 1.0
	chunks := []model.Chunk{
		{ID: uuid.NewString(), DocumentID: doc.ID, ChunkIndex: 0, Text: "Revenue grew 10%.", ContentType: model.ContentText, Embedding: vec},
	}
	if err := repo.BulkInsert(ctx, doc.ID, chunks); err != nil {
		t.Fatalf("BulkInsert() error: %v", err)
	}

	queryVec := make([]float32, 768)
	queryVec[0] = 1.0
	results, err := repo.SearchVector(ctx, queryVec, []string{doc.ID}, 5)
	if err != nil {
		t.Fatalf("SearchVector() error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one vector result")
	}
}

func TestChunkRepo_FetchEmbeddings(t *testing.T) {
	repo, docRepo, cleanup := setupChunkRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := newTestDocument()
	docRepo.Create(ctx, doc)

	vec := make([]float32, 768)
	vec[5] = 0.75
	chunkID := uuid.NewString()
	repo.BulkInsert(ctx, doc.ID, []model.Chunk{
		{ID: chunkID, DocumentID: doc.ID, ChunkIndex: 0, Text: "x", ContentType: model.ContentText, Embedding: vec},
	})

	got, err := repo.FetchEmbeddings(ctx, []string{chunkID})
	if err != nil {
		t.Fatalf("FetchEmbeddings() error: %v", err)
	}
	if len(got[chunkID]) != 768 {
		t.Errorf("len(got[chunkID]) = %d, want 768", len(got[chunkID]))
	}
}

func TestChunkRepo_BulkInsert_Empty(t *testing.T) {
	repo, _, cleanup := setupChunkRepo(t)
	defer cleanup()

	if err := repo.BulkInsert(context.Background(), "doc", nil); err != nil {
		t.Fatalf("BulkInsert(nil) should succeed: %v", err)
	}
}
