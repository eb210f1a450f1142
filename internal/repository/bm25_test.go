package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scmclimited/deep-rag-core/internal/model"
)

func setupLexicalRepo(t *testing.T) (*LexicalRepository, *ChunkRepo, *DocumentRepo, func()) {
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

	return NewLexicalRepository(pool), NewChunkRepo(pool), NewDocumentRepo(pool), func() { pool.Close() }
}

func TestLexicalRepository_SearchLexical(t *testing.T) {
	lexRepo, chunkRepo, docRepo, cleanup := setupLexicalRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := newTestDocument()
	docRepo.Create(ctx, doc)

	chunkRepo.BulkInsert(ctx, doc.ID, []model.Chunk{
		{ID: uuid.NewString(), DocumentID: doc.ID, ChunkIndex: 0, Text: "Quarterly revenue grew significantly", ContentType: model.ContentText, Embedding: make([]float32, 768)},
		{ID: uuid.NewString(), DocumentID: doc.ID, ChunkIndex: 1, Text: "Unrelated paragraph about weather", ContentType: model.ContentText, Embedding: make([]float32, 768)},
	})

	results, err := lexRepo.SearchLexical(ctx, "revenue", []string{doc.ID}, 10)
	if err != nil {
		t.Fatalf("SearchLexical() error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one lexical match")
	}
	for _, r := range results {
		if r.Lex < 0 || r.Lex > 1 {
			t.Errorf("Lex = %v, want normalized to [0,1]", r.Lex)
		}
	}
}

func TestLexicalRepository_SearchLexical_EmptyQuery(t *testing.T) {
	lexRepo, _, _, cleanup := setupLexicalRepo(t)
	defer cleanup()

	results, err := lexRepo.SearchLexical(context.Background(), "", nil, 10)
	if err != nil {
		t.Fatalf("SearchLexical() error: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results for empty query, got %v", results)
	}
}
