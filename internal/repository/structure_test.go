package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scmclimited/deep-rag-core/internal/model"
)

func setupStructureRepo(t *testing.T) (*StructureRepository, *ChunkRepo, *DocumentRepo, func()) {
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

	return NewStructureRepository(pool), NewChunkRepo(pool), NewDocumentRepo(pool), func() { pool.Close() }
}

func TestStructureRepository_FetchByStructure_Sequential(t *testing.T) {
	structRepo, chunkRepo, docRepo, cleanup := setupStructureRepo(t)
	defer cleanup()

	ctx := context.Background()
	doc := newTestDocument()
	docRepo.Create(ctx, doc)

	chunkRepo.BulkInsert(ctx, doc.ID, []model.Chunk{
		{ID: uuid.NewString(), DocumentID: doc.ID, ChunkIndex: 0, Text: "first", ContentType: model.ContentText, Embedding: make([]float32, 768)},
		{ID: uuid.NewString(), DocumentID: doc.ID, ChunkIndex: 1, Text: "second", ContentType: model.ContentText, Embedding: make([]float32, 768)},
		{ID: uuid.NewString(), DocumentID: doc.ID, ChunkIndex: 2, Text: "third", ContentType: model.ContentText, Embedding: make([]float32, 768)},
	})

	got, err := structRepo.FetchByStructure(ctx, doc.ID, 2, StrategySequential)
	if err != nil {
		t.Fatalf("FetchByStructure() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].Text != "first" || got[1].Text != "second" {
		t.Errorf("got order = [%q, %q], want [first, second]", got[0].Text, got[1].Text)
	}
	for _, c := range got {
		if c.Lex != structureNeutralLex || c.Vec != structureNeutralVec {
			t.Errorf("expected neutral scores, got lex=%v vec=%v", c.Lex, c.Vec)
		}
	}
}
