package cache

import (
	"context"
	"testing"
	"time"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

type countingRetriever struct {
	calls int
	out   []service.Candidate
}

func (r *countingRetriever) Retrieve(ctx context.Context, p service.RetrieveParams) ([]service.Candidate, error) {
	r.calls++
	return r.out, nil
}

func TestCachedRetriever_HitsCacheOnSecondCall(t *testing.T) {
	inner := &countingRetriever{out: []service.Candidate{{ChunkID: "c1"}}}
	qc := New(time.Minute)
	defer qc.Stop()
	cr := NewCachedRetriever(inner, qc)

	params := service.RetrieveParams{Query: "what is the refund policy?", Scope: []string{"doc-1"}}

	if _, err := cr.Retrieve(context.Background(), params); err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if _, err := cr.Retrieve(context.Background(), params); err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("inner.calls = %d, want 1", inner.calls)
	}
}

func TestCachedRetriever_InvalidateDocument(t *testing.T) {
	inner := &countingRetriever{out: []service.Candidate{{ChunkID: "c1"}}}
	qc := New(time.Minute)
	defer qc.Stop()
	cr := NewCachedRetriever(inner, qc)

	params := service.RetrieveParams{Query: "what is the refund policy?", Scope: []string{"doc-1"}}
	cr.Retrieve(context.Background(), params)
	cr.InvalidateDocument("doc-1")
	cr.Retrieve(context.Background(), params)

	if inner.calls != 2 {
		t.Errorf("inner.calls = %d, want 2 after invalidation", inner.calls)
	}
}
