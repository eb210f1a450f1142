package cache

import (
	"testing"
	"time"

	"github.com/scmclimited/deep-rag-core/internal/model"
	"github.com/scmclimited/deep-rag-core/internal/service"
)

func makeCandidates(text string) []service.Candidate {
	return []service.Candidate{
		{
			ChunkID:     "chunk-1",
			DocumentID:  "doc-1",
			Text:        text,
			ContentType: model.ContentText,
			Lex:         0.4,
			Vec:         0.8,
		},
	}
}

func TestQueryCache_GetSet(t *testing.T) {
	c := New(1 * time.Hour)
	defer c.Stop()

	_, ok := c.Get("what is revenue?", []string{"doc-1"}, false)
	if ok {
		t.Fatal("expected cache miss on empty cache")
	}

	c.Set("what is revenue?", []string{"doc-1"}, false, makeCandidates("revenue grew"))

	got, ok := c.Get("what is revenue?", []string{"doc-1"}, false)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 1 || got[0].Text != "revenue grew" {
		t.Fatalf("unexpected cached result: %+v", got)
	}
}

func TestQueryCache_ScopeSeparation(t *testing.T) {
	c := New(1 * time.Hour)
	defer c.Stop()

	c.Set("query", []string{"doc-1"}, false, makeCandidates("from doc 1"))
	c.Set("query", []string{"doc-2"}, false, makeCandidates("from doc 2"))

	got, ok := c.Get("query", []string{"doc-1"}, false)
	if !ok || got[0].Text != "from doc 1" {
		t.Fatal("doc-1 scope returned wrong result")
	}

	got, ok = c.Get("query", []string{"doc-2"}, false)
	if !ok || got[0].Text != "from doc 2" {
		t.Fatal("doc-2 scope returned wrong result")
	}
}

func TestQueryCache_CrossDocSeparation(t *testing.T) {
	c := New(1 * time.Hour)
	defer c.Stop()

	c.Set("query", []string{"doc-1"}, false, makeCandidates("single-doc"))
	c.Set("query", []string{"doc-1"}, true, makeCandidates("cross-doc"))

	got, _ := c.Get("query", []string{"doc-1"}, false)
	if got[0].Text != "single-doc" {
		t.Fatal("cross_doc=false returned wrong result")
	}

	got, _ = c.Get("query", []string{"doc-1"}, true)
	if got[0].Text != "cross-doc" {
		t.Fatal("cross_doc=true returned wrong result")
	}
}

func TestQueryCache_ScopeOrderIndependent(t *testing.T) {
	c := New(1 * time.Hour)
	defer c.Stop()

	c.Set("query", []string{"doc-1", "doc-2"}, false, makeCandidates("result"))

	got, ok := c.Get("query", []string{"doc-2", "doc-1"}, false)
	if !ok || got[0].Text != "result" {
		t.Fatal("scope should be order-independent")
	}
}

func TestQueryCache_Expiry(t *testing.T) {
	c := New(50 * time.Millisecond)
	defer c.Stop()

	c.Set("query", []string{"doc-1"}, false, makeCandidates("test"))

	if _, ok := c.Get("query", []string{"doc-1"}, false); !ok {
		t.Fatal("expected cache hit before expiry")
	}

	time.Sleep(80 * time.Millisecond)

	if _, ok := c.Get("query", []string{"doc-1"}, false); ok {
		t.Fatal("expected cache miss after expiry")
	}
}

func TestQueryCache_InvalidateDocument(t *testing.T) {
	c := New(1 * time.Hour)
	defer c.Stop()

	c.Set("query-a", []string{"doc-1"}, false, makeCandidates("a"))
	c.Set("query-b", []string{"doc-1"}, false, makeCandidates("b"))
	c.Set("query-a", []string{"doc-2"}, false, makeCandidates("other"))

	if c.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", c.Len())
	}

	c.InvalidateDocument("doc-1")

	if c.Len() != 1 {
		t.Fatalf("expected 1 entry after invalidation, got %d", c.Len())
	}

	if _, ok := c.Get("query-a", []string{"doc-1"}, false); ok {
		t.Fatal("doc-1 cache should be invalidated")
	}

	if _, ok := c.Get("query-a", []string{"doc-2"}, false); !ok {
		t.Fatal("doc-2 cache should survive")
	}
}

func TestQueryCache_Len(t *testing.T) {
	c := New(1 * time.Hour)
	defer c.Stop()

	if c.Len() != 0 {
		t.Fatal("expected empty cache")
	}

	c.Set("q1", []string{"doc-1"}, false, makeCandidates("a"))
	c.Set("q2", []string{"doc-1"}, false, makeCandidates("b"))

	if c.Len() != 2 {
		t.Fatalf("expected 2, got %d", c.Len())
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	k1 := cacheKey("hello world", []string{"doc-1", "doc-2"}, false)
	k2 := cacheKey("hello world", []string{"doc-2", "doc-1"}, false)
	if k1 != k2 {
		t.Fatalf("cache key should be order-independent: %s != %s", k1, k2)
	}

	k3 := cacheKey("hello world", []string{"doc-1", "doc-2"}, true)
	if k1 == k3 {
		t.Fatal("different crossDoc should produce different key")
	}

	k4 := cacheKey("hello world", []string{"doc-3"}, false)
	if k1 == k4 {
		t.Fatal("different scope should produce different key")
	}
}
