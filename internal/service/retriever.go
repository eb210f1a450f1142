package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/scmclimited/deep-rag-core/internal/model"
	"golang.org/x/sync/errgroup"
)

// Candidate is a chunk carrying the three retrieval scores defined by the
// retrieval engine: lexical relevance, cosine vector similarity, and
// cross-encoder rerank score.
type Candidate struct {
	ChunkID     string
	DocumentID  string
	Text        string
	PageStart   *int
	PageEnd     *int
	ContentType model.ContentType
	ImagePath   *string
	Lex         float64
	Vec         float64
	CE          float64
	Embedding   []float32
}

// LexicalSearcher ranks chunks by full-text relevance against a tokenized
// query, optionally restricted to a document scope.
type LexicalSearcher interface {
	SearchLexical(ctx context.Context, sanitizedQuery string, docIDs []string, limit int) ([]Candidate, error)
}

// DenseSearcher ranks chunks by cosine similarity to a query embedding,
// optionally restricted to a document scope.
type DenseSearcher interface {
	SearchVector(ctx context.Context, queryVec []float32, docIDs []string, limit int) ([]Candidate, error)
}

// EmbeddingFetcher retrieves the full embedding vector for a set of chunk
// ids, used to hydrate candidates before MMR (§4.1.3's "second round-trip").
type EmbeddingFetcher interface {
	FetchEmbeddings(ctx context.Context, chunkIDs []string) (map[string][]float32, error)
}

// StructureFetcher returns chunks of a single document in document order,
// used both as a fallback supplement and standalone via retrieveByStructure.
type StructureFetcher interface {
	FetchByStructure(ctx context.Context, docID string, max int, strategy string) ([]Candidate, error)
}

// Reranker scores (query, chunk) pairs with a cross-encoder. A nil Reranker
// (or a reranker that errors) degrades retrieval to vector-only scoring.
type Reranker interface {
	Score(ctx context.Context, query string, candidates []Candidate) ([]float64, error)
}

// QueryEmbedder turns query text (optionally with an image) into an
// embedding vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	mmrPoolSize    = 30
	goodCE         = 0.3
	goodLexAndVec  = 0.6
	goodVecAlone   = 0.7
	structureFirstPages = "first_pages"
)

// RetrieverService implements the hybrid retrieval engine of §4.1.
type RetrieverService struct {
	embedder   QueryEmbedder
	lexical    LexicalSearcher
	dense      DenseSearcher
	embeddings EmbeddingFetcher
	structure  StructureFetcher
	reranker   Reranker // optional

	defaultLambda float64
}

// NewRetrieverService wires the retrieval engine's collaborators.
func NewRetrieverService(embedder QueryEmbedder, lexical LexicalSearcher, dense DenseSearcher, embeddings EmbeddingFetcher, structure StructureFetcher) *RetrieverService {
	return &RetrieverService{
		embedder:      embedder,
		lexical:       lexical,
		dense:         dense,
		embeddings:    embeddings,
		structure:     structure,
		defaultLambda: 0.5,
	}
}

// SetReranker attaches an optional cross-encoder.
func (s *RetrieverService) SetReranker(r Reranker) { s.reranker = r }

// RetrieveParams bundles retrieve()'s input constraints from §4.1.
type RetrieveParams struct {
	Query      string
	K          int
	KLex       int
	KVec       int
	QueryImage []byte
	DocID      string   // primary scope doc, optional
	Scope      []string // selected_doc_ids ∪ uploaded_doc_ids ∪ {doc_id}
	CrossDoc   bool
}

// Retrieve implements retrieve(query, k, k_lex, k_vec, query_image?, doc_id?, cross_doc).
func (s *RetrieverService) Retrieve(ctx context.Context, p RetrieveParams) ([]Candidate, error) {
	if p.Query == "" {
		return nil, fmt.Errorf("service.Retrieve: query is empty")
	}
	if p.KLex <= 0 {
		p.KLex = 60
	}
	if p.KVec <= 0 {
		p.KVec = 60
	}
	if p.K <= 0 {
		p.K = 8
	}

	scope := dedupStrings(p.Scope)

	// Empty-scope-with-cross-doc-false: no documents selected.
	if !p.CrossDoc && p.Scope != nil && len(scope) == 0 {
		return nil, nil
	}

	queryVec, err := s.embedQuery(ctx, p.Query, p.QueryImage)
	if err != nil {
		return nil, fmt.Errorf("service.Retrieve: %w", ErrEmbeddingFailed)
	}

	var candidates []Candidate
	switch {
	case !p.CrossDoc && len(scope) > 0:
		candidates, err = s.retrieveScoped(ctx, p, queryVec, scope)
	case p.CrossDoc && len(scope) == 0:
		candidates, err = s.retrievePool(ctx, p.Query, queryVec, nil, p.KLex, p.KVec)
	case p.CrossDoc && len(scope) > 0:
		candidates, err = s.retrieveTwoStage(ctx, p, queryVec, scope)
	default:
		candidates, err = s.retrievePool(ctx, p.Query, queryVec, scope, p.KLex, p.KVec)
	}
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	candidates = s.hydrateEmbeddings(ctx, candidates)
	candidates = s.applyReranker(ctx, p.Query, candidates)

	selected := MMRSelect(candidates, queryVec, p.K, s.defaultLambda, mmrPoolSize)
	return selected, nil
}

// RetrieveByStructure implements retrieveByStructure(doc_id, max, strategy).
func (s *RetrieverService) RetrieveByStructure(ctx context.Context, docID string, max int, strategy string) ([]Candidate, error) {
	return s.structure.FetchByStructure(ctx, docID, max, strategy)
}

// RetrieveExcludingScope searches the full corpus for query, filtering out
// any candidate belonging to excludeDocs. Used by the refine-retrieve graph
// node's hybrid cross_doc+scoped supplement of §4.2.6.
func (s *RetrieverService) RetrieveExcludingScope(ctx context.Context, query string, excludeDocs []string, kLex, kVec int) ([]Candidate, error) {
	queryVec, err := s.embedQuery(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("service.RetrieveExcludingScope: %w", ErrEmbeddingFailed)
	}
	return s.retrievePoolExcluding(ctx, query, queryVec, excludeDocs, kLex, kVec)
}

// imageQueryEmbedder is implemented by embedders that can average a text
// query with an accompanying query image (§4.1, "multimodal, averaged,
// re-normalized").
type imageQueryEmbedder interface {
	EmbedMultimodal(ctx context.Context, text string, image []byte) ([]float32, error)
}

func (s *RetrieverService) embedQuery(ctx context.Context, query string, image []byte) ([]float32, error) {
	if len(image) > 0 {
		if ie, ok := s.embedder.(imageQueryEmbedder); ok {
			vec, err := ie.EmbedMultimodal(ctx, query, image)
			if err != nil {
				return nil, fmt.Errorf("embed multimodal query: %w", err)
			}
			return vec, nil
		}
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vecs[0], nil
}

// retrievePool builds the lexical and vector candidate pools concurrently
// and merges them per §4.1.2's UNION-ALL-then-rank contract.
func (s *RetrieverService) retrievePool(ctx context.Context, rawQuery string, queryVec []float32, scope []string, kLex, kVec int) ([]Candidate, error) {
	sanitized := SanitizeLexicalQuery(rawQuery)

	var lexResults, vecResults []Candidate
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		lexResults, err = s.lexical.SearchLexical(gCtx, sanitized, scope, kLex)
		return err
	})
	g.Go(func() error {
		var err error
		vecResults, err = s.dense.SearchVector(gCtx, queryVec, scope, kVec)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("service.Retrieve: %w: %v", ErrStoreUnavailable, err)
	}

	merged := mergePools(lexResults, vecResults)
	limit := kLex + kVec
	if limit < len(merged) {
		merged = merged[:limit]
	}
	return merged, nil
}

// mergePools combines two pools sharing a projection, keyed by chunk id,
// and orders the union by 0.6*lex + 0.4*vec descending.
func mergePools(lex, vec []Candidate) []Candidate {
	byID := make(map[string]*Candidate)
	order := make([]string, 0, len(lex)+len(vec))

	for _, c := range lex {
		cc := c
		byID[c.ChunkID] = &cc
		order = append(order, c.ChunkID)
	}
	for _, c := range vec {
		if existing, ok := byID[c.ChunkID]; ok {
			existing.Vec = c.Vec
			continue
		}
		cc := c
		byID[c.ChunkID] = &cc
		order = append(order, c.ChunkID)
	}

	seen := make(map[string]bool, len(order))
	out := make([]Candidate, 0, len(byID))
	for _, id := range order {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, *byID[id])
	}

	sort.Slice(out, func(i, j int) bool {
		return rankKey(out[i]) > rankKey(out[j])
	})
	return out
}

func rankKey(c Candidate) float64 {
	return 0.6*c.Lex + 0.4*c.Vec
}

// retrieveScoped implements the single/multi-document scoped mode of
// §4.1.5, supplementing with structure-based retrieval when no candidate
// meets the "good similarity" threshold for a scoped document.
func (s *RetrieverService) retrieveScoped(ctx context.Context, p RetrieveParams, queryVec []float32, scope []string) ([]Candidate, error) {
	candidates, err := s.retrievePool(ctx, p.Query, queryVec, scope, p.KLex, p.KVec)
	if err != nil {
		return nil, err
	}

	haveGood := make(map[string]bool)
	for _, c := range candidates {
		if isGoodCandidate(c) {
			haveGood[c.DocumentID] = true
		}
	}

	for _, docID := range scope {
		if haveGood[docID] {
			continue
		}
		supplement, err := s.structure.FetchByStructure(ctx, docID, 10, structureFirstPages)
		if err != nil {
			slog.Warn("retriever: structure supplement failed", "doc_id", docID, "error", err)
			continue
		}
		candidates = dedupCandidates(append(candidates, supplement...))
	}

	return candidates, nil
}

func isGoodCandidate(c Candidate) bool {
	return c.CE > goodCE || (c.Lex > 0 && c.Vec > goodLexAndVec) || c.Vec > goodVecAlone
}

// retrieveTwoStage implements two-stage cross-document retrieval: stage one
// over scope, stage two over the complement seeded by stage-one text.
func (s *RetrieverService) retrieveTwoStage(ctx context.Context, p RetrieveParams, queryVec []float32, scope []string) ([]Candidate, error) {
	stage1, err := s.retrievePool(ctx, p.Query, queryVec, scope, p.KLex, p.KVec)
	if err != nil {
		return nil, err
	}

	top5 := stage1
	if len(top5) > 5 {
		top5 = top5[:5]
	}
	seedQuery := p.Query
	for _, c := range top5 {
		seedQuery += " " + c.Text
	}
	stage2Vec, err := s.embedQuery(ctx, seedQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("service.Retrieve: stage2: %w", ErrEmbeddingFailed)
	}

	stage2, err := s.retrievePoolExcluding(ctx, seedQuery, stage2Vec, scope, p.KLex, p.KVec)
	if err != nil {
		return nil, err
	}

	stage1IDs := make(map[string]bool, len(stage1))
	for _, c := range stage1 {
		stage1IDs[c.ChunkID] = true
	}

	merged := dedupCandidates(append(stage1, stage2...))
	if p.K > 0 && len(merged) > p.K {
		sort.Slice(merged, func(i, j int) bool {
			return stagePriorityKey(merged[i], stage1IDs) > stagePriorityKey(merged[j], stage1IDs)
		})
	}
	return merged, nil
}

// stagePriorityKey is rankKey with stage-one chunks given a throwaway 0.1
// boost, so cross-document merge prefers the scoped stage over the
// complement without permanently inflating a candidate's own Vec score.
func stagePriorityKey(c Candidate, stage1IDs map[string]bool) float64 {
	key := rankKey(c)
	if stage1IDs[c.ChunkID] {
		key += 0.1
	}
	return key
}

// retrievePoolExcluding searches the full corpus excluding the given scope,
// by over-fetching and filtering (the store layer has no native "exclude"
// projection, matching how the lexical/vector pools are already shaped).
func (s *RetrieverService) retrievePoolExcluding(ctx context.Context, rawQuery string, queryVec []float32, excludeDocs []string, kLex, kVec int) ([]Candidate, error) {
	pool, err := s.retrievePool(ctx, rawQuery, queryVec, nil, kLex, kVec)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(excludeDocs))
	for _, d := range excludeDocs {
		excluded[d] = true
	}
	out := pool[:0]
	for _, c := range pool {
		if !excluded[c.DocumentID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *RetrieverService) hydrateEmbeddings(ctx context.Context, candidates []Candidate) []Candidate {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			ids = append(ids, c.ChunkID)
		}
	}
	if len(ids) == 0 {
		return candidates
	}
	vecs, err := s.embeddings.FetchEmbeddings(ctx, ids)
	if err != nil {
		slog.Warn("retriever: embedding hydration failed", "error", err)
		return candidates
	}
	for i, c := range candidates {
		if len(c.Embedding) == 0 {
			if v, ok := vecs[c.ChunkID]; ok {
				candidates[i].Embedding = v
			}
		}
	}
	return candidates
}

// applyReranker scores candidates with the cross-encoder when one is
// configured, sorting descending by ce. Failures are logged and skipped.
func (s *RetrieverService) applyReranker(ctx context.Context, query string, candidates []Candidate) []Candidate {
	if s.reranker == nil {
		return candidates
	}
	scores, err := s.reranker.Score(ctx, query, candidates)
	if err != nil || len(scores) != len(candidates) {
		slog.Warn("retriever: reranker unavailable, falling back to vector scoring", "error", err)
		return candidates
	}
	for i := range candidates {
		candidates[i].CE = scores[i]
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CE > candidates[j].CE })
	return candidates
}

func dedupCandidates(in []Candidate) []Candidate {
	seen := make(map[string]bool, len(in))
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if seen[c.ChunkID] {
			continue
		}
		seen[c.ChunkID] = true
		out = append(out, c)
	}
	return out
}

func dedupStrings(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
