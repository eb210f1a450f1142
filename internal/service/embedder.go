package service

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/scmclimited/deep-rag-core/internal/model"
)

const (
	// maxBatchSize is the max texts per Vertex AI embedding API call.
	maxBatchSize = 250
	// embeddingDimensions is the expected vector dimensionality.
	embeddingDimensions = 768
)

// EmbeddingClient abstracts the Vertex AI text embedding API for testability.
type EmbeddingClient interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ImageEmbeddingClient abstracts multimodal (text+image) embedding. A chunk
// with an image path gets its text and image vectors averaged and
// re-normalized per §4.4 step 4.
type ImageEmbeddingClient interface {
	EmbedMultimodal(ctx context.Context, text string, image []byte) ([]float32, error)
}

// ImageLoader reads the raw bytes backing a chunk's ImagePath. Kept separate
// from the embedding client so the embedder doesn't need to know about
// object storage.
type ImageLoader interface {
	LoadImage(ctx context.Context, path string) ([]byte, error)
}

// ChunkStore abstracts persistence of embedded chunks.
type ChunkStore interface {
	BulkInsert(ctx context.Context, documentID string, chunks []model.Chunk) error
}

// EmbedderService generates vector embeddings and stores them with chunks.
type EmbedderService struct {
	client      EmbeddingClient
	imageClient ImageEmbeddingClient
	imageLoader ImageLoader
	chunkStore  ChunkStore
}

// NewEmbedderService creates an EmbedderService. imageClient/imageLoader may
// be nil; multimodal chunks then fall back to text-only embedding.
func NewEmbedderService(client EmbeddingClient, chunkStore ChunkStore, imageClient ImageEmbeddingClient, imageLoader ImageLoader) *EmbedderService {
	return &EmbedderService{
		client:      client,
		imageClient: imageClient,
		imageLoader: imageLoader,
		chunkStore:  chunkStore,
	}
}

// Embed generates embeddings for a slice of texts, batching as needed.
// Returns one 768-dim L2-normalized vector per input text.
func (s *EmbedderService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("service.Embed: no texts provided")
	}

	allVectors := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		vectors, err := s.client.EmbedTexts(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("service.Embed: batch %d-%d: %w", i, end, err)
		}

		for j, vec := range vectors {
			if len(vec) != embeddingDimensions {
				return nil, fmt.Errorf("service.Embed: vector %d has %d dimensions, want %d", i+j, len(vec), embeddingDimensions)
			}
			vectors[j] = l2Normalize(vec)
		}

		allVectors = append(allVectors, vectors...)
	}

	if len(allVectors) != len(texts) {
		return nil, fmt.Errorf("service.Embed: got %d vectors for %d texts", len(allVectors), len(texts))
	}

	return allVectors, nil
}

// EmbedAndStore generates embeddings for ingest chunks — averaging text and
// image vectors for chunks carrying an image, per §4.4 step 4 — assigns
// chunk ids, and persists the results via ChunkStore. Implements the
// Embedder contract used by the ingestion pipeline.
func (s *EmbedderService) EmbedAndStore(ctx context.Context, documentID string, chunks []IngestChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	textVectors, err := s.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("service.EmbedAndStore: %w", err)
	}

	out := make([]model.Chunk, len(chunks))
	for i, c := range chunks {
		vec := textVectors[i]

		if c.ImagePath != "" && s.imageClient != nil {
			if mmVec, err := s.embedChunkImage(ctx, c); err == nil {
				vec = l2Normalize(meanVector(textVectors[i], mmVec))
			}
			// On failure, fall back to text-only — the chunk is still useful
			// for lexical and text-vector retrieval.
		}

		out[i] = model.Chunk{
			ID:          uuid.NewString(),
			DocumentID:  documentID,
			ChunkIndex:  i,
			PageStart:   &chunks[i].PageStart,
			PageEnd:     &chunks[i].PageEnd,
			Section:     c.Section,
			Text:        c.Text,
			IsOCR:       c.IsOCR,
			IsFigure:    c.IsFigure,
			ContentType: c.ContentType,
			Embedding:   vec,
			ContentHash: c.ContentHash,
		}
		if c.ImagePath != "" {
			p := c.ImagePath
			out[i].ImagePath = &p
		}
	}

	if err := s.chunkStore.BulkInsert(ctx, documentID, out); err != nil {
		return fmt.Errorf("service.EmbedAndStore: store: %w", err)
	}

	return nil
}

func (s *EmbedderService) embedChunkImage(ctx context.Context, c IngestChunk) ([]float32, error) {
	var imageBytes []byte
	if s.imageLoader != nil {
		b, err := s.imageLoader.LoadImage(ctx, c.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("service.embedChunkImage: load: %w", err)
		}
		imageBytes = b
	}
	return s.imageClient.EmbedMultimodal(ctx, c.Text, imageBytes)
}

// meanVector averages two equal-length vectors element-wise.
func meanVector(a, b []float32) []float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = (a[i] + b[i]) / 2
	}
	return out
}

// l2Normalize normalizes a vector to unit length (L2 norm = 1).
func l2Normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return vec
	}

	result := make([]float32, len(vec))
	for i, v := range vec {
		result[i] = float32(float64(v) / norm)
	}
	return result
}
