package extractor

import (
	"context"
	"fmt"
	"os"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

// LocalImageLoader implements service.ImageLoader by reading image bytes
// directly off the local filesystem, for deployments that keep ingested
// documents and their extracted images on a shared volume rather than GCS.
type LocalImageLoader struct{}

// NewLocalImageLoader creates a LocalImageLoader.
func NewLocalImageLoader() *LocalImageLoader { return &LocalImageLoader{} }

// Compile-time check.
var _ service.ImageLoader = (*LocalImageLoader)(nil)

// LoadImage reads the file at path.
func (l *LocalImageLoader) LoadImage(ctx context.Context, path string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("extractor.LocalImageLoader.LoadImage: %w", err)
	}
	return data, nil
}
