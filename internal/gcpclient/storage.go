package gcpclient

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// SignedURLOptions mirrors the handful of storage.SignedURLOptions fields
// callers need without pulling the GCS package into the service layer.
type SignedURLOptions struct {
	Method      string
	Expires     time.Time
	ContentType string
}

// StorageAdapter wraps the GCS client, implementing service.ImageLoader for
// chunk image hydration plus upload/signed-URL helpers for the ingest and
// document-serving paths.
type StorageAdapter struct {
	client *storage.Client
	bucket string
}

// NewStorageAdapter creates a StorageAdapter bound to a default bucket. The
// bucket is used by LoadImage when given a bare object name rather than a
// full gs:// URI.
func NewStorageAdapter(ctx context.Context, bucket string) (*StorageAdapter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.NewStorageAdapter: %w", err)
	}
	return &StorageAdapter{client: client, bucket: bucket}, nil
}

// LoadImage implements service.ImageLoader. path may be a full "gs://bucket/object"
// URI or a bare object name resolved against the adapter's default bucket.
func (a *StorageAdapter) LoadImage(ctx context.Context, path string) ([]byte, error) {
	bucket, object := a.splitPath(path)
	return a.Download(ctx, bucket, object)
}

func (a *StorageAdapter) splitPath(path string) (bucket, object string) {
	if strings.HasPrefix(path, "gs://") {
		rest := strings.TrimPrefix(path, "gs://")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) == 2 {
			return parts[0], parts[1]
		}
		return parts[0], ""
	}
	return a.bucket, path
}

// SignedURL generates a signed URL for client-side upload/download.
func (a *StorageAdapter) SignedURL(bucket, object string, opts *SignedURLOptions) (string, error) {
	return a.client.Bucket(bucket).SignedURL(object, &storage.SignedURLOptions{
		Method:      opts.Method,
		Expires:     opts.Expires,
		ContentType: opts.ContentType,
	})
}

// Upload writes data to a GCS object.
func (a *StorageAdapter) Upload(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	w := a.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcpclient.StorageAdapter.Upload write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcpclient.StorageAdapter.Upload close: %w", err)
	}
	return nil
}

// SignedDownloadURL generates a signed GET URL for downloading an object.
func (a *StorageAdapter) SignedDownloadURL(ctx context.Context, bucket, object string, expiry time.Duration) (string, error) {
	url, err := a.client.Bucket(bucket).SignedURL(object, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	})
	if err != nil {
		return "", fmt.Errorf("gcpclient.StorageAdapter.SignedDownloadURL: %w", err)
	}
	return url, nil
}

// Download reads an object from GCS.
func (a *StorageAdapter) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	r, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.StorageAdapter.Download: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Close closes the underlying client.
func (a *StorageAdapter) Close() error {
	return a.client.Close()
}
