// Package gcs stores uploaded documents in Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"

	"github.com/triad3/irpf-import/internal/blob"
)

const scheme = "gs"

// Store writes to a single bucket. It assumes Application Default
// Credentials are configured.
type Store struct {
	client *storage.Client
	bucket string
}

// New creates a storage client bound to bucket.
func New(ctx context.Context, bucket string) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("New: create storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Put uploads data and returns its gs:// URI.
func (s *Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	defer func() {
		// Ensure the writer is closed even on early returns.
		_ = w.Close()
	}()

	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("Put: write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Put: finalize upload: %w", err)
	}

	return fmt.Sprintf("%s://%s/%s", scheme, s.bucket, key), nil
}

// Fetch downloads the object behind a gs:// URI. The bucket in the URI may
// differ from the configured one.
func (s *Store) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := blob.ParseURI(uri, scheme)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

var _ blob.Store = (*Store)(nil)
