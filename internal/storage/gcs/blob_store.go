// Package gcs provides an object store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	cloudstorage "cloud.google.com/go/storage"

	"github.com/JakeFAU/mini-league/internal/storage"
)

// Config captures the bucket and key prefix objects live under.
type Config struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
	// CacheControl is applied to written objects when set.
	CacheControl string `mapstructure:"cache_control"`
}

// BlobStore reads and writes objects in a configured GCS bucket.
type BlobStore struct {
	client       *cloudstorage.Client
	bucket       string
	prefix       string
	cacheControl string
}

// New creates a GCS-backed store.
func New(client *cloudstorage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client:       client,
		bucket:       cfg.Bucket,
		prefix:       cfg.Prefix,
		cacheControl: cfg.CacheControl,
	}, nil
}

// GetObject downloads the object stored at prefix/path.
func (s *BlobStore) GetObject(ctx context.Context, path string) ([]byte, error) {
	key, err := storage.ObjectKey(s.prefix, path)
	if err != nil {
		return nil, err
	}
	reader, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, cloudstorage.ErrObjectNotExist) || errors.Is(err, cloudstorage.ErrBucketNotExist) {
			return nil, fmt.Errorf("read gs://%s/%s: %w", s.bucket, key, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("open gs://%s/%s: %w", s.bucket, key, err)
	}
	defer func() {
		_ = reader.Close()
	}()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	key, err := storage.ObjectKey(s.prefix, path)
	if err != nil {
		return "", err
	}
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if s.cacheControl != "" {
		writer.CacheControl = s.cacheControl
	}
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}
