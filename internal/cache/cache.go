// Package cache provides a read-through document cache that sits in front of
// any storage.Reader. Backends are an in-process map and Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/mini-league/internal/metrics"
	"github.com/JakeFAU/mini-league/internal/storage"
)

// Store is the minimal key/value contract a cache backend satisfies.
type Store interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Flush removes every key owned by the store.
	Flush(ctx context.Context) error
	Name() string
}

// Reader wraps a storage.Reader with a cache.
type Reader struct {
	next   storage.Reader
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewReader wires a read-through cache. A nil logger is replaced with a no-op one.
func NewReader(next storage.Reader, store Store, ttl time.Duration, logger *zap.Logger) (*Reader, error) {
	if next == nil {
		return nil, errors.New("cache: underlying reader is required")
	}
	if store == nil {
		return nil, errors.New("cache: store is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache: ttl must be > 0, got %s", ttl)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{next: next, store: store, ttl: ttl, logger: logger}, nil
}

// GetObject serves path from the cache when possible. Backend failures are
// logged and the read falls through to the underlying reader.
func (r *Reader) GetObject(ctx context.Context, path string) ([]byte, error) {
	backend := r.store.Name()
	cached, ok, err := r.store.Get(ctx, path)
	switch {
	case err != nil:
		metrics.ObserveCacheRequest(backend, "error")
		r.logger.Warn("cache get failed", zap.String("path", path), zap.Error(err))
	case ok:
		metrics.ObserveCacheRequest(backend, "hit")
		return cached, nil
	default:
		metrics.ObserveCacheRequest(backend, "miss")
	}

	data, err := r.next.GetObject(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, path, data, r.ttl); err != nil {
		r.logger.Warn("cache set failed", zap.String("path", path), zap.Error(err))
	}
	return data, nil
}

// Invalidate drops every cached document.
func (r *Reader) Invalidate(ctx context.Context) error {
	if err := r.store.Flush(ctx); err != nil {
		return fmt.Errorf("flush %s cache: %w", r.store.Name(), err)
	}
	r.logger.Info("document cache invalidated", zap.String("backend", r.store.Name()))
	return nil
}
