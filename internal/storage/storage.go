// Package storage defines the object readers the leaderboard is loaded from
// and the writers rendered artifacts are published to. Backends live in the
// sub-packages (local, gcs, memory, web, postgres).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
)

// ErrNotFound reports a missing object in any backend.
var ErrNotFound = errors.New("object not found")

// Reader fetches a whole object by its slash-separated path.
type Reader interface {
	GetObject(ctx context.Context, path string) ([]byte, error)
}

// Writer stores an object and returns a URI describing where it landed.
type Writer interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// ReadWriter is implemented by the blob backends.
type ReadWriter interface {
	Reader
	Writer
}

// StatusError is returned by remote backends when the server answers with a
// non-success status.
type StatusError struct {
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed %s: %d", e.Path, e.StatusCode)
}

// Is lets errors.Is(err, ErrNotFound) match a 404 response.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// ObjectKey joins an optional prefix and a relative path, rejecting paths that
// would escape the prefix.
func ObjectKey(prefix, rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", fmt.Errorf("path traversal detected")
		}
	}
	key := strings.TrimPrefix(path.Clean("/"+rel), "/")
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key, nil
}
