package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/mini-league/internal/storage"
)

// Capturer turns a URL into PNG bytes.
type Capturer interface {
	Capture(ctx context.Context, url string) ([]byte, error)
}

// Service captures a page and stores the image.
type Service struct {
	capturer Capturer
	output   storage.Writer
	logger   *zap.Logger
}

// NewService wires a Service.
func NewService(capturer Capturer, output storage.Writer, logger *zap.Logger) (*Service, error) {
	if capturer == nil {
		return nil, errors.New("snapshot: capturer is required")
	}
	if output == nil {
		return nil, errors.New("snapshot: output writer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{capturer: capturer, output: output, logger: logger}, nil
}

// Take captures url and writes it to key. It returns the stored object's URI.
func (s *Service) Take(ctx context.Context, url, key string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "file://") {
		return "", fmt.Errorf("snapshot url must be http(s) or file, got %q", url)
	}
	if !strings.HasSuffix(strings.ToLower(key), ".png") {
		return "", fmt.Errorf("snapshot key must end in .png, got %q", key)
	}
	png, err := s.capturer.Capture(ctx, url)
	if err != nil {
		return "", fmt.Errorf("capture %s: %w", url, err)
	}
	if len(png) == 0 {
		return "", fmt.Errorf("capture %s: empty image", url)
	}
	uri, err := s.output.PutObject(ctx, key, "image/png", bytes.NewReader(png))
	if err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	s.logger.Info("snapshot stored", zap.String("url", url), zap.String("uri", uri), zap.Int("bytes", len(png)))
	return uri, nil
}
