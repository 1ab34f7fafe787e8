// Package sitegen renders leaderboard pages to an object store and announces
// each published page.
package sitegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/mini-league/internal/hash/sha256"
	"github.com/JakeFAU/mini-league/internal/leaderboard"
	"github.com/JakeFAU/mini-league/internal/metrics"
	"github.com/JakeFAU/mini-league/internal/publisher"
	"github.com/JakeFAU/mini-league/internal/storage"
)

const htmlContentType = "text/html; charset=utf-8"

// BoardLoader is the subset of the loader the generator needs.
type BoardLoader interface {
	LoadLatest(ctx context.Context) (leaderboard.Board, error)
	LoadBoard(ctx context.Context, week string) (leaderboard.Board, error)
}

// PageRenderer writes a board as HTML.
type PageRenderer interface {
	Page(w io.Writer, board leaderboard.Board) error
}

// Clock supplies render timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies event IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Deps wires a Generator.
type Deps struct {
	Loader    BoardLoader
	Renderer  PageRenderer
	Output    storage.Writer
	Publisher publisher.Publisher
	Clock     Clock
	IDs       IDGenerator
	Logger    *zap.Logger
	// Prefix is prepended to every output key, e.g. "site".
	Prefix string
}

// Result describes one published page.
type Result struct {
	Path  string
	URI   string
	Week  string
	Bytes int
	// SHA256 is the hex digest of the page body.
	SHA256 string
	// MessageID is empty when notifications are disabled.
	MessageID string
}

// Generator renders and publishes pages.
type Generator struct {
	deps Deps
}

// New validates deps and returns a Generator.
func New(deps Deps) (*Generator, error) {
	switch {
	case deps.Loader == nil:
		return nil, errors.New("sitegen: loader is required")
	case deps.Renderer == nil:
		return nil, errors.New("sitegen: renderer is required")
	case deps.Output == nil:
		return nil, errors.New("sitegen: output writer is required")
	case deps.Clock == nil:
		return nil, errors.New("sitegen: clock is required")
	case deps.IDs == nil:
		return nil, errors.New("sitegen: id generator is required")
	}
	if deps.Publisher == nil {
		deps.Publisher = publisher.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Generator{deps: deps}, nil
}

// RenderLatest publishes index.html for the latest week. An index without a
// week still produces a page carrying the no-data message.
func (g *Generator) RenderLatest(ctx context.Context) (Result, error) {
	board, err := g.deps.Loader.LoadLatest(ctx)
	if err != nil {
		metrics.ObservePageRendered("latest", metrics.OutcomeError)
		return Result{}, fmt.Errorf("load latest board: %w", err)
	}
	return g.publish(ctx, "latest", "index.html", board)
}

// RenderWeek publishes weeks/{week}/index.html.
func (g *Generator) RenderWeek(ctx context.Context, week string) (Result, error) {
	week, err := leaderboard.ParseWeek(week)
	if err != nil {
		return Result{}, err
	}
	board, err := g.deps.Loader.LoadBoard(ctx, week)
	if err != nil {
		metrics.ObservePageRendered("week", metrics.OutcomeError)
		return Result{}, fmt.Errorf("load board for %s: %w", week, err)
	}
	return g.publish(ctx, "week", path.Join("weeks", week, "index.html"), board)
}

// Existing pages are left untouched when loading fails, so a broken upload
// never replaces a good page with an error page.
func (g *Generator) publish(ctx context.Context, page, rel string, board leaderboard.Board) (Result, error) {
	key := rel
	if g.deps.Prefix != "" {
		k, err := storage.ObjectKey(g.deps.Prefix, rel)
		if err != nil {
			return Result{}, fmt.Errorf("output key: %w", err)
		}
		key = k
	}

	var buf bytes.Buffer
	if err := g.deps.Renderer.Page(&buf, board); err != nil {
		metrics.ObservePageRendered(page, metrics.OutcomeError)
		return Result{}, fmt.Errorf("render %s: %w", key, err)
	}
	size := buf.Len()
	digest := sha256.Sum(buf.Bytes())
	uri, err := g.deps.Output.PutObject(ctx, key, htmlContentType, &buf)
	if err != nil {
		metrics.ObservePageRendered(page, metrics.OutcomeError)
		return Result{}, fmt.Errorf("write %s: %w", key, err)
	}
	metrics.ObservePageRendered(page, metrics.OutcomeOK)

	res := Result{Path: key, URI: uri, Bytes: size, SHA256: digest}
	if board.Week != nil {
		res.Week = board.Week.Name
	}
	g.deps.Logger.Info("page published",
		zap.String("path", key),
		zap.String("uri", uri),
		zap.String("week", res.Week),
		zap.Int("bytes", size),
	)

	id, err := g.deps.IDs.NewID()
	if err != nil {
		return res, fmt.Errorf("event id: %w", err)
	}
	msgID, err := g.deps.Publisher.Publish(ctx, publisher.Event{
		ID:         id,
		Type:       publisher.EventSiteRendered,
		Week:       res.Week,
		Path:       key,
		URI:        uri,
		Bytes:      size,
		SHA256:     digest,
		RenderedAt: g.deps.Clock.Now(),
	})
	if err != nil {
		g.deps.Logger.Warn("render notification failed", zap.String("path", key), zap.Error(err))
		return res, fmt.Errorf("notify %s: %w", key, err)
	}
	res.MessageID = msgID
	return res, nil
}
