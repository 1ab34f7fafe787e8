// Package loader fetches and decodes the leaderboard documents.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/mini-league/internal/leaderboard"
	"github.com/JakeFAU/mini-league/internal/metrics"
	"github.com/JakeFAU/mini-league/internal/storage"
)

const tracerName = "github.com/JakeFAU/mini-league/internal/loader"

// Loader reads documents from a storage.Reader rooted at a data directory.
type Loader struct {
	reader storage.Reader
	root   string
	logger *zap.Logger
	tracer trace.Tracer
}

// New builds a Loader. root is joined in front of every document path and
// may be empty.
func New(reader storage.Reader, root string, logger *zap.Logger) (*Loader, error) {
	if reader == nil {
		return nil, errors.New("loader: reader is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		reader: reader,
		root:   root,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// LoadIndex fetches the index document.
func (l *Loader) LoadIndex(ctx context.Context) (leaderboard.Index, error) {
	ctx, span := l.tracer.Start(ctx, "loader.LoadIndex")
	defer span.End()

	var idx leaderboard.Index
	if err := l.fetchJSON(ctx, "index", leaderboard.IndexPath(), &idx); err != nil {
		recordError(span, err)
		return leaderboard.Index{}, err
	}
	span.SetAttributes(attribute.String("leaderboard.latest_week", idx.LatestWeek))
	return idx, nil
}

// LoadWeek fetches the weekly and daily documents for week concurrently.
// Either one failing fails the whole week.
func (l *Loader) LoadWeek(ctx context.Context, week string) (*leaderboard.Week, error) {
	week, err := leaderboard.ParseWeek(week)
	if err != nil {
		return nil, err
	}
	ctx, span := l.tracer.Start(ctx, "loader.LoadWeek", trace.WithAttributes(attribute.String("leaderboard.week", week)))
	defer span.End()

	out := &leaderboard.Week{Name: week}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.fetchJSON(gctx, "weekly", leaderboard.WeeklyPath(week), &out.Weekly)
	})
	g.Go(func() error {
		return l.fetchJSON(gctx, "daily", leaderboard.DailyPath(week), &out.Daily)
	})
	if err := g.Wait(); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("load week %s: %w", week, err)
	}
	span.SetAttributes(
		attribute.Int("leaderboard.weekly_rows", len(out.Weekly)),
		attribute.Int("leaderboard.daily_rows", len(out.Daily)),
	)
	return out, nil
}

// LoadLatest loads the index and, when it names a week, that week. Board.Week
// stays nil when no week has been computed yet.
func (l *Loader) LoadLatest(ctx context.Context) (leaderboard.Board, error) {
	idx, err := l.LoadIndex(ctx)
	if err != nil {
		return leaderboard.Board{}, err
	}
	board := leaderboard.Board{Index: idx}
	if !idx.HasData() {
		l.logger.Debug("index has no latest week")
		return board, nil
	}
	week, err := l.LoadWeek(ctx, idx.LatestWeek)
	if err != nil {
		return leaderboard.Board{}, err
	}
	board.Week = week
	return board, nil
}

// LoadBoard loads the index alongside an explicit week.
func (l *Loader) LoadBoard(ctx context.Context, week string) (leaderboard.Board, error) {
	if _, err := leaderboard.ParseWeek(week); err != nil {
		return leaderboard.Board{}, err
	}
	idx, err := l.LoadIndex(ctx)
	if err != nil {
		return leaderboard.Board{}, err
	}
	w, err := l.LoadWeek(ctx, week)
	if err != nil {
		return leaderboard.Board{}, err
	}
	return leaderboard.Board{Index: idx, Week: w}, nil
}

func (l *Loader) fetchJSON(ctx context.Context, document, rel string, dst any) error {
	start := time.Now()
	key, err := l.key(rel)
	if err != nil {
		return err
	}
	data, err := l.reader.GetObject(ctx, key)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, storage.ErrNotFound) {
			outcome = metrics.OutcomeNotFound
		}
		metrics.ObserveDocumentLoad(document, outcome, time.Since(start))
		l.logger.Warn("document fetch failed", zap.String("path", key), zap.Error(err))
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.ObserveDocumentLoad(document, metrics.OutcomeError, time.Since(start))
		return fmt.Errorf("decode %s: %w", key, err)
	}
	metrics.ObserveDocumentLoad(document, metrics.OutcomeOK, time.Since(start))
	l.logger.Debug("document loaded", zap.String("path", key), zap.Int("bytes", len(data)))
	return nil
}

func (l *Loader) key(rel string) (string, error) {
	if l.root == "" {
		return rel, nil
	}
	key, err := storage.ObjectKey(l.root, rel)
	if err != nil {
		return "", fmt.Errorf("document key: %w", err)
	}
	return key, nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
