package sitegen

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/mini-league/internal/clock/system"
	"github.com/JakeFAU/mini-league/internal/hash/sha256"
	"github.com/JakeFAU/mini-league/internal/loader"
	"github.com/JakeFAU/mini-league/internal/publisher"
	memorypublisher "github.com/JakeFAU/mini-league/internal/publisher/memory"
	"github.com/JakeFAU/mini-league/internal/render"
	"github.com/JakeFAU/mini-league/internal/storage"
	"github.com/JakeFAU/mini-league/internal/storage/memory"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return "evt-" + string(rune('0'+s.n)), nil
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, publisher.Event) (string, error) {
	return "", errors.New("topic gone")
}

var renderedAt = time.Date(2025, 1, 12, 18, 30, 0, 0, time.UTC)

func fixture(t *testing.T, docs map[string]string, pub publisher.Publisher) (*Generator, *memory.BlobStore) {
	t.Helper()

	source := memory.NewBlobStore()
	for p, body := range docs {
		source.Put(p, []byte(body))
	}
	l, err := loader.New(source, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	r, err := render.New(render.Options{Title: "League"})
	require.NoError(t, err)

	out := memory.NewBlobStore()
	g, err := New(Deps{
		Loader:    l,
		Renderer:  r,
		Output:    out,
		Publisher: pub,
		Clock:     system.Fixed{At: renderedAt},
		IDs:       &seqIDs{},
		Logger:    zaptest.NewLogger(t),
		Prefix:    "site",
	})
	require.NoError(t, err)
	return g, out
}

var weekDocs = map[string]string{
	"index.json":                   `{"latest_week":"2025-01-06","generated_at":"2025-01-12T18:00:00Z"}`,
	"weeks/2025-01-06/weekly.json": `[{"rank_overall":1,"display_name":"Al","division":1,"weekly_seconds":95}]`,
	"weeks/2025-01-06/daily.json":  `[{"puzzle_date":"2025-01-07","rank_overall_day":1,"display_name":"Al","total_seconds":20}]`,
}

func TestNewValidatesDeps(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{})
	require.Error(t, err)
}

func TestRenderLatest(t *testing.T) {
	t.Parallel()

	pub := memorypublisher.New()
	g, out := fixture(t, weekDocs, pub)

	res, err := g.RenderLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "site/index.html", res.Path)
	assert.Equal(t, "memory://site/index.html", res.URI)
	assert.Equal(t, "2025-01-06", res.Week)
	assert.Equal(t, "memory-1", res.MessageID)

	page, err := out.GetObject(context.Background(), "site/index.html")
	require.NoError(t, err)
	assert.Equal(t, len(page), res.Bytes)
	assert.Equal(t, sha256.Sum(page), res.SHA256)
	assert.Contains(t, string(page), "Latest week: 2025-01-06")
	assert.Contains(t, string(page), "1:35")
	assert.Equal(t, htmlContentType, out.ContentType("site/index.html"))

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, publisher.Event{
		ID:         "evt-1",
		Type:       publisher.EventSiteRendered,
		Week:       "2025-01-06",
		Path:       "site/index.html",
		URI:        "memory://site/index.html",
		Bytes:      res.Bytes,
		SHA256:     res.SHA256,
		RenderedAt: renderedAt,
	}, events[0])
}

func TestRenderLatestWithoutData(t *testing.T) {
	t.Parallel()

	g, out := fixture(t, map[string]string{"index.json": `{"latest_week":null}`}, nil)
	res, err := g.RenderLatest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Week)
	assert.Empty(t, res.MessageID)

	page, err := out.GetObject(context.Background(), "site/index.html")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(page), "No data yet"))
}

func TestRenderWeek(t *testing.T) {
	t.Parallel()

	g, out := fixture(t, weekDocs, memorypublisher.New())
	res, err := g.RenderWeek(context.Background(), "2025-01-06")
	require.NoError(t, err)
	assert.Equal(t, "site/weeks/2025-01-06/index.html", res.Path)
	assert.Equal(t, []string{"site/weeks/2025-01-06/index.html"}, out.Keys())

	_, err = g.RenderWeek(context.Background(), "2025-13-40")
	require.Error(t, err)

	_, err = g.RenderWeek(context.Background(), "2024-12-30")
	require.ErrorIs(t, err, storage.ErrNotFound)
	assert.Len(t, out.Keys(), 1, "failed loads must not write a page")
}

func TestRenderLatestLoadFailureWritesNothing(t *testing.T) {
	t.Parallel()

	pub := memorypublisher.New()
	g, out := fixture(t, map[string]string{"index.json": `{"latest_week":"2025-01-06"}`}, pub)
	_, err := g.RenderLatest(context.Background())
	require.Error(t, err)
	assert.Empty(t, out.Keys())
	assert.Empty(t, pub.Events())
}

func TestNotificationFailureKeepsPage(t *testing.T) {
	t.Parallel()

	g, out := fixture(t, weekDocs, failingPublisher{})
	res, err := g.RenderLatest(context.Background())
	require.Error(t, err)
	assert.Equal(t, "site/index.html", res.Path)
	assert.Len(t, out.Keys(), 1)
}
