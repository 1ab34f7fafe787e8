package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/mini-league/internal/cache"
	"github.com/JakeFAU/mini-league/internal/config"
	"github.com/JakeFAU/mini-league/internal/leaderboard"
	"github.com/JakeFAU/mini-league/internal/loader"
	"github.com/JakeFAU/mini-league/internal/ratelimit"
	"github.com/JakeFAU/mini-league/internal/render"
	"github.com/JakeFAU/mini-league/internal/storage"
	"github.com/JakeFAU/mini-league/internal/storage/memory"
)

var leagueDocs = map[string]string{
	"index.json": `{"latest_week":"2025-01-06","generated_at":"2025-01-12T18:00:00Z"}`,
	"weeks/2025-01-06/weekly.json": `[
		{"rank_overall":2,"display_name":"Bea","division":2,"weekly_seconds":190},
		{"rank_overall":1,"display_name":"Al","division":1,"weekly_seconds":95}
	]`,
	"weeks/2025-01-06/daily.json": `[
		{"puzzle_date":"2025-01-08","rank_overall_day":1,"display_name":"Bea","total_seconds":61},
		{"puzzle_date":"2025-01-07","rank_overall_day":1,"display_name":"Al","total_seconds":9.4},
		{"puzzle_date":"2025-01-07","rank_overall_day":2,"display_name":"Bea","total_seconds":15}
	]`,
	"weeks/2024-12-30/weekly.json": `[]`,
	"weeks/2024-12-30/daily.json":  `[]`,
}

type erroringReader struct{}

func (erroringReader) GetObject(_ context.Context, path string) ([]byte, error) {
	return nil, &storage.StatusError{Path: path, StatusCode: http.StatusInternalServerError}
}

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return c.err
}

type panickingLoader struct{ BoardLoader }

func (panickingLoader) LoadLatest(context.Context) (leaderboard.Board, error) {
	panic("boom")
}

func seededStore(docs map[string]string) *memory.BlobStore {
	store := memory.NewBlobStore()
	for p, body := range docs {
		store.Put(p, []byte(body))
	}
	return store
}

func newTestServer(t *testing.T, reader storage.Reader, mutate func(*Deps)) *Server {
	t.Helper()
	l, err := loader.New(reader, "", zap.NewNop())
	require.NoError(t, err)
	r, err := render.New(render.Options{Title: "League"})
	require.NoError(t, err)
	deps := Deps{
		Loader:   l,
		Renderer: r,
		Config:   config.Config{Server: config.ServerConfig{RequestTimeoutSeconds: 5}},
		Logger:   zap.NewNop(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	return NewServer(deps)
}

func serve(s *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestLatestPage(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seededStore(leagueDocs), nil)
	rec := serve(s, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Latest week: 2025-01-06 • Generated: 2025-01-12T18:00:00Z")
	assert.Contains(t, body, "<td>2025-01-07</td><td>Al</td><td>9s</td>")
	assert.Contains(t, body, "<td>2025-01-08</td><td>Bea</td><td>1:01</td>")
	assert.Less(t, strings.Index(body, "<td>Al</td>"), strings.Index(body, "<td>Bea</td>"))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestLatestPageNoData(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seededStore(map[string]string{"index.json": `{"latest_week":null,"generated_at":null}`}), nil)
	rec := serve(s, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), leaderboard.NoDataMessage)
}

func TestLatestPageLoadFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, erroringReader{}, nil)
	rec := serve(s, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), leaderboard.LoadErrorMessage)
	assert.NotContains(t, rec.Body.String(), "<table>")
}

func TestWeekPage(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seededStore(leagueDocs), nil)

	rec := serve(s, http.MethodGet, "/weeks/2024-12-30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Week: 2024-12-30 • Generated: 2025-01-12T18:00:00Z")

	rec = serve(s, http.MethodGet, "/weeks/2024-12-30/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, http.MethodGet, "/weeks/2024-12-23", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No leaderboard for week 2024-12-23.")

	rec = serve(s, http.MethodGet, "/weeks/latest", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIIndex(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seededStore(leagueDocs), nil)
	rec := serve(s, http.MethodGet, "/api/index", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp IndexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.LatestWeek)
	assert.Equal(t, "2025-01-06", *resp.LatestWeek)
	assert.True(t, resp.HasData)
	assert.Equal(t, "Latest week: 2025-01-06 • Generated: 2025-01-12T18:00:00Z", resp.Meta)

	empty := newTestServer(t, seededStore(map[string]string{"index.json": `{}`}), nil)
	rec = serve(empty, http.MethodGet, "/api/index", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"latest_week":null,"generated_at":"","has_data":false,"meta":"`+leaderboard.NoDataMessage+`"}`, rec.Body.String())

	missing := newTestServer(t, seededStore(nil), nil)
	rec = serve(missing, http.MethodGet, "/api/index", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIWeekAndLatest(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seededStore(leagueDocs), nil)

	for _, target := range []string{"/api/latest", "/api/weeks/2025-01-06"} {
		rec := serve(s, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, rec.Code, target)

		var resp WeekResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "2025-01-06", resp.Week)
		require.Len(t, resp.Weekly, 2)
		assert.Equal(t, leaderboard.WeeklyView{Rank: 1, Player: "Al", Division: "D1", Time: "1:35"}, resp.Weekly[0])
		assert.Equal(t, []leaderboard.DailyView{
			{Date: "2025-01-07", Winner: "Al", Time: "9s"},
			{Date: "2025-01-08", Winner: "Bea", Time: "1:01"},
		}, resp.Daily)
	}

	rec := serve(s, http.MethodGet, "/api/weeks/2025-02-30", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(s, http.MethodGet, "/api/weeks/2023-01-02", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	empty := newTestServer(t, seededStore(map[string]string{"index.json": `{}`}), nil)
	rec = serve(empty, http.MethodGet, "/api/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	broken := newTestServer(t, erroringReader{}, nil)
	rec = serve(broken, http.MethodGet, "/api/weeks/2025-01-06", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestInvalidateCache(t *testing.T) {
	t.Parallel()

	store := seededStore(leagueDocs)
	cached, err := cache.NewReader(store, cache.NewMemoryStore(), time.Minute, zap.NewNop())
	require.NoError(t, err)

	s := newTestServer(t, cached, func(d *Deps) {
		d.Invalidator = cached
		d.Config.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	})

	rec := serve(s, http.MethodGet, "/api/index", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	store.Put("index.json", []byte(`{"latest_week":null}`))
	rec = serve(s, http.MethodGet, "/api/index", nil)
	assert.Contains(t, rec.Body.String(), `"has_data":true`, "stale until invalidated")

	rec = serve(s, http.MethodPost, "/api/cache/invalidate", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(s, http.MethodPost, "/api/cache/invalidate", http.Header{"X-Api-Key": {"secret"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, http.MethodGet, "/api/index", nil)
	assert.Contains(t, rec.Body.String(), `"has_data":false`)
}

func TestInvalidateWithoutCache(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seededStore(leagueDocs), nil)
	rec := serve(s, http.MethodPost, "/api/cache/invalidate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	inv := &countingInvalidator{err: errors.New("redis down")}
	s = newTestServer(t, seededStore(leagueDocs), func(d *Deps) { d.Invalidator = inv })
	rec = serve(s, http.MethodPost, "/api/cache/invalidate", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, inv.calls)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	ready := errors.New("redis unreachable")
	s := newTestServer(t, seededStore(leagueDocs), func(d *Deps) {
		d.Ready = func(context.Context) error { return ready }
	})

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(s, http.MethodGet, "/readyz", nil).Code)

	serve(s, http.MethodGet, "/", nil)
	rec := serve(s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leaderboard_pages_rendered_total")
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRateLimitedRoutes(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(ratelimit.Config{RPS: 0.001, Burst: 1})
	s := newTestServer(t, seededStore(leagueDocs), func(d *Deps) { d.Limiter = limiter })

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/index", nil).Code)
	rec := serve(s, http.MethodGet, "/api/index", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/healthz", nil).Code, "probes are not limited")
}

func TestRequestIDPropagation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seededStore(leagueDocs), nil)
	const id = "0190b6a4-3f7c-7d1e-9a55-6b5f2a3c4d5e"
	rec := serve(s, http.MethodGet, "/healthz", http.Header{"X-Request-Id": {id}})
	assert.Equal(t, id, rec.Header().Get(requestIDHeader))

	rec = serve(s, http.MethodGet, "/healthz", http.Header{"X-Request-Id": {"<script>"}})
	assert.NotEqual(t, "<script>", rec.Header().Get(requestIDHeader))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seededStore(leagueDocs), func(d *Deps) {
		d.Loader = panickingLoader{BoardLoader: d.Loader}
	})
	rec := serve(s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestJSONConditionalGet(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, seededStore(leagueDocs), nil)
	rec := serve(s, http.MethodGet, "/api/weeks/2025-01-06", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = serve(s, http.MethodGet, "/api/weeks/2025-01-06", http.Header{"If-None-Match": {etag}})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = serve(s, http.MethodGet, "/api/weeks/2024-12-30", http.Header{"If-None-Match": {etag}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, etag, rec.Header().Get("ETag"))

	for _, match := range []string{`"stale", ` + etag, "W/" + etag, "*"} {
		rec = serve(s, http.MethodGet, "/api/weeks/2025-01-06", http.Header{"If-None-Match": {match}})
		assert.Equal(t, http.StatusNotModified, rec.Code, match)
	}
}

func TestETagMatches(t *testing.T) {
	t.Parallel()

	const etag = `"abc"`
	tests := []struct {
		name    string
		headers []string
		want    bool
	}{
		{name: "absent", headers: nil, want: false},
		{name: "empty", headers: []string{""}, want: false},
		{name: "exact", headers: []string{`"abc"`}, want: true},
		{name: "other", headers: []string{`"abd"`}, want: false},
		{name: "list", headers: []string{`"x", "abc" ,"y"`}, want: true},
		{name: "list without match", headers: []string{`"x","y"`}, want: false},
		{name: "weak", headers: []string{`W/"abc"`}, want: true},
		{name: "weak in list", headers: []string{`"x", W/"abc"`}, want: true},
		{name: "wildcard", headers: []string{"*"}, want: true},
		{name: "repeated header", headers: []string{`"x"`, `"abc"`}, want: true},
		{name: "unquoted", headers: []string{"abc"}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, etagMatches(tc.headers, etag))
		})
	}
}
