package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/mini-league/internal/config"
	"github.com/JakeFAU/mini-league/internal/sitegen"
)

type fakeApp struct {
	served   bool
	week     string
	url, key string
	closed   bool
	err      error
	closeErr error
}

func (f *fakeApp) Serve(context.Context) error {
	f.served = true
	return f.err
}

func (f *fakeApp) RenderSite(_ context.Context, week string) (sitegen.Result, error) {
	f.week = week
	return sitegen.Result{URI: "memory://index.html"}, f.err
}

func (f *fakeApp) Snapshot(_ context.Context, url, key string) (string, error) {
	f.url, f.key = url, key
	return "memory://" + key, f.err
}

func (f *fakeApp) Close(context.Context) error {
	f.closed = true
	return f.closeErr
}

// useFakeApp swaps the application factory for the duration of the test.
func useFakeApp(t *testing.T, fake *fakeApp) {
	t.Helper()
	prev := newApp
	newApp = func(context.Context, config.Config, *zap.Logger) (App, error) { return fake, nil }
	t.Cleanup(func() { newApp = prev })
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRenderCommandPassesWeek(t *testing.T) {
	fake := &fakeApp{}
	useFakeApp(t, fake)
	cfg := writeConfig(t, "logging:\n  development: false\n  level: error\n")

	out, err := run(t, "render", "--config", cfg, "--week", "2025-01-06")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-06", fake.week)
	assert.Contains(t, out, "memory://index.html")
	assert.True(t, fake.closed)
}

func TestRenderCommandReportsFailure(t *testing.T) {
	fake := &fakeApp{err: errors.New("source unavailable")}
	useFakeApp(t, fake)
	cfg := writeConfig(t, "logging:\n  level: error\n")

	_, err := run(t, "render", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source unavailable")
	assert.True(t, fake.closed, "app is closed even when the command fails")
}

func TestCloseErrorIsReported(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeApp
		want []string
	}{
		{
			name: "close fails after success",
			fake: &fakeApp{closeErr: errors.New("flush failed")},
			want: []string{"close: flush failed"},
		},
		{
			name: "both fail",
			fake: &fakeApp{err: errors.New("source unavailable"), closeErr: errors.New("flush failed")},
			want: []string{"source unavailable", "close: flush failed"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			useFakeApp(t, tc.fake)
			cfg := writeConfig(t, "logging:\n  level: error\n")

			_, err := run(t, "snapshot", "--config", cfg, "--url", "http://league.test/", "--out", "a.png")
			require.Error(t, err)
			for _, want := range tc.want {
				assert.Contains(t, err.Error(), want)
			}
			assert.True(t, tc.fake.closed)
		})
	}
}

func TestSnapshotCommandDefaultsFromConfig(t *testing.T) {
	fake := &fakeApp{}
	useFakeApp(t, fake)
	cfg := writeConfig(t, "logging:\n  level: error\nsnapshot:\n  url: http://league.test/\n  key: shots/board.png\n")

	out, err := run(t, "snapshot", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "http://league.test/", fake.url)
	assert.Equal(t, "shots/board.png", fake.key)
	assert.Contains(t, out, "memory://shots/board.png")

	_, err = run(t, "snapshot", "--config", cfg, "--url", "https://example.test/weeks/2025-01-06", "--out", "w.png")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/weeks/2025-01-06", fake.url)
	assert.Equal(t, "w.png", fake.key)
}

func TestServeCommand(t *testing.T) {
	fake := &fakeApp{}
	useFakeApp(t, fake)
	cfg := writeConfig(t, "logging:\n  level: error\n")

	_, err := run(t, "serve", "--config", cfg)
	require.NoError(t, err)
	assert.True(t, fake.served)
	assert.True(t, fake.closed)
}

func TestInvalidConfigFailsBeforeBuild(t *testing.T) {
	fake := &fakeApp{}
	useFakeApp(t, fake)
	cfg := writeConfig(t, "server:\n  port: 0\n")

	_, err := run(t, "serve", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.False(t, fake.served)
}

func TestRenderEndToEnd(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	docs := map[string]string{
		"index.json":                   `{"latest_week":"2025-01-06","generated_at":"2025-01-12T18:00:00Z"}`,
		"weeks/2025-01-06/weekly.json": `[{"rank_overall":1,"display_name":"Al & Co","division":1,"weekly_seconds":95}]`,
		"weeks/2025-01-06/daily.json":  `[]`,
	}
	for rel, body := range docs {
		full := filepath.Join(src, "data", "computed", filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o600))
	}
	cfg := writeConfig(t, fmt.Sprintf(`logging:
  development: false
  level: error
source:
  backend: local
  local:
    base_dir: %q
output:
  backend: local
  local:
    base_dir: %q
`, src, out))

	stdout, err := run(t, "render", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, stdout, "file://")

	page, err := os.ReadFile(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "Al &amp; Co")
	assert.Contains(t, string(page), "Latest week: 2025-01-06")
}
