// Package render turns a leaderboard.Board into a self-contained HTML page.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/JakeFAU/mini-league/internal/leaderboard"
)

//go:embed templates/page.html.tmpl templates/style.css
var templatesFS embed.FS

// DefaultTitle is used when Options.Title is empty.
const DefaultTitle = "Mini League"

// Options tunes the rendered page.
type Options struct {
	Title string
	// Now stamps the footer. A nil Now omits the footer, which keeps output
	// byte-stable for tests and cache comparisons.
	Now func() time.Time
}

// Renderer executes the embedded page template.
type Renderer struct {
	tmpl *template.Template
	css  template.CSS
	opts Options
}

type pageData struct {
	Title      string
	Stylesheet template.CSS
	Meta       string
	HasWeek    bool
	Weekly     []leaderboard.WeeklyView
	Daily      []leaderboard.DailyView
	RenderedAt time.Time
}

// New parses the embedded templates.
func New(opts Options) (*Renderer, error) {
	if strings.TrimSpace(opts.Title) == "" {
		opts.Title = DefaultTitle
	}
	css, err := templatesFS.ReadFile("templates/style.css")
	if err != nil {
		return nil, fmt.Errorf("read stylesheet: %w", err)
	}
	tmpl, err := template.New("page.html.tmpl").Funcs(template.FuncMap{
		"isoTime": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	}).ParseFS(templatesFS, "templates/page.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, css: template.CSS(css), opts: opts}, nil
}

// Page renders board.
func (r *Renderer) Page(w io.Writer, board leaderboard.Board) error {
	data := r.base(leaderboard.Meta(board))
	if board.Week != nil {
		data.HasWeek = true
		data.Weekly = leaderboard.WeeklyTable(board.Week.Weekly)
		data.Daily = leaderboard.DailyTable(board.Week.Daily)
	}
	return r.execute(w, data)
}

// Error renders the page shell with message in the meta line and empty tables.
func (r *Renderer) Error(w io.Writer, message string) error {
	if message == "" {
		message = leaderboard.LoadErrorMessage
	}
	return r.execute(w, r.base(message))
}

func (r *Renderer) base(meta string) pageData {
	data := pageData{
		Title:      r.opts.Title,
		Stylesheet: r.css,
		Meta:       meta,
	}
	if r.opts.Now != nil {
		data.RenderedAt = r.opts.Now()
	}
	return data
}

// execute buffers so a template failure never leaves a half-written page.
func (r *Renderer) execute(w io.Writer, data pageData) error {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute page template: %w", err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	return nil
}
