package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/mini-league/internal/config"
	"github.com/JakeFAU/mini-league/internal/leaderboard"
	"github.com/JakeFAU/mini-league/internal/metrics"
	"github.com/JakeFAU/mini-league/internal/ratelimit"
	"github.com/JakeFAU/mini-league/internal/storage"
)

// BoardLoader is the loader surface the handlers use.
type BoardLoader interface {
	LoadIndex(ctx context.Context) (leaderboard.Index, error)
	LoadLatest(ctx context.Context) (leaderboard.Board, error)
	LoadBoard(ctx context.Context, week string) (leaderboard.Board, error)
}

// PageRenderer writes HTML pages.
type PageRenderer interface {
	Page(w io.Writer, board leaderboard.Board) error
	Error(w io.Writer, message string) error
}

// Invalidator drops cached documents.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Deps wires a Server. Invalidator, Limiter and Ready are optional.
type Deps struct {
	Loader      BoardLoader
	Renderer    PageRenderer
	Invalidator Invalidator
	Limiter     *ratelimit.Limiter
	// Ready reports whether downstream dependencies are reachable.
	Ready  func(ctx context.Context) error
	Config config.Config
	Logger *zap.Logger
}

// Server wires HTTP handlers to the loader and renderer.
type Server struct {
	router chi.Router
	deps   Deps
	logger *zap.Logger
}

// WeekResponse is the JSON view of one week.
type WeekResponse struct {
	Week        string                   `json:"week"`
	GeneratedAt string                   `json:"generated_at"`
	Meta        string                   `json:"meta"`
	Weekly      []leaderboard.WeeklyView `json:"weekly"`
	Daily       []leaderboard.DailyView  `json:"daily"`
}

// IndexResponse is the JSON view of the index document.
type IndexResponse struct {
	LatestWeek  *string `json:"latest_week"`
	GeneratedAt string  `json:"generated_at"`
	HasData     bool    `json:"has_data"`
	Meta        string  `json:"meta"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, logger: logger}

	timeout := deps.Config.RequestTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if deps.Limiter != nil {
			r.Use(deps.Limiter.Middleware)
		}
		r.Use(timeoutMiddleware(timeout))

		r.Get("/", s.latestPage)
		r.Get("/weeks/{week}", s.weekPage)
		r.Get("/weeks/{week}/", s.weekPage)

		r.Route("/api", func(r chi.Router) {
			r.Get("/index", s.index)
			r.Get("/latest", s.latest)
			r.Get("/weeks/{week}", s.week)
			r.With(apiKeyMiddleware(deps.Config.Auth)).Post("/cache/invalidate", s.invalidate)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) latestPage(w http.ResponseWriter, r *http.Request) {
	board, err := s.deps.Loader.LoadLatest(r.Context())
	if err != nil {
		s.logger.Error("load latest board failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		metrics.ObservePageRendered("latest", metrics.OutcomeError)
		s.writeErrorPage(w, http.StatusBadGateway, leaderboard.LoadErrorMessage)
		return
	}
	s.writePage(w, "latest", board)
}

func (s *Server) weekPage(w http.ResponseWriter, r *http.Request) {
	week, err := leaderboard.ParseWeek(chi.URLParam(r, "week"))
	if err != nil {
		s.writeErrorPage(w, http.StatusBadRequest, "Invalid week; expected YYYY-MM-DD.")
		return
	}
	board, err := s.deps.Loader.LoadBoard(r.Context(), week)
	if err != nil {
		status, message := loadFailure(err, week)
		if status != http.StatusNotFound {
			s.logger.Error("load week board failed", zap.String("week", week), zap.Error(err))
		}
		metrics.ObservePageRendered("week", metrics.OutcomeError)
		s.writeErrorPage(w, status, message)
		return
	}
	s.writePage(w, "week", board)
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	idx, err := s.deps.Loader.LoadIndex(r.Context())
	if err != nil {
		status, message := loadFailure(err, "")
		s.logger.Warn("load index failed", zap.Error(err))
		writeError(w, status, message)
		return
	}
	resp := IndexResponse{
		GeneratedAt: idx.GeneratedAt,
		HasData:     idx.HasData(),
		Meta:        leaderboard.NoDataMessage,
	}
	if idx.HasData() {
		latest := idx.LatestWeek
		resp.LatestWeek = &latest
		resp.Meta = leaderboard.Meta(leaderboard.Board{Index: idx, Week: &leaderboard.Week{Name: latest}})
	}
	writeJSONWithETag(w, r, resp)
}

func (s *Server) latest(w http.ResponseWriter, r *http.Request) {
	board, err := s.deps.Loader.LoadLatest(r.Context())
	if err != nil {
		s.logger.Warn("load latest board failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, leaderboard.LoadErrorMessage)
		return
	}
	if board.Week == nil {
		writeError(w, http.StatusNotFound, leaderboard.NoDataMessage)
		return
	}
	writeJSONWithETag(w, r, weekResponse(board))
}

func (s *Server) week(w http.ResponseWriter, r *http.Request) {
	week, err := leaderboard.ParseWeek(chi.URLParam(r, "week"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	board, err := s.deps.Loader.LoadBoard(r.Context(), week)
	if err != nil {
		status, message := loadFailure(err, week)
		s.logger.Warn("load week failed", zap.String("week", week), zap.Error(err))
		writeError(w, status, message)
		return
	}
	writeJSONWithETag(w, r, weekResponse(board))
}

func (s *Server) invalidate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Invalidator == nil {
		writeError(w, http.StatusNotFound, "document cache is not enabled")
		return
	}
	if err := s.deps.Invalidator.Invalidate(r.Context()); err != nil {
		s.logger.Error("cache invalidation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// writePage renders into a buffer first so a template failure can still
// answer with a clean error page.
func (s *Server) writePage(w http.ResponseWriter, page string, board leaderboard.Board) {
	var buf bytes.Buffer
	if err := s.deps.Renderer.Page(&buf, board); err != nil {
		metrics.ObservePageRendered(page, metrics.OutcomeError)
		s.logger.Error("render page failed", zap.Error(err))
		s.writeErrorPage(w, http.StatusInternalServerError, leaderboard.LoadErrorMessage)
		return
	}
	metrics.ObservePageRendered(page, metrics.OutcomeOK)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("write page failed", zap.Error(err))
	}
}

func (s *Server) writeErrorPage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.deps.Renderer.Error(w, message); err != nil {
		s.logger.Error("render error page failed", zap.Error(err))
	}
}

func weekResponse(board leaderboard.Board) WeekResponse {
	return WeekResponse{
		Week:        board.Week.Name,
		GeneratedAt: board.Index.GeneratedAt,
		Meta:        leaderboard.Meta(board),
		Weekly:      leaderboard.WeeklyTable(board.Week.Weekly),
		Daily:       leaderboard.DailyTable(board.Week.Daily),
	}
}

// loadFailure maps a loader error to an HTTP status and a user-facing message.
func loadFailure(err error, week string) (int, string) {
	if errors.Is(err, storage.ErrNotFound) {
		if week == "" {
			return http.StatusNotFound, leaderboard.NoDataMessage
		}
		return http.StatusNotFound, leaderboard.NotFoundMessage(week)
	}
	return http.StatusBadGateway, leaderboard.LoadErrorMessage
}
