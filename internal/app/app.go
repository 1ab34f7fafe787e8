// Package app builds the long-lived services behind every command and owns
// their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	cloudstorage "cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/mini-league/internal/api"
	"github.com/JakeFAU/mini-league/internal/cache"
	"github.com/JakeFAU/mini-league/internal/clock/system"
	"github.com/JakeFAU/mini-league/internal/config"
	"github.com/JakeFAU/mini-league/internal/id/uuid"
	"github.com/JakeFAU/mini-league/internal/loader"
	"github.com/JakeFAU/mini-league/internal/publisher"
	memorypublisher "github.com/JakeFAU/mini-league/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/mini-league/internal/publisher/pubsub"
	"github.com/JakeFAU/mini-league/internal/ratelimit"
	"github.com/JakeFAU/mini-league/internal/render"
	"github.com/JakeFAU/mini-league/internal/sitegen"
	"github.com/JakeFAU/mini-league/internal/snapshot"
	"github.com/JakeFAU/mini-league/internal/storage"
	gcsstorage "github.com/JakeFAU/mini-league/internal/storage/gcs"
	localstorage "github.com/JakeFAU/mini-league/internal/storage/local"
	memorystorage "github.com/JakeFAU/mini-league/internal/storage/memory"
	pgstorage "github.com/JakeFAU/mini-league/internal/storage/postgres"
	"github.com/JakeFAU/mini-league/internal/storage/web"
	"github.com/JakeFAU/mini-league/internal/telemetry"
)

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	source   storage.Reader
	cached   *cache.Reader
	redis    *cache.RedisStore
	output   storage.Writer
	notifier publisher.Publisher
	loader   *loader.Loader
	renderer *render.Renderer
	limiter  *ratelimit.Limiter
	clock    *system.Clock

	gcsClient *cloudstorage.Client
	pgStore   *pgstorage.DocumentStore
	pubsub    *gcppublisher.Publisher
	tracer    *sdktrace.TracerProvider
}

// Build creates the application's dependencies. On error everything opened
// so far is closed again.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, clock: system.New()}
	if err := a.build(ctx); err != nil {
		a.closeInfrastructure(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	var err error
	a.tracer, err = telemetry.InitTracerProvider(ctx, a.cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}

	a.logger.Info("building application dependencies",
		zap.String("source", a.cfg.Source.Backend),
		zap.String("cache", a.cfg.Cache.Backend),
		zap.String("output", a.cfg.Output.Backend),
		zap.String("notifier", a.cfg.PubSub.Backend),
	)

	if err = a.setupSource(ctx); err != nil {
		return err
	}
	if err = a.setupCache(); err != nil {
		return err
	}
	if err = a.setupOutput(ctx); err != nil {
		return err
	}
	if err = a.setupNotifier(ctx); err != nil {
		return err
	}

	reader := a.source
	if a.cached != nil {
		reader = a.cached
	}
	a.loader, err = loader.New(reader, a.cfg.Source.Root, a.logger.Named("loader"))
	if err != nil {
		return fmt.Errorf("loader init failed: %w", err)
	}
	a.renderer, err = render.New(render.Options{Title: a.cfg.Site.Title, Now: a.clock.Now})
	if err != nil {
		return fmt.Errorf("renderer init failed: %w", err)
	}

	if a.cfg.RateLimit.Enabled {
		a.limiter = ratelimit.New(ratelimit.Config{
			RPS:               a.cfg.RateLimit.RPS,
			Burst:             a.cfg.RateLimit.Burst,
			TrustForwardedFor: a.cfg.RateLimit.TrustForwardedFor,
		})
		a.logger.Info("rate limiter enabled",
			zap.Float64("rps", a.cfg.RateLimit.RPS),
			zap.Int("burst", a.cfg.RateLimit.Burst),
		)
	}
	return nil
}

func (a *App) setupSource(ctx context.Context) error {
	src := a.cfg.Source
	switch src.Backend {
	case config.BackendGCS:
		client, err := a.gcs(ctx)
		if err != nil {
			return err
		}
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: src.GCS.Bucket, Prefix: src.GCS.Prefix})
		if err != nil {
			return fmt.Errorf("gcs source init failed: %w", err)
		}
		a.source = store
		a.logger.Debug("GCS source", zap.String("bucket", src.GCS.Bucket))
	case config.BackendHTTP:
		reader, err := web.New(web.Config{
			BaseURL:       src.HTTP.BaseURL,
			UserAgent:     src.HTTP.UserAgent,
			RespectRobots: src.HTTP.RespectRobots,
			Timeout:       time.Duration(src.HTTP.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("http source init failed: %w", err)
		}
		a.source = reader
		a.logger.Debug("HTTP source", zap.String("base_url", src.HTTP.BaseURL))
	case config.BackendPostgres:
		store, err := pgstorage.NewDocumentStore(ctx, pgstorage.DocumentStoreConfig{
			DSN:      src.Postgres.DSN,
			Table:    src.Postgres.Table,
			MaxConns: src.Postgres.MaxConns,
			MinConns: src.Postgres.MinConns,
		})
		if err != nil {
			return fmt.Errorf("postgres source init failed: %w", err)
		}
		a.pgStore = store
		a.source = store
		a.logger.Debug("postgres source", zap.String("table", src.Postgres.Table))
	default:
		store, err := localstorage.New(localstorage.Config{BaseDir: src.Local.BaseDir, ReadOnly: true})
		if err != nil {
			return fmt.Errorf("local source init failed: %w", err)
		}
		a.source = store
		a.logger.Debug("local source", zap.String("path", src.Local.BaseDir))
	}
	return nil
}

func (a *App) setupCache() error {
	var store cache.Store
	switch a.cfg.Cache.Backend {
	case config.CacheMemory:
		store = cache.NewMemoryStore()
	case config.CacheRedis:
		rc := a.cfg.Cache.Redis
		rs, err := cache.NewRedisStore(cache.RedisConfig{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			Prefix:   rc.Prefix,
		})
		if err != nil {
			return fmt.Errorf("redis cache init failed: %w", err)
		}
		a.redis = rs
		store = rs
	default:
		a.logger.Info("document cache disabled")
		return nil
	}
	cached, err := cache.NewReader(a.source, store, a.cfg.CacheTTL(), a.logger.Named("cache"))
	if err != nil {
		return fmt.Errorf("cache init failed: %w", err)
	}
	a.cached = cached
	a.logger.Info("document cache enabled",
		zap.String("backend", store.Name()),
		zap.Duration("ttl", a.cfg.CacheTTL()),
	)
	return nil
}

func (a *App) setupOutput(ctx context.Context) error {
	out := a.cfg.Output
	switch out.Backend {
	case config.BackendGCS:
		client, err := a.gcs(ctx)
		if err != nil {
			return err
		}
		store, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket:       out.GCS.Bucket,
			Prefix:       out.GCS.Prefix,
			CacheControl: out.GCS.CacheControl,
		})
		if err != nil {
			return fmt.Errorf("gcs output init failed: %w", err)
		}
		a.output = store
	case config.BackendMemory:
		a.output = memorystorage.NewBlobStore()
	default:
		store, err := localstorage.New(localstorage.Config{BaseDir: out.Local.BaseDir})
		if err != nil {
			return fmt.Errorf("local output init failed: %w", err)
		}
		a.output = store
	}
	return nil
}

func (a *App) setupNotifier(ctx context.Context) error {
	switch a.cfg.PubSub.Backend {
	case config.NotifierPubSub:
		p, err := gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
		if err != nil {
			return fmt.Errorf("pubsub init failed: %w", err)
		}
		a.pubsub = p
		a.notifier = p
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", a.cfg.PubSub.ProjectID),
			zap.String("topic", a.cfg.PubSub.TopicName),
		)
	case config.NotifierMemory:
		a.notifier = memorypublisher.New()
	default:
		a.notifier = publisher.Nop{}
	}
	return nil
}

// gcs lazily opens one client shared by the source and the output.
func (a *App) gcs(ctx context.Context) (*cloudstorage.Client, error) {
	if a.gcsClient != nil {
		return a.gcsClient, nil
	}
	client, err := cloudstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client init failed: %w", err)
	}
	a.gcsClient = client
	return client, nil
}

// Output exposes the writer rendered artifacts go to.
func (a *App) Output() storage.Writer {
	return a.output
}

// Notifier exposes the render event publisher.
func (a *App) Notifier() publisher.Publisher {
	return a.notifier
}

// Ready reports whether optional remote dependencies answer.
func (a *App) Ready(ctx context.Context) error {
	if a.redis != nil {
		if err := a.redis.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns the HTTP handler serving the leaderboard.
func (a *App) Handler() http.Handler {
	deps := api.Deps{
		Loader:   a.loader,
		Renderer: a.renderer,
		Limiter:  a.limiter,
		Ready:    a.Ready,
		Config:   a.cfg,
		Logger:   a.logger.Named("api"),
	}
	if a.cached != nil {
		deps.Invalidator = a.cached
	}
	return api.NewServer(deps).Handler()
}

// Serve listens on the configured port until ctx is canceled or a signal
// arrives.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener serves on ln and shuts down gracefully.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.limiter != nil {
		go a.limiter.Run(ctx, time.Minute)
	}

	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// RenderSite publishes the latest page, or the page for week when set.
func (a *App) RenderSite(ctx context.Context, week string) (sitegen.Result, error) {
	gen, err := sitegen.New(sitegen.Deps{
		Loader:    a.loader,
		Renderer:  a.renderer,
		Output:    a.output,
		Publisher: a.notifier,
		Clock:     a.clock,
		IDs:       uuid.NewGenerator(),
		Logger:    a.logger.Named("sitegen"),
		Prefix:    a.cfg.Output.Prefix,
	})
	if err != nil {
		return sitegen.Result{}, err
	}
	if week != "" {
		return gen.RenderWeek(ctx, week)
	}
	return gen.RenderLatest(ctx)
}

// Snapshot captures url with headless Chrome and stores the PNG at key.
func (a *App) Snapshot(ctx context.Context, url, key string) (string, error) {
	sc := a.cfg.Snapshot
	browser, err := snapshot.NewBrowser(snapshot.BrowserConfig{
		UserAgent:         sc.UserAgent,
		NavigationTimeout: time.Duration(sc.NavTimeoutSeconds) * time.Second,
		ViewportWidth:     sc.ViewportWidth,
		ViewportHeight:    sc.ViewportHeight,
		ExecPath:          sc.ChromePath,
	})
	if err != nil {
		return "", fmt.Errorf("browser init failed: %w", err)
	}
	defer browser.Close()

	svc, err := snapshot.NewService(browser, a.output, a.logger.Named("snapshot"))
	if err != nil {
		return "", err
	}
	return svc.Take(ctx, url, key)
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure(ctx)
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("pubsub close failed", zap.Error(err))
		}
		a.pubsub = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
		a.redis = nil
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.gcsClient = nil
	}
	if a.pgStore != nil {
		a.pgStore.Close()
		a.pgStore = nil
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		a.tracer = nil
	}
}

func (a *App) closeObservability(_ context.Context) {
	// Sync on stderr-backed loggers fails with EINVAL on some platforms.
	_ = a.logger.Sync()
}
