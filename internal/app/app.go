// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mediawatch/headlinewatch/internal/api"
	clocksystem "github.com/mediawatch/headlinewatch/internal/clock/system"
	"github.com/mediawatch/headlinewatch/internal/config"
	"github.com/mediawatch/headlinewatch/internal/crawl"
	"github.com/mediawatch/headlinewatch/internal/debounce"
	collyfetcher "github.com/mediawatch/headlinewatch/internal/fetcher/colly"
	"github.com/mediawatch/headlinewatch/internal/logging"
	"github.com/mediawatch/headlinewatch/internal/metrics"
	"github.com/mediawatch/headlinewatch/internal/notify"
	"github.com/mediawatch/headlinewatch/internal/orchestrator"
	queuememory "github.com/mediawatch/headlinewatch/internal/queue/memory"
	pubsubqueue "github.com/mediawatch/headlinewatch/internal/queue/pubsub"
	storememory "github.com/mediawatch/headlinewatch/internal/store/memory"
	"github.com/mediawatch/headlinewatch/internal/store/postgres"
	"github.com/mediawatch/headlinewatch/internal/storage/gcs"
	"github.com/mediawatch/headlinewatch/internal/storage/local"
	blobmemory "github.com/mediawatch/headlinewatch/internal/storage/memory"
	"github.com/mediawatch/headlinewatch/internal/sweep"
	"github.com/mediawatch/headlinewatch/internal/watch"
	"github.com/mediawatch/headlinewatch/internal/worker"
)

// App holds all shared, long-lived services. It is initialized once at
// startup and fails fast if any critical service cannot be built.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	queue    watch.Queue
	consumer watch.Consumer
	// memQueue is set only for the in-memory transport; the one-shot cycle
	// command needs its non-blocking drain.
	memQueue *queuememory.Queue

	sites     watch.SiteStore
	revisions watch.RevisionStore

	orch       *orchestrator.Orchestrator
	dispatcher *worker.Dispatcher
	server     *api.Server

	closers []func() error
}

// New builds the full service graph from configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}

	if err := a.initStores(ctx); err != nil {
		return nil, err
	}
	if err := a.initQueue(ctx); err != nil {
		return nil, err
	}

	markers, err := a.buildDebounce()
	if err != nil {
		return nil, err
	}
	archive, err := a.buildArchive(ctx)
	if err != nil {
		return nil, err
	}
	renderer := a.buildRenderer()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Watch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
		Cookies:   cfg.Watch.Cookies,
	})
	clock := clocksystem.New()

	frontpage := crawl.NewFrontpage(a.sites, fetcher, a.queue, logger.Named("frontpage"))
	article := crawl.NewArticle(a.sites, fetcher, a.revisions, a.queue, clock, logger.Named("article"))
	poster := notify.NewHTTPPoster(time.Duration(cfg.Webhook.TimeoutSeconds) * time.Second)
	notifier := notify.NewDispatcher(a.sites, markers, renderer, archive, poster, logger.Named("notify"))
	a.dispatcher = worker.NewDispatcher(frontpage, article, notifier, logger)

	sweeper := sweep.NewSweeper(a.revisions, a.queue, clock, cfg.Staleness(), logger.Named("sweep"))
	a.orch = orchestrator.New(a.sites, a.queue, sweeper, logger.Named("orchestrator"))
	a.server = api.NewServer(a.sites, a.queue, a.orch, a.readiness(), logger.Named("api"))

	logger.Info("application services initialized",
		zap.String("queue", cfg.Queue.Provider),
		zap.String("db", cfg.DB.Provider),
		zap.String("debounce", cfg.Debounce.Provider),
		zap.String("archive", cfg.Archive.Provider),
		zap.Int("sites", len(cfg.Sites)),
	)
	return a, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Orchestrator returns the cycle orchestrator.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orch
}

func (a *App) initStores(ctx context.Context) error {
	switch a.cfg.DB.Provider {
	case "postgres":
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:      a.cfg.DB.DSN,
			MaxConns: a.cfg.DB.MaxConns,
			MinConns: a.cfg.DB.MinConns,
		})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		revisions, err := postgres.NewRevisionStore(pool)
		if err != nil {
			return err
		}
		a.revisions = revisions
		// Sites live in the database when it is available, configured sites
		// are ignored.
		sites, err := postgres.NewSiteStore(pool)
		if err != nil {
			return err
		}
		a.sites = sites
	case "memory":
		a.revisions = storememory.NewRevisionStore()
		a.sites = storememory.NewSiteStore(sitesFromConfig(a.cfg.Sites))
	default:
		return fmt.Errorf("unknown db provider: %s", a.cfg.DB.Provider)
	}
	return nil
}

func (a *App) initQueue(ctx context.Context) error {
	switch a.cfg.Queue.Provider {
	case "pubsub":
		q, err := pubsubqueue.New(ctx, pubsubqueue.Config{
			ProjectID:          a.cfg.Queue.ProjectID,
			TopicPrefix:        a.cfg.Queue.TopicPrefix,
			SubscriptionPrefix: a.cfg.Queue.SubscriptionPrefix,
		}, a.logger.Named("pubsub"))
		if err != nil {
			return fmt.Errorf("connect pubsub: %w", err)
		}
		a.queue = q
		a.consumer = q
		a.closers = append(a.closers, q.Close)
	case "memory":
		q := queuememory.NewQueue(a.cfg.Watch.QueueDepth)
		a.queue = q
		a.consumer = q
		a.memQueue = q
	default:
		return fmt.Errorf("unknown queue provider: %s", a.cfg.Queue.Provider)
	}
	return nil
}

func (a *App) buildDebounce() (watch.DebounceStore, error) {
	switch a.cfg.Debounce.Provider {
	case "redis":
		store, err := debounce.NewRedisStore(debounce.RedisConfig{
			Address:  a.cfg.Debounce.Address,
			Password: a.cfg.Debounce.Password,
			DB:       a.cfg.Debounce.DB,
			TTL:      a.cfg.DebounceTTL(),
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case "memory":
		return debounce.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown debounce provider: %s", a.cfg.Debounce.Provider)
	}
}

func (a *App) buildArchive(ctx context.Context) (watch.BlobStore, error) {
	switch a.cfg.Archive.Provider {
	case "gcs":
		store, err := gcs.New(ctx, gcs.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("connect gcs: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case "local":
		return local.New(local.Config{BaseDir: a.cfg.Archive.BaseDir})
	case "memory":
		return blobmemory.NewBlobStore(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", a.cfg.Archive.Provider)
	}
}

func (a *App) buildRenderer() notify.Renderer {
	if !a.cfg.Renderer.Enabled {
		return notify.NoopRenderer{}
	}
	renderer, err := notify.NewChromedpRenderer(notify.RendererConfig{
		MaxParallel: a.cfg.Renderer.MaxParallel,
		Timeout:     time.Duration(a.cfg.Renderer.TimeoutSeconds) * time.Second,
		Width:       a.cfg.Renderer.Width,
		Height:      a.cfg.Renderer.Height,
	})
	if err != nil {
		a.logger.Warn("headless renderer unavailable, notifications will be text-only", zap.Error(err))
		return notify.NoopRenderer{}
	}
	a.closers = append(a.closers, func() error {
		renderer.Close()
		return nil
	})
	return renderer
}

func (a *App) readiness() api.ReadinessCheck {
	sites := a.sites
	return func(ctx context.Context) error {
		_, err := sites.ListSites(ctx)
		return err
	}
}

// RunServer starts the worker pool and the ops HTTP server, blocking until
// the context finishes. Shutdown drains in-flight HTTP requests.
func (a *App) RunServer(ctx context.Context) error {
	pool := worker.NewPool(a.consumer, a.dispatcher, a.cfg.Watch.WorkersPerLane, a.logger.Named("pool"))
	poolDone := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(poolDone)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("ops server listening", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("ops server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("ops server shutdown", zap.Error(err))
	}
	<-poolDone
	return nil
}

// RunCycle runs one complete cycle to exhaustion: schedule, then drain every
// lane in-process. Only supported on the in-memory transport; against
// Pub/Sub the jobs are left for the long-running workers.
func (a *App) RunCycle(ctx context.Context) error {
	if err := a.orch.RunCycle(ctx); err != nil {
		return err
	}
	if a.memQueue == nil {
		a.logger.Info("jobs published, remote workers will process them")
		return nil
	}
	return worker.Burst(ctx, a.memQueue, a.dispatcher, a.logger.Named("burst"))
}

// Close gracefully shuts down all services in the container.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func sitesFromConfig(configured []config.SiteConfig) []watch.Site {
	sites := make([]watch.Site, 0, len(configured))
	for _, s := range configured {
		sites = append(sites, watch.Site{
			ID:                s.ID,
			Name:              s.Name,
			ListingURL:        s.ListingURL,
			ArticleURLPattern: s.ArticleURLPattern,
			TitleSelector:     s.TitleSelector,
			WebhookURL:        s.WebhookURL,
			WebhookToken:      s.WebhookToken,
		})
	}
	return sites
}
