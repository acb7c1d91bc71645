// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/crunchbase-miner/internal/analytics"
	"github.com/JakeFAU/crunchbase-miner/internal/api"
	"github.com/JakeFAU/crunchbase-miner/internal/apify"
	"github.com/JakeFAU/crunchbase-miner/internal/clock/system"
	"github.com/JakeFAU/crunchbase-miner/internal/config"
	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
	"github.com/JakeFAU/crunchbase-miner/internal/discovery"
	"github.com/JakeFAU/crunchbase-miner/internal/extract"
	"github.com/JakeFAU/crunchbase-miner/internal/id/uuid"
	"github.com/JakeFAU/crunchbase-miner/internal/metrics"
	"github.com/JakeFAU/crunchbase-miner/internal/mining"
	"github.com/JakeFAU/crunchbase-miner/internal/normalization"
	gcppublisher "github.com/JakeFAU/crunchbase-miner/internal/publisher/pubsub"
	"github.com/JakeFAU/crunchbase-miner/internal/search"
	gcsstorage "github.com/JakeFAU/crunchbase-miner/internal/storage/gcs"
	localstorage "github.com/JakeFAU/crunchbase-miner/internal/storage/local"
	memoryStorage "github.com/JakeFAU/crunchbase-miner/internal/storage/memory"
	pgstore "github.com/JakeFAU/crunchbase-miner/internal/storage/postgres"
	"github.com/JakeFAU/crunchbase-miner/internal/telemetry"
)

// App contains the application's dependencies.
type App struct {
	cfg             *config.Config
	logger          *zap.Logger
	apiServer       *api.Server
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	storage         *storage.Client
	taskStore       *pgstore.TaskStore
	tracerProvider  *sdktrace.TracerProvider
}

// Handler returns the HTTP handler of the application.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure()
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.taskStore != nil {
		a.taskStore.Close()
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("search_provider", cfg.Search.Provider),
	)

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("tracer init failed: %w", err)
		}
		app.tracerProvider = tp
	}

	mapping, err := normalization.Load()
	if err != nil {
		return nil, fmt.Errorf("normalization map: %w", err)
	}

	discoverer, err := NewDiscoverer(cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := api.Dependencies{
		Discoverer: discoverer,
		Mapping:    mapping,
	}

	if cfg.Analytics.BaseURL == "" {
		logger.Warn("no analytics base url configured, /initialize and /companies are unavailable")
	} else {
		backend := analytics.NewClient(cfg.Analytics.BaseURL, cfg.Analytics.Timeout, logger.Named("analytics"))
		deps.Registrar = backend
		if cfg.ScrapeReady() {
			miner, err := app.setupMiner(ctx, backend)
			if err != nil {
				app.closeInfrastructure()
				return nil, err
			}
			deps.Miner = miner
		} else {
			logger.Warn("apify token or actor id missing, /companies is unavailable")
		}
	}

	app.apiServer = api.NewServer(deps, *cfg, logger.Named("api"))
	return app, nil
}

// NewDiscoverer builds the discovery service for the configured search backend.
func NewDiscoverer(cfg *config.Config, logger *zap.Logger) (*discovery.Discoverer, error) {
	searcher, err := search.NewSearcher(cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("search init failed: %w", err)
	}
	return discovery.New(searcher, system.New(), logger.Named("discovery"), discovery.Config{
		Keyword:    cfg.Discovery.Keyword,
		MaxResults: cfg.Discovery.MaxResults,
		Validity:   cfg.DiscoveryValidity(),
	}), nil
}

func (a *App) setupMiner(ctx context.Context, backend crunchbase.Analytics) (*mining.Service, error) {
	cfg := a.cfg
	scraper := apify.NewClient(apify.Options{
		BaseURL:      cfg.Apify.BaseURL,
		Token:        cfg.Apify.Token,
		ActorID:      cfg.Apify.ActorID,
		MinDelay:     cfg.Apify.MinDelay,
		MaxDelay:     cfg.Apify.MaxDelay,
		UseProxy:     cfg.Apify.UseProxy,
		ProxyGroups:  cfg.Apify.ProxyGroups,
		PollInterval: cfg.Apify.PollInterval,
		WaitTimeout:  cfg.Apify.WaitTimeout,
		Timeout:      cfg.Apify.Timeout,
	}, a.logger.Named("apify"))
	a.logger.Info("apify scraper configured", zap.String("actor_id", cfg.Apify.ActorID))

	opts := mining.Options{ArchivePrefix: cfg.Archive.Prefix, Topic: cfg.PubSub.TopicName}
	var err error
	if opts.Archive, err = a.setupArchive(ctx); err != nil {
		return nil, err
	}
	if opts.Publisher, err = a.setupPublisher(ctx); err != nil {
		return nil, err
	}
	if opts.Ledger, err = a.setupLedger(ctx); err != nil {
		return nil, err
	}

	return mining.NewService(
		scraper,
		extract.New(a.logger.Named("extract")),
		backend,
		system.New(),
		uuid.New(),
		a.logger.Named("mining"),
		opts,
	), nil
}

func (a *App) setupArchive(ctx context.Context) (crunchbase.BlobStore, error) {
	if !a.cfg.Archive.Enabled {
		return nil, nil
	}
	switch a.cfg.Archive.Backend {
	case "gcs":
		a.logger.Info("using GCS archive backend", zap.String("bucket", a.cfg.Archive.GCSBucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storage = client
		blobStore, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobStore, nil
	case "local":
		a.logger.Info("using local archive backend", zap.String("path", a.cfg.Archive.LocalDir))
		blobStore, err := localstorage.New(a.cfg.Archive.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobStore, nil
	default:
		a.logger.Info("using in-memory archive backend")
		return memoryStorage.NewBlobStore(), nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (crunchbase.Publisher, error) {
	if !a.cfg.PubSub.Enabled {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.pubsubPublisher = gcppublisher.New(client.Topic(a.cfg.PubSub.TopicName))
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return a.pubsubPublisher, nil
}

func (a *App) setupLedger(ctx context.Context) (crunchbase.TaskLedger, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Info("no database DSN configured, task ledger disabled")
		return nil, nil
	}
	store, err := pgstore.NewTaskStore(ctx, pgstore.TaskStoreConfig{DSN: a.cfg.DB.DSN})
	if err != nil {
		return nil, fmt.Errorf("task store init failed: %w", err)
	}
	a.taskStore = store
	a.logger.Info("task ledger initialized", zap.String("table", pgstore.DefaultTable))
	return store, nil
}
