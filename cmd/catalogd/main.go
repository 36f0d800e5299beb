package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/example/event-catalog/internal/application"
	"github.com/example/event-catalog/internal/config"
	httptransport "github.com/example/event-catalog/internal/http"
	"github.com/example/event-catalog/internal/logging"
	"github.com/example/event-catalog/internal/metrics"
	"github.com/example/event-catalog/internal/persistence"
	"github.com/example/event-catalog/internal/persistence/redis"
	"github.com/example/event-catalog/internal/persistence/sqlite"
	"github.com/example/event-catalog/internal/persistence/sqlite/migration"
	"github.com/example/event-catalog/internal/search"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("catalog server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close store", "error", cerr)
		}
	}()

	app, err := newApp(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.Notifier.Enabled {
		go app.maintain(ctx, cfg.Notifier.Interval)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("event catalog listening", "addr", server.Addr, "store", cfg.Store.Driver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// blobStore is a blob repository the process owns.
type blobStore interface {
	persistence.BlobRepository
	Ping(ctx context.Context) error
	Close() error
}

type memoryStore struct {
	*persistence.MemoryStore
}

func (memoryStore) Ping(context.Context) error { return nil }

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (blobStore, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on exit")
		return memoryStore{persistence.NewMemoryStore()}, nil
	case config.StoreRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		repo := redis.NewBlobRepository(client, cfg.RedisNamespace)
		if err := repo.Ping(ctx); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return repo, nil
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.SQLitePath), logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

type app struct {
	catalog  *application.CatalogService
	notifier *application.NotifierService
	handler  http.Handler
	logger   *slog.Logger
	now      func() time.Time
}

func newApp(ctx context.Context, cfg config.Config, store blobStore, logger *slog.Logger) (*app, error) {
	dataset := search.BuiltinDataset()
	if cfg.Search.Dataset != "" {
		loaded, err := search.LoadDatasetFile(cfg.Search.Dataset)
		if err != nil {
			return nil, err
		}
		dataset = loaded
	}
	var probe application.ConnectivityProbe = search.StaticProbe(true)
	if cfg.Search.ProbeURL != "" {
		probe = search.NewHTTPProbe(cfg.Search.ProbeURL)
	}

	now := time.Now
	ids := uuid.NewString
	repo := application.NewStateRepository(store)
	recorder := metrics.NewRecorder()

	catalog := application.NewCatalogServiceWithLogger(repo, ids, now, logger)
	catalog.SetMetrics(recorder)
	catalog.SetExportedBy(cfg.ExportedBy)
	ledger := application.NewLedgerServiceWithLogger(repo, ids, now, logger)
	ledger.SetMetrics(recorder)
	ledger.SetExportedBy(cfg.ExportedBy)
	tracker := application.NewTrackerServiceWithLogger(catalog, now, logger)
	ingestion := application.NewIngestionServiceWithLogger(catalog, search.NewDatasetProvider(dataset, now, logger), probe, ids, now, logger)
	ingestion.SetMetrics(recorder)
	ingestion.SetSearchTimeout(cfg.Search.Timeout)
	insights := application.NewInsightsServiceWithLogger(catalog, now, logger)
	notifier := application.NewNotifierServiceWithLogger(ledger, repo, logSink{logger: logger}, now, logger)
	notifier.SetMetrics(recorder)

	if err := catalog.Load(ctx); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Events:   httptransport.NewEventHandler(catalog, ingestion, now, logger),
		Tracker:  httptransport.NewTrackerHandler(tracker, logger),
		Saved:    httptransport.NewSavedHandler(ledger, catalog, now, logger),
		Insights: httptransport.NewInsightsHandler(insights, logger),
		Metrics:  recorder.Handler(),
		Health:   store.Ping,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	})

	return &app{catalog: catalog, notifier: notifier, handler: router, logger: logger, now: now}, nil
}

// maintain runs one maintenance pass immediately and then every interval
// until ctx is done.
func (a *app) maintain(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		a.maintainOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *app) maintainOnce(ctx context.Context) {
	if _, err := a.catalog.EvictPast(ctx, a.now()); err != nil {
		a.logger.ErrorContext(ctx, "eviction pass failed", "error", err, "error_kind", application.ErrorKind(err))
	}
	if _, err := a.notifier.CheckDeadlines(ctx); err != nil {
		a.logger.ErrorContext(ctx, "deadline check failed", "error", err, "error_kind", application.ErrorKind(err))
	}
	if _, err := a.notifier.PruneMarkers(ctx); err != nil {
		a.logger.ErrorContext(ctx, "marker pruning failed", "error", err, "error_kind", application.ErrorKind(err))
	}
}

// logSink delivers notifications to the process log.
type logSink struct {
	logger *slog.Logger
}

func (s logSink) Notify(ctx context.Context, n application.Notification) error {
	s.logger.InfoContext(ctx, n.Message,
		"notification", string(n.Kind),
		"record_id", n.Record.ID,
		"days_left", n.DaysLeft,
	)
	return nil
}
