// Package app assembles the service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	httpadapter "github.com/0xbhavyaalag/EcoSphere/internal/adapter/http"
	"github.com/0xbhavyaalag/EcoSphere/internal/adapter/ipgeo"
	kafkaadapter "github.com/0xbhavyaalag/EcoSphere/internal/adapter/kafka"
	mongoadapter "github.com/0xbhavyaalag/EcoSphere/internal/adapter/mongo"
	"github.com/0xbhavyaalag/EcoSphere/internal/adapter/nominatim"
	"github.com/0xbhavyaalag/EcoSphere/internal/adapter/sqlite"
	"github.com/0xbhavyaalag/EcoSphere/internal/adapter/ws"
	"github.com/0xbhavyaalag/EcoSphere/internal/config"
	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
	"github.com/0xbhavyaalag/EcoSphere/internal/geo"
	"github.com/0xbhavyaalag/EcoSphere/internal/lifecycle"
	"github.com/0xbhavyaalag/EcoSphere/internal/locator"
	"github.com/0xbhavyaalag/EcoSphere/internal/observability"
	"github.com/0xbhavyaalag/EcoSphere/internal/pipeline"
	"github.com/0xbhavyaalag/EcoSphere/internal/store"
)

// App holds the wired components. The CLI uses them directly; Serve runs
// the long-lived ones.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	Store     *store.Store
	Lifecycle *lifecycle.Lifecycle
	Locator   *locator.Locator
	Resolver  *geo.Resolver
	Hub       *ws.Hub

	publisher *pipeline.Publisher
	writer    *kafkaadapter.Writer
	closers   []func(context.Context) error
}

// New opens the report store and builds every component described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{cfg: cfg, logger: logger, metrics: metrics}

	kv, err := a.openKV(ctx)
	if err != nil {
		return nil, err
	}
	a.Store = store.New(kv, store.Options{
		Key:          cfg.StoreKey,
		MaxBytes:     cfg.StoreMaxBytes,
		Threshold:    cfg.StoreThreshold,
		QuotaRetries: cfg.StoreQuotaRetries,
	}, logger, metrics)
	a.Store.Load(ctx)

	geocoder := nominatim.NewCachedGeocoder(
		nominatim.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.NominatimTimeout, metrics, logger),
		cfg.GeocodeCacheSize, metrics,
	)
	a.Locator = locator.New(geocoder, locator.Options{
		Limit:   cfg.SearchLimit,
		Delay:   cfg.SearchDelay,
		Retries: cfg.SearchRetries,
	}, logger, metrics)

	providers := make([]geo.IPLocator, 0, len(cfg.IPProviders))
	for _, name := range cfg.IPProviders {
		p, err := ipgeo.New(name, cfg.IPTimeout, logger)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	a.Resolver = geo.NewResolver(providers, geo.DeviceOptions{
		HighAccuracy: cfg.LocationHighAccuracy,
		Timeout:      cfg.LocationTimeout,
		MaxAge:       cfg.LocationMaxAge,
	}, logger, metrics)

	a.Hub = ws.NewHub(a.Store.Stats, logger)

	deps := lifecycle.Deps{Stats: a.Hub, Locator: a.Locator}
	if cfg.PublishingEnabled() {
		a.writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		a.publisher = pipeline.New(a.writer, pipeline.Options{
			BatchSize:     cfg.EventBatchSize,
			FlushInterval: cfg.EventFlushInterval,
			QueueSize:     cfg.EventQueueSize,
		}, logger, metrics)
		deps.Events = a.publisher
		logger.Info("report event publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("report event publishing disabled")
	}

	a.Lifecycle = lifecycle.New(a.Store, lifecycle.Options{
		MaxImageBytes: cfg.MaxImageBytes,
		Router:        domain.NewRouter(domain.RouteProvider(cfg.RouteProvider)),
	}, deps, logger, metrics)

	return a, nil
}

// CheckReadiness requires the store and, when enabled, a running publisher.
func (a *App) CheckReadiness(ctx context.Context) error {
	if err := a.Store.CheckReadiness(ctx); err != nil {
		return err
	}
	if a.publisher != nil {
		return a.publisher.CheckReadiness(ctx)
	}
	return nil
}

// Serve runs the HTTP server, stats hub and event publisher until ctx is
// cancelled, then shuts them down within the configured timeout.
func (a *App) Serve(ctx context.Context) error {
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, httpadapter.Deps{
		Reports:  a.Lifecycle,
		Locator:  a.Locator,
		Resolver: a.Resolver,
		Stats:    a.Hub,
	}, a, a.logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errc := make(chan error, 1)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
			errc <- err
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Hub.Run(runCtx)
	}()

	// Start event publisher.
	if a.publisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.publisher.Run(runCtx); err != nil {
				a.logger.Error("publisher error", "error", err)
			}
		}()
	}

	<-runCtx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}
	wg.Wait()
	if err := a.Close(shutdownCtx); err != nil {
		a.logger.Error("close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}

// Close releases the Kafka writer and the store backend.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.writer != nil {
		if err := a.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka writer close: %w", err))
		}
	}
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openKV(ctx context.Context) (store.KV, error) {
	cfg := a.cfg
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return store.WithQuota(store.NewMemoryKV(), cfg.StoreMaxBytes), nil

	case config.BackendFile:
		kv, err := store.NewFileKV(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		return store.WithQuota(kv, cfg.StoreMaxBytes), nil

	case config.BackendSQLite:
		path := SQLitePath(cfg.StorePath)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		kv, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return kv.Close() })
		a.logger.Info("report store opened", "backend", "sqlite", "path", path)
		return store.WithQuota(kv, cfg.StoreMaxBytes), nil

	case config.BackendMongo:
		kv, err := mongoadapter.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, kv.Disconnect)
		a.logger.Info("report store opened", "backend", "mongo", "database", cfg.MongoDB)
		return store.WithQuota(kv, cfg.StoreMaxBytes), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// SQLitePath treats p as a database file when it has a .db or .sqlite
// extension and as a directory otherwise.
func SQLitePath(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".db", ".sqlite", ".sqlite3":
		return p
	}
	return filepath.Join(p, "ecosphere.db")
}
