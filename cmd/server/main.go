package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-content/internal/catalog"
	"github.com/p-n-ai/pai-content/internal/content"
	"github.com/p-n-ai/pai-content/internal/httpapi"
	"github.com/p-n-ai/pai-content/internal/platform/cache"
	"github.com/p-n-ai/pai-content/internal/platform/config"
	"github.com/p-n-ai/pai-content/internal/platform/database"
	"github.com/p-n-ai/pai-content/internal/platform/objectstore"
	"github.com/p-n-ai/pai-content/internal/seed"
	"github.com/p-n-ai/pai-content/internal/upload"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger from cfg. Unknown values fall back to
// info level and JSON output.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// app is the wired service with the resources it must release on exit.
type app struct {
	handler http.Handler
	catalog *catalog.Service
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects every configured backend and builds the router. Optional
// backends (cache, object storage, seed data) are skipped when not
// configured.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	checks := map[string]httpapi.Checker{}
	svcCfg := catalog.ServiceConfig{}

	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := database.Open(ctx, database.Options{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
			Migrate:  cfg.Database.Migrate,
		})
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		checks["database"] = db
		store, err := content.NewPostgresStore(db.Pool)
		if err != nil {
			return nil, err
		}
		svcCfg.Store = store
		svcCfg.Events = content.NewPostgresEventLog(db.Pool)
		slog.Info("database connected", "max_conns", cfg.Database.MaxConns)
	default:
		svcCfg.Store = content.NewMemoryStore()
		svcCfg.Events = content.NewMemoryEventLog()
		slog.Warn("using in-memory store; content is lost on restart")
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		checks["cache"] = c
		svcCfg.Cache = catalog.NewRedisTreeCache(c, cfg.Cache.TTL)
		slog.Info("course tree cache enabled", "ttl", cfg.Cache.TTL)
	}

	var uploads httpapi.Uploads
	if cfg.ObjectStorage.Enabled() {
		store, err := objectstore.NewGCS(ctx, cfg.ObjectStorage.Store())
		if err != nil {
			return nil, fmt.Errorf("object storage: %w", err)
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		checks["storage"] = store

		coord, err := upload.NewCoordinator(store, upload.Options{
			Bucket:       store.Bucket(),
			Prefix:       cfg.ObjectStorage.UploadPrefix,
			TTL:          cfg.ObjectStorage.UploadTTL,
			ManagedHosts: cfg.ObjectStorage.ManagedHosts,
			EmulatorHost: store.EmulatorHost(),
		})
		if err != nil {
			return nil, fmt.Errorf("upload coordinator: %w", err)
		}
		uploads = coord
		svcCfg.Normalizer = coord
	} else {
		slog.Warn("object storage not configured; uploads disabled")
	}

	a.catalog = catalog.NewService(svcCfg)

	if cfg.SeedPath != "" {
		if err := seedCatalog(ctx, a.catalog, cfg.SeedPath); err != nil {
			return nil, err
		}
	}

	a.handler = httpapi.NewRouter(httpapi.Config{
		Catalog:        a.catalog,
		Uploads:        uploads,
		Checks:         checks,
		MaxImportBytes: cfg.Server.MaxImportBytes,
	})
	return a, nil
}

// seedCatalog imports the YAML catalogs under dir. Individual catalog
// failures are logged by the importer and do not stop startup.
func seedCatalog(ctx context.Context, svc *catalog.Service, dir string) error {
	loader, err := seed.NewLoader(dir)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	res, err := seed.Import(ctx, svc, loader.Catalogs())
	if err != nil && res.Created == 0 && res.Skipped == 0 {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}
