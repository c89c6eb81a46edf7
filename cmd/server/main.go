package main

import (
	"context"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/fakedata/internal/catalog"
	_ "github.com/JonMunkholm/fakedata/internal/catalog/builtin" // Register bundled resources
	"github.com/JonMunkholm/fakedata/internal/config"
	"github.com/JonMunkholm/fakedata/internal/core"
	"github.com/JonMunkholm/fakedata/internal/logging"
	"github.com/JonMunkholm/fakedata/internal/resources"
	"github.com/JonMunkholm/fakedata/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	// Database is optional: without it exports are disabled
	var db core.TxBeginner
	if cfg.Database.Enabled() {
		pool, err := connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		db = pool
	} else {
		slog.Warn("DATABASE_URL not set, exports disabled")
	}

	// Resource source: bundled data unless RESOURCES_DIR overrides it
	var fsys fs.FS = resources.FS()
	if cfg.Resources.Dir != "" {
		fsys = os.DirFS(cfg.Resources.Dir)
		slog.Info("reading resources from directory", "dir", cfg.Resources.Dir)
	}

	cache, err := core.NewReaderCache(fsys, slog.Default())
	if err != nil {
		slog.Error("failed to create resource cache", "error", err)
		os.Exit(1)
	}

	service, err := core.NewService(cache, db, core.Config{
		Schema:               cfg.Export.Schema,
		TablePrefix:          cfg.Export.TablePrefix,
		Truncate:             cfg.Export.Truncate,
		MaxConcurrentExports: cfg.Export.MaxConcurrent,
		MaxExportWait:        cfg.Export.MaxWaitTime,
		ExportTimeout:        cfg.Export.Timeout,
		PreloadConcurrency:   cfg.Resources.PreloadConcurrency,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	// Log registered resources
	slog.Info("resources registered",
		"count", catalog.Count(),
		"groups", len(catalog.Groups()),
	)
	for _, group := range catalog.Groups() {
		slog.Debug("resource group", "group", group, "resources", len(catalog.ByGroup(group)))
	}

	if cfg.Resources.Preload {
		if err := service.Preload(ctx); err != nil {
			slog.Error("failed to preload resources", "error", err)
			os.Exit(1)
		}
	}

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for running exports to commit (with timeout)
		if status := service.ExportStatus(); status.Active > 0 {
			slog.Info("waiting for exports to complete", "active", status.Active)
			if err := service.WaitForExports(shutdownCtx); err != nil {
				slog.Warn("exports did not complete in time", "error", err)
			} else {
				slog.Info("all exports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// connect opens and verifies the connection pool.
func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
