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

	"github.com/AndresFMC/Canvas-Users-Manager/internal/config"
	"github.com/AndresFMC/Canvas-Users-Manager/internal/core"
	"github.com/AndresFMC/Canvas-Users-Manager/internal/logging"
	"github.com/AndresFMC/Canvas-Users-Manager/internal/metrics"
	"github.com/AndresFMC/Canvas-Users-Manager/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists. Real environment variables win.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"dataset_source", cfg.Dataset.Source,
		"export_max_concurrent", cfg.Export.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	store, err := loadDataset(cfg)
	if err != nil {
		attrs := append([]any{"source", cfg.Dataset.Source}, core.NewUserError(err).LogAttrs()...)
		slog.Error("failed to load dataset", attrs...)
		os.Exit(1)
	}

	slog.Info("dataset loaded",
		"users", store.Len(),
		"courses", len(store.Courses())-1,
		"bytes", store.SourceBytes(),
	)
	if n := store.InconsistentCount(); n > 0 {
		slog.Warn("users with num_courses 0 still list course codes; they are treated as having no courses",
			"count", n,
		)
	}

	collector := metrics.NewCollector()
	collector.SetDataset(store.Len(), len(store.Courses()), store.InconsistentCount())

	limiter := core.NewExportLimiter(cfg.Export.MaxConcurrent, cfg.Export.MaxWaitTime)
	service, err := core.NewService(store,
		core.WithExportLimiter(limiter),
		core.WithExportEntity(cfg.Export.Entity),
		core.WithObserver(collector),
	)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg, collector)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-sigCtx.Done()

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		shutdown(shutdownCtx, server, limiter)
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown stops the server before waiting for running backups, so no new
// backup can start while the limiter drains.
func shutdown(ctx context.Context, server shutdowner, limiter *core.ExportLimiter) {
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	if active := limiter.ActiveCount(); active > 0 {
		slog.Info("waiting for backups to complete", "active", active)
		if err := limiter.WaitForDrain(ctx); err != nil {
			slog.Warn("backups did not complete in time", "error", err)
		}
	}
}

// loadDataset reads the users dataset once, from the CSV file or from
// PostgreSQL depending on configuration.
func loadDataset(cfg *config.Config) (*core.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Dataset.LoadTimeout)
	defer cancel()

	switch cfg.Dataset.Source {
	case config.SourcePostgres:
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		// The dataset is loaded once; the pool is not needed afterwards.
		defer pool.Close()

		return core.Load(ctx, core.PostgresSource{
			Pool:    pool,
			Table:   cfg.Dataset.Table,
			OrderBy: cfg.Dataset.OrderBy,
		})
	default:
		return core.Load(ctx, core.CSVFileSource{Path: cfg.Dataset.Path})
	}
}

func openPool(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("connected to database", "host", poolConfig.ConnConfig.Host, "database", poolConfig.ConnConfig.Database)
	return pool, nil
}
