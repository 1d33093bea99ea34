// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/api"
	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/logging"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/pipeline"
	"github.com/starford/raido/internal/reports"
	"github.com/starford/raido/internal/sse"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Structured JSON logger: warnings and errors to stderr, the rest to stdout.
	logger := slog.New(logging.NewSplit(cfg.App.LogLevel, os.Stdout, os.Stderr))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("inbox_dir", cfg.Harvest.InboxDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	pipeCfg := pipeline.Config{
		Inbox:       cfg.Harvest.InboxDir,
		WorkDir:     cfg.Harvest.WorkDir,
		OutputDir:   cfg.Harvest.OutputDir,
		ErrorDir:    cfg.Harvest.ErrorDir,
		DeletesFile: cfg.Harvest.DeletesFile,
	}
	if err := pipeCfg.Validate(); err != nil {
		return err
	}
	for _, dir := range pipeCfg.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create harvest dir: %w", err)
		}
	}

	// Run-report index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if app.oneShot {
		pipe := pipeline.New(pipeCfg, db, logger, nil)
		summary, err := pipe.Run(ctx)
		if err != nil {
			return fmt.Errorf("harvest run: %w", err)
		}
		logger.Info("Harvest run complete",
			slog.Int("archives", summary.Archives),
			slog.Int("batches", summary.Batches),
			slog.Int("written", summary.Written),
			slog.Int("deleted", summary.Deleted),
			slog.Int("quarantined", summary.Quarantined))
		return nil
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	pipe := pipeline.New(pipeCfg, db, logger, broker.PublishPipelineEvent)
	svc := reports.NewService(db, cfg.Harvest.DeletesFile, pipe)

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Process whatever is already in the inbox, then watch for arrivals.
	g.Go(func() error {
		if _, err := pipe.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("initial harvest run failed", slog.String("error", err.Error()))
		}
		debounce := time.Duration(cfg.Harvest.DebounceSeconds) * time.Second
		if err := pipe.Watch(gCtx, debounce); err != nil {
			return fmt.Errorf("inbox watcher: %w", err)
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		broker.Close()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server over the same service stack. Logs go to
// stderr only, since stdout carries the protocol stream.
func RunMCP(ctx context.Context, cfg *Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	pipeCfg := pipeline.Config{
		Inbox:       cfg.Harvest.InboxDir,
		WorkDir:     cfg.Harvest.WorkDir,
		OutputDir:   cfg.Harvest.OutputDir,
		ErrorDir:    cfg.Harvest.ErrorDir,
		DeletesFile: cfg.Harvest.DeletesFile,
	}
	if err := pipeCfg.Validate(); err != nil {
		return err
	}
	for _, dir := range pipeCfg.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create harvest dir: %w", err)
		}
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	pipe := pipeline.New(pipeCfg, db, logger, nil)
	svc := reports.NewService(db, cfg.Harvest.DeletesFile, pipe)

	logger.Info("Starting MCP server on stdio")
	return mcpserver.New(svc).ServeStdio()
}
