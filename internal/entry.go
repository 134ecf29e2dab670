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

	"github.com/starford/vaultgraph/internal/api"
	"github.com/starford/vaultgraph/internal/graphservice"
	"github.com/starford/vaultgraph/internal/index"
	"github.com/starford/vaultgraph/internal/mcpserver"
	"github.com/starford/vaultgraph/internal/sse"
	"github.com/starford/vaultgraph/internal/storage"
)

// Runtime bundles the storage, keyword index and graph service of one vault.
type Runtime struct {
	Store   storage.Provider
	DB      *index.DB
	Service *graphservice.Service
}

// Close releases the SQLite index.
func (r *Runtime) Close() error {
	return r.DB.Close()
}

// NewRuntime opens the vault, the SQLite index and the graph service.
// onEvent may be nil.
func NewRuntime(cfg *Config, logger *slog.Logger, onEvent func(string, any)) (*Runtime, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	svc := graphservice.NewService(store, db, graphservice.Options{
		CacheDir:       cfg.Cache.Dir,
		Activation:     cfg.Activation.Params(),
		MinScore:       cfg.Suggest.MinScore,
		MaxSuggestions: cfg.Suggest.MaxSuggestions,
		StaleRatio:     cfg.Rebuild.StaleRatio,
		AutoRebuild:    cfg.Rebuild.Auto,
		OnEvent:        onEvent,
		Logger:         logger,
	})
	return &Runtime{Store: store, DB: db, Service: svc}, nil
}

// OpenRuntime builds a runtime from options for one-shot commands. Logs go
// to stderr so stdout stays free for command output.
func OpenRuntime(opts ...Option) (*Runtime, error) {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return nil, err
	}
	return NewRuntime(app.config, app.logger, nil)
}

// Run starts the HTTP server and the vault watcher with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("cache_dir", cfg.Cache.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker receives stale and graph events from the service.
	broker := sse.NewBroker(cfg.Rebuild.EventThrottle)
	defer broker.Close()

	rt, err := NewRuntime(cfg, logger, broker.Emit)
	if err != nil {
		return err
	}
	defer rt.Close()
	svc := rt.Service

	// Load the cached graph, or build one when there is none yet.
	if _, err := svc.Current(ctx); err != nil {
		res, err := svc.Build(ctx, graphservice.BuildRequest{})
		if err != nil {
			logger.Warn("initial build failed", slog.String("error", err.Error()))
		} else {
			logger.Info("initial build finished",
				slog.Int("nodes", res.NodeCount),
				slog.Int("invalid", len(res.Invalid)))
		}
	} else if err := index.Sync(rt.DB, rt.Store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := svc.Current(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"graph not built"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api; the broker is served at /api/events.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Every markdown change is reindexed by the watcher and lands in the
	// stale ledger; the service rebuilds once the stale ratio is crossed.
	if cfg.Rebuild.Watch {
		g.Go(func() error {
			return index.Watch(gCtx, rt.DB, rt.Store, cfg.Vault.Path, logger, func(kind, path string) {
				logger.Debug("vault change", slog.String("kind", kind), slog.String("path", path))
				if err := svc.MarkStale(gCtx, path); err != nil {
					logger.Warn("mark stale failed", slog.String("path", path), slog.String("error", err.Error()))
				}
			})
		})
	}

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
		defer signal.Stop(quit)

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

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the graph tools over MCP stdio. Logs go to stderr because
// stdout carries the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(app.logger)

	rt, err := NewRuntime(app.config, app.logger, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	return mcpserver.New(rt.Service, rt.Store, app.version).ServeStdio()
}
