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

	"github.com/starford/notesjson/internal/api"
	"github.com/starford/notesjson/internal/inbox"
	"github.com/starford/notesjson/internal/mcpserver"
	"github.com/starford/notesjson/internal/sse"
)

// Run starts the HTTP server, the optional inbox watcher and the signal
// handler, and blocks until they stop.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("exchange_dir", cfg.Exchange.Dir),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(sse.Config{
		Throttle:  cfg.Events.Throttle,
		Heartbeat: cfg.Events.Heartbeat,
		History:   cfg.Events.History,
	})
	defer broker.Close()

	svcs, err := Open(cfg, logger, broker.PublishNoteEvent)
	if err != nil {
		return err
	}
	defer svcs.Close()

	var watcher *inbox.Watcher
	if cfg.Inbox.Enabled {
		mode, err := cfg.Inbox.ImportMode()
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
		watcher, err = inbox.New(inbox.Config{
			Dir:     cfg.Inbox.Path,
			Pattern: cfg.Inbox.Pattern,
			Mode:    mode,
		}, svcs.Notes, logger)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newHTTPHandler(cfg, svcs, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		// SSE streams only end when the broker closes them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so the inbox watcher stops too.
var errShutdown = errors.New("shutdown")

func newHTTPHandler(cfg *Config, svcs *Services, broker *sse.Broker) http.Handler {
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
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := svcs.Ready(r.Context()); err != nil {
			slog.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	var events http.Handler
	if broker != nil {
		events = broker
	}
	r.Mount("/api", api.NewRouter(svcs.Notes, cfg.Auth.AuthEnabled(), cfg.Auth.Token, events))

	return r
}

// RunMCP serves the MCP tools over stdin/stdout until the client disconnects.
// Logs go to stderr because stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}

	svcs, err := Open(app.config, logger, nil)
	if err != nil {
		return err
	}
	defer svcs.Close()

	files, err := svcs.Files()
	if err != nil {
		return fmt.Errorf("init exchange dir: %w", err)
	}

	logger.Info("MCP server starting on stdio",
		slog.String("sqlite_path", app.config.SQLite.Path),
		slog.String("exchange_dir", files.Root()))

	errCh := make(chan error, 1)
	go func() { errCh <- mcpserver.New(svcs.Notes, files, app.version).ServeStdio() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}
