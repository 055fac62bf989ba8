// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/playtrace/internal/api"
	"github.com/starford/playtrace/internal/catalog"
	"github.com/starford/playtrace/internal/hub"
	"github.com/starford/playtrace/internal/sse"
	"github.com/starford/playtrace/internal/store"
)

// Open builds a hub service from cfg without starting any server. events
// may be nil; captureSlog also records slog.Default output as console
// entries.
func Open(cfg *Config, events hub.Events, out io.Writer, captureSlog bool, logger *slog.Logger) (*hub.Service, error) {
	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.Warn("catalog load failed, starting with an empty catalog",
			slog.String("path", cfg.Catalog.Path),
			slog.String("error", err.Error()))
		cat = catalog.FromItems(nil)
	}

	svc, err := hub.New(st, cat, events, hub.Settings{
		ConsoleCapacity: cfg.Console.Capacity,
		DisplayWindow:   cfg.Console.Window,
		NoteDebounce:    cfg.Notes.Debounce,
		AgentCapacity:   cfg.Inject.AgentCapacity,
		InjectEnabled:   cfg.Inject.Enabled,
		AllowedOrigins:  cfg.Relay.AllowedOrigins,
		Output:          out,
		CaptureSlog:     captureSlog,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return svc, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	if app.consoleOutput == nil {
		app.consoleOutput = os.Stderr
	}

	cfg := app.config

	// Initialize structured JSON logger. It must be the default before the
	// console interceptor wraps slog.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("store_path", cfg.Store.Path),
		slog.String("catalog_path", cfg.Catalog.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(64)
	defer broker.Close()

	// The store keeps the uncaptured logger so its own diagnostics never
	// feed back into the console buffer.
	svc, err := Open(cfg, broker, app.consoleOutput, true, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("hub close failed", slog.String("error", err.Error()))
		}
	}()

	broker.OnConnect(svc.PublishSnapshot)

	if len(cfg.Relay.AllowedOrigins) == 0 {
		logger.Info("relay accepts messages from any origin")
	}

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

	slog.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Cancelled on shutdown so that background loops stop with the server.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	g, gCtx := errgroup.WithContext(runCtx)

	// Reload the catalog when its file changes.
	if cfg.Catalog.Watch {
		g.Go(func() error {
			err := catalog.Watch(gCtx, svc.Catalog(), logger, func(items []catalog.Item) {
				slog.Info("catalog reloaded", slog.Int("games", len(items)))
			})
			if err != nil {
				logger.Warn("catalog watcher disabled", slog.String("error", err.Error()))
			}
			return nil
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
		cancelRun()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// SSE streams only end when the broker closes.
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
