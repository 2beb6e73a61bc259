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

	"github.com/skyboj/obsidian-ai-blogger/internal/api"
	"github.com/skyboj/obsidian-ai-blogger/internal/bot"
	"github.com/skyboj/obsidian-ai-blogger/internal/index"
	"github.com/skyboj/obsidian-ai-blogger/internal/mcpserver"
	"github.com/skyboj/obsidian-ai-blogger/internal/metrics"
)

// Run starts the Telegram bot together with the HTTP API and the draft
// watcher, and blocks until a termination signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := NewApp(ctx, opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config
	logger := app.Logger

	tg, err := bot.NewTelegram(cfg.Telegram.Token, cfg.Telegram.SendRate, cfg.Telegram.PollTimeout, logger)
	if err != nil {
		return err
	}
	deps := bot.Deps{
		Messenger: tg,
		Limiter:   app.Limiter,
		Generator: app.Service,
		Drafts:    app.Drafts,
		Pipeline:  app.Pipeline,
		AI:        app.AI,
		Images:    app.Images,
		Metrics:   app.Metrics,
		Logger:    logger,
	}
	if app.Preview != nil {
		deps.Preview = app.Preview
	}
	b := bot.New(deps, bot.Info{
		Name:     cfg.Bot.Name,
		Version:  app.Version,
		Admins:   cfg.Telegram.AdminIDs,
		Commands: cfg.Commands,
	})

	var httpServer *http.Server
	if cfg.App.HTTP.Enabled() {
		httpServer = &http.Server{
			Addr:    cfg.App.HTTP.Address(),
			Handler: NewHandler(app),
		}
	}

	logger.Info("Bot starting...", slog.String("username", tg.Username()), slog.Int("admins", len(cfg.Telegram.AdminIDs)))

	return serve(ctx, app, httpServer, func(ctx context.Context) error {
		return b.Run(ctx, tg)
	})
}

// serve runs the watcher, the poller and the optional HTTP server until a
// signal arrives or the poller returns. httpServer may be nil.
func serve(ctx context.Context, app *App, httpServer *http.Server, poll func(context.Context) error) error {
	logger := app.Logger

	g, gCtx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gCtx)
	defer stop()

	// Keep the index and SSE clients in step with the output directory.
	g.Go(func() error {
		if err := index.Watch(runCtx, app.Index, app.Content, app.Config.Content.OutputDir, logger, app.Broker.PublishDraftEvent); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// The process lives as long as the poller does.
	g.Go(func() error {
		defer stop()
		if err := poll(runCtx); err != nil {
			return err
		}
		if runCtx.Err() == nil {
			logger.Warn("Telegram updates ended, shutting down")
		}
		return nil
	})

	if httpServer != nil {
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-runCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		stop()

		if httpServer != nil {
			logger.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Bot stopped successfully")
	return nil
}

// NewHandler builds the HTTP surface: health checks, metrics and the API
// under /api.
func NewHandler(app *App) http.Handler {
	cfg := app.Config

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
		if err := app.Index.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.MetricsPath != "" {
		r.Handle(cfg.MetricsPath, metrics.Handler(app.Registry))
	}

	r.Mount("/api", api.NewRouter(app.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, app.Broker,
		api.WithLimiter(app.Limiter, app.Metrics.RecordRateLimited)))
	return r
}

// ServeMCP exposes the draft tools over stdio until stdin closes.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := NewApp(ctx, opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Logger.Info("MCP server starting", slog.String("version", app.Version))
	return mcpserver.New(app.Service, app.Version,
		mcpserver.WithLimiter(app.Limiter, app.Metrics.RecordRateLimited)).ServeStdio()
}
