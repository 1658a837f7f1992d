// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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

	"github.com/starford/glimpse/internal/api"
	"github.com/starford/glimpse/internal/assistant"
	"github.com/starford/glimpse/internal/cascade"
	"github.com/starford/glimpse/internal/generate"
	"github.com/starford/glimpse/internal/index"
	"github.com/starford/glimpse/internal/mcpserver"
	"github.com/starford/glimpse/internal/recordservice"
	"github.com/starford/glimpse/internal/sse"
	"github.com/starford/glimpse/internal/storage"
)

// Query modes for RunQuery.
const (
	QueryContext     = "context"
	QueryContextJSON = "context-json"
	QueryAsk         = "ask"
)

// runtime holds the components shared by every entrypoint.
type runtime struct {
	cfg       *Config
	logger    *slog.Logger
	store     storage.Provider
	db        *index.DB
	svc       *recordservice.Service
	engine    *cascade.Engine
	assistant *assistant.Assistant
}

func newApplication(opts []Option) (*application, error) {
	app := &application{
		version:   "dev",
		output:    os.Stdout,
		logOutput: os.Stdout,
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup opens the inbox and index, runs the initial sync and wires the
// retrieval and generation components.
func setup(app *application) (*runtime, error) {
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("inbox_path", cfg.Inbox.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("generator_model", cfg.Generator.Model),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Inbox.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svc := recordservice.NewService(store, db)
	engine := cascade.NewEngine(db, cascade.WithLogger(logger))

	gen := app.generator
	if gen == nil {
		gen = generate.NewClient(cfg.Generator.ClientConfig(), logger)
	}

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		db:        db,
		svc:       svc,
		engine:    engine,
		assistant: assistant.New(engine, gen, cfg.Generator.SystemPrompt, logger),
	}, nil
}

func (rt *runtime) close() {
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("close index failed", slog.String("error", err.Error()))
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the HTTP server, the inbox watcher and the SSE broker.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := setup(app)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg, logger := rt.cfg, rt.logger

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(rt.svc, rt.engine, rt.assistant, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthHandler)
	r.Get("/health/ready", healthHandler)

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return index.Watch(gCtx, rt.db, rt.store, cfg.Inbox.Path, logger, broker.PublishRecordEvent)
	})

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

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio while watching the inbox.
// Logs go to stderr unless overridden, since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	rt, err := setup(app)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := index.Watch(ctx, rt.db, rt.store, rt.cfg.Inbox.Path, rt.logger, nil); err != nil {
			rt.logger.Error("watcher failed", slog.String("error", err.Error()))
		}
	}()

	srv := mcpserver.New(rt.svc, rt.engine, app.version)
	rt.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// RunQuery answers a single query from the command line and prints the
// result. mode is one of QueryContext, QueryContextJSON, QueryAsk.
func RunQuery(ctx context.Context, mode, query string, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	rt, err := setup(app)
	if err != nil {
		return err
	}
	defer rt.close()

	switch mode {
	case QueryContext:
		_, err = fmt.Fprintln(app.output, cascade.Render(rt.engine.Build(ctx, query)))
	case QueryContextJSON:
		enc := json.NewEncoder(app.output)
		enc.SetIndent("", "  ")
		err = enc.Encode(rt.engine.Build(ctx, query))
	case QueryAsk:
		var ans *assistant.Answer
		ans, err = rt.assistant.Ask(ctx, query)
		if err == nil {
			_, err = fmt.Fprintln(app.output, ans.Text)
		}
	default:
		err = fmt.Errorf("unknown query mode %q", mode)
	}
	return err
}
