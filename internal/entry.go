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

	"github.com/halvard/jera/internal/api"
	"github.com/halvard/jera/internal/bulkedit"
	"github.com/halvard/jera/internal/decision"
	"github.com/halvard/jera/internal/index"
	"github.com/halvard/jera/internal/noteservice"
	"github.com/halvard/jera/internal/parser"
	"github.com/halvard/jera/internal/recurrence"
	"github.com/halvard/jera/internal/sse"
	"github.com/halvard/jera/internal/storage"
)

// indexMetadata resolves frontmatter from the metadata cache, falling back to
// a raw file parse for notes the index has not caught up with yet.
type indexMetadata struct {
	db    *index.DB
	store storage.Provider
}

func (m indexMetadata) Frontmatter(path string) (map[string]interface{}, error) {
	fm, err := m.db.Frontmatter(path)
	if err == nil && fm != nil {
		return fm, nil
	}
	raw, err := m.store.Read(path)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	return res.Frontmatter, nil
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

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("recurrence_enabled", cfg.Recurrence.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite metadata cache.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker carries note events, notices, and decision prompts.
	broker := sse.NewBroker()
	notify := recurrence.Notifier(broker.PublishNotice)

	// Recurrence engine.
	settings := cfg.Recurrence.Settings()
	tracker := recurrence.NewTracker(cfg.Recurrence.SuppressionWindow())
	occStore := recurrence.NewStore(store, settings.DefaultStatus, logger,
		recurrence.WithNotifier(notify),
		recurrence.WithTouched(tracker.MarkInteracted))

	decisions := decision.NewRegistry()
	prompter := decision.NewPrompter(decisions, broker, logger)

	orch := recurrence.NewOrchestrator(settings, occStore, tracker, prompter,
		indexMetadata{db: db, store: store}, logger)
	scanner := recurrence.NewScanner(settings, orch, db, store, logger)

	bulk := bulkedit.NewCoordinator(store, db, orch, settings, logger,
		bulkedit.WithNotifier(notify),
		bulkedit.WithTouched(tracker.MarkInteracted),
		bulkedit.WithSettleDelay(cfg.Recurrence.SettleDelay()))

	svc := noteservice.NewService(store, db)

	g, gCtx := errgroup.WithContext(ctx)

	apiRouter := api.NewRouter(api.Deps{
		Service:     svc,
		Bulk:        bulk,
		Orch:        orch,
		Tracker:     tracker,
		Scanner:     scanner,
		Decisions:   decisions,
		TriggerCtx:  gCtx,
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		SSE:         broker,
	})

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

	// Start file watcher: external edits update the index, notify SSE
	// clients, and feed the content-modification trigger. Prompt evaluation
	// runs off the watcher loop so an open dialog never stalls indexing.
	g.Go(func() error {
		return index.Watch(gCtx, db, store, cfg.Vault.Path, logger, func(kind, path string) {
			broker.PublishNoteEvent(kind, path)
			if kind == "created" || kind == "updated" {
				go orch.HandleContentEdit(gCtx, path)
			}
		})
	})

	// Run the healing pass once, after a fixed delay that lets the index
	// settle.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return nil
		case <-time.After(cfg.Recurrence.HealingDelay()):
		}
		healed, err := scanner.ScanAndHeal(gCtx)
		if err != nil {
			logger.Warn("healing scan failed", slog.String("error", err.Error()))
			return nil
		}
		logger.Info("healing scan finished", slog.Int("healed", healed))
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

		// Resolve outstanding prompts as cancel and drop session state.
		decisions.Close()
		tracker.ClearAll()
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
