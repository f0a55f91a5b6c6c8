package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/halvard/jera/internal/bulkedit"
	"github.com/halvard/jera/internal/index"
	"github.com/halvard/jera/internal/mcpserver"
	"github.com/halvard/jera/internal/recurrence"
	"github.com/halvard/jera/internal/storage"
)

// autoPrompter resolves recurrence prompts without a user. Stdio transport
// has no dialog surface, so every prompt takes the default path and gets
// logged for the operator.
type autoPrompter struct {
	logger *slog.Logger
}

func (p autoPrompter) RequestChoice(ctx context.Context, req recurrence.Request) (recurrence.Choice, error) {
	p.logger.Info("auto-resolving recurrence prompt",
		slog.String("path", req.Path),
		slog.String("kind", string(req.Kind)))
	return recurrence.ChoiceUpdateAll, nil
}

// RunMCP starts the MCP stdio server. Stdout carries the protocol, so the
// logger writes to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	settings := cfg.Recurrence.Settings()
	tracker := recurrence.NewTracker(cfg.Recurrence.SuppressionWindow())
	occStore := recurrence.NewStore(store, settings.DefaultStatus, logger,
		recurrence.WithTouched(tracker.MarkInteracted))
	orch := recurrence.NewOrchestrator(settings, occStore, tracker,
		autoPrompter{logger: logger}, indexMetadata{db: db, store: store}, logger)
	scanner := recurrence.NewScanner(settings, orch, db, store, logger)
	bulk := bulkedit.NewCoordinator(store, db, orch, settings, logger,
		bulkedit.WithTouched(tracker.MarkInteracted),
		bulkedit.WithSettleDelay(cfg.Recurrence.SettleDelay()))

	logger.Info("MCP server starting on stdio", slog.String("vault_path", cfg.Vault.Path))
	return mcpserver.New(store, db, bulk, scanner).ServeStdio()
}
