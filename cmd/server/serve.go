package main

import (
	"SuggestBot/internal/adapters/eventbus"
	"SuggestBot/internal/adapters/memory"
	"SuggestBot/internal/adapters/postgres"
	"SuggestBot/internal/adapters/security"
	"SuggestBot/internal/adapters/sqlite"
	"SuggestBot/internal/adapters/telegram"
	"SuggestBot/internal/bot/journal"
	"SuggestBot/internal/core/ports"
	"SuggestBot/internal/shared/config"
	"SuggestBot/internal/shared/logger"
	"SuggestBot/internal/shared/metrics"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	baseLogger := logger.New(cfg.IsDev(), cfg.LogLevel)
	baseLogger.Info().
		Str("app_env", cfg.AppEnv).
		Str("version", version).
		Str("mode", cfg.Bot.Connection.Mode).
		Str("caption_mode", cfg.Submission.CaptionMode).
		Dur("ttl", cfg.Submission.TTL).
		Str("journal", cfg.Journal.Driver).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	bus := eventbus.NewInMemoryEventBus(&baseLogger)

	j, err := openJournal(ctx, cfg, &baseLogger)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() {
		// Let in-flight journal writes finish before closing.
		bus.Wait()
		if err := j.Close(); err != nil {
			baseLogger.Error().Err(err).Msg("Failed to close journal")
		}
	}()
	journal.NewRecorder(j, &baseLogger).Subscribe(bus)

	store := memory.NewSubmissionStore()
	orchestrator := telegram.NewOrchestrator(cfg, store, bus, &baseLogger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orchestrator.Start(gctx) })
	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Addr, registry, &baseLogger) })
	}

	baseLogger.Info().Msg("Application started")
	if err := g.Wait(); err != nil {
		baseLogger.Error().Err(err).Msg("Application stopped with error")
		return err
	}
	if n := store.Len(); n > 0 {
		baseLogger.Warn().Int("pending", n).Msg("Shutting down with unsent submissions")
	}
	baseLogger.Info().Msg("Application stopped")
	return nil
}

func openJournal(ctx context.Context, cfg *config.Config, baseLogger *zerolog.Logger) (ports.SubmissionJournal, error) {
	if cfg.Journal.Driver == config.JournalNone {
		return journal.Nop{}, nil
	}

	secSvc, err := security.NewAESServiceFromHex(cfg.EncryptionKey, baseLogger)
	if err != nil {
		return nil, err
	}

	switch cfg.Journal.Driver {
	case config.JournalPostgres:
		db, err := postgres.NewDB(ctx, cfg.Journal.DSN, baseLogger)
		if err != nil {
			return nil, err
		}
		return postgres.NewSubmissionJournal(db, secSvc, baseLogger), nil
	case config.JournalSQLite:
		return sqlite.Open(ctx, cfg.Journal.DSN, secSvc, baseLogger)
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Journal.Driver)
	}
}
