package telegram

import (
	"SuggestBot/internal/bot/submission"
	"SuggestBot/internal/core/ports"
	"SuggestBot/internal/shared/config"
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Orchestrator wires the bot: API client, submission machine, expiry
// sweeper and update server.
type Orchestrator struct {
	cfg        *config.Config
	store      ports.SubmissionStore
	bus        ports.EventBus
	baseLogger *zerolog.Logger
	endpoint   string
}

func NewOrchestrator(
	cfg *config.Config,
	store ports.SubmissionStore,
	bus ports.EventBus,
	baseLogger *zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		bus:        bus,
		baseLogger: baseLogger,
		endpoint:   tgbotapi.APIEndpoint,
	}
}

// Start connects to Telegram and runs until ctx is cancelled or a
// component fails.
func (o *Orchestrator) Start(ctx context.Context) error {
	log := o.baseLogger.With().Str("bot", o.cfg.Bot.Username).Logger()

	api, err := NewAPI(o.cfg.Bot.Token, o.endpoint, o.cfg.IsDev())
	if err != nil {
		return err
	}
	log.Info().Str("username", api.Self.UserName).Msg("Bot API connected")
	if o.cfg.Bot.Username != "" && o.cfg.Bot.Username != api.Self.UserName {
		log.Warn().Str("configured", o.cfg.Bot.Username).Msg("Token belongs to a different bot than BOT_USERNAME")
	}

	client := NewClient(api, &log)
	if err := client.SetMenuCommands(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to set menu commands")
	}

	machine := submission.NewMachine(o.cfg, o.store, client, o.bus, &log)
	sweeper := submission.NewSweeper(o.cfg, o.store, client, o.bus, &log)
	router := NewRouter(machine, &log)
	server := NewBotServer(api, router, &o.cfg.Bot.Connection, &log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	return g.Wait()
}
