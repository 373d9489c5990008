package submission

import (
	"SuggestBot/internal/bot/messages"
	"SuggestBot/internal/core/domain"
	"SuggestBot/internal/core/ports"
	"SuggestBot/internal/shared/config"
	"SuggestBot/internal/shared/metrics"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sweeper drops submissions that have been left pending for longer than
// the configured TTL.
type Sweeper struct {
	log      zerolog.Logger
	store    ports.SubmissionStore
	bot      ports.BotClientPort
	bus      ports.EventBus
	ttl      time.Duration
	interval time.Duration
	notice   string
	now      func() time.Time
}

// NewSweeper creates a sweeper. A zero TTL makes Run a no-op.
func NewSweeper(
	cfg *config.Config,
	store ports.SubmissionStore,
	bot ports.BotClientPort,
	bus ports.EventBus,
	baseLogger *zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		log:      baseLogger.With().Str("component", "submission_sweeper").Logger(),
		store:    store,
		bot:      bot,
		bus:      bus,
		ttl:      cfg.Submission.TTL,
		interval: cfg.Submission.SweepInterval,
		notice:   cfg.Texts.Expired,
		now:      time.Now,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.ttl <= 0 {
		s.log.Info().Msg("Submission expiry disabled")
		return nil
	}

	s.log.Info().Dur("ttl", s.ttl).Dur("interval", s.interval).Msg("Starting submission sweeper")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Stopping submission sweeper")
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep expires stale submissions once and returns how many were dropped.
func (s *Sweeper) Sweep(ctx context.Context) int {
	expired := s.store.Expire(s.now().Add(-s.ttl))
	if len(expired) == 0 {
		return 0
	}
	metrics.PendingSubmissions.Set(float64(s.store.Len()))

	for _, e := range expired {
		log := s.log.With().Int64("user_id", e.UserID).Int("photos", len(e.Submission.PhotoRefs)).Logger()
		log.Info().Time("updated_at", e.Submission.UpdatedAt).Msg("Pending submission expired")
		metrics.SubmissionsTotal.WithLabelValues(string(domain.OutcomeExpired)).Inc()

		// Submissions are collected in private chats, where the chat id
		// equals the user id.
		rec := domain.SubmissionRecord{
			ID:        uuid.New(),
			UserID:    e.UserID,
			ChatID:    e.UserID,
			Caption:   e.Submission.Caption,
			PhotoRefs: e.Submission.PhotoRefs,
			Outcome:   domain.OutcomeExpired,
			CreatedAt: s.now(),
		}
		if err := s.bus.Publish(ctx, ports.TopicSubmissionExpired, rec); err != nil {
			log.Error().Err(err).Msg("Failed to publish expiry event")
		}

		if s.notice == "" {
			continue
		}
		msg := messages.NewBuilder(e.UserID).WithText(s.notice).Build()
		if _, err := s.bot.SendMessage(ctx, msg); err != nil {
			log.Warn().Err(err).Msg("Failed to notify user about expired submission")
		}
	}
	return len(expired)
}
