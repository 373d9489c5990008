// Package submission implements the photo submission flow: users send
// photos (and optionally a caption), then press ready to forward them to the
// moderation chat, or cancel to discard them.
//
// A user is IDLE when the store holds nothing for them and ACCUMULATING
// otherwise; the state is never stored separately.
package submission

import (
	"SuggestBot/internal/bot/messages"
	"SuggestBot/internal/core/domain"
	"SuggestBot/internal/core/ports"
	"SuggestBot/internal/shared/config"
	"SuggestBot/internal/shared/metrics"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Callback tokens carried by the inline buttons under the prompt.
const (
	TokenReady  = "submission:ready"
	TokenCancel = "submission:cancel"
)

// Machine reacts to inbound events for every user.
type Machine struct {
	log           zerolog.Logger
	store         ports.SubmissionStore
	bot           ports.BotClientPort
	bus           ports.EventBus
	packager      Packager
	moderationID  int64
	captionMode   string
	readyKeyword  string
	cancelKeyword string
	texts         config.Texts
	now           func() time.Time
}

// NewMachine wires the submission flow.
func NewMachine(
	cfg *config.Config,
	store ports.SubmissionStore,
	bot ports.BotClientPort,
	bus ports.EventBus,
	baseLogger *zerolog.Logger,
) *Machine {
	return &Machine{
		log:           baseLogger.With().Str("component", "submission_machine").Logger(),
		store:         store,
		bot:           bot,
		bus:           bus,
		packager:      Packager{AuthorLabel: cfg.Texts.AuthorLabel},
		moderationID:  cfg.Bot.ModerationChatID,
		captionMode:   cfg.Submission.CaptionMode,
		readyKeyword:  cfg.Submission.ReadyKeyword,
		cancelKeyword: cfg.Submission.CancelKeyword,
		texts:         cfg.Texts,
		now:           time.Now,
	}
}

// Handle processes one event. It never fails: delivery errors are logged
// and, where it helps, reported to the user.
func (m *Machine) Handle(ctx context.Context, event domain.Event) {
	userID, chatID := event.Sender()
	log := m.log.With().Int64("user_id", userID).Int64("chat_id", chatID).Logger()
	ctx = log.WithContext(ctx)

	metrics.UpdatesTotal.WithLabelValues(domain.Kind(event)).Inc()

	switch e := event.(type) {
	case domain.PhotoReceived:
		m.handlePhoto(ctx, e)
	case domain.TextReceived:
		m.handleText(ctx, e)
	case domain.ButtonPressed:
		m.handleButton(ctx, e)
	case domain.Command:
		m.handleCommand(ctx, e)
	default:
		log.Warn().Str("kind", domain.Kind(event)).Msg("Unhandled event type")
	}
}

func (m *Machine) handlePhoto(ctx context.Context, e domain.PhotoReceived) {
	count := m.store.AddPhoto(e.UserID, e.PhotoRef, e.Caption)
	metrics.PhotosReceived.Inc()
	m.refreshPendingGauge()

	zerolog.Ctx(ctx).Debug().Int("photos", count).Msg("Photo added to submission")

	// Only the first photo gets the prompt; an album arrives as several
	// messages and should not produce several keyboards.
	if count == 1 {
		msg := messages.NewBuilder(e.ChatID).
			WithText(m.texts.Prompt).
			WithInlineRow(
				ports.Button{Text: m.texts.ReadyButton, Data: TokenReady},
				ports.Button{Text: m.texts.CancelButton, Data: TokenCancel},
			).
			Build()
		if _, err := m.bot.SendMessage(ctx, msg); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to send ready/cancel prompt")
		}
	}
}

func (m *Machine) handleText(ctx context.Context, e domain.TextReceived) {
	log := zerolog.Ctx(ctx)

	switch {
	case m.matches(e.Text, m.readyKeyword):
		m.ready(ctx, e.UserID, e.ChatID, e.From, 0)
		return
	case m.matches(e.Text, m.cancelKeyword):
		m.cancel(ctx, e.UserID, e.ChatID, e.From, 0)
		return
	}

	if m.captionMode != config.CaptionModeText {
		log.Debug().Msg("Ignoring plain text (captions come from photos only)")
		return
	}
	if !m.store.SetCaption(e.UserID, e.Text) {
		log.Debug().Msg("Ignoring plain text without pending photos")
		return
	}

	log.Debug().Msg("Caption updated")
	m.reply(ctx, e.ChatID, m.texts.CaptionSaved)
}

func (m *Machine) handleButton(ctx context.Context, e domain.ButtonPressed) {
	log := zerolog.Ctx(ctx)

	if e.CallbackID != "" {
		if err := m.bot.AnswerCallbackQuery(ctx, ports.AnswerCallbackParams{CallbackQueryID: e.CallbackID}); err != nil {
			log.Warn().Err(err).Msg("Failed to answer callback query")
		}
	}

	switch e.Token {
	case TokenReady:
		m.ready(ctx, e.UserID, e.ChatID, e.From, e.MessageID)
	case TokenCancel:
		m.cancel(ctx, e.UserID, e.ChatID, e.From, e.MessageID)
	default:
		log.Warn().Str("data", e.Token).Msg("Unknown callback token")
	}
}

func (m *Machine) handleCommand(ctx context.Context, e domain.Command) {
	switch strings.ToLower(e.Name) {
	case "start":
		m.reply(ctx, e.ChatID, m.texts.Welcome)
	case "support", "help":
		m.reply(ctx, e.ChatID, m.texts.Support)
	default:
		zerolog.Ctx(ctx).Debug().Str("command", e.Name).Msg("Ignoring unknown command")
	}
}

// ready forwards the user's submission to moderation. buttonMsgID is the
// message holding the keyboard, or 0 when the keyword was typed.
func (m *Machine) ready(ctx context.Context, userID, chatID int64, from domain.Author, buttonMsgID int) {
	sub, ok := m.store.TakeAndClear(userID)
	if !ok {
		m.reply(ctx, chatID, m.texts.PhotosFirst)
		return
	}
	m.refreshPendingGauge()

	pkg := m.packager.Build(sub, from)
	rec := m.record(userID, chatID, from, sub.Caption, pkg.PhotoRefs(), domain.OutcomeDispatched)

	log := zerolog.Ctx(ctx).With().
		Str("submission_id", rec.ID.String()).
		Int("photos", len(sub.PhotoRefs)).
		Str("package", pkg.Kind.String()).
		Logger()

	if err := dispatch(ctx, m.bot, m.moderationID, pkg); err != nil {
		log.Error().Err(err).Msg("Failed to forward submission to moderation")
		// Give the photos back so the user can press ready again.
		m.store.Restore(userID, sub)
		m.refreshPendingGauge()
		m.reply(ctx, chatID, m.texts.DeliveryFailed)
		return
	}

	log.Info().Msg("Submission forwarded to moderation")
	metrics.SubmissionsTotal.WithLabelValues(string(domain.OutcomeDispatched)).Inc()
	m.publish(ctx, ports.TopicSubmissionDispatched, rec)

	m.reply(ctx, chatID, m.texts.ReadyConfirm)
	if buttonMsgID != 0 {
		m.deleteMessage(ctx, chatID, buttonMsgID)
	}
}

func (m *Machine) cancel(ctx context.Context, userID, chatID int64, from domain.Author, buttonMsgID int) {
	if sub, ok := m.store.TakeAndClear(userID); ok {
		m.refreshPendingGauge()
		zerolog.Ctx(ctx).Info().Int("photos", len(sub.PhotoRefs)).Msg("Submission cancelled")
		metrics.SubmissionsTotal.WithLabelValues(string(domain.OutcomeCancelled)).Inc()
		m.publish(ctx, ports.TopicSubmissionCancelled,
			m.record(userID, chatID, from, sub.Caption, sub.PhotoRefs, domain.OutcomeCancelled))
	}

	m.reply(ctx, chatID, m.texts.Cancelled)
	if buttonMsgID != 0 {
		m.deleteMessage(ctx, chatID, buttonMsgID)
	}
}

func (m *Machine) matches(text, keyword string) bool {
	return strings.EqualFold(strings.TrimSpace(text), keyword)
}

func (m *Machine) reply(ctx context.Context, chatID int64, text string) {
	msg := messages.NewBuilder(chatID).WithText(text).Build()
	if _, err := m.bot.SendMessage(ctx, msg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to send reply")
	}
}

func (m *Machine) deleteMessage(ctx context.Context, chatID int64, messageID int) {
	if err := m.bot.DeleteMessage(ctx, chatID, messageID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("message_id", messageID).Msg("Failed to delete button message")
	}
}

func (m *Machine) record(
	userID, chatID int64,
	from domain.Author,
	caption string,
	refs []string,
	outcome domain.SubmissionOutcome,
) domain.SubmissionRecord {
	return domain.SubmissionRecord{
		ID:        uuid.New(),
		UserID:    userID,
		ChatID:    chatID,
		Author:    from,
		Caption:   caption,
		PhotoRefs: refs,
		Outcome:   outcome,
		CreatedAt: m.now(),
	}
}

func (m *Machine) publish(ctx context.Context, topic string, rec domain.SubmissionRecord) {
	if err := m.bus.Publish(ctx, topic, rec); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("Failed to publish submission event")
	}
}

func (m *Machine) refreshPendingGauge() {
	metrics.PendingSubmissions.Set(float64(m.store.Len()))
}
