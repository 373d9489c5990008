package telegram

import (
	"SuggestBot/internal/core/domain"
	"context"
	"runtime/debug"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// EventHandler consumes parsed updates. submission.Machine implements it.
type EventHandler interface {
	Handle(ctx context.Context, event domain.Event)
}

// Router turns raw Telegram updates into domain events.
type Router struct {
	log     zerolog.Logger
	handler EventHandler
}

func NewRouter(handler EventHandler, baseLogger *zerolog.Logger) *Router {
	return &Router{
		log:     baseLogger.With().Str("component", "tg_router").Logger(),
		handler: handler,
	}
}

// HandleUpdate is the entry point for every update. A panic in the handler
// is logged and swallowed so one bad update cannot stop a worker.
func (r *Router) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	event, ok := ParseUpdate(update)
	if !ok {
		r.log.Debug().Int("update_id", update.UpdateID).Msg("Ignoring unsupported update")
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			userID, _ := event.Sender()
			r.log.Error().
				Interface("panic", rec).
				Int64("user_id", userID).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic while handling update")
		}
	}()

	r.handler.Handle(ctx, event)
}

// ParseUpdate maps an update onto a domain event. Updates without a sender
// (channel posts, edits, anonymous admins) are not supported.
func ParseUpdate(update *tgbotapi.Update) (domain.Event, bool) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.From == nil {
			return nil, false
		}
		e := domain.ButtonPressed{
			UserID:     cb.From.ID,
			ChatID:     cb.From.ID,
			CallbackID: cb.ID,
			Token:      cb.Data,
			From:       authorOf(cb.From),
		}
		if cb.Message != nil {
			e.MessageID = cb.Message.MessageID
			if cb.Message.Chat != nil {
				e.ChatID = cb.Message.Chat.ID
			}
		}
		return e, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil, false
	}
	userID, chatID, from := msg.From.ID, msg.Chat.ID, authorOf(msg.From)

	switch {
	case len(msg.Photo) > 0:
		// Sizes are sorted ascending; the last one is the original.
		return domain.PhotoReceived{
			UserID:    userID,
			ChatID:    chatID,
			MessageID: msg.MessageID,
			PhotoRef:  msg.Photo[len(msg.Photo)-1].FileID,
			Caption:   msg.Caption,
			From:      from,
		}, true

	case msg.IsCommand():
		return domain.Command{
			UserID:    userID,
			ChatID:    chatID,
			MessageID: msg.MessageID,
			Name:      msg.Command(),
			Args:      msg.CommandArguments(),
			From:      from,
		}, true

	case msg.Text != "":
		return domain.TextReceived{
			UserID:    userID,
			ChatID:    chatID,
			MessageID: msg.MessageID,
			Text:      msg.Text,
			From:      from,
		}, true
	}

	return nil, false
}

func authorOf(u *tgbotapi.User) domain.Author {
	return domain.Author{FirstName: u.FirstName, LastName: u.LastName}
}
