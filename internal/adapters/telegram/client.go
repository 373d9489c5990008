package telegram

import (
	"SuggestBot/internal/core/ports"
	"SuggestBot/internal/shared/metrics"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	defaultMaxTries        = 3
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 5 * time.Second
)

// NewAPI connects to the Bot API with an HTTP client tuned for it. endpoint
// is tgbotapi.APIEndpoint outside of tests.
func NewAPI(token, endpoint string, debug bool) (*tgbotapi.BotAPI, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	// Long polling holds the request open, so the client timeout must be
	// well above the polling timeout.
	client := &http.Client{Transport: transport, Timeout: 90 * time.Second}

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect to bot api: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// tgClient implements the BotClientPort.
type tgClient struct {
	api             *tgbotapi.BotAPI
	log             zerolog.Logger
	maxTries        uint
	initialInterval time.Duration
}

var _ ports.BotClientPort = (*tgClient)(nil)

func NewClient(api *tgbotapi.BotAPI, baseLogger *zerolog.Logger) ports.BotClientPort {
	return &tgClient{
		api:             api,
		log:             baseLogger.With().Str("component", "tg_client").Logger(),
		maxTries:        defaultMaxTries,
		initialInterval: defaultInitialInterval,
	}
}

func (c *tgClient) SendMessage(ctx context.Context, params ports.SendMessageParams) (int, error) {
	msg := tgbotapi.NewMessage(params.ChatID, params.Text)
	msg.ParseMode = params.ParseMode
	if params.ReplyMarkup != nil && len(params.ReplyMarkup.Buttons) > 0 {
		msg.ReplyMarkup = buildInlineKeyboard(params.ReplyMarkup.Buttons)
	}

	sent, err := call(ctx, c, "sendMessage", params.ChatID, func() (tgbotapi.Message, error) {
		return c.api.Send(msg)
	})
	return sent.MessageID, err
}

func (c *tgClient) SendPhoto(ctx context.Context, params ports.SendPhotoParams) (int, error) {
	photo := tgbotapi.NewPhoto(params.ChatID, tgbotapi.FileID(params.FileID))
	photo.Caption = params.Caption
	photo.ParseMode = params.ParseMode

	sent, err := call(ctx, c, "sendPhoto", params.ChatID, func() (tgbotapi.Message, error) {
		return c.api.Send(photo)
	})
	return sent.MessageID, err
}

func (c *tgClient) SendMediaGroup(ctx context.Context, params ports.SendMediaGroupParams) ([]int, error) {
	media := make([]interface{}, len(params.Items))
	for i, item := range params.Items {
		p := tgbotapi.NewInputMediaPhoto(tgbotapi.FileID(item.FileID))
		p.Caption = item.Caption
		p.ParseMode = item.ParseMode
		media[i] = p
	}
	group := tgbotapi.NewMediaGroup(params.ChatID, media)

	sent, err := call(ctx, c, "sendMediaGroup", params.ChatID, func() ([]tgbotapi.Message, error) {
		return c.api.SendMediaGroup(group)
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int, len(sent))
	for i, m := range sent {
		ids[i] = m.MessageID
	}
	return ids, nil
}

func (c *tgClient) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := call(ctx, c, "deleteMessage", chatID, func() (*tgbotapi.APIResponse, error) {
		return c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	})
	return err
}

// AnswerCallbackQuery stops the spinner on the pressed button.
func (c *tgClient) AnswerCallbackQuery(ctx context.Context, params ports.AnswerCallbackParams) error {
	cb := tgbotapi.NewCallback(params.CallbackQueryID, params.Text)
	cb.ShowAlert = params.ShowAlert

	_, err := call(ctx, c, "answerCallbackQuery", 0, func() (*tgbotapi.APIResponse, error) {
		return c.api.Request(cb)
	})
	return err
}

func (c *tgClient) SetMenuCommands(ctx context.Context) error {
	commands := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "How to send a photo"},
		tgbotapi.BotCommand{Command: "support", Description: "Contact the editors"},
	)
	_, err := call(ctx, c, "setMyCommands", 0, func() (*tgbotapi.APIResponse, error) {
		return c.api.Request(commands)
	})
	return err
}

func buildInlineKeyboard(buttons [][]ports.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, buttonRow := range buttons {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttonRow))
		for _, btn := range buttonRow {
			if btn.URL != "" {
				row = append(row, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			} else {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
			}
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// call runs fn with retries on transient failures. Every error it returns is
// a *ports.DeliveryError.
func call[T any](ctx context.Context, c *tgClient, op string, chatID int64, fn func() (T, error)) (T, error) {
	var lastErr error
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = defaultMaxInterval

	res, err := backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil {
			lastErr = err
			return v, classify(err)
		}
		return v, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries))
	if err == nil {
		return res, nil
	}

	var retryAfter *backoff.RetryAfterError
	if errors.As(err, &retryAfter) && lastErr != nil {
		err = lastErr
	}

	metrics.DeliveryFailures.WithLabelValues(op).Inc()
	c.log.Error().Err(err).Str("op", op).Int64("chat_id", chatID).Msg("Telegram request failed")

	var zero T
	return zero, &ports.DeliveryError{Op: op, ChatID: chatID, Err: err}
}

// classify tells backoff whether err is worth another attempt.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests && apiErr.RetryAfter > 0:
			return backoff.RetryAfter(apiErr.RetryAfter)
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= 500:
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	if shouldRetry(err) {
		return err
	}
	return backoff.Permanent(err)
}

// shouldRetry reports whether a network error is transient.
func shouldRetry(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}
