package ports

import (
	"context"
	"fmt"
)

// --- Bot Message Structures ---

// Button represents a single button in a keyboard.
type Button struct {
	Text string
	Data string // For callbacks
	URL  string // For URL buttons
}

// ReplyMarkup represents an inline keyboard.
type ReplyMarkup struct {
	Buttons [][]Button
}

// SendMessageParams holds all possible options for sending a message.
type SendMessageParams struct {
	ChatID      int64
	Text        string
	ParseMode   string // e.g., "MarkdownV2" or "HTML"
	ReplyMarkup *ReplyMarkup
}

// SendPhotoParams describes a single photo sent by FileID.
type SendPhotoParams struct {
	ChatID    int64
	FileID    string
	Caption   string
	ParseMode string
}

// MediaItem is one photo of a media group.
type MediaItem struct {
	FileID    string
	Caption   string // Telegram shows the caption of the first item for the whole album
	ParseMode string
}

// SendMediaGroupParams describes an album of up to 10 photos.
type SendMediaGroupParams struct {
	ChatID int64
	Items  []MediaItem
}

// AnswerCallbackParams stops the loading spinner on an inline button.
type AnswerCallbackParams struct {
	CallbackQueryID string
	Text            string
	ShowAlert       bool
}

// --- Errors ---

// DeliveryError is returned by every BotClientPort method when Telegram
// could not be reached or rejected the request.
type DeliveryError struct {
	Op     string
	ChatID int64
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s to chat %d: %v", e.Op, e.ChatID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// --- Bot Client Port (Outbound) ---

// BotClientPort defines the interface for *sending* messages.
// This is the "Adapter" our core logic will call.
type BotClientPort interface {
	SendMessage(ctx context.Context, params SendMessageParams) (int, error)
	SendPhoto(ctx context.Context, params SendPhotoParams) (int, error)
	SendMediaGroup(ctx context.Context, params SendMediaGroupParams) ([]int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallbackQuery(ctx context.Context, params AnswerCallbackParams) error
	SetMenuCommands(ctx context.Context) error
}
