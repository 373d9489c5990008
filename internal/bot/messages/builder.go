package messages

import "SuggestBot/internal/core/ports"

// Builder helps construct SendMessageParams.
type Builder struct {
	params ports.SendMessageParams
}

// NewBuilder creates a new message builder.
// Texts come from config and may carry simple HTML (links, bold).
func NewBuilder(chatID int64) *Builder {
	return &Builder{
		params: ports.SendMessageParams{
			ChatID:    chatID,
			ParseMode: "HTML",
		},
	}
}

// WithText sets the message text.
func (b *Builder) WithText(text string) *Builder {
	b.params.Text = text
	return b
}

// WithParseMode overrides the default parse mode.
func (b *Builder) WithParseMode(mode string) *Builder {
	b.params.ParseMode = mode
	return b
}

// WithInlineButtons adds a set of inline buttons.
func (b *Builder) WithInlineButtons(buttons [][]ports.Button) *Builder {
	b.params.ReplyMarkup = &ports.ReplyMarkup{Buttons: buttons}
	return b
}

// WithInlineRow lays the buttons out as a single row.
func (b *Builder) WithInlineRow(buttons ...ports.Button) *Builder {
	return b.WithInlineButtons([][]ports.Button{buttons})
}

// Build returns the final SendMessageParams struct.
func (b *Builder) Build() ports.SendMessageParams {
	return b.params
}
