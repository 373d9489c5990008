package domain

// Event is an inbound bot event. The set of implementations is closed:
// PhotoReceived, TextReceived, ButtonPressed and Command.
type Event interface {
	// Sender returns the user the event belongs to and the chat to reply in.
	Sender() (userID, chatID int64)
	isEvent()
}

// PhotoReceived is a photo message, optionally with a caption.
type PhotoReceived struct {
	UserID    int64
	ChatID    int64
	MessageID int
	PhotoRef  string // FileID of the largest size
	Caption   string
	From      Author
}

// TextReceived is a plain text message that is not a bot command.
type TextReceived struct {
	UserID    int64
	ChatID    int64
	MessageID int
	Text      string
	From      Author
}

// ButtonPressed is an inline keyboard callback.
type ButtonPressed struct {
	UserID     int64
	ChatID     int64
	MessageID  int // The message carrying the keyboard
	CallbackID string
	Token      string
	From       Author
}

// Command is a bot command such as /start. Name has no leading slash.
type Command struct {
	UserID    int64
	ChatID    int64
	MessageID int
	Name      string
	Args      string
	From      Author
}

func (e PhotoReceived) Sender() (int64, int64) { return e.UserID, e.ChatID }
func (e TextReceived) Sender() (int64, int64)  { return e.UserID, e.ChatID }
func (e ButtonPressed) Sender() (int64, int64) { return e.UserID, e.ChatID }
func (e Command) Sender() (int64, int64)       { return e.UserID, e.ChatID }

func (PhotoReceived) isEvent() {}
func (TextReceived) isEvent()  {}
func (ButtonPressed) isEvent() {}
func (Command) isEvent()       {}

// Kind is a short label for logs and metrics.
func Kind(e Event) string {
	switch e.(type) {
	case PhotoReceived:
		return "photo"
	case TextReceived:
		return "text"
	case ButtonPressed:
		return "button"
	case Command:
		return "command"
	default:
		return "unknown"
	}
}
