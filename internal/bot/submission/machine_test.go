package submission

import (
	"SuggestBot/internal/adapters/memory"
	"SuggestBot/internal/core/domain"
	"SuggestBot/internal/core/ports"
	"SuggestBot/internal/shared/config"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

// MockBotClient is a mock for the BotClientPort
type MockBotClient struct {
	mock.Mock
}

var _ ports.BotClientPort = (*MockBotClient)(nil)

func (m *MockBotClient) SendMessage(ctx context.Context, params ports.SendMessageParams) (int, error) {
	args := m.Called(ctx, params)
	return args.Int(0), args.Error(1)
}
func (m *MockBotClient) SendPhoto(ctx context.Context, params ports.SendPhotoParams) (int, error) {
	args := m.Called(ctx, params)
	return args.Int(0), args.Error(1)
}
func (m *MockBotClient) SendMediaGroup(ctx context.Context, params ports.SendMediaGroupParams) ([]int, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}
func (m *MockBotClient) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	args := m.Called(ctx, chatID, messageID)
	return args.Error(0)
}
func (m *MockBotClient) AnswerCallbackQuery(ctx context.Context, params ports.AnswerCallbackParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}
func (m *MockBotClient) SetMenuCommands(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockEventBus
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, topic string, data interface{}) error {
	args := m.Called(ctx, topic, data)
	return args.Error(0)
}
func (m *MockEventBus) Subscribe(topic string, handler ports.EventHandler) {
	m.Called(topic, handler)
}

// --- Helpers ---

const (
	userID    int64 = 789
	chatID    int64 = 789
	modChatID int64 = -100500
)

var ann = domain.Author{FirstName: "Ann", LastName: "Lee"}

func testConfig(captionMode string) *config.Config {
	return &config.Config{
		Bot: config.BotConfig{ModerationChatID: modChatID},
		Submission: config.SubmissionConfig{
			CaptionMode:   captionMode,
			TTL:           time.Hour,
			SweepInterval: time.Minute,
			ReadyKeyword:  "ready",
			CancelKeyword: "cancel",
		},
		Texts: config.Texts{
			Welcome:        "welcome",
			Support:        "support",
			Prompt:         "prompt",
			ReadyButton:    "R",
			CancelButton:   "C",
			PhotosFirst:    "photos first",
			ReadyConfirm:   "sent",
			Cancelled:      "cancelled",
			CaptionSaved:   "caption saved",
			DeliveryFailed: "failed",
			Expired:        "expired",
			AuthorLabel:    "Author",
		},
	}
}

type fixture struct {
	machine *Machine
	store   ports.SubmissionStore
	bot     *MockBotClient
	bus     *MockEventBus
}

func newFixture(t *testing.T, captionMode string) *fixture {
	t.Helper()
	nopLogger := zerolog.Nop()
	f := &fixture{
		store: memory.NewSubmissionStore(),
		bot:   new(MockBotClient),
		bus:   new(MockEventBus),
	}
	f.machine = NewMachine(testConfig(captionMode), f.store, f.bot, f.bus, &nopLogger)
	t.Cleanup(func() {
		f.bot.AssertExpectations(t)
		f.bus.AssertExpectations(t)
	})
	return f
}

func textIs(text string) interface{} {
	return mock.MatchedBy(func(p ports.SendMessageParams) bool { return p.Text == text })
}

func (f *fixture) expectReply(text string) *mock.Call {
	return f.bot.On("SendMessage", mock.Anything, textIs(text)).Return(1, nil)
}

func (f *fixture) photo(ref, caption string) {
	f.machine.Handle(context.Background(), domain.PhotoReceived{
		UserID: userID, ChatID: chatID, MessageID: 10, PhotoRef: ref, Caption: caption, From: ann,
	})
}

func (f *fixture) text(text string) {
	f.machine.Handle(context.Background(), domain.TextReceived{
		UserID: userID, ChatID: chatID, MessageID: 11, Text: text, From: ann,
	})
}

func (f *fixture) button(token string, messageID int) {
	f.machine.Handle(context.Background(), domain.ButtonPressed{
		UserID: userID, ChatID: chatID, MessageID: messageID, CallbackID: "cb-1", Token: token, From: ann,
	})
}

// --- Tests ---

func TestMachine_ThreePhotosThenReady_SendsAlbum(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.bot.On("SendMessage", mock.Anything, mock.MatchedBy(func(p ports.SendMessageParams) bool {
		return p.Text == "prompt" && p.ReplyMarkup != nil &&
			p.ReplyMarkup.Buttons[0][0].Data == TokenReady &&
			p.ReplyMarkup.Buttons[0][1].Data == TokenCancel
	})).Return(50, nil).Once()
	f.bot.On("SendMediaGroup", mock.Anything, mock.MatchedBy(func(p ports.SendMediaGroupParams) bool {
		return p.ChatID == modChatID &&
			len(p.Items) == 3 &&
			p.Items[0].FileID == "p1" && p.Items[1].FileID == "p2" && p.Items[2].FileID == "p3" &&
			p.Items[0].Caption == "Author: Ann Lee\n" &&
			p.Items[1].Caption == "" && p.Items[2].Caption == ""
	})).Return([]int{1, 2, 3}, nil).Once()
	f.bus.On("Publish", mock.Anything, ports.TopicSubmissionDispatched, mock.MatchedBy(func(r domain.SubmissionRecord) bool {
		return r.UserID == userID && r.Outcome == domain.OutcomeDispatched && len(r.PhotoRefs) == 3
	})).Return(nil).Once()
	f.expectReply("sent").Once()

	f.photo("p1", "")
	f.photo("p2", "")
	f.photo("p3", "")
	f.text("READY ")

	assert.True(t, f.store.IsEmpty(userID))
	f.bot.AssertNotCalled(t, "SendPhoto", mock.Anything, mock.Anything)
	f.bot.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestMachine_SinglePhotoWithCaption_SendsPhoto(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.expectReply("prompt").Once()
	f.bot.On("SendPhoto", mock.Anything, ports.SendPhotoParams{
		ChatID:  modChatID,
		FileID:  "p1",
		Caption: "Author: Ann Lee\nnice",
	}).Return(99, nil).Once()
	f.bus.On("Publish", mock.Anything, ports.TopicSubmissionDispatched, mock.Anything).Return(nil).Once()
	f.expectReply("sent").Once()

	f.photo("p1", "nice")
	f.text("ready")

	assert.True(t, f.store.IsEmpty(userID))
}

func TestMachine_ReadyWithoutPhotos(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.expectReply("photos first").Twice()

	f.text("ready")
	f.bot.On("AnswerCallbackQuery", mock.Anything, mock.Anything).Return(nil).Once()
	f.button(TokenReady, 50)

	assert.True(t, f.store.IsEmpty(userID))
	f.bot.AssertNotCalled(t, "SendPhoto", mock.Anything, mock.Anything)
	f.bot.AssertNotCalled(t, "SendMediaGroup", mock.Anything, mock.Anything)
	f.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestMachine_ReadyTwice_SecondBehavesAsEmpty(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.expectReply("prompt").Once()
	f.bot.On("SendPhoto", mock.Anything, mock.Anything).Return(1, nil).Once()
	f.bus.On("Publish", mock.Anything, ports.TopicSubmissionDispatched, mock.Anything).Return(nil).Once()
	f.expectReply("sent").Once()
	f.expectReply("photos first").Once()

	f.photo("p1", "")
	f.text("ready")
	f.text("ready")
}

func TestMachine_ElevenPhotos_AlbumTruncatedToTen(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.expectReply("prompt").Once()
	f.bot.On("SendMediaGroup", mock.Anything, mock.MatchedBy(func(p ports.SendMediaGroupParams) bool {
		if len(p.Items) != domain.MaxAlbumItems || p.Items[0].Caption != "Author: Ann Lee\n" {
			return false
		}
		for i, item := range p.Items {
			if item.FileID != fmt.Sprintf("p%d", i+1) || (i > 0 && item.Caption != "") {
				return false
			}
		}
		return true
	})).Return([]int{1}, nil).Once()
	f.bus.On("Publish", mock.Anything, ports.TopicSubmissionDispatched, mock.MatchedBy(func(r domain.SubmissionRecord) bool {
		return len(r.PhotoRefs) == domain.MaxAlbumItems
	})).Return(nil).Once()
	f.expectReply("sent").Once()

	for i := 1; i <= 11; i++ {
		f.photo(fmt.Sprintf("p%d", i), "")
	}
	f.text("ready")

	assert.True(t, f.store.IsEmpty(userID), "the 11th photo is dropped, not kept")
}

func TestMachine_CaptionOverwrite_LastTextWins(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.expectReply("prompt").Once()
	f.expectReply("caption saved").Twice()
	f.bot.On("SendPhoto", mock.Anything, mock.MatchedBy(func(p ports.SendPhotoParams) bool {
		return p.Caption == "Author: Ann Lee\nB"
	})).Return(1, nil).Once()
	f.bus.On("Publish", mock.Anything, ports.TopicSubmissionDispatched, mock.Anything).Return(nil).Once()
	f.expectReply("sent").Once()

	f.photo("p1", "from photo")
	f.text("A")
	f.text("B")
	f.text("ready")
}

func TestMachine_PhotoCaptionMode_IgnoresBareText(t *testing.T) {
	f := newFixture(t, config.CaptionModePhoto)

	f.expectReply("prompt").Once()
	f.bot.On("SendPhoto", mock.Anything, mock.MatchedBy(func(p ports.SendPhotoParams) bool {
		return p.Caption == "Author: Ann Lee\nfrom photo"
	})).Return(1, nil).Once()
	f.bus.On("Publish", mock.Anything, ports.TopicSubmissionDispatched, mock.Anything).Return(nil).Once()
	f.expectReply("sent").Once()

	f.photo("p1", "from photo")
	f.text("this is not a caption")
	f.text("ready")
}

func TestMachine_TextWhileIdle_IsIgnored(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.text("hello there")

	assert.True(t, f.store.IsEmpty(userID))
	f.bot.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestMachine_OnlyFirstPhotoPrompts(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.expectReply("prompt").Once()

	for i := 0; i < 5; i++ {
		f.photo(fmt.Sprintf("p%d", i), "")
	}

	f.bot.AssertNumberOfCalls(t, "SendMessage", 1)
}

func TestMachine_CancelButton_ClearsAndDeletesKeyboard(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.expectReply("prompt").Once()
	f.bot.On("AnswerCallbackQuery", mock.Anything, ports.AnswerCallbackParams{CallbackQueryID: "cb-1"}).Return(nil).Once()
	f.bus.On("Publish", mock.Anything, ports.TopicSubmissionCancelled, mock.MatchedBy(func(r domain.SubmissionRecord) bool {
		return r.Outcome == domain.OutcomeCancelled && len(r.PhotoRefs) == 4
	})).Return(nil).Once()
	f.expectReply("cancelled").Once()
	f.bot.On("DeleteMessage", mock.Anything, chatID, 50).Return(nil).Once()

	for i := 0; i < 4; i++ {
		f.photo(fmt.Sprintf("p%d", i), "")
	}
	f.button(TokenCancel, 50)

	assert.True(t, f.store.IsEmpty(userID))
	f.bot.AssertNotCalled(t, "SendPhoto", mock.Anything, mock.Anything)
	f.bot.AssertNotCalled(t, "SendMediaGroup", mock.Anything, mock.Anything)
}

func TestMachine_CancelKeyword_WhileIdle(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.expectReply("cancelled").Once()

	f.text("Cancel")

	f.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	f.bot.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestMachine_ReadyButton_DeletesKeyboardAfterDispatch(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.expectReply("prompt").Once()
	f.bot.On("AnswerCallbackQuery", mock.Anything, mock.Anything).Return(nil).Once()
	f.bot.On("SendMediaGroup", mock.Anything, mock.Anything).Return([]int{1, 2}, nil).Once()
	f.bus.On("Publish", mock.Anything, ports.TopicSubmissionDispatched, mock.Anything).Return(nil).Once()
	f.expectReply("sent").Once()
	f.bot.On("DeleteMessage", mock.Anything, chatID, 50).Return(nil).Once()

	f.photo("p1", "")
	f.photo("p2", "")
	f.button(TokenReady, 50)

	assert.True(t, f.store.IsEmpty(userID))
}

func TestMachine_DispatchFailure_RestoresSubmission(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)
	sendErr := &ports.DeliveryError{Op: "sendMediaGroup", ChatID: modChatID, Err: errors.New("boom")}

	f.expectReply("prompt").Once()
	f.bot.On("SendMediaGroup", mock.Anything, mock.Anything).Return(nil, sendErr).Once()
	f.expectReply("failed").Once()

	f.photo("p1", "keep me")
	f.photo("p2", "")
	f.text("ready")

	require.False(t, f.store.IsEmpty(userID), "failed dispatch must not lose photos")
	f.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)

	// The retry goes through with the same photos and caption.
	f.bot.On("SendMediaGroup", mock.Anything, mock.MatchedBy(func(p ports.SendMediaGroupParams) bool {
		return len(p.Items) == 2 && p.Items[0].FileID == "p1" && p.Items[0].Caption == "Author: Ann Lee\nkeep me"
	})).Return([]int{1, 2}, nil).Once()
	f.bus.On("Publish", mock.Anything, ports.TopicSubmissionDispatched, mock.Anything).Return(nil).Once()
	f.expectReply("sent").Once()

	f.text("ready")
	assert.True(t, f.store.IsEmpty(userID))
}

func TestMachine_PromptFailure_KeepsPhoto(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.bot.On("SendMessage", mock.Anything, textIs("prompt")).Return(0, errors.New("network down")).Once()

	f.photo("p1", "")

	assert.False(t, f.store.IsEmpty(userID))
}

func TestMachine_ReplyFailure_DoesNotUndoDispatch(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.expectReply("prompt").Once()
	f.bot.On("SendPhoto", mock.Anything, mock.Anything).Return(1, nil).Once()
	f.bus.On("Publish", mock.Anything, ports.TopicSubmissionDispatched, mock.Anything).Return(errors.New("bus closed")).Once()
	f.bot.On("SendMessage", mock.Anything, textIs("sent")).Return(0, errors.New("network down")).Once()

	f.photo("p1", "")
	f.text("ready")

	assert.True(t, f.store.IsEmpty(userID))
}

func TestMachine_Commands(t *testing.T) {
	testCases := []struct {
		command string
		reply   string
	}{
		{"start", "welcome"},
		{"support", "support"},
		{"help", "support"},
	}

	for _, tc := range testCases {
		t.Run(tc.command, func(t *testing.T) {
			f := newFixture(t, config.CaptionModeText)
			f.expectReply(tc.reply).Once()

			f.machine.Handle(context.Background(), domain.Command{UserID: userID, ChatID: chatID, Name: tc.command})
		})
	}
}

func TestMachine_Commands_DoNotTouchPendingPhotos(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.expectReply("prompt").Once()
	f.expectReply("welcome").Once()

	f.photo("p1", "")
	f.machine.Handle(context.Background(), domain.Command{UserID: userID, ChatID: chatID, Name: "start"})
	f.machine.Handle(context.Background(), domain.Command{UserID: userID, ChatID: chatID, Name: "unknown"})

	assert.False(t, f.store.IsEmpty(userID))
}

func TestMachine_UnknownButtonToken(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)

	f.bot.On("AnswerCallbackQuery", mock.Anything, mock.Anything).Return(nil).Once()

	f.button("something:else", 50)

	f.bot.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestMachine_UsersAreIsolated(t *testing.T) {
	f := newFixture(t, config.CaptionModeText)
	other := int64(1001)

	f.expectReply("prompt").Twice()
	f.bot.On("SendPhoto", mock.Anything, mock.Anything).Return(1, nil).Once()
	f.bus.On("Publish", mock.Anything, ports.TopicSubmissionDispatched, mock.MatchedBy(func(r domain.SubmissionRecord) bool {
		return r.UserID == userID
	})).Return(nil).Once()
	f.expectReply("sent").Once()

	f.photo("mine", "")
	f.machine.Handle(context.Background(), domain.PhotoReceived{UserID: other, ChatID: other, PhotoRef: "theirs"})
	f.text("ready")

	assert.True(t, f.store.IsEmpty(userID))
	assert.False(t, f.store.IsEmpty(other))
}
