package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"

	// CaptionModeText treats plain text sent while photos are pending as the caption.
	CaptionModeText = "text"
	// CaptionModePhoto only takes captions attached to the photos themselves.
	CaptionModePhoto = "photo"

	JournalNone     = "none"
	JournalPostgres = "postgres"
	JournalSQLite   = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv        string
	LogLevel      string
	EncryptionKey string
	Bot           BotConfig
	Submission    SubmissionConfig
	Texts         Texts
	Journal       JournalConfig
	Metrics       MetricsConfig
}

// BotConfig identifies the bot and where submissions go.
type BotConfig struct {
	Username         string
	Token            string
	ModerationChatID int64
	Connection       BotConnectionConfig
}

// BotConnectionConfig selects how updates are received.
type BotConnectionConfig struct {
	Mode    string
	Polling PollingConfig
	Webhook WebhookConfig
}

type PollingConfig struct {
	WorkerPoolSize int
	Timeout        int // seconds, long polling
}

type WebhookConfig struct {
	URL        string
	ListenPort int
}

// SubmissionConfig tunes the submission flow.
type SubmissionConfig struct {
	CaptionMode   string
	TTL           time.Duration // 0 keeps pending submissions forever
	SweepInterval time.Duration
	ReadyKeyword  string
	CancelKeyword string
}

// Texts are the user-facing strings. They are sent with the HTML parse mode,
// except AuthorLabel which goes into the plain-text moderation caption.
type Texts struct {
	Welcome        string
	Support        string
	Prompt         string
	ReadyButton    string
	CancelButton   string
	PhotosFirst    string
	ReadyConfirm   string
	Cancelled      string
	CaptionSaved   string
	DeliveryFailed string
	Expired        string
	AuthorLabel    string
}

type JournalConfig struct {
	Driver string
	DSN    string
}

type MetricsConfig struct {
	Addr string // empty disables the /metrics listener
}

// envBindings maps viper keys to environment variable names.
var envBindings = map[string]string{
	"app.env":                   "APP_ENV",
	"log.level":                 "LOG_LEVEL",
	"encryption.key":            "ENCRYPTION_KEY",
	"bot.username":              "BOT_USERNAME",
	"bot.token":                 "BOT_TOKEN",
	"bot.moderation_chat_id":    "MODERATION_CHAT_ID",
	"bot.mode":                  "BOT_MODE",
	"bot.workers":               "BOT_WORKERS",
	"bot.polling.timeout":       "BOT_POLLING_TIMEOUT",
	"bot.webhook.url":           "BOT_WEBHOOK_URL",
	"bot.webhook.listen_port":   "BOT_WEBHOOK_PORT",
	"submission.caption_mode":   "CAPTION_MODE",
	"submission.ttl":            "SUBMISSION_TTL",
	"submission.sweep_interval": "SUBMISSION_SWEEP_INTERVAL",
	"submission.ready_keyword":  "READY_KEYWORD",
	"submission.cancel_keyword": "CANCEL_KEYWORD",
	"journal.driver":            "JOURNAL_DRIVER",
	"journal.dsn":               "JOURNAL_DSN",
	"metrics.addr":              "METRICS_ADDR",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("bot.mode", ModePolling)
	v.SetDefault("bot.workers", 4)
	v.SetDefault("bot.polling.timeout", 60)
	v.SetDefault("bot.webhook.listen_port", 8443)
	v.SetDefault("submission.caption_mode", CaptionModeText)
	v.SetDefault("submission.ttl", 24*time.Hour)
	v.SetDefault("submission.sweep_interval", time.Minute)
	v.SetDefault("submission.ready_keyword", "ready")
	v.SetDefault("submission.cancel_keyword", "cancel")
	v.SetDefault("journal.driver", JournalNone)

	v.SetDefault("texts.welcome", "Hi! 👋 This bot passes your photos on to the channel moderators.\n\nSend photos as an album or one by one.\n\nQuestions? Use /support")
	v.SetDefault("texts.support", "Questions or problems? Message the channel admins directly.")
	v.SetDefault("texts.prompt", "Tap 🍳 to post or 📛 to cancel")
	v.SetDefault("texts.ready_button", "🍳")
	v.SetDefault("texts.cancel_button", "📛")
	v.SetDefault("texts.photos_first", "Send some photos first.")
	v.SetDefault("texts.ready_confirm", "Done! Your photos went to the moderators.")
	v.SetDefault("texts.cancelled", "Cancelled! You can start over.")
	v.SetDefault("texts.caption_saved", "Caption saved.")
	v.SetDefault("texts.delivery_failed", "Something went wrong while sending your photos. Please try again.")
	v.SetDefault("texts.expired", "Your unsent photos were discarded after a long pause. Send them again whenever you are ready.")
	v.SetDefault("texts.author_label", "Author")
}

// Load reads configuration from an optional YAML file, the environment
// (including a .env file in the working directory) and defaults, in
// decreasing order of precedence: env, file, defaults.
func Load(path string) (*Config, error) {
	// A missing .env is normal in production.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("could not bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		}
	}

	cfg := Config{
		AppEnv:        v.GetString("app.env"),
		LogLevel:      v.GetString("log.level"),
		EncryptionKey: v.GetString("encryption.key"),
		Bot: BotConfig{
			Username:         v.GetString("bot.username"),
			Token:            v.GetString("bot.token"),
			ModerationChatID: v.GetInt64("bot.moderation_chat_id"),
			Connection: BotConnectionConfig{
				Mode: strings.ToLower(v.GetString("bot.mode")),
				Polling: PollingConfig{
					WorkerPoolSize: v.GetInt("bot.workers"),
					Timeout:        v.GetInt("bot.polling.timeout"),
				},
				Webhook: WebhookConfig{
					URL:        v.GetString("bot.webhook.url"),
					ListenPort: v.GetInt("bot.webhook.listen_port"),
				},
			},
		},
		Submission: SubmissionConfig{
			CaptionMode:   strings.ToLower(v.GetString("submission.caption_mode")),
			TTL:           v.GetDuration("submission.ttl"),
			SweepInterval: v.GetDuration("submission.sweep_interval"),
			ReadyKeyword:  strings.TrimSpace(v.GetString("submission.ready_keyword")),
			CancelKeyword: strings.TrimSpace(v.GetString("submission.cancel_keyword")),
		},
		Texts: Texts{
			Welcome:        v.GetString("texts.welcome"),
			Support:        v.GetString("texts.support"),
			Prompt:         v.GetString("texts.prompt"),
			ReadyButton:    v.GetString("texts.ready_button"),
			CancelButton:   v.GetString("texts.cancel_button"),
			PhotosFirst:    v.GetString("texts.photos_first"),
			ReadyConfirm:   v.GetString("texts.ready_confirm"),
			Cancelled:      v.GetString("texts.cancelled"),
			CaptionSaved:   v.GetString("texts.caption_saved"),
			DeliveryFailed: v.GetString("texts.delivery_failed"),
			Expired:        v.GetString("texts.expired"),
			AuthorLabel:    v.GetString("texts.author_label"),
		},
		Journal: JournalConfig{
			Driver: strings.ToLower(v.GetString("journal.driver")),
			DSN:    v.GetString("journal.dsn"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDev reports whether human-readable logs and API debugging are wanted.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "development"
}

func (c *Config) validate() error {
	if c.Bot.Token == "" {
		return errors.New("BOT_TOKEN is not set in environment, .env or config file")
	}
	if c.Bot.ModerationChatID == 0 {
		return errors.New("MODERATION_CHAT_ID is not set or is zero")
	}

	switch c.Bot.Connection.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Bot.Connection.Webhook.URL == "" {
			return errors.New("BOT_WEBHOOK_URL is required in webhook mode")
		}
	default:
		return fmt.Errorf("unknown bot mode %q (want %q or %q)", c.Bot.Connection.Mode, ModePolling, ModeWebhook)
	}
	if c.Bot.Connection.Polling.WorkerPoolSize < 1 {
		return fmt.Errorf("bot.workers must be at least 1, got %d", c.Bot.Connection.Polling.WorkerPoolSize)
	}

	s := c.Submission
	if s.CaptionMode != CaptionModeText && s.CaptionMode != CaptionModePhoto {
		return fmt.Errorf("unknown caption mode %q (want %q or %q)", s.CaptionMode, CaptionModeText, CaptionModePhoto)
	}
	if s.TTL < 0 {
		return fmt.Errorf("submission.ttl must not be negative, got %s", s.TTL)
	}
	if s.TTL > 0 && s.SweepInterval <= 0 {
		return fmt.Errorf("submission.sweep_interval must be positive when ttl is set, got %s", s.SweepInterval)
	}
	if s.ReadyKeyword == "" || s.CancelKeyword == "" {
		return errors.New("ready and cancel keywords must not be empty")
	}
	if strings.EqualFold(s.ReadyKeyword, s.CancelKeyword) {
		return fmt.Errorf("ready and cancel keywords must differ, both are %q", s.ReadyKeyword)
	}

	switch c.Journal.Driver {
	case JournalNone:
		return nil
	case JournalPostgres, JournalSQLite:
	default:
		return fmt.Errorf("unknown journal driver %q", c.Journal.Driver)
	}
	if c.Journal.DSN == "" {
		return fmt.Errorf("JOURNAL_DSN is required for the %s journal", c.Journal.Driver)
	}
	if len(c.EncryptionKey) != 64 {
		return fmt.Errorf("ENCRYPTION_KEY must be a 64-character hex string (32 bytes), but got %d chars", len(c.EncryptionKey))
	}
	if _, err := hex.DecodeString(c.EncryptionKey); err != nil {
		return fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
	}
	return nil
}
