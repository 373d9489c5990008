package telegram

import (
	"SuggestBot/internal/shared/config"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const workerQueueSize = 100

// UpdateHandler processes one raw update. Router implements it.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *tgbotapi.Update)
}

// BotServer receives updates (polling or webhook) and feeds them to a pool
// of workers. Updates of one user always go to the same worker, so a user's
// events are handled one at a time and in order.
type BotServer struct {
	api     *tgbotapi.BotAPI
	handler UpdateHandler
	cfg     *config.BotConnectionConfig
	log     zerolog.Logger
}

func NewBotServer(
	api *tgbotapi.BotAPI,
	handler UpdateHandler,
	cfg *config.BotConnectionConfig,
	baseLogger *zerolog.Logger,
) *BotServer {
	return &BotServer{
		api:     api,
		handler: handler,
		cfg:     cfg,
		log:     baseLogger.With().Str("component", "bot_server").Logger(),
	}
}

// Start blocks until ctx is cancelled.
func (s *BotServer) Start(ctx context.Context) error {
	s.log.Info().Str("mode", s.cfg.Mode).Msg("Starting bot server")

	switch s.cfg.Mode {
	case config.ModePolling:
		return s.startPolling(ctx)
	case config.ModeWebhook:
		return s.startWebhook(ctx)
	default:
		return fmt.Errorf("unknown bot mode: %s", s.cfg.Mode)
	}
}

func (s *BotServer) startPolling(ctx context.Context) error {
	// A leftover webhook makes getUpdates fail.
	if _, err := s.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: false}); err != nil {
		s.log.Warn().Err(err).Msg("Failed to delete webhook (continuing anyway)")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = s.cfg.Polling.Timeout
	updates := s.api.GetUpdatesChan(u)

	pool := newWorkerPool(s.cfg.Polling.WorkerPoolSize, s.handler, s.log)
	s.log.Info().Int("workers", pool.size()).Msg("Polling update listener started")

	for {
		select {
		case <-ctx.Done():
			s.api.StopReceivingUpdates()
			pool.stop()
			s.log.Info().Msg("Polling stopped gracefully")
			return nil
		case update, ok := <-updates:
			if !ok {
				pool.stop()
				return errors.New("update channel closed")
			}
			pool.submit(update)
		}
	}
}

func (s *BotServer) startWebhook(ctx context.Context) error {
	path := "/webhook/" + s.api.Token
	webhookURL := s.cfg.Webhook.URL + path

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook config: %w", err)
	}
	if _, err := s.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := s.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}
	if info.LastErrorDate != 0 {
		s.log.Warn().Str("error_message", info.LastErrorMessage).Msg("Telegram webhook has a last error")
	}

	pool := newWorkerPool(s.cfg.Polling.WorkerPoolSize, s.handler, s.log)

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		update, err := s.api.HandleUpdate(r)
		if err != nil {
			s.log.Warn().Err(err).Msg("Rejected webhook request")
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		pool.submit(*update)
	})

	// TLS is terminated by the reverse proxy in front of the bot.
	listenAddr := fmt.Sprintf("127.0.0.1:%d", s.cfg.Webhook.ListenPort)
	httpServer := &http.Server{Addr: listenAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info().Str("addr", listenAddr).Int("workers", pool.size()).Msg("Webhook listener started")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		pool.stop()
		return fmt.Errorf("webhook http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	pool.stop()
	s.log.Info().Msg("Webhook server stopped gracefully")
	return nil
}

// workerPool shards updates by user id over a fixed set of workers.
type workerPool struct {
	queues  []chan tgbotapi.Update
	handler UpdateHandler
	log     zerolog.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

func newWorkerPool(n int, handler UpdateHandler, log zerolog.Logger) *workerPool {
	if n < 1 {
		n = 1
	}
	p := &workerPool{
		queues:  make([]chan tgbotapi.Update, n),
		handler: handler,
		log:     log,
	}
	for i := range p.queues {
		p.queues[i] = make(chan tgbotapi.Update, workerQueueSize)
		p.wg.Add(1)
		go p.work(i)
	}
	return p
}

func (p *workerPool) size() int { return len(p.queues) }

// submit must not be called after stop.
func (p *workerPool) submit(update tgbotapi.Update) {
	p.queues[p.shard(update)] <- update
}

func (p *workerPool) shard(update tgbotapi.Update) int {
	var userID int64
	if u := update.SentFrom(); u != nil {
		userID = u.ID
	}
	if userID < 0 {
		userID = -userID
	}
	return int(userID % int64(len(p.queues)))
}

// stop drains the queues and waits for in-flight updates.
func (p *workerPool) stop() {
	p.once.Do(func() {
		for _, q := range p.queues {
			close(q)
		}
	})
	p.wg.Wait()
}

func (p *workerPool) work(id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker_id", id).Logger()
	log.Debug().Msg("Worker started")

	// Updates that were accepted still get handled during shutdown, so the
	// handler context is not tied to the server context.
	ctx := log.WithContext(context.Background())
	for update := range p.queues[id] {
		p.handler.HandleUpdate(ctx, &update)
	}
	log.Debug().Msg("Worker stopped")
}
