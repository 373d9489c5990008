package eventbus

import (
	"SuggestBot/internal/core/ports"
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// inMemoryEventBus fans submission events out to the journal recorder and
// any other in-process subscriber.
type inMemoryEventBus struct {
	log         zerolog.Logger
	subscribers map[string][]ports.EventHandler
	mu          sync.RWMutex
	wg          sync.WaitGroup
}

// Bus is the in-memory event bus. Wait blocks until every handler started
// so far has returned.
type Bus interface {
	ports.EventBus
	Wait()
}

func NewInMemoryEventBus(baseLogger *zerolog.Logger) Bus {
	return &inMemoryEventBus{
		log:         baseLogger.With().Str("component", "event_bus").Logger(),
		subscribers: make(map[string][]ports.EventHandler),
	}
}

// Publish runs every handler of topic in its own goroutine, detached from
// the caller's cancellation.
func (b *inMemoryEventBus) Publish(ctx context.Context, topic string, data interface{}) error {
	b.mu.RLock()
	handlers := b.subscribers[topic]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug().Str("topic", topic).Msg("Published event with no subscribers")
		return nil
	}

	event := ports.Event{Topic: topic, Data: data}
	handlerCtx := context.WithoutCancel(ctx)

	for _, h := range handlers {
		b.wg.Add(1)
		go func(h ports.EventHandler) {
			defer b.wg.Done()
			if err := h(handlerCtx, event); err != nil {
				b.log.Error().Err(err).Str("topic", topic).Msg("Event handler failed")
			}
		}(h)
	}

	b.log.Debug().Str("topic", topic).Int("handlers", len(handlers)).Msg("Event published")
	return nil
}

func (b *inMemoryEventBus) Subscribe(topic string, handler ports.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[topic] = append(b.subscribers[topic], handler)
	b.log.Info().Str("topic", topic).Msg("Handler subscribed")
}

func (b *inMemoryEventBus) Wait() {
	b.wg.Wait()
}
