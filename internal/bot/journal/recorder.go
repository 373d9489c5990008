// Package journal connects the submission journal to the event bus.
package journal

import (
	"SuggestBot/internal/core/domain"
	"SuggestBot/internal/core/ports"
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Recorder writes every finished submission to a journal.
type Recorder struct {
	journal ports.SubmissionJournal
	log     zerolog.Logger
}

func NewRecorder(journal ports.SubmissionJournal, baseLogger *zerolog.Logger) *Recorder {
	return &Recorder{
		journal: journal,
		log:     baseLogger.With().Str("component", "journal_recorder").Logger(),
	}
}

// Subscribe registers the recorder for all submission topics.
func (r *Recorder) Subscribe(bus ports.EventBus) {
	for _, topic := range []string{
		ports.TopicSubmissionDispatched,
		ports.TopicSubmissionCancelled,
		ports.TopicSubmissionExpired,
	} {
		bus.Subscribe(topic, r.handle)
	}
}

func (r *Recorder) handle(ctx context.Context, event ports.Event) error {
	rec, ok := event.Data.(domain.SubmissionRecord)
	if !ok {
		return fmt.Errorf("journal: unexpected payload %T on %s", event.Data, event.Topic)
	}
	if err := r.journal.Record(ctx, rec); err != nil {
		return fmt.Errorf("journal %s: %w", rec.ID, err)
	}
	r.log.Debug().
		Str("submission_id", rec.ID.String()).
		Str("outcome", string(rec.Outcome)).
		Msg("Submission journaled")
	return nil
}

// Nop is the journal used when journal.driver is none.
type Nop struct{}

var _ ports.SubmissionJournal = Nop{}

func (Nop) Record(context.Context, domain.SubmissionRecord) error { return nil }
func (Nop) Close() error                                          { return nil }
