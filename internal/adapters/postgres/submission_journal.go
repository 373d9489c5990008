package postgres

import (
	"SuggestBot/internal/adapters/security"
	"SuggestBot/internal/core/domain"
	"SuggestBot/internal/core/ports"
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

type submissionJournal struct {
	db     *DB
	secSvc ports.SecurityPort
	log    zerolog.Logger
}

var _ ports.SubmissionJournal = (*submissionJournal)(nil)

// NewSubmissionJournal writes finished submissions to the submissions table.
// Closing the journal closes db.
func NewSubmissionJournal(db *DB, secSvc ports.SecurityPort, baseLogger *zerolog.Logger) ports.SubmissionJournal {
	return &submissionJournal{
		db:     db,
		secSvc: secSvc,
		log:    baseLogger.With().Str("component", "submission_journal").Str("driver", "postgres").Logger(),
	}
}

func (j *submissionJournal) Record(ctx context.Context, rec domain.SubmissionRecord) error {
	author, err := security.SealString(j.secSvc, rec.Author.DisplayName())
	if err != nil {
		return fmt.Errorf("encrypt author: %w", err)
	}

	refs := rec.PhotoRefs
	if refs == nil {
		refs = []string{}
	}

	query := `
		INSERT INTO submissions (id, user_id, chat_id, author_enc, caption, photo_refs, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = j.db.pool.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.ChatID,
		author,
		rec.Caption,
		refs,
		string(rec.Outcome),
		rec.CreatedAt,
	)
	if err != nil {
		j.log.Error().Err(err).Str("submission_id", rec.ID.String()).Msg("Failed to insert submission")
		return fmt.Errorf("insert submission %s: %w", rec.ID, err)
	}
	return nil
}

func (j *submissionJournal) Close() error {
	j.db.Close()
	return nil
}
