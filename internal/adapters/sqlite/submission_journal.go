// Package sqlite keeps the submission journal in a local SQLite file.
package sqlite

import (
	"SuggestBot/internal/adapters/security"
	"SuggestBot/internal/core/domain"
	"SuggestBot/internal/core/ports"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	id          TEXT PRIMARY KEY,
	user_id     INTEGER NOT NULL,
	chat_id     INTEGER NOT NULL,
	author_enc  TEXT NOT NULL,
	caption     TEXT NOT NULL DEFAULT '',
	photo_refs  TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS submissions_user_id_idx ON submissions (user_id, created_at);
`

type submissionJournal struct {
	db     *sql.DB
	secSvc ports.SecurityPort
	log    zerolog.Logger
}

var _ ports.SubmissionJournal = (*submissionJournal)(nil)

// Open opens (or creates) the journal database at path.
func Open(ctx context.Context, path string, secSvc ports.SecurityPort, baseLogger *zerolog.Logger) (ports.SubmissionJournal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	log := baseLogger.With().Str("component", "submission_journal").Str("driver", "sqlite").Logger()

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer avoids SQLITE_BUSY between concurrent bus handlers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create submissions table: %w", err)
	}

	log.Info().Str("path", path).Msg("Submission journal opened")
	return &submissionJournal{db: db, secSvc: secSvc, log: log}, nil
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
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("encode photo refs: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO submissions (id, user_id, chat_id, author_enc, caption, photo_refs, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(),
		rec.UserID,
		rec.ChatID,
		author,
		rec.Caption,
		string(refsJSON),
		string(rec.Outcome),
		rec.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		j.log.Error().Err(err).Str("submission_id", rec.ID.String()).Msg("Failed to insert submission")
		return fmt.Errorf("insert submission %s: %w", rec.ID, err)
	}
	return nil
}

func (j *submissionJournal) Close() error {
	return j.db.Close()
}
