package ports

import (
	"SuggestBot/internal/core/domain"
	"context"
	"time"
)

// SubmissionStore holds the pending submission of every user.
// Operations on the same user are mutually exclusive; different users
// never block each other for longer than a map operation.
type SubmissionStore interface {
	// AddPhoto appends a photo, creating the entry if needed. A non-empty
	// caption replaces the stored one. Returns the new photo count.
	AddPhoto(userID int64, photoRef, caption string) int

	// SetCaption replaces the caption of an existing entry. It never creates
	// an entry and reports whether one existed.
	SetCaption(userID int64, caption string) bool

	// TakeAndClear removes and returns the entry.
	TakeAndClear(userID int64) (domain.PendingSubmission, bool)

	// Restore puts back a submission taken by TakeAndClear whose dispatch
	// failed. Its photos go before anything added since.
	Restore(userID int64, sub domain.PendingSubmission)

	IsEmpty(userID int64) bool

	// Expire removes every entry not updated since olderThan.
	Expire(olderThan time.Time) []domain.ExpiredSubmission

	// Len is the number of users with a pending submission.
	Len() int
}

// SubmissionJournal persists finished submissions for auditing.
type SubmissionJournal interface {
	Record(ctx context.Context, rec domain.SubmissionRecord) error
	Close() error
}
