package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxAlbumItems is the Telegram limit on photos in one media group.
const MaxAlbumItems = 10

// Author is the display metadata of the user who sent a submission.
type Author struct {
	FirstName string
	LastName  string
}

// DisplayName joins first and last name. LastName is optional in Telegram.
func (a Author) DisplayName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// PendingSubmission is the set of photos (and the optional caption) a user
// is assembling before it goes to moderation.
type PendingSubmission struct {
	PhotoRefs []string // Telegram FileIDs, in the order they were received
	Caption   string   // Last caption wins; "" means none
	UpdatedAt time.Time
}

// ExpiredSubmission is a pending submission dropped by the expiry sweep.
type ExpiredSubmission struct {
	UserID     int64
	Submission PendingSubmission
}

// SubmissionOutcome is how a submission left the store.
type SubmissionOutcome string

const (
	OutcomeDispatched SubmissionOutcome = "dispatched"
	OutcomeCancelled  SubmissionOutcome = "cancelled"
	OutcomeExpired    SubmissionOutcome = "expired"
)

// SubmissionRecord is published on the event bus whenever a submission
// leaves the store, and is what the journal persists.
type SubmissionRecord struct {
	ID        uuid.UUID
	UserID    int64
	ChatID    int64
	Author    Author
	Caption   string
	PhotoRefs []string
	Outcome   SubmissionOutcome
	CreatedAt time.Time
}
