package memory

import (
	"SuggestBot/internal/core/domain"
	"SuggestBot/internal/core/ports"
	"sync"
	"time"
)

// shardCount must stay a power of two so the modulo below is a mask.
const shardCount = 32

type shard struct {
	mu      sync.Mutex
	entries map[int64]*domain.PendingSubmission
}

// submissionStore implements ports.SubmissionStore as a sharded map.
// A user always maps to the same shard, so the shard mutex serializes
// everything that happens to that user.
type submissionStore struct {
	shards [shardCount]*shard
	now    func() time.Time
}

var _ ports.SubmissionStore = (*submissionStore)(nil)

// NewSubmissionStore creates an empty in-memory store.
func NewSubmissionStore() ports.SubmissionStore {
	return newSubmissionStore(time.Now)
}

func newSubmissionStore(now func() time.Time) *submissionStore {
	s := &submissionStore{now: now}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[int64]*domain.PendingSubmission)}
	}
	return s
}

func (s *submissionStore) shardFor(userID int64) *shard {
	return s.shards[uint64(userID)&(shardCount-1)]
}

func (s *submissionStore) AddPhoto(userID int64, photoRef, caption string) int {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.entries[userID]
	if !ok {
		entry = &domain.PendingSubmission{}
		sh.entries[userID] = entry
	}
	entry.PhotoRefs = append(entry.PhotoRefs, photoRef)
	if caption != "" {
		entry.Caption = caption
	}
	entry.UpdatedAt = s.now()
	return len(entry.PhotoRefs)
}

func (s *submissionStore) SetCaption(userID int64, caption string) bool {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.entries[userID]
	if !ok {
		return false
	}
	entry.Caption = caption
	entry.UpdatedAt = s.now()
	return true
}

func (s *submissionStore) TakeAndClear(userID int64) (domain.PendingSubmission, bool) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.entries[userID]
	if !ok {
		return domain.PendingSubmission{}, false
	}
	delete(sh.entries, userID)
	return *entry, true
}

func (s *submissionStore) Restore(userID int64, sub domain.PendingSubmission) {
	if len(sub.PhotoRefs) == 0 {
		return
	}

	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	restored := &domain.PendingSubmission{
		PhotoRefs: append([]string(nil), sub.PhotoRefs...),
		Caption:   sub.Caption,
		UpdatedAt: s.now(),
	}
	if newer, ok := sh.entries[userID]; ok {
		restored.PhotoRefs = append(restored.PhotoRefs, newer.PhotoRefs...)
		if newer.Caption != "" {
			restored.Caption = newer.Caption
		}
	}
	sh.entries[userID] = restored
}

func (s *submissionStore) IsEmpty(userID int64) bool {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	_, ok := sh.entries[userID]
	return !ok
}

func (s *submissionStore) Expire(olderThan time.Time) []domain.ExpiredSubmission {
	var expired []domain.ExpiredSubmission
	for _, sh := range s.shards {
		sh.mu.Lock()
		for userID, entry := range sh.entries {
			if entry.UpdatedAt.Before(olderThan) {
				expired = append(expired, domain.ExpiredSubmission{UserID: userID, Submission: *entry})
				delete(sh.entries, userID)
			}
		}
		sh.mu.Unlock()
	}
	return expired
}

func (s *submissionStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
