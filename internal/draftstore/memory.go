package draftstore

import (
	"context"
	"sync"
	"time"

	"github.com/rushrental/carbooking/internal/domain"
)

// MemoryStore keeps drafts in a mutex-guarded map. It backs tests and
// single-process deployments without redis; expiry is checked lazily on Get
// and by SweepExpired.
type MemoryStore struct {
	mu     sync.Mutex
	drafts map[string]*domain.DraftBooking
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drafts: make(map[string]*domain.DraftBooking),
		now:    time.Now,
	}
}

// WithClock overrides the time source. Tests use it to move past ExpiresAt.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Put(ctx context.Context, draft *domain.DraftBooking) error {
	if !draft.ExpiresAt.After(s.now()) {
		return domain.ErrDraftNotFound
	}

	copied := *draft
	s.mu.Lock()
	s.drafts[draft.ID] = &copied
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, draftID string) (*domain.DraftBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.drafts[draftID]
	if !ok {
		return nil, domain.ErrDraftNotFound
	}
	if !draft.ExpiresAt.After(s.now()) {
		delete(s.drafts, draftID)
		return nil, domain.ErrDraftNotFound
	}

	copied := *draft
	return &copied, nil
}

func (s *MemoryStore) Delete(ctx context.Context, draftID string) error {
	s.mu.Lock()
	delete(s.drafts, draftID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CompareAndDelete(ctx context.Context, draftID string, expected domain.DraftStage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.drafts[draftID]
	if !ok {
		return false, nil
	}
	if !draft.ExpiresAt.After(s.now()) {
		delete(s.drafts, draftID)
		return false, nil
	}
	if draft.Stage != expected {
		return false, nil
	}

	delete(s.drafts, draftID)
	return true, nil
}

func (s *MemoryStore) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := s.now()
	for id, draft := range s.drafts {
		if !draft.ExpiresAt.After(now) {
			delete(s.drafts, id)
			removed++
		}
	}
	return removed, nil
}

var _ Store = (*MemoryStore)(nil)
