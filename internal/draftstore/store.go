package draftstore

import (
	"context"

	"github.com/rushrental/carbooking/internal/domain"
)

// Store holds one DraftBooking per in-progress reservation, keyed by the
// draft's unguessable token. Implementations must make CompareAndDelete
// atomic with respect to stage-and-presence: it is the only primitive the
// commit path relies on to stay at-most-once. Commit logic must never pair a
// plain Get with a separate Delete.
type Store interface {
	// Put stores or replaces the draft under its ID, honoring ExpiresAt.
	Put(ctx context.Context, draft *domain.DraftBooking) error
	// Get returns ErrDraftNotFound for missing and expired drafts alike;
	// expired entries are evicted on the way out.
	Get(ctx context.Context, draftID string) (*domain.DraftBooking, error)
	// Delete removes the draft. Deleting a missing draft is a no-op.
	Delete(ctx context.Context, draftID string) error
	// CompareAndDelete removes the draft only if it is still present and in
	// the expected stage, in one atomic step. It reports whether this call
	// consumed the draft.
	CompareAndDelete(ctx context.Context, draftID string, expected domain.DraftStage) (bool, error)
	// SweepExpired evicts expired drafts and returns how many were removed.
	// Backends with native TTL may report zero.
	SweepExpired(ctx context.Context) (int, error)
}
