package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines session persistence. Save must implement compare-and-set on
// Session.Version: the write succeeds only when the stored version matches,
// returning ErrVersionConflict otherwise and incrementing Version on success.
type Store interface {
	GetByUUID(ctx context.Context, id uuid.UUID) (*Session, error)

	// ListUnfinished returns the non-finished sessions for a (device, user)
	// pair, most recent first.
	ListUnfinished(ctx context.Context, deviceUUID, userID uuid.UUID) ([]*Session, error)

	Save(ctx context.Context, s *Session) error

	// ListIdleSince returns non-finished sessions whose last activity is
	// before the cutoff. Used by the inactivity sweep.
	ListIdleSince(ctx context.Context, cutoff time.Time) ([]*Session, error)

	// PreviousForUser returns the user's most recent session started before
	// the given time, for consecutive-session comparisons.
	PreviousForUser(ctx context.Context, userID uuid.UUID, before time.Time) (*Session, error)

	// CountStartedSince counts sessions started on a device inside a window.
	CountStartedSince(ctx context.Context, deviceUUID uuid.UUID, since time.Time) (int, error)
}
