package event

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an event cannot be found in the store.
var ErrNotFound = errors.New("event not found")

// Store defines event persistence. Inserts are append-only.
type Store interface {
	Insert(ctx context.Context, e *Event) error

	// CountByDevice counts events of the given types on a device since the
	// cutoff. An empty type list counts all events.
	CountByDevice(ctx context.Context, deviceUUID uuid.UUID, since time.Time, types ...Type) (int, error)

	// CountByUser counts events of the given types across a user's sessions
	// since the cutoff.
	CountByUser(ctx context.Context, userID uuid.UUID, since time.Time, types ...Type) (int, error)

	// DistinctFingerprints returns the number of distinct device
	// fingerprints recorded under the session since the cutoff.
	DistinctFingerprints(ctx context.Context, sessionUUID uuid.UUID, since time.Time) (int, error)

	// DeleteOlderThan prunes events past retention. Returns the count.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
