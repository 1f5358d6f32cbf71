package metrics

import (
	"context"
	"time"
)

// SampleStore holds raw transient samples in a fast key/sorted-set
// namespace. Every mutation is a single atomic storage operation, so
// recording needs no in-process locking. Raw keys expire after twice their
// window length as a safety net; normal cleanup is deletion after rollup.
type SampleStore interface {
	// Inc atomically adds v to a counter key.
	Inc(ctx context.Context, key Key, v float64, ttl time.Duration) error

	// Append atomically adds a timestamped point to the key's series.
	Append(ctx context.Context, key Key, p Point, ttl time.Duration) error

	// Keys lists raw sample keys for the window with slot <= maxSlot.
	Keys(ctx context.Context, window Window, maxSlot int64) ([]Key, error)

	// Points returns all points stored under the key. Counter keys yield a
	// single point carrying the accumulated sum.
	Points(ctx context.Context, key Key) ([]Point, error)

	// Delete removes consumed raw keys. Deleting immediately after a
	// successful read+aggregate makes a second pass over the same slot a
	// no-op, which is what keeps concurrent processing idempotent-safe.
	Delete(ctx context.Context, keys ...Key) error
}

// AggregateStore holds durable computed rollups. Upsert must be idempotent
// on (name, type, window, slot, dimensions) so re-merging a slot overwrites
// rather than duplicates.
type AggregateStore interface {
	Upsert(ctx context.Context, a *Aggregate) error

	// List returns aggregates of a window whose slot timestamp lies in
	// [from, to).
	List(ctx context.Context, window Window, from, to time.Time) ([]Aggregate, error)

	// DeleteOlderThan prunes aggregates of a window past retention.
	DeleteOlderThan(ctx context.Context, window Window, cutoff time.Time) (int64, error)
}
