package pg

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/devicekit/core/event"
)

// EventStore is the PostgreSQL event.Store implementation. Rows are
// append-only; the only delete path is retention pruning.
type EventStore struct {
	pool *pgxpool.Pool
}

func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

func (s *EventStore) Insert(ctx context.Context, e *event.Event) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	_, err = db(ctx, s.pool).Exec(ctx, `
		INSERT INTO device_events (uuid, device_uuid, session_uuid, type, ip, metadata, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.UUID, e.DeviceUUID, nullUUID(e.SessionUUID), e.Type, e.IPAddress, meta, e.OccurredAt)
	return err
}

func (s *EventStore) CountByDevice(ctx context.Context, deviceUUID uuid.UUID, since time.Time, types ...event.Type) (int, error) {
	var n int
	err := db(ctx, s.pool).QueryRow(ctx, `
		SELECT count(*) FROM device_events
		WHERE device_uuid = $1 AND occurred_at >= $2
		  AND (cardinality($3::text[]) = 0 OR type = ANY($3))`,
		deviceUUID, since, typeStrings(types)).Scan(&n)
	return n, err
}

func (s *EventStore) CountByUser(ctx context.Context, userID uuid.UUID, since time.Time, types ...event.Type) (int, error) {
	var n int
	err := db(ctx, s.pool).QueryRow(ctx, `
		SELECT count(*) FROM device_events e
		JOIN device_sessions s ON s.uuid = e.session_uuid
		WHERE s.user_id = $1 AND e.occurred_at >= $2
		  AND (cardinality($3::text[]) = 0 OR e.type = ANY($3))`,
		userID, since, typeStrings(types)).Scan(&n)
	return n, err
}

func (s *EventStore) DistinctFingerprints(ctx context.Context, sessionUUID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := db(ctx, s.pool).QueryRow(ctx, `
		SELECT count(DISTINCT metadata->>'fingerprint') FROM device_events
		WHERE session_uuid = $1 AND occurred_at >= $2
		  AND metadata->>'fingerprint' IS NOT NULL AND metadata->>'fingerprint' <> ''`,
		sessionUUID, since).Scan(&n)
	return n, err
}

func (s *EventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db(ctx, s.pool).Exec(ctx,
		`DELETE FROM device_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func typeStrings(types []event.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
