package pg

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/devicekit/core/session"
)

// SessionStore is the PostgreSQL session.Store implementation. Save uses a
// compare-and-set on the version column to detect concurrent writes.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

const sessionColumns = `uuid, user_id, device_uuid, ip, location, login_code_hash,
	started_at, last_activity_at, finished_at, blocked_at, blocked_by, version`

func (s *SessionStore) GetByUUID(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	row := db(ctx, s.pool).QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM device_sessions WHERE uuid = $1`, id)
	return scanSession(row)
}

func (s *SessionStore) ListUnfinished(ctx context.Context, deviceUUID, userID uuid.UUID) ([]*session.Session, error) {
	rows, err := db(ctx, s.pool).Query(ctx,
		`SELECT `+sessionColumns+` FROM device_sessions
		 WHERE device_uuid = $1 AND (user_id = $2 OR ($2 = '00000000-0000-0000-0000-000000000000'::uuid AND user_id IS NULL))
		   AND finished_at IS NULL
		 ORDER BY started_at DESC`,
		deviceUUID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	loc, err := json.Marshal(sess.Location)
	if err != nil {
		return err
	}

	if sess.Version == 0 {
		err := db(ctx, s.pool).QueryRow(ctx, `
			INSERT INTO device_sessions (`+sessionColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,1)
			RETURNING version`,
			sess.UUID, nullUUID(sess.UserID), sess.DeviceUUID, sess.IP, loc, sess.LoginCodeHash,
			sess.StartedAt, sess.LastActivityAt, nullTime(sess.FinishedAt),
			nullTime(sess.BlockedAt), nullUUID(sess.BlockedBy)).Scan(&sess.Version)
		return err
	}

	row := db(ctx, s.pool).QueryRow(ctx, `
		UPDATE device_sessions SET
			user_id = $2, ip = $3, location = $4, login_code_hash = $5,
			started_at = $6, last_activity_at = $7, finished_at = $8,
			blocked_at = $9, blocked_by = $10, version = version + 1
		WHERE uuid = $1 AND version = $11
		RETURNING version`,
		sess.UUID, nullUUID(sess.UserID), sess.IP, loc, sess.LoginCodeHash,
		sess.StartedAt, sess.LastActivityAt, nullTime(sess.FinishedAt),
		nullTime(sess.BlockedAt), nullUUID(sess.BlockedBy), sess.Version)
	if err := row.Scan(&sess.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.ErrVersionConflict
		}
		return err
	}
	return nil
}

func (s *SessionStore) ListIdleSince(ctx context.Context, cutoff time.Time) ([]*session.Session, error) {
	rows, err := db(ctx, s.pool).Query(ctx,
		`SELECT `+sessionColumns+` FROM device_sessions
		 WHERE finished_at IS NULL AND last_activity_at < $1`,
		cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (s *SessionStore) PreviousForUser(ctx context.Context, userID uuid.UUID, before time.Time) (*session.Session, error) {
	row := db(ctx, s.pool).QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM device_sessions
		 WHERE user_id = $1 AND started_at < $2
		 ORDER BY started_at DESC LIMIT 1`,
		userID, before)
	return scanSession(row)
}

func (s *SessionStore) CountStartedSince(ctx context.Context, deviceUUID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := db(ctx, s.pool).QueryRow(ctx,
		`SELECT count(*) FROM device_sessions WHERE device_uuid = $1 AND started_at >= $2`,
		deviceUUID, since).Scan(&n)
	return n, err
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var (
		sess       session.Session
		userID     *uuid.UUID
		blockedBy  *uuid.UUID
		loc        []byte
		finishedAt *time.Time
		blockedAt  *time.Time
	)
	err := row.Scan(
		&sess.UUID, &userID, &sess.DeviceUUID, &sess.IP, &loc, &sess.LoginCodeHash,
		&sess.StartedAt, &sess.LastActivityAt, &finishedAt, &blockedAt, &blockedBy, &sess.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	if len(loc) > 0 {
		if err := json.Unmarshal(loc, &sess.Location); err != nil {
			return nil, err
		}
	}
	sess.UserID = uuidOrNil(userID)
	sess.BlockedBy = uuidOrNil(blockedBy)
	sess.FinishedAt = timeOrZero(finishedAt)
	sess.BlockedAt = timeOrZero(blockedAt)
	return &sess, nil
}

func scanSessions(rows pgx.Rows) ([]*session.Session, error) {
	var out []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func uuidOrNil(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
