package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/devicekit/pkg/geoip"
)

// Status is the session state. Exactly one status applies at any instant;
// precedence is enforced by Session.Status.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusFinished Status = "finished"
	StatusBlocked  Status = "blocked"
	StatusLocked   Status = "locked"
)

// Session is one browsing session bound to exactly one device and one user.
// UserID is uuid.Nil for guest sessions.
type Session struct {
	UUID       uuid.UUID
	UserID     uuid.UUID
	DeviceUUID uuid.UUID

	IP       string
	Location geoip.Location

	// LoginCodeHash holds the bcrypt hash of the one-time code while the
	// session is locked pending a second factor. Empty means not locked.
	LoginCodeHash string

	StartedAt      time.Time
	LastActivityAt time.Time
	FinishedAt     time.Time
	BlockedAt      time.Time
	BlockedBy      uuid.UUID

	// Version supports optimistic concurrency: stores reject writes whose
	// Version does not match the stored row.
	Version int64
}

// Status computes the current state from stored fields. First match wins:
// blocked, finished, locked, inactive, active. Blocked beats everything,
// including a simultaneously set login code. inactivity <= 0 disables the
// inactivity check.
func (s Session) Status(now time.Time, inactivity time.Duration) Status {
	switch {
	case !s.BlockedAt.IsZero():
		return StatusBlocked
	case !s.FinishedAt.IsZero():
		return StatusFinished
	case s.LoginCodeHash != "":
		return StatusLocked
	case inactivity > 0 && now.Sub(s.LastActivityAt) > inactivity:
		return StatusInactive
	default:
		return StatusActive
	}
}

// IsFinished reports whether the session has ended.
func (s Session) IsFinished() bool { return !s.FinishedAt.IsZero() }

// IsGuest reports whether the session has no authenticated user.
func (s Session) IsGuest() bool { return s.UserID == uuid.Nil }
