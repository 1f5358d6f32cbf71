package session_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/devicekit/core/session"
)

func TestSession_Status(t *testing.T) {
	now := time.Now()
	inactivity := 20 * time.Minute

	base := session.Session{
		UUID:           uuid.New(),
		DeviceUUID:     uuid.New(),
		StartedAt:      now.Add(-time.Hour),
		LastActivityAt: now.Add(-time.Minute),
	}

	t.Run("active", func(t *testing.T) {
		assert.Equal(t, session.StatusActive, base.Status(now, inactivity))
	})

	t.Run("inactive past threshold", func(t *testing.T) {
		s := base
		s.LastActivityAt = now.Add(-21 * time.Minute)
		assert.Equal(t, session.StatusInactive, s.Status(now, inactivity))
	})

	t.Run("zero inactivity disables the check", func(t *testing.T) {
		s := base
		s.LastActivityAt = now.Add(-100 * time.Hour)
		assert.Equal(t, session.StatusActive, s.Status(now, 0))
	})

	t.Run("locked", func(t *testing.T) {
		s := base
		s.LoginCodeHash = "$2a$10$hash"
		assert.Equal(t, session.StatusLocked, s.Status(now, inactivity))
	})

	t.Run("locked beats inactive", func(t *testing.T) {
		s := base
		s.LoginCodeHash = "$2a$10$hash"
		s.LastActivityAt = now.Add(-time.Hour)
		assert.Equal(t, session.StatusLocked, s.Status(now, inactivity))
	})

	t.Run("finished beats locked", func(t *testing.T) {
		s := base
		s.LoginCodeHash = "$2a$10$hash"
		s.FinishedAt = now.Add(-time.Minute)
		assert.Equal(t, session.StatusFinished, s.Status(now, inactivity))
	})

	t.Run("blocked beats everything", func(t *testing.T) {
		s := base
		s.LoginCodeHash = "$2a$10$hash"
		s.FinishedAt = now.Add(-time.Minute)
		s.BlockedAt = now.Add(-time.Second)
		assert.Equal(t, session.StatusBlocked, s.Status(now, inactivity))
	})
}

func TestSession_IsGuest(t *testing.T) {
	s := session.Session{}
	assert.True(t, s.IsGuest())

	s.UserID = uuid.New()
	assert.False(t, s.IsGuest())
}
