package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/devicekit/core/device"
	"github.com/dmitrymomot/devicekit/core/logger"
	"github.com/dmitrymomot/devicekit/pkg/geoip"
)

// Manager owns session lifecycle: creation, activity refresh, ending,
// blocking, and the 2FA lock/unlock cycle.
type Manager struct {
	store   Store
	cfg     Config
	locator geoip.Locator
	log     *slog.Logger
}

// NewManager creates a session manager. The locator resolves session start
// locations; pass geoip.Static(geoip.Location{}) when no provider is
// configured. A nil logger discards output.
func NewManager(store Store, cfg Config, locator geoip.Locator, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if locator == nil {
		locator = geoip.Static(geoip.Location{})
	}
	return &Manager{
		store:   store,
		cfg:     cfg,
		locator: locator,
		log:     log.With(logger.Component("session.manager")),
	}
}

// Config returns the manager's policy configuration.
func (m *Manager) Config() Config { return m.cfg }

// Store returns the underlying session store.
func (m *Manager) Store() Store { return m.store }

// GetByUUID loads a session by its identifier.
func (m *Manager) GetByUUID(ctx context.Context, id uuid.UUID) (*Session, error) {
	return m.store.GetByUUID(ctx, id)
}

// Start creates a new session for the device and user. When multi-session is
// disallowed, all prior non-finished sessions for the (device, user) pair are
// ended first. The request IP is geolocated best-effort: lookup failures
// yield an empty location, never an error.
func (m *Manager) Start(ctx context.Context, d *device.Device, userID uuid.UUID, ip string) (*Session, error) {
	if !m.cfg.AllowMultiSession {
		if err := m.EndOthers(ctx, d.UUID, userID, uuid.Nil); err != nil {
			return nil, err
		}
	}

	loc, _ := geoip.Fallback(m.locator, 2*time.Second).Locate(ctx, ip)

	now := time.Now()
	s := &Session{
		UUID:           uuid.New(),
		UserID:         userID,
		DeviceUUID:     d.UUID,
		IP:             ip,
		Location:       loc,
		StartedAt:      now,
		LastActivityAt: now,
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}

	m.log.InfoContext(ctx, "session started",
		logger.SessionID(s.UUID),
		logger.DeviceID(d.UUID),
		logger.UserID(userID),
		logger.ClientIP(ip))
	return s, nil
}

// End finishes the session. FinishedAt once set is immutable; ending an
// already finished session is a no-op.
func (m *Manager) End(ctx context.Context, s *Session) error {
	if s.IsFinished() {
		return nil
	}
	s.FinishedAt = time.Now()
	return m.store.Save(ctx, s)
}

// EndOthers finishes all non-finished sessions for the (device, user) pair,
// except the one identified by keep (uuid.Nil keeps nothing).
func (m *Manager) EndOthers(ctx context.Context, deviceUUID, userID, keep uuid.UUID) error {
	others, err := m.store.ListUnfinished(ctx, deviceUUID, userID)
	if err != nil {
		return err
	}
	for _, other := range others {
		if other.UUID == keep {
			continue
		}
		if err := m.End(ctx, other); err != nil && !errors.Is(err, ErrVersionConflict) {
			return err
		}
	}
	return nil
}

// Restart refreshes the session's activity timestamp.
func (m *Manager) Restart(ctx context.Context, s *Session) error {
	if s.IsFinished() {
		return ErrFinished
	}
	s.LastActivityAt = time.Now()
	return m.store.Save(ctx, s)
}

// Block marks the session as blocked by the given principal. One-way until
// an explicit Unblock.
func (m *Manager) Block(ctx context.Context, s *Session, by uuid.UUID) error {
	if !s.BlockedAt.IsZero() {
		return nil
	}
	s.BlockedAt = time.Now()
	s.BlockedBy = by
	if err := m.store.Save(ctx, s); err != nil {
		return err
	}

	m.log.WarnContext(ctx, "session blocked", logger.SessionID(s.UUID), logger.UserID(by))
	return nil
}

// Unblock clears the blocked state. Rejected when the owning device was
// flagged as hijacked; a hijacked device requires administrative reset first.
func (m *Manager) Unblock(ctx context.Context, s *Session, d *device.Device) error {
	if d != nil && d.IsHijacked() {
		return ErrDeviceHijacked
	}
	if s.BlockedAt.IsZero() {
		return nil
	}
	s.BlockedAt = time.Time{}
	s.BlockedBy = uuid.Nil
	return m.store.Save(ctx, s)
}

// LockByCode locks the session pending a second factor. A six-digit numeric
// code is generated, only its bcrypt hash is stored, and StartedAt is reset
// as the lock-issue timestamp for code expiry. The plaintext code is returned
// exactly once for out-of-band delivery.
func (m *Manager) LockByCode(ctx context.Context, s *Session) (string, error) {
	if s.IsFinished() {
		return "", ErrFinished
	}

	code, err := generateCode()
	if err != nil {
		return "", errors.Join(ErrCodeGeneration, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Join(ErrCodeGeneration, err)
	}

	s.LoginCodeHash = string(hash)
	s.StartedAt = time.Now()
	if err := m.store.Save(ctx, s); err != nil {
		return "", err
	}

	m.log.InfoContext(ctx, "session locked pending 2fa", logger.SessionID(s.UUID))
	return code, nil
}

// UnlockByCode verifies the submitted code and clears the lock on match.
// Returns false when the code is wrong or the lock has outlived LoginCodeTTL;
// an expired or mismatched code leaves the session locked.
func (m *Manager) UnlockByCode(ctx context.Context, s *Session, code string) (bool, error) {
	if s.LoginCodeHash == "" {
		return false, ErrNotLocked
	}
	if time.Since(s.StartedAt) > m.cfg.LoginCodeTTL {
		return false, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(s.LoginCodeHash), []byte(code)) != nil {
		return false, nil
	}

	s.LoginCodeHash = ""
	s.LastActivityAt = time.Now()
	if err := m.store.Save(ctx, s); err != nil {
		return false, err
	}

	m.log.InfoContext(ctx, "session unlocked", logger.SessionID(s.UUID))
	return true, nil
}

// EndInactive sweeps sessions idle past the inactivity threshold. With
// behaviour "terminate" they are finished; with "ignore" (or a disabled
// threshold) the sweep does nothing. Returns the number of ended sessions.
func (m *Manager) EndInactive(ctx context.Context) (int, error) {
	if m.cfg.InactivityBehaviour != BehaviourTerminate || m.cfg.InactivitySeconds <= 0 {
		return 0, nil
	}

	idle, err := m.store.ListIdleSince(ctx, time.Now().Add(-m.cfg.Inactivity()))
	if err != nil {
		return 0, err
	}

	ended := 0
	for _, s := range idle {
		if err := m.End(ctx, s); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				continue
			}
			return ended, err
		}
		ended++
	}
	if ended > 0 {
		m.log.InfoContext(ctx, "inactive sessions ended", logger.Count("ended", ended))
	}
	return ended, nil
}

// generateCode produces a uniformly distributed six-digit numeric code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
