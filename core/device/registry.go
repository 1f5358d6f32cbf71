package device

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/devicekit/core/logger"
)

// Config holds device registry policy.
type Config struct {
	// AllowUnknownDevices permits creating devices with no identifying
	// attributes at all.
	AllowUnknownDevices bool `env:"ALLOW_UNKNOWN_DEVICES" envDefault:"true"`
	// AllowBotDevices permits creating devices for detected bot agents.
	AllowBotDevices bool `env:"ALLOW_BOT_DEVICES" envDefault:"false"`
}

// Registry finds or creates device records and manages their verification
// and hijack state.
type Registry struct {
	store Store
	cfg   Config
	log   *slog.Logger
}

// NewRegistry creates a device registry. A nil logger discards output.
func NewRegistry(store Store, cfg Config, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{store: store, cfg: cfg, log: log.With(logger.Component("device.registry"))}
}

// Match finds an existing device by identity signals.
//
// Precedence: exact fingerprint, then (platform, browser, engine,
// advertising id), then (platform, browser, engine, device id). An empty
// signal never participates in matching, so two records sharing only empty
// identifiers can never match each other. Returns ErrNotFound when no path
// yields a device.
func (r *Registry) Match(ctx context.Context, s Signals) (*Device, error) {
	if s.Fingerprint != "" {
		d, err := r.store.FindByFingerprint(ctx, s.Fingerprint)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	if s.AdvertisingID != "" {
		d, err := r.store.FindByAdvertisingID(ctx, s.Platform, s.Browser, s.BrowserEngine, s.AdvertisingID)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	if s.DeviceID != "" {
		d, err := r.store.FindByDeviceID(ctx, s.Platform, s.Browser, s.BrowserEngine, s.DeviceID)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	return nil, ErrNotFound
}

// GetByUUID loads a device by its server-issued identifier.
func (r *Registry) GetByUUID(ctx context.Context, id uuid.UUID) (*Device, error) {
	return r.store.GetByUUID(ctx, id)
}

// CreateOrGet returns the matching device or creates a new one.
//
// Creation is rejected with ErrRejected when the agent is a bot and bot
// devices are disallowed, or when detection yields no identifying fields and
// unknown devices are disallowed.
func (r *Registry) CreateOrGet(ctx context.Context, info DetectedInfo) (*Device, error) {
	if d, err := r.Match(ctx, info.Signals()); err == nil {
		return d, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return r.Create(ctx, info)
}

// Create registers a new device without trying to match existing ones,
// subject to the same policy checks as CreateOrGet.
func (r *Registry) Create(ctx context.Context, info DetectedInfo) (*Device, error) {
	if info.Agent.Bot && !r.cfg.AllowBotDevices {
		return nil, errors.Join(ErrRejected, errors.New("bot devices disallowed"))
	}
	unknown := info.Agent.IsUnknown() && info.AdvertisingID == "" && info.DeviceID == "" && info.Fingerprint == ""
	if unknown && !r.cfg.AllowUnknownDevices {
		return nil, errors.Join(ErrRejected, errors.New("unknown devices disallowed"))
	}

	now := time.Now()
	d := &Device{
		UUID:            uuid.New(),
		Status:          StatusUnverified,
		Browser:         info.Agent.Browser,
		BrowserFamily:   info.Agent.BrowserFamily,
		BrowserVersion:  info.Agent.BrowserVersion,
		BrowserEngine:   info.Agent.BrowserEngine,
		Platform:        info.Agent.Platform,
		PlatformFamily:  info.Agent.PlatformFamily,
		PlatformVersion: info.Agent.PlatformVersion,
		DeviceType:      string(info.Agent.DeviceType),
		DeviceFamily:    info.Agent.DeviceFamily,
		DeviceModel:     info.Agent.DeviceModel,
		Grade:           info.Grade,
		Source:          info.Agent.Source,
		Fingerprint:     info.Fingerprint,
		AdvertisingID:   info.AdvertisingID,
		DeviceID:        info.DeviceID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.store.Save(ctx, d); err != nil {
		return nil, err
	}

	r.log.InfoContext(ctx, "device created",
		logger.DeviceID(d.UUID),
		slog.String("platform", d.Platform),
		slog.String("browser", d.Browser))
	return d, nil
}

// Verify marks the device as verified. Idempotent: re-verifying keeps the
// original verification timestamp.
func (r *Registry) Verify(ctx context.Context, d *Device) error {
	if d.Status == StatusVerified {
		return nil
	}
	if d.IsHijacked() {
		return ErrHijacked
	}
	d.Status = StatusVerified
	d.VerifiedAt = time.Now()
	d.UpdatedAt = d.VerifiedAt
	return r.store.Save(ctx, d)
}

// FlagHijacked marks the device as hijacked. One-way: a hijacked device
// stays hijacked until explicit administrative reset.
func (r *Registry) FlagHijacked(ctx context.Context, d *Device) error {
	if d.Status == StatusHijacked {
		return nil
	}
	d.Status = StatusHijacked
	d.HijackedAt = time.Now()
	d.UpdatedAt = d.HijackedAt
	if err := r.store.Save(ctx, d); err != nil {
		return err
	}

	r.log.WarnContext(ctx, "device flagged as hijacked", logger.DeviceID(d.UUID))
	return nil
}

// AssignFingerprint sets the client fingerprint on a device that does not
// have one yet.
func (r *Registry) AssignFingerprint(ctx context.Context, d *Device, fingerprint string) error {
	if fingerprint == "" || d.Fingerprint == fingerprint {
		return nil
	}
	d.Fingerprint = fingerprint
	d.UpdatedAt = time.Now()
	return r.store.Save(ctx, d)
}

// SetRisk persists a risk assessment snapshot onto the device.
func (r *Registry) SetRisk(ctx context.Context, d *Device, risk RiskInfo) error {
	d.RiskScore = risk.Score
	d.Risk = risk
	d.UpdatedAt = time.Now()
	return r.store.Save(ctx, d)
}

// IsCurrent reports whether the device is the one identified by the resolved
// request identifier.
func (r *Registry) IsCurrent(d *Device, resolvedID string) bool {
	if d == nil || resolvedID == "" {
		return false
	}
	id, err := uuid.Parse(resolvedID)
	if err != nil {
		return false
	}
	return d.UUID == id
}

// PurgeOrphaned removes session-less and hijacked devices older than the
// cutoff. Explicit cleanup is the only path that hard-deletes devices.
func (r *Registry) PurgeOrphaned(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := r.store.DeleteOrphaned(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.InfoContext(ctx, "orphaned devices purged", logger.Count("deleted", int(n)))
	}
	return n, nil
}
