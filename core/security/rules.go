package security

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/devicekit/core/event"
	"github.com/dmitrymomot/devicekit/core/session"
)

// Rules are threshold-based binary scorers: each yields 0.0 or 1.0, combined
// by the engine with per-rule weights. Every rule scores 0.0 on missing
// context.

// ExcessiveEventsRule flags devices generating an abnormal number of events
// in the trailing hour.
type ExcessiveEventsRule struct {
	Events     event.Store
	Threshold  int     // default 1000
	RuleWeight float64 // default 1.0
}

func (r ExcessiveEventsRule) Name() string    { return "excessive_events" }
func (r ExcessiveEventsRule) Weight() float64 { return weightOr(r.RuleWeight) }

func (r ExcessiveEventsRule) Evaluate(ctx context.Context, rc Context) (Factor, error) {
	if rc.Device == nil || r.Events == nil {
		return Factor{Name: r.Name()}, nil
	}
	n, err := r.Events.CountByDevice(ctx, rc.Device.UUID, time.Now().Add(-time.Hour))
	if err != nil {
		return Factor{Name: r.Name()}, err
	}
	return Factor{Name: r.Name(), Score: binary(n > thresholdOr(r.Threshold, 1000))}, nil
}

// FastSignupRule flags a signup occurring suspiciously soon after the device
// was first seen.
type FastSignupRule struct {
	Events     event.Store
	MaxAge     time.Duration // default 5m
	RuleWeight float64
}

func (r FastSignupRule) Name() string    { return "fast_signup" }
func (r FastSignupRule) Weight() float64 { return weightOr(r.RuleWeight) }

func (r FastSignupRule) Evaluate(ctx context.Context, rc Context) (Factor, error) {
	if rc.Device == nil || r.Events == nil {
		return Factor{Name: r.Name()}, nil
	}
	maxAge := r.MaxAge
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	if time.Since(rc.Device.CreatedAt) > maxAge {
		return Factor{Name: r.Name()}, nil
	}
	n, err := r.Events.CountByDevice(ctx, rc.Device.UUID, rc.Device.CreatedAt, event.TypeSignup)
	if err != nil {
		return Factor{Name: r.Name()}, err
	}
	return Factor{Name: r.Name(), Score: binary(n > 0)}, nil
}

// FingerprintFlipRule flags sessions cycling through distinct device
// fingerprints over a day.
type FingerprintFlipRule struct {
	Events     event.Store
	Window     time.Duration // default 24h
	Threshold  int           // default 3 distinct fingerprints
	RuleWeight float64
}

func (r FingerprintFlipRule) Name() string    { return "fingerprint_flip" }
func (r FingerprintFlipRule) Weight() float64 { return weightOr(r.RuleWeight) }

func (r FingerprintFlipRule) Evaluate(ctx context.Context, rc Context) (Factor, error) {
	if rc.Session == nil || r.Events == nil {
		return Factor{Name: r.Name()}, nil
	}
	n, err := r.Events.DistinctFingerprints(ctx, rc.Session.UUID, time.Now().Add(-durationOr(r.Window, 24*time.Hour)))
	if err != nil {
		return Factor{Name: r.Name()}, err
	}
	return Factor{Name: r.Name(), Score: binary(n >= thresholdOr(r.Threshold, 3))}, nil
}

// LocationVelocityRule detects impossible travel: the speed required to move
// between two consecutive sessions' locations exceeds what an airliner can
// do.
type LocationVelocityRule struct {
	Sessions    session.Store
	MaxSpeedKmh float64 // default 900
	RuleWeight  float64
}

func (r LocationVelocityRule) Name() string    { return "location_velocity" }
func (r LocationVelocityRule) Weight() float64 { return weightOr(r.RuleWeight) }

func (r LocationVelocityRule) Evaluate(ctx context.Context, rc Context) (Factor, error) {
	if rc.Session == nil || rc.Session.IsGuest() || r.Sessions == nil {
		return Factor{Name: r.Name()}, nil
	}
	cur := rc.Session
	if cur.Location.Latitude == 0 && cur.Location.Longitude == 0 {
		return Factor{Name: r.Name()}, nil
	}

	prev, err := r.Sessions.PreviousForUser(ctx, cur.UserID, cur.StartedAt)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Factor{Name: r.Name()}, nil
		}
		return Factor{Name: r.Name()}, err
	}
	if prev.Location.Latitude == 0 && prev.Location.Longitude == 0 {
		return Factor{Name: r.Name()}, nil
	}

	hours := cur.StartedAt.Sub(prev.StartedAt).Hours()
	if hours <= 0 {
		return Factor{Name: r.Name(), Score: 1}, nil
	}

	distance := haversineKm(
		prev.Location.Latitude, prev.Location.Longitude,
		cur.Location.Latitude, cur.Location.Longitude,
	)
	maxSpeed := r.MaxSpeedKmh
	if maxSpeed <= 0 {
		maxSpeed = 900
	}
	return Factor{Name: r.Name(), Score: binary(distance/hours > maxSpeed)}, nil
}

// MultipleLoginsRule flags devices logging in repeatedly within a window.
type MultipleLoginsRule struct {
	Events     event.Store
	Window     time.Duration // default 1h
	Threshold  int           // default 5
	RuleWeight float64
}

func (r MultipleLoginsRule) Name() string    { return "multiple_logins" }
func (r MultipleLoginsRule) Weight() float64 { return weightOr(r.RuleWeight) }

func (r MultipleLoginsRule) Evaluate(ctx context.Context, rc Context) (Factor, error) {
	if rc.Device == nil || r.Events == nil {
		return Factor{Name: r.Name()}, nil
	}
	n, err := r.Events.CountByDevice(ctx, rc.Device.UUID, time.Now().Add(-durationOr(r.Window, time.Hour)), event.TypeLogin)
	if err != nil {
		return Factor{Name: r.Name()}, err
	}
	return Factor{Name: r.Name(), Score: binary(n > thresholdOr(r.Threshold, 5))}, nil
}

// MultipleSignupsRule flags devices creating several accounts in a window.
type MultipleSignupsRule struct {
	Events     event.Store
	Window     time.Duration // default 24h
	Threshold  int           // default 2
	RuleWeight float64
}

func (r MultipleSignupsRule) Name() string    { return "multiple_signups" }
func (r MultipleSignupsRule) Weight() float64 { return weightOr(r.RuleWeight) }

func (r MultipleSignupsRule) Evaluate(ctx context.Context, rc Context) (Factor, error) {
	if rc.Device == nil || r.Events == nil {
		return Factor{Name: r.Name()}, nil
	}
	n, err := r.Events.CountByDevice(ctx, rc.Device.UUID, time.Now().Add(-durationOr(r.Window, 24*time.Hour)), event.TypeSignup)
	if err != nil {
		return Factor{Name: r.Name()}, err
	}
	return Factor{Name: r.Name(), Score: binary(n >= thresholdOr(r.Threshold, 2))}, nil
}

// proxyHeaders are request headers only proxies and anonymizers set.
var proxyHeaders = []string{
	"Via", "Forwarded", "Proxy-Connection", "X-Proxy-Id",
	"X-Tunneled-Proxy", "Proxy-Authorization",
}

// ProxyRule detects proxy or VPN usage from giveaway request headers and
// from a mismatch between the geo-derived and client-claimed timezones.
type ProxyRule struct {
	RuleWeight float64
}

func (r ProxyRule) Name() string    { return "proxy" }
func (r ProxyRule) Weight() float64 { return weightOr(r.RuleWeight) }

func (r ProxyRule) Evaluate(_ context.Context, rc Context) (Factor, error) {
	if rc.Request == nil {
		return Factor{Name: r.Name()}, nil
	}

	if rc.Request.Header != nil {
		for _, h := range proxyHeaders {
			if rc.Request.Header.Get(h) != "" {
				return Factor{Name: r.Name(), Score: 1}, nil
			}
		}
	}

	if rc.Session != nil && rc.Session.Location.Timezone != "" &&
		rc.Request.ClientTimezone != "" &&
		rc.Session.Location.Timezone != rc.Request.ClientTimezone {
		return Factor{Name: r.Name(), Score: 1}, nil
	}

	return Factor{Name: r.Name()}, nil
}

// SessionHijackRule flags a session presenting more than one device
// fingerprint in a short window — the strongest hijack signal this system
// has.
type SessionHijackRule struct {
	Events     event.Store
	Window     time.Duration // default 1h
	RuleWeight float64
}

func (r SessionHijackRule) Name() string    { return "session_hijack" }
func (r SessionHijackRule) Weight() float64 { return weightOr(r.RuleWeight) }

func (r SessionHijackRule) Evaluate(ctx context.Context, rc Context) (Factor, error) {
	if rc.Session == nil || r.Events == nil {
		return Factor{Name: r.Name()}, nil
	}
	n, err := r.Events.DistinctFingerprints(ctx, rc.Session.UUID, time.Now().Add(-durationOr(r.Window, time.Hour)))
	if err != nil {
		return Factor{Name: r.Name()}, err
	}
	return Factor{Name: r.Name(), Score: binary(n >= 2)}, nil
}

// DefaultRules assembles the standard rule set with equal weights.
func DefaultRules(events event.Store, sessions session.Store) []Rule {
	return []Rule{
		ExcessiveEventsRule{Events: events},
		FastSignupRule{Events: events},
		FingerprintFlipRule{Events: events},
		LocationVelocityRule{Sessions: sessions},
		MultipleLoginsRule{Events: events},
		MultipleSignupsRule{Events: events},
		ProxyRule{},
		SessionHijackRule{Events: events},
	}
}

func binary(cond bool) float64 {
	if cond {
		return 1
	}
	return 0
}

func weightOr(w float64) float64 {
	if w <= 0 {
		return 1
	}
	return w
}

func thresholdOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
