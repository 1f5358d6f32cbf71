package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/devicekit/core/device"
	"github.com/dmitrymomot/devicekit/core/event"
	"github.com/dmitrymomot/devicekit/core/logger"
	"github.com/dmitrymomot/devicekit/core/metrics"
	"github.com/dmitrymomot/devicekit/core/security"
	"github.com/dmitrymomot/devicekit/core/session"
	"github.com/dmitrymomot/devicekit/core/transport"
	"github.com/dmitrymomot/devicekit/pkg/clientip"
	"github.com/dmitrymomot/devicekit/pkg/fingerprint"
	"github.com/dmitrymomot/devicekit/pkg/useragent"
)

// UserResolver reports the authenticated user for a request, or false for
// guests. The host application plugs in its auth layer here.
type UserResolver func(r *http.Request) (uuid.UUID, bool)

// BagResolver returns the server-side session bag for a request, used by
// the session carrier. A nil resolver disables the session carrier.
type BagResolver func(r *http.Request) transport.SessionBag

// Tracker is the per-request pipeline: resolve identifiers, load or create
// the device, step the session state machine, and act on its decision. All
// downstream handlers read the result through Tracking(ctx).
type Tracker struct {
	cfg       Config
	deviceID  *transport.Transport
	sessionID *transport.Transport
	clientFP  *transport.Transport
	registry  *device.Registry
	sessions  *session.Manager
	machine   *session.Machine
	engine    *security.Engine
	events    *event.Tracker
	recorder  *metrics.Recorder
	userOf    UserResolver
	bagOf     BagResolver
	log       *slog.Logger
}

// TrackerDeps collects the tracker's collaborators. Engine, Events, and
// Recorder are optional; a nil Users treats every request as a guest.
type TrackerDeps struct {
	DeviceID  *transport.Transport
	SessionID *transport.Transport
	ClientFP  *transport.Transport
	Registry  *device.Registry
	Sessions  *session.Manager
	Engine    *security.Engine
	Events    *event.Tracker
	Recorder  *metrics.Recorder
	Users     UserResolver
	Bag       BagResolver
	Log       *slog.Logger
}

func NewTracker(cfg Config, deps TrackerDeps) *Tracker {
	if deps.Users == nil {
		deps.Users = func(*http.Request) (uuid.UUID, bool) { return uuid.Nil, false }
	}
	if deps.Bag == nil {
		deps.Bag = func(*http.Request) transport.SessionBag { return nil }
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Tracker{
		cfg:       cfg,
		deviceID:  deps.DeviceID,
		sessionID: deps.SessionID,
		clientFP:  deps.ClientFP,
		registry:  deps.Registry,
		sessions:  deps.Sessions,
		machine:   session.NewMachine(deps.Sessions, session.ParseRouteRules(cfg.IgnoreRestart)),
		engine:    deps.Engine,
		events:    deps.Events,
		recorder:  deps.Recorder,
		userOf:    deps.Users,
		bagOf:     deps.Bag,
		log:       deps.Log,
	}
}

// Handler wraps next with the tracking pipeline.
func (t *Tracker) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		bag := t.bagOf(r)

		tc := &TrackingContext{ClientIP: clientip.GetIP(r)}
		tc.DeviceID, _ = t.deviceID.Resolve(r, bag)
		tc.SessionID, _ = t.sessionID.Resolve(r, bag)
		tc.Fingerprint, _ = t.clientFP.Resolve(r, bag)
		if tc.Fingerprint == "" {
			tc.Fingerprint = fingerprint.Generate(r)
		}

		d, err := t.resolveDevice(r, tc)
		if err != nil {
			switch {
			case errors.Is(err, device.ErrHijacked):
				t.terminate(w, r, bag)
				return
			case errors.Is(err, device.ErrRejected):
				// Untrackable client; let the request through untracked.
				next.ServeHTTP(w, r.WithContext(withTracking(ctx, tc)))
				return
			default:
				t.log.ErrorContext(ctx, "device resolution failed", logger.Error(err))
				next.ServeHTTP(w, r.WithContext(withTracking(ctx, tc)))
				return
			}
		}
		tc.Device = d

		userID, authenticated := t.userOf(r)
		if !authenticated {
			// A session without an authenticated principal is a guest
			// session, whatever the resolver reported alongside false.
			userID = uuid.Nil
		}
		s, created, err := t.resolveSession(r, tc, d, userID, authenticated)
		if err != nil {
			t.log.ErrorContext(ctx, "session resolution failed",
				logger.DeviceID(d.UUID), logger.Error(err))
		}
		tc.Session = s

		if s != nil {
			decision, err := t.machine.Step(ctx, s, session.RequestInfo{
				Method: r.Method,
				Route:  r.URL.Path,
			})
			if err != nil {
				t.log.ErrorContext(ctx, "state machine step failed",
					logger.SessionID(s.UUID), logger.Error(err))
			}
			tc.Decision = decision

			switch decision.Action {
			case session.ActionChallenge:
				t.challenge(w, r)
				return
			case session.ActionTerminate:
				t.terminate(w, r, bag)
				return
			}
		}

		if created && t.engine != nil {
			t.assess(r, tc, d, s)
		}

		t.persistIDs(w, r, bag, tc)
		t.record(r, tc, start)

		next.ServeHTTP(w, transport.Propagate(r, t.deviceID.Kind().Name, d.UUID.String()).
			WithContext(withTracking(ctx, tc)))
	})
}

func (t *Tracker) resolveDevice(r *http.Request, tc *TrackingContext) (*device.Device, error) {
	ctx := r.Context()
	agent, _ := useragent.Detect(r.UserAgent())
	info := device.DetectedInfo{Agent: agent, Fingerprint: tc.Fingerprint}

	if id, err := uuid.Parse(tc.DeviceID); err == nil {
		d, err := t.registry.GetByUUID(ctx, id)
		switch {
		case err == nil:
			if d.IsHijacked() {
				return nil, device.ErrHijacked
			}
			if err := t.registry.AssignFingerprint(ctx, d, tc.Fingerprint); err != nil {
				t.log.ErrorContext(ctx, "fingerprint assignment failed",
					logger.DeviceID(d.UUID), logger.Error(err))
			}
			return d, nil
		case !errors.Is(err, device.ErrNotFound):
			return nil, err
		case t.cfg.RegenerateDevices:
			// Stale identifier: issue a brand-new device instead of
			// re-attaching to a signal match.
			return t.registry.Create(ctx, info)
		}
	}
	d, err := t.registry.CreateOrGet(ctx, info)
	if err != nil {
		return nil, err
	}
	if d.IsHijacked() {
		return nil, device.ErrHijacked
	}
	return d, nil
}

// resolveSession loads the resolved session if it belongs to the device and
// user, otherwise starts a new one when policy tracks this visitor. The
// second return reports whether a session was started.
func (t *Tracker) resolveSession(r *http.Request, tc *TrackingContext, d *device.Device, userID uuid.UUID, authenticated bool) (*session.Session, bool, error) {
	ctx := r.Context()
	cfg := t.sessions.Config()

	if id, err := uuid.Parse(tc.SessionID); err == nil {
		s, err := t.sessions.GetByUUID(ctx, id)
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			return nil, false, err
		}
		if s != nil && s.DeviceUUID == d.UUID {
			switch {
			case authenticated && s.IsGuest(), authenticated && cfg.StartNewSessionOnLogin && s.UserID != userID:
				// Authentication boundary: retire the anonymous session.
				if err := t.sessions.End(ctx, s); err != nil {
					return nil, false, err
				}
			default:
				return s, false, nil
			}
		}
	}

	if !authenticated && !cfg.TrackGuestSessions {
		return nil, false, nil
	}
	s, err := t.sessions.Start(ctx, d, userID, tc.ClientIP)
	if err != nil {
		return nil, false, err
	}
	if t.events != nil && authenticated {
		t.events.Record(ctx, d.UUID, s.UUID, event.TypeLogin, tc.ClientIP, event.Metadata{
			"fingerprint": tc.Fingerprint,
		})
	}
	return s, true, nil
}

func (t *Tracker) assess(r *http.Request, tc *TrackingContext, d *device.Device, s *session.Session) {
	ctx := r.Context()
	assessment := t.engine.Evaluate(ctx, security.Context{
		Device:  d,
		Session: s,
		Request: &security.RequestInfo{
			Header:         r.Header,
			IP:             tc.ClientIP,
			ClientTimezone: r.Header.Get("X-Timezone"),
		},
	})
	if err := t.registry.SetRisk(ctx, d, assessment.RiskInfo()); err != nil {
		t.log.ErrorContext(ctx, "risk persistence failed",
			logger.DeviceID(d.UUID), logger.Error(err))
	}
	if assessment.Level == security.LevelHigh {
		t.log.WarnContext(ctx, "high risk device",
			logger.DeviceID(d.UUID), logger.Key("risk_score", assessment.Score))
	}
	if t.recorder != nil {
		_ = t.recorder.Record(ctx, "device_risk_score", float64(assessment.Score), map[string]string{
			"level": string(assessment.Level),
		})
	}
}

func (t *Tracker) persistIDs(w http.ResponseWriter, r *http.Request, bag transport.SessionBag, tc *TrackingContext) {
	ctx := r.Context()
	if tc.Device != nil {
		if err := t.deviceID.Write(w, bag, tc.Device.UUID.String()); err != nil {
			t.log.ErrorContext(ctx, "device id write failed", logger.Error(err))
		}
	}
	if tc.Session != nil {
		if err := t.sessionID.Write(w, bag, tc.Session.UUID.String()); err != nil {
			t.log.ErrorContext(ctx, "session id write failed", logger.Error(err))
		}
	}
	if tc.Fingerprint != "" {
		if err := t.clientFP.Write(w, bag, tc.Fingerprint); err != nil {
			t.log.ErrorContext(ctx, "fingerprint write failed", logger.Error(err))
		}
	}
}

func (t *Tracker) record(r *http.Request, tc *TrackingContext, start time.Time) {
	ctx := r.Context()
	if t.events != nil && tc.Device != nil && tc.Session != nil {
		t.events.Record(ctx, tc.Device.UUID, tc.Session.UUID, eventTypeFor(r), tc.ClientIP, event.Metadata{
			"fingerprint": tc.Fingerprint,
			"route":       r.URL.Path,
			"method":      r.Method,
		})
	}
	if t.recorder != nil {
		dims := map[string]string{"method": r.Method}
		_ = t.recorder.Inc(ctx, "tracked_requests", 1, dims)
		_ = t.recorder.Record(ctx, "request_duration", float64(time.Since(start).Milliseconds()), dims)
	}
}

func eventTypeFor(r *http.Request) event.Type {
	accept := r.Header.Get("Accept")
	switch {
	case r.Header.Get("X-Livewire") != "":
		return event.TypeLivewireUpdate
	case strings.Contains(accept, "application/json"),
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest"):
		return event.TypeAPIRequest
	case r.Method == http.MethodPost:
		return event.TypeSubmit
	default:
		return event.TypePageView
	}
}

func (t *Tracker) challenge(w http.ResponseWriter, r *http.Request) {
	if t.cfg.UseRedirects {
		http.Redirect(w, r, t.cfg.TwoFactorRoute, http.StatusSeeOther)
		return
	}
	http.Error(w, "second factor required", t.cfg.LockHTTPCode)
}

func (t *Tracker) terminate(w http.ResponseWriter, r *http.Request, bag transport.SessionBag) {
	t.sessionID.Clear(w, bag)
	if t.cfg.UseRedirects {
		// The logout route lets the application clear its auth principal
		// before landing back on login.
		target := t.cfg.LogoutRoute
		if target == "" {
			target = t.cfg.LoginRoute
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	http.Error(w, "session terminated", t.cfg.LogoutHTTPCode)
}

// MetricDefinitions lists the metrics the tracker records, for
// registration at startup.
func MetricDefinitions() []metrics.Definition {
	return []metrics.Definition{
		{
			Name:              "tracked_requests",
			Type:              metrics.TypeCounter,
			AllowedDimensions: []string{"method"},
			Description:       "Requests processed by the tracking pipeline.",
		},
		{
			Name:              "request_duration",
			Type:              metrics.TypeHistogram,
			AllowedDimensions: []string{"method"},
			Unit:              metrics.UnitMilliseconds,
			Description:       "Tracking pipeline request latency.",
		},
		{
			Name:              "device_risk_score",
			Type:              metrics.TypeGauge,
			AllowedDimensions: []string{"level"},
			Description:       "Latest device risk assessment score.",
		},
	}
}
