package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicekit/core/device"
	"github.com/dmitrymomot/devicekit/core/event"
	"github.com/dmitrymomot/devicekit/core/metrics"
	"github.com/dmitrymomot/devicekit/core/session"
	"github.com/dmitrymomot/devicekit/core/transport"
	"github.com/dmitrymomot/devicekit/middleware"
	"github.com/dmitrymomot/devicekit/pkg/geoip"
)

const chromeUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

const (
	deviceIDHeader  = "X-Device-ID"
	sessionIDHeader = "X-Session-ID"
	clientFPHeader  = "X-Client-Fingerprint"
)

func isUUID(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil
}

func headerKind(name, header string, valid func(string) bool) transport.Kind {
	return transport.Kind{
		Name:            name,
		Parameter:       header,
		Hierarchy:       []transport.Carrier{transport.CarrierHeader},
		ResponseCarrier: transport.CarrierHeader,
		Valid:           valid,
	}
}

type fixture struct {
	cfg      middleware.Config
	sessCfg  session.Config
	users    middleware.UserResolver
	registry *device.Registry
	sessions *session.Manager
	events   *event.MemoryStore
	samples  *metrics.MemorySampleStore
	tracker  *middleware.Tracker
}

func newFixture(t *testing.T, f fixture) *fixture {
	t.Helper()
	if f.cfg.LogoutHTTPCode == 0 {
		f.cfg.LogoutHTTPCode = http.StatusForbidden
	}
	if f.cfg.LockHTTPCode == 0 {
		f.cfg.LockHTTPCode = http.StatusLocked
	}
	if f.cfg.LoginRoute == "" {
		f.cfg.LoginRoute = "/login"
	}
	if f.cfg.TwoFactorRoute == "" {
		f.cfg.TwoFactorRoute = "/2fa"
	}
	if f.sessCfg == (session.Config{}) {
		f.sessCfg = session.Config{
			InactivitySeconds:   1200,
			InactivityBehaviour: session.BehaviourTerminate,
			TrackGuestSessions:  true,
		}
	}

	f.registry = device.NewRegistry(device.NewMemoryStore(), device.Config{AllowUnknownDevices: true}, nil)
	f.sessions = session.NewManager(session.NewMemoryStore(), f.sessCfg, geoip.Static(geoip.Location{Country: "DE"}), nil)
	f.events = event.NewMemoryStore()
	f.samples = metrics.NewMemorySampleStore()

	registry := metrics.NewRegistry()
	registry.MustRegister(middleware.MetricDefinitions()...)
	recorder, err := metrics.NewRecorder(registry, f.samples, metrics.Config{Enabled: true, Windows: "realtime"}, nil)
	require.NoError(t, err)

	f.tracker = middleware.NewTracker(f.cfg, middleware.TrackerDeps{
		DeviceID:  transport.New(headerKind("device_id", deviceIDHeader, isUUID), nil),
		SessionID: transport.New(headerKind("session_id", sessionIDHeader, isUUID), nil),
		ClientFP:  transport.New(headerKind("client_fingerprint", clientFPHeader, nil), nil),
		Registry:  f.registry,
		Sessions:  f.sessions,
		Events:    event.NewTracker(f.events, event.Config{Enabled: true, RetentionDays: 90}, nil),
		Recorder:  recorder,
		Users:     f.users,
	})
	return &f
}

// serve runs one request through the tracker and returns the response plus
// the tracking context the downstream handler observed.
func (f *fixture) serve(r *http.Request) (*httptest.ResponseRecorder, *middleware.TrackingContext) {
	var observed *middleware.TrackingContext
	handler := f.tracker.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observed = middleware.Tracking(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w, observed
}

func browserRequest(path string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.Header.Set("User-Agent", chromeUA)
	r.Header.Set("Accept", "text/html")
	r.RemoteAddr = "203.0.113.7:51234"
	return r
}

func TestTracker_FirstVisit(t *testing.T) {
	f := newFixture(t, fixture{})

	w, tc := f.serve(browserRequest("/"))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, tc)
	require.NotNil(t, tc.Device)
	require.NotNil(t, tc.Session)
	assert.Equal(t, "203.0.113.7", tc.ClientIP)
	assert.NotEmpty(t, tc.Fingerprint, "fingerprint falls back to server-side generation")
	assert.Equal(t, session.ActionRestart, tc.Decision.Action)

	assert.True(t, isUUID(w.Header().Get(deviceIDHeader)))
	assert.True(t, isUUID(w.Header().Get(sessionIDHeader)))
	assert.Equal(t, tc.Device.UUID.String(), w.Header().Get(deviceIDHeader))
	assert.Equal(t, tc.Session.UUID.String(), w.Header().Get(sessionIDHeader))
}

func TestTracker_ReturningVisitor(t *testing.T) {
	f := newFixture(t, fixture{})

	w, first := f.serve(browserRequest("/"))
	require.Equal(t, http.StatusOK, w.Code)

	r := browserRequest("/account")
	r.Header.Set(deviceIDHeader, w.Header().Get(deviceIDHeader))
	r.Header.Set(sessionIDHeader, w.Header().Get(sessionIDHeader))
	r.Header.Set(clientFPHeader, first.Fingerprint)

	w2, second := f.serve(r)
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, first.Device.UUID, second.Device.UUID)
	assert.Equal(t, first.Session.UUID, second.Session.UUID, "live session is reused")
}

func TestTracker_GuestTrackingDisabled(t *testing.T) {
	f := newFixture(t, fixture{sessCfg: session.Config{
		InactivitySeconds:   1200,
		InactivityBehaviour: session.BehaviourTerminate,
		TrackGuestSessions:  false,
	}})

	w, tc := f.serve(browserRequest("/"))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, tc)
	assert.NotNil(t, tc.Device, "devices are tracked regardless")
	assert.Nil(t, tc.Session)
	assert.Empty(t, w.Header().Get(sessionIDHeader))
}

func TestTracker_AuthenticationBoundary(t *testing.T) {
	userID := uuid.New()
	authenticated := false
	f := newFixture(t, fixture{users: func(*http.Request) (uuid.UUID, bool) {
		return userID, authenticated
	}})

	w, guest := f.serve(browserRequest("/"))
	require.True(t, guest.Session.IsGuest())

	authenticated = true
	r := browserRequest("/dashboard")
	r.Header.Set(deviceIDHeader, w.Header().Get(deviceIDHeader))
	r.Header.Set(sessionIDHeader, w.Header().Get(sessionIDHeader))

	w2, authed := f.serve(r)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.NotEqual(t, guest.Session.UUID, authed.Session.UUID, "guest session is retired at login")
	assert.Equal(t, userID, authed.Session.UserID)

	old, err := f.sessions.GetByUUID(context.Background(), guest.Session.UUID)
	require.NoError(t, err)
	assert.True(t, old.IsFinished())

	logins, err := f.events.CountByDevice(context.Background(), authed.Device.UUID, time.Time{}, event.TypeLogin)
	require.NoError(t, err)
	assert.Equal(t, 1, logins)
}

func TestTracker_LockedSession(t *testing.T) {
	setup := func(t *testing.T, cfg middleware.Config) (*fixture, *http.Request) {
		f := newFixture(t, fixture{cfg: cfg})
		ctx := context.Background()

		d, err := f.registry.Create(ctx, device.DetectedInfo{Fingerprint: "v1:lock"})
		require.NoError(t, err)
		s, err := f.sessions.Start(ctx, d, uuid.Nil, "203.0.113.7")
		require.NoError(t, err)
		_, err = f.sessions.LockByCode(ctx, s)
		require.NoError(t, err)

		r := browserRequest("/account")
		r.Header.Set(deviceIDHeader, d.UUID.String())
		r.Header.Set(sessionIDHeader, s.UUID.String())
		return f, r
	}

	t.Run("status code mode", func(t *testing.T) {
		f, r := setup(t, middleware.Config{})
		w, _ := f.serve(r)
		assert.Equal(t, http.StatusLocked, w.Code)
	})

	t.Run("redirect mode sends the second factor route", func(t *testing.T) {
		f, r := setup(t, middleware.Config{UseRedirects: true, TwoFactorRoute: "/2fa"})
		w, _ := f.serve(r)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/2fa", w.Header().Get("Location"))
	})
}

func TestTracker_BlockedSession(t *testing.T) {
	setup := func(t *testing.T, cfg middleware.Config) (*fixture, *http.Request) {
		f := newFixture(t, fixture{cfg: cfg})
		ctx := context.Background()

		d, err := f.registry.Create(ctx, device.DetectedInfo{Fingerprint: "v1:block"})
		require.NoError(t, err)
		s, err := f.sessions.Start(ctx, d, uuid.Nil, "203.0.113.7")
		require.NoError(t, err)
		require.NoError(t, f.sessions.Block(ctx, s, uuid.New()))

		r := browserRequest("/account")
		r.Header.Set(deviceIDHeader, d.UUID.String())
		r.Header.Set(sessionIDHeader, s.UUID.String())
		return f, r
	}

	t.Run("status code mode", func(t *testing.T) {
		f, r := setup(t, middleware.Config{})
		w, _ := f.serve(r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("redirect mode sends the logout route", func(t *testing.T) {
		f, r := setup(t, middleware.Config{UseRedirects: true, LogoutRoute: "/logout"})
		w, _ := f.serve(r)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/logout", w.Header().Get("Location"))
	})
}

func TestTracker_InactiveSessionTerminates(t *testing.T) {
	f := newFixture(t, fixture{sessCfg: session.Config{
		InactivitySeconds:   60,
		InactivityBehaviour: session.BehaviourTerminate,
		TrackGuestSessions:  true,
	}})
	ctx := context.Background()

	d, err := f.registry.Create(ctx, device.DetectedInfo{Fingerprint: "v1:idle"})
	require.NoError(t, err)
	s, err := f.sessions.Start(ctx, d, uuid.Nil, "203.0.113.7")
	require.NoError(t, err)
	s.LastActivityAt = time.Now().Add(-time.Hour)
	require.NoError(t, f.sessions.Store().Save(ctx, s))

	r := browserRequest("/account")
	r.Header.Set(deviceIDHeader, d.UUID.String())
	r.Header.Set(sessionIDHeader, s.UUID.String())

	w, _ := f.serve(r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	stored, err := f.sessions.GetByUUID(ctx, s.UUID)
	require.NoError(t, err)
	assert.True(t, stored.IsFinished())
}

func TestTracker_HijackedDevice(t *testing.T) {
	f := newFixture(t, fixture{})
	ctx := context.Background()

	d, err := f.registry.Create(ctx, device.DetectedInfo{Fingerprint: "v1:stolen"})
	require.NoError(t, err)
	require.NoError(t, f.registry.FlagHijacked(ctx, d))

	r := browserRequest("/")
	r.Header.Set(deviceIDHeader, d.UUID.String())

	w, _ := f.serve(r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTracker_IgnoreRestartRoute(t *testing.T) {
	f := newFixture(t, fixture{cfg: middleware.Config{IgnoreRestart: "GET /heartbeat"}})
	ctx := context.Background()

	w, first := f.serve(browserRequest("/"))
	require.Equal(t, http.StatusOK, w.Code)
	before, err := f.sessions.GetByUUID(ctx, first.Session.UUID)
	require.NoError(t, err)

	r := browserRequest("/heartbeat")
	r.Header.Set(deviceIDHeader, w.Header().Get(deviceIDHeader))
	r.Header.Set(sessionIDHeader, w.Header().Get(sessionIDHeader))

	_, tc := f.serve(r)
	assert.Equal(t, session.ActionContinue, tc.Decision.Action)

	after, err := f.sessions.GetByUUID(ctx, first.Session.UUID)
	require.NoError(t, err)
	assert.Equal(t, before.LastActivityAt, after.LastActivityAt, "heartbeat must not extend the session")
}

func TestTracker_RegenerateDevices(t *testing.T) {
	stale := uuid.New()

	t.Run("enabled issues a fresh device", func(t *testing.T) {
		f := newFixture(t, fixture{cfg: middleware.Config{RegenerateDevices: true}})

		r := browserRequest("/")
		r.Header.Set(deviceIDHeader, stale.String())

		w, tc := f.serve(r)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, tc.Device)
		assert.NotEqual(t, stale, tc.Device.UUID)
	})

	t.Run("disabled falls back to signal matching", func(t *testing.T) {
		f := newFixture(t, fixture{})

		w, first := f.serve(browserRequest("/"))
		require.Equal(t, http.StatusOK, w.Code)

		// Same signals, unknown id: the visitor reattaches to the existing
		// device record.
		r := browserRequest("/")
		r.Header.Set(deviceIDHeader, stale.String())
		r.Header.Set(clientFPHeader, first.Fingerprint)

		_, second := f.serve(r)
		assert.Equal(t, first.Device.UUID, second.Device.UUID)
	})
}

func TestTracker_BotPassesThroughUntracked(t *testing.T) {
	f := newFixture(t, fixture{})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", "curl/8.4.0")
	r.RemoteAddr = "203.0.113.7:51234"

	w, tc := f.serve(r)
	assert.Equal(t, http.StatusOK, w.Code, "bots are not blocked, just untracked")
	require.NotNil(t, tc)
	assert.Nil(t, tc.Device)
	assert.Empty(t, w.Header().Get(deviceIDHeader))
}

func TestTracker_RecordsEventsAndMetrics(t *testing.T) {
	f := newFixture(t, fixture{})
	ctx := context.Background()

	w, tc := f.serve(browserRequest("/pricing"))
	require.Equal(t, http.StatusOK, w.Code)

	views, err := f.events.CountByDevice(ctx, tc.Device.UUID, time.Time{}, event.TypePageView)
	require.NoError(t, err)
	assert.Equal(t, 1, views)

	keys, err := f.samples.Keys(ctx, metrics.WindowRealtime, time.Now().Unix()+1)
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, k := range keys {
		names[k.Name] = true
	}
	assert.True(t, names["tracked_requests"])
	assert.True(t, names["request_duration"])
}

func TestTracker_PropagatesDeviceID(t *testing.T) {
	f := newFixture(t, fixture{})

	var propagated string
	handler := f.tracker.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		propagated, _ = transport.Propagated(r.Context(), "device_id")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, browserRequest("/"))

	assert.Equal(t, w.Header().Get(deviceIDHeader), propagated)
}

func TestEventTypeClassification(t *testing.T) {
	f := newFixture(t, fixture{})
	ctx := context.Background()

	send := func(t *testing.T, shape func(*http.Request)) *middleware.TrackingContext {
		t.Helper()
		r := browserRequest("/endpoint")
		shape(r)
		w, tc := f.serve(r)
		require.Equal(t, http.StatusOK, w.Code)
		return tc
	}

	t.Run("json accept is an api request", func(t *testing.T) {
		tc := send(t, func(r *http.Request) { r.Header.Set("Accept", "application/json") })
		n, err := f.events.CountByDevice(ctx, tc.Device.UUID, time.Time{}, event.TypeAPIRequest)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)
	})

	t.Run("post is a submit", func(t *testing.T) {
		tc := send(t, func(r *http.Request) { r.Method = http.MethodPost })
		n, err := f.events.CountByDevice(ctx, tc.Device.UUID, time.Time{}, event.TypeSubmit)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)
	})

	t.Run("livewire header wins", func(t *testing.T) {
		tc := send(t, func(r *http.Request) {
			r.Header.Set("X-Livewire", "true")
			r.Header.Set("Accept", "application/json")
		})
		n, err := f.events.CountByDevice(ctx, tc.Device.UUID, time.Time{}, event.TypeLivewireUpdate)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)
	})
}
