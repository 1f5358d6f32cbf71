package middleware

import (
	"context"

	"github.com/dmitrymomot/devicekit/core/device"
	"github.com/dmitrymomot/devicekit/core/session"
)

// TrackingContext carries the per-request resolution result. It is threaded
// through the request context explicitly; there is no ambient global access
// to the current device or session.
type TrackingContext struct {
	Device  *device.Device
	Session *session.Session

	// Resolved raw identifiers, before any device/session lookup.
	DeviceID    string
	SessionID   string
	Fingerprint string

	Decision session.Decision
	ClientIP string
}

type trackingContextKey struct{}

func withTracking(ctx context.Context, tc *TrackingContext) context.Context {
	return context.WithValue(ctx, trackingContextKey{}, tc)
}

// Tracking returns the tracking context for the request, or nil when the
// tracker middleware did not run.
func Tracking(ctx context.Context) *TrackingContext {
	tc, _ := ctx.Value(trackingContextKey{}).(*TrackingContext)
	return tc
}
