// Package middleware wires the tracking pipeline into net/http.
//
// Tracker is the centerpiece: it resolves the device id, session id, and
// client fingerprint through their configured transports, loads or creates
// the device, steps the session state machine, and enforces its decision
// (continue, restart, second-factor challenge, or terminate). The result is
// threaded through the request context:
//
//	tracker := middleware.NewTracker(cfg, middleware.TrackerDeps{
//		DeviceID:  deviceTransport,
//		SessionID: sessionTransport,
//		ClientFP:  fpTransport,
//		Registry:  registry,
//		Sessions:  sessions,
//		Users:     currentUser,
//	})
//	handler := middleware.RequestID(middleware.Logging(log)(tracker.Handler(mux)))
//
//	func profile(w http.ResponseWriter, r *http.Request) {
//		tc := middleware.Tracking(r.Context())
//		// tc.Device, tc.Session, tc.Decision
//	}
//
// RequestID and Logging are independent ambient middleware usable with any
// handler chain.
package middleware
