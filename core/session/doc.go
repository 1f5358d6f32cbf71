// Package session implements the per-request session state machine for
// device tracking.
//
// A session's status is computed on read from stored fields, never cached:
// blocked wins over finished, finished over locked, locked over inactive,
// and a session is active only when nothing else applies. The Machine applies
// one transition per inbound request and tells the pipeline what to do:
//
//	decision, err := machine.Step(ctx, sess, session.RequestInfo{
//		Method: r.Method,
//		Route:  r.URL.Path,
//	})
//	switch decision.Action {
//	case session.ActionChallenge:
//		// redirect to the 2FA route or respond 423
//	case session.ActionTerminate:
//		// force logout and respond 403 or redirect to login
//	default:
//		// continue the request
//	}
//
// The Manager owns lifecycle transitions (start, end, block, unblock) and
// the 2FA lock cycle: LockByCode stores only a bcrypt hash of the six-digit
// code; UnlockByCode verifies it in constant time and enforces the code
// lifetime against the lock-issue timestamp.
//
// All writes go through the Store's compare-and-set Save: concurrent
// mutations of the same session surface as ErrVersionConflict instead of
// silently losing updates.
package session
