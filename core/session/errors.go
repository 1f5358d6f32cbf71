package session

import "errors"

var (
	// ErrNotFound is returned when a session cannot be found in the store.
	ErrNotFound = errors.New("session not found")
	// ErrVersionConflict is returned when an optimistic write loses the race
	// against a concurrent mutation of the same session.
	ErrVersionConflict = errors.New("session version conflict")
	// ErrFinished is returned for mutations on a finished session.
	ErrFinished = errors.New("session already finished")
	// ErrNotLocked is returned when unlocking a session that has no code.
	ErrNotLocked = errors.New("session is not locked")
	// ErrDeviceHijacked is returned when unblocking a session whose device
	// was flagged as hijacked.
	ErrDeviceHijacked = errors.New("cannot unblock session on hijacked device")
	// ErrCodeGeneration is returned when login code generation fails.
	ErrCodeGeneration = errors.New("failed to generate login code")
)
