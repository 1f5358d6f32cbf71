package device

import "errors"

var (
	// ErrNotFound is returned when a device cannot be found in the store.
	ErrNotFound = errors.New("device not found")
	// ErrRejected is returned when device creation is disallowed by policy
	// (bot agents or fully unknown devices).
	ErrRejected = errors.New("device rejected")
	// ErrHijacked is returned for operations forbidden on hijacked devices.
	ErrHijacked = errors.New("device is hijacked")
)
