package metrics

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownWindow is returned for unrecognized window names.
	ErrUnknownWindow = errors.New("metrics: unknown window")
	// ErrHandlerNotFound is returned when no handler serves a metric type.
	ErrHandlerNotFound = errors.New("metrics: handler not found")
	// ErrNotRegistered is returned when recording a metric without a
	// registered definition.
	ErrNotRegistered = errors.New("metrics: metric not registered")
	// ErrAlreadyRegistered is returned when re-registering a metric name.
	ErrAlreadyRegistered = errors.New("metrics: metric already registered")
)

// InvalidMetricError is returned when a recorded sample violates its
// registered definition. Structural misconfiguration fails loud; it is never
// silently coerced.
type InvalidMetricError struct {
	Name   string
	Reason string
}

func (e InvalidMetricError) Error() string {
	return fmt.Sprintf("metrics: invalid metric %q: %s", e.Name, e.Reason)
}
