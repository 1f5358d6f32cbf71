package metrics

import "sync"

// HealthState classifies pipeline reliability from recent processing
// failures.
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthWarning  HealthState = "warning"
	HealthDegraded HealthState = "degraded"
)

// Health tracks per-window processing failures. Counters reset on a fully
// clean pass over the window, so state reflects the current situation
// rather than lifetime totals.
type Health struct {
	mu               sync.Mutex
	failures         map[Window]int64
	degradedFailures int64
}

// NewHealth builds a tracker; degradedFailures <= 0 falls back to 10.
func NewHealth(degradedFailures int64) *Health {
	if degradedFailures <= 0 {
		degradedFailures = 10
	}
	return &Health{
		failures:         make(map[Window]int64),
		degradedFailures: degradedFailures,
	}
}

func (h *Health) fail(w Window, n int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[w] += n
}

func (h *Health) clear(w Window) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.failures, w)
}

// Failures returns the current failure count for a window.
func (h *Health) Failures(w Window) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failures[w]
}

// WindowState classifies one window: zero failures is healthy, up to the
// degraded threshold is warning, above it degraded.
func (h *Health) WindowState(w Window) HealthState {
	n := h.Failures(w)
	switch {
	case n == 0:
		return HealthHealthy
	case n <= h.degradedFailures:
		return HealthWarning
	default:
		return HealthDegraded
	}
}

// State returns the worst state across all windows.
func (h *Health) State() HealthState {
	h.mu.Lock()
	defer h.mu.Unlock()
	state := HealthHealthy
	for _, n := range h.failures {
		switch {
		case n > h.degradedFailures:
			return HealthDegraded
		case n > 0:
			state = HealthWarning
		}
	}
	return state
}
