package metrics

import (
	"fmt"
	"strings"
	"time"
)

// Window is a fixed time bucket for metric rollups.
type Window string

const (
	WindowRealtime Window = "realtime"
	WindowHourly   Window = "hourly"
	WindowDaily    Window = "daily"
	WindowWeekly   Window = "weekly"
	WindowMonthly  Window = "monthly"
	WindowYearly   Window = "yearly"
)

// windowOrder lists windows from finest to coarsest.
var windowOrder = []Window{
	WindowRealtime, WindowHourly, WindowDaily, WindowWeekly, WindowMonthly, WindowYearly,
}

var windowSeconds = map[Window]int64{
	WindowRealtime: 60,
	WindowHourly:   3600,
	WindowDaily:    86400,
	WindowWeekly:   7 * 86400,
	WindowMonthly:  30 * 86400,
	WindowYearly:   365 * 86400,
}

// defaultRetention is how long durable aggregates of each window are kept.
var defaultRetention = map[Window]time.Duration{
	WindowRealtime: time.Hour,
	WindowHourly:   24 * time.Hour,
	WindowDaily:    7 * 24 * time.Hour,
	WindowWeekly:   30 * 24 * time.Hour,
	WindowMonthly:  365 * 24 * time.Hour,
	WindowYearly:   10 * 365 * 24 * time.Hour,
}

// Seconds returns the window length in seconds.
func (w Window) Seconds() int64 { return windowSeconds[w] }

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return time.Duration(w.Seconds()) * time.Second
}

// Slot returns the time-bucket instance containing t:
// floor(unix / seconds) * seconds.
func (w Window) Slot(t time.Time) int64 {
	secs := w.Seconds()
	if secs <= 0 {
		return t.Unix()
	}
	return t.Unix() / secs * secs
}

// Next returns the next coarser window, or false for the coarsest.
func (w Window) Next() (Window, bool) {
	for i, cur := range windowOrder {
		if cur == w && i+1 < len(windowOrder) {
			return windowOrder[i+1], true
		}
	}
	return "", false
}

// Retention returns the default retention for the window's aggregates.
func (w Window) Retention() time.Duration { return defaultRetention[w] }

// ParseWindow converts a configuration string into a Window.
func ParseWindow(s string) (Window, error) {
	w := Window(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := windowSeconds[w]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownWindow, s)
	}
	return w, nil
}

// ParseWindows converts a comma-separated window list, preserving the
// fine-to-coarse canonical order regardless of input order.
func ParseWindows(s string) ([]Window, error) {
	enabled := make(map[Window]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		w, err := ParseWindow(part)
		if err != nil {
			return nil, err
		}
		enabled[w] = true
	}

	var windows []Window
	for _, w := range windowOrder {
		if enabled[w] {
			windows = append(windows, w)
		}
	}
	return windows, nil
}
