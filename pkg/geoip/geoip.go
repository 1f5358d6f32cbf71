package geoip

import (
	"context"
	"time"
)

// Location is the value object embedded into a session. The zero value is a
// valid "unknown" location.
type Location struct {
	Country   string  `json:"country,omitempty"`
	Region    string  `json:"region,omitempty"`
	City      string  `json:"city,omitempty"`
	Postal    string  `json:"postal,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Timezone  string  `json:"timezone,omitempty"`
}

// IsZero reports whether the location carries no data.
func (l Location) IsZero() bool {
	return l == Location{}
}

// Locator resolves an IP address to a geographic location. Implementations
// typically wrap an external geo-IP provider and may block on network I/O.
type Locator interface {
	Locate(ctx context.Context, ip string) (Location, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context, ip string) (Location, error)

func (f LocatorFunc) Locate(ctx context.Context, ip string) (Location, error) {
	return f(ctx, ip)
}

// Fallback wraps a locator with a timeout and a best-effort default: lookup
// failures or slow providers degrade to the zero Location instead of failing
// session creation.
func Fallback(inner Locator, timeout time.Duration) Locator {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return LocatorFunc(func(ctx context.Context, ip string) (Location, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		loc, err := inner.Locate(ctx, ip)
		if err != nil {
			return Location{}, nil
		}
		return loc, nil
	})
}

// Static returns a locator that always yields the same location.
// Useful for tests and for deployments without a geo-IP provider.
func Static(loc Location) Locator {
	return LocatorFunc(func(context.Context, string) (Location, error) {
		return loc, nil
	})
}
