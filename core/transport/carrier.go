package transport

import (
	"fmt"
	"strings"
)

// Carrier is a mechanism for passing an identifier between client and server.
type Carrier string

const (
	CarrierCookie  Carrier = "cookie"
	CarrierHeader  Carrier = "header"
	CarrierSession Carrier = "session"
	CarrierRequest Carrier = "request"
)

// ParseCarrier converts a configuration string into a Carrier.
func ParseCarrier(s string) (Carrier, error) {
	switch c := Carrier(strings.ToLower(strings.TrimSpace(s))); c {
	case CarrierCookie, CarrierHeader, CarrierSession, CarrierRequest:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCarrier, s)
	}
}

// ParseHierarchy converts a comma-separated carrier list into an ordered
// hierarchy, e.g. "cookie,header,session".
func ParseHierarchy(s string) ([]Carrier, error) {
	parts := strings.Split(s, ",")
	carriers := make([]Carrier, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		c, err := ParseCarrier(p)
		if err != nil {
			return nil, err
		}
		carriers = append(carriers, c)
	}
	return carriers, nil
}
