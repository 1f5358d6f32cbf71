package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/dmitrymomot/devicekit/pkg/clientip"
)

const (
	version = "v1:"
	// 16 bytes (128 bits) of the SHA-256 digest is enough for device
	// identification and halves storage compared to the full hash.
	hashLen  = 16
	totalLen = 35 // len("v1:") + hex(16 bytes)
)

var (
	// ErrInvalidFingerprint indicates a stored fingerprint with a bad format.
	ErrInvalidFingerprint = errors.New("invalid fingerprint format")
	// ErrMismatch indicates the fingerprint doesn't match the current request.
	ErrMismatch = errors.New("fingerprint mismatch")
)

type options struct {
	includeIP            bool
	includeUserAgent     bool
	includeAcceptHeaders bool
	includeHeaderSet     bool
}

// Option configures fingerprint generation.
type Option func(*options)

// WithIP includes the client IP in the fingerprint. IP addresses change
// frequently on mobile networks and VPNs; only use this when you can handle
// re-authentication gracefully.
func WithIP() Option { return func(o *options) { o.includeIP = true } }

// WithoutAcceptHeaders excludes Accept-* headers from the fingerprint.
func WithoutAcceptHeaders() Option { return func(o *options) { o.includeAcceptHeaders = false } }

// WithoutHeaderSet excludes the present-header-set component.
func WithoutHeaderSet() Option { return func(o *options) { o.includeHeaderSet = false } }

func defaults() *options {
	return &options{
		includeUserAgent:     true,
		includeAcceptHeaders: true,
		includeHeaderSet:     true,
	}
}

// Generate computes a server-side request fingerprint in "v1:hash" format.
// By default the IP is excluded to avoid false positives from mobile networks.
func Generate(r *http.Request, opts ...Option) string {
	o := defaults()
	for _, opt := range opts {
		opt(o)
	}

	var components []string
	if o.includeUserAgent {
		components = append(components, r.UserAgent())
	}
	if o.includeAcceptHeaders {
		components = append(components,
			r.Header.Get("Accept-Language"),
			r.Header.Get("Accept-Encoding"),
			r.Header.Get("Accept"),
		)
	}
	if o.includeIP {
		components = append(components, clientip.GetIP(r))
	}
	if o.includeHeaderSet {
		components = append(components, headerSet(r))
	}

	filtered := components[:0]
	for _, c := range components {
		if c != "" {
			filtered = append(filtered, c)
		}
	}

	// Pipe-joined to prevent boundary collisions between components.
	sum := sha256.Sum256([]byte(strings.Join(filtered, "|")))
	return version + hex.EncodeToString(sum[:hashLen])
}

// Validate compares the current request against a stored fingerprint.
// Use the same options the stored fingerprint was generated with.
func Validate(r *http.Request, stored string, opts ...Option) error {
	if !strings.HasPrefix(stored, version) || len(stored) != totalLen {
		return ErrInvalidFingerprint
	}
	if Generate(r, opts...) != stored {
		return ErrMismatch
	}
	return nil
}

// headerSet fingerprints which of the standard headers the client sends.
// Browsers differ in the header sets they emit, which identifies them even
// when individual values match.
func headerSet(r *http.Request) string {
	known := []string{
		"Accept", "Accept-Encoding", "Accept-Language", "Cache-Control",
		"Dnt", "Sec-Ch-Ua", "Sec-Ch-Ua-Mobile", "Sec-Ch-Ua-Platform",
		"Sec-Fetch-Dest", "Sec-Fetch-Mode", "Sec-Fetch-Site", "Upgrade-Insecure-Requests",
	}
	present := make([]string, 0, len(known))
	for _, h := range known {
		if r.Header.Get(h) != "" {
			present = append(present, h)
		}
	}
	sort.Strings(present)
	return strings.Join(present, ",")
}
