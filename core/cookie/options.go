package cookie

import "net/http"

// Options holds per-cookie attributes. Zero values fall back to the manager
// defaults set at construction.
type Options struct {
	Path     string
	Domain   string
	MaxAge   int
	Secure   bool
	HttpOnly bool
	SameSite http.SameSite
}

// Option customizes attributes of a single cookie write.
type Option func(*Options)

// WithPath sets the cookie path.
func WithPath(path string) Option { return func(o *Options) { o.Path = path } }

// WithDomain sets the cookie domain.
func WithDomain(domain string) Option { return func(o *Options) { o.Domain = domain } }

// WithMaxAge sets the cookie lifetime in seconds. Negative deletes the cookie.
func WithMaxAge(seconds int) Option { return func(o *Options) { o.MaxAge = seconds } }

// WithForever makes the cookie effectively non-expiring (10 years).
func WithForever() Option { return func(o *Options) { o.MaxAge = 10 * 365 * 24 * 60 * 60 } }

// WithSecure restricts the cookie to HTTPS.
func WithSecure(secure bool) Option { return func(o *Options) { o.Secure = secure } }

// WithHTTPOnly hides the cookie from client-side scripts.
func WithHTTPOnly(httpOnly bool) Option { return func(o *Options) { o.HttpOnly = httpOnly } }

// WithSameSite sets the SameSite policy.
func WithSameSite(mode http.SameSite) Option { return func(o *Options) { o.SameSite = mode } }

func applyOptions(base Options, opts []Option) Options {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}
