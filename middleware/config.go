package middleware

// Config controls tracker responses and device policy knobs that belong to
// the request pipeline rather than to the core packages.
type Config struct {
	// UseRedirects switches terminate/challenge responses from bare status
	// codes to redirects. Challenges go to TwoFactorRoute; terminations go
	// to LogoutRoute so the application clears its auth principal, or to
	// LoginRoute when no logout route is configured.
	UseRedirects   bool   `env:"USE_REDIRECTS" envDefault:"false"`
	LoginRoute     string `env:"LOGIN_ROUTE" envDefault:"/login"`
	LogoutRoute    string `env:"LOGOUT_ROUTE" envDefault:"/logout"`
	TwoFactorRoute string `env:"TWO_FACTOR_ROUTE" envDefault:"/2fa"`

	// LogoutHTTPCode is sent on terminate when redirects are off.
	LogoutHTTPCode int `env:"LOGOUT_HTTP_CODE" envDefault:"403"`
	// LockHTTPCode is sent on a second-factor challenge when redirects are
	// off.
	LockHTTPCode int `env:"LOCK_HTTP_CODE" envDefault:"423"`

	// RegenerateDevices creates a fresh device when the resolved identifier
	// does not match any stored device, instead of falling back to signal
	// matching.
	RegenerateDevices bool `env:"REGENERATE_DEVICES" envDefault:"false"`

	// IgnoreRestart lists "METHOD /route" pairs exempt from activity
	// refresh, e.g. "GET /heartbeat,POST /poll".
	IgnoreRestart string `env:"IGNORE_RESTART" envDefault:""`
}
