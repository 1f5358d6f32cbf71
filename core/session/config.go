package session

import "time"

// InactivityBehaviour controls what happens when a session crosses the
// inactivity threshold.
type InactivityBehaviour string

const (
	// BehaviourTerminate finishes inactive sessions on their next request.
	BehaviourTerminate InactivityBehaviour = "terminate"
	// BehaviourIgnore keeps inactive sessions usable.
	BehaviourIgnore InactivityBehaviour = "ignore"
)

// Config holds session lifecycle policy.
type Config struct {
	// InactivitySeconds is the idle threshold after which a session is
	// considered inactive. Zero disables the check.
	InactivitySeconds int `env:"INACTIVITY_SECONDS" envDefault:"1200"`

	// InactivityBehaviour is "terminate" or "ignore".
	InactivityBehaviour InactivityBehaviour `env:"INACTIVITY_SESSION_BEHAVIOUR" envDefault:"terminate"`

	// AllowMultiSession permits several live sessions per (device, user).
	AllowMultiSession bool `env:"ALLOW_DEVICE_MULTI_SESSION" envDefault:"false"`

	// StartNewSessionOnLogin finishes the current session and starts a fresh
	// one at authentication time.
	StartNewSessionOnLogin bool `env:"START_NEW_SESSION_ON_LOGIN" envDefault:"false"`

	// TrackGuestSessions creates sessions for unauthenticated visitors.
	TrackGuestSessions bool `env:"TRACK_GUEST_SESSIONS" envDefault:"false"`

	// LoginCodeTTL is the validity window of a 2FA login code, measured from
	// the moment the session was locked.
	LoginCodeTTL time.Duration `env:"LOGIN_CODE_TTL" envDefault:"1200s"`
}

// Inactivity returns the idle threshold as a duration.
func (c Config) Inactivity() time.Duration {
	return time.Duration(c.InactivitySeconds) * time.Second
}
