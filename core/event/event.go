package event

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies a tracked event.
type Type string

const (
	TypeLogin          Type = "login"
	TypeLogout         Type = "logout"
	TypePageView       Type = "page_view"
	TypeClick          Type = "click"
	TypeSubmit         Type = "submit"
	TypeAPIRequest     Type = "api_request"
	TypeRedirect       Type = "redirect"
	TypeLivewireUpdate Type = "livewire_update"
	TypeSignup         Type = "signup"
)

// Metadata is a typed free-form attribute map attached to an event.
// Access goes through explicit getters; values unmarshal from JSON.
type Metadata map[string]any

// String returns the string value for key, or "" when absent or not a string.
func (m Metadata) String(key string) string {
	v, _ := m[key].(string)
	return v
}

// Int returns the integer value for key, tolerating JSON's float64 decoding.
func (m Metadata) Int(key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Bool returns the boolean value for key, or false when absent.
func (m Metadata) Bool(key string) bool {
	v, _ := m[key].(bool)
	return v
}

// Event is an immutable append-only log entry. Events are never mutated
// after insert and are removed only by retention pruning.
type Event struct {
	UUID        uuid.UUID
	DeviceUUID  uuid.UUID
	SessionUUID uuid.UUID // uuid.Nil when no session is attached
	Type        Type
	IPAddress   string
	Metadata    Metadata
	OccurredAt  time.Time
}
