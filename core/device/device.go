package device

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/devicekit/pkg/useragent"
)

// Status is the device lifecycle state.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusVerified   Status = "verified"
	StatusHijacked   Status = "hijacked"
	StatusInactive   Status = "inactive"
)

// RiskInfo is the persisted risk assessment snapshot for a device.
type RiskInfo struct {
	Score   int                `json:"score"`
	Level   string             `json:"level"`
	Factors map[string]float64 `json:"factors,omitempty"`
}

// Device is the identity record for a browsing client. One device may carry
// many sessions across users.
type Device struct {
	UUID   uuid.UUID
	Status Status

	Browser        string
	BrowserFamily  string
	BrowserVersion string
	BrowserEngine  string

	Platform        string
	PlatformFamily  string
	PlatformVersion string

	DeviceType   string
	DeviceFamily string
	DeviceModel  string

	Grade string

	// Source is the raw User-Agent the device was first detected from.
	Source string

	// Fingerprint is the client-computed opaque hash, distinct from the
	// server-issued UUID.
	Fingerprint string

	// AdvertisingID and DeviceID are platform-native identifiers. Either may
	// be empty; the (platform, browser, engine, id) tuple is unique when the
	// id is present.
	AdvertisingID string
	DeviceID      string

	RiskScore int
	Risk      RiskInfo

	VerifiedAt time.Time
	HijackedAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsVerified reports whether the device passed verification.
func (d Device) IsVerified() bool { return d.Status == StatusVerified }

// IsHijacked reports whether the device was flagged as hijacked.
func (d Device) IsHijacked() bool { return d.Status == StatusHijacked }

// Signals are the stable identity inputs used for device matching.
type Signals struct {
	AdvertisingID string
	DeviceID      string
	Platform      string
	Browser       string
	BrowserEngine string
	Fingerprint   string
}

// DetectedInfo combines parsed user-agent attributes with the identity
// signals supplied by the client for device creation.
type DetectedInfo struct {
	Agent         useragent.Info
	AdvertisingID string
	DeviceID      string
	Fingerprint   string
	Grade         string
}

// Signals derives the matching signals from the detected info.
func (i DetectedInfo) Signals() Signals {
	return Signals{
		AdvertisingID: i.AdvertisingID,
		DeviceID:      i.DeviceID,
		Platform:      i.Agent.Platform,
		Browser:       i.Agent.Browser,
		BrowserEngine: i.Agent.BrowserEngine,
		Fingerprint:   i.Fingerprint,
	}
}
