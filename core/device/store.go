package device

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines device persistence. Implementations must return ErrNotFound
// for absent devices and must never match records on empty identity fields.
type Store interface {
	GetByUUID(ctx context.Context, id uuid.UUID) (*Device, error)

	// FindByFingerprint matches on the exact client fingerprint.
	FindByFingerprint(ctx context.Context, fingerprint string) (*Device, error)

	// FindByAdvertisingID matches the (platform, browser, engine,
	// advertising id) tuple; every field must be equal.
	FindByAdvertisingID(ctx context.Context, platform, browser, engine, advertisingID string) (*Device, error)

	// FindByDeviceID matches the (platform, browser, engine, device id)
	// tuple; every field must be equal.
	FindByDeviceID(ctx context.Context, platform, browser, engine, deviceID string) (*Device, error)

	Save(ctx context.Context, d *Device) error

	// DeleteOrphaned removes devices without sessions created before the
	// cutoff, plus hijacked devices past the cutoff. Returns the count.
	DeleteOrphaned(ctx context.Context, cutoff time.Time) (int64, error)
}
