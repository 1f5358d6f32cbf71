package pg

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/devicekit/core/device"
)

// DeviceStore is the PostgreSQL device.Store implementation.
type DeviceStore struct {
	pool *pgxpool.Pool
}

func NewDeviceStore(pool *pgxpool.Pool) *DeviceStore {
	return &DeviceStore{pool: pool}
}

const deviceColumns = `uuid, status, browser, browser_family, browser_version, browser_engine,
	platform, platform_family, platform_version, device_type, device_family, device_model,
	grade, source, fingerprint, advertising_id, device_id, risk_score, risk,
	verified_at, hijacked_at, created_at, updated_at`

func (s *DeviceStore) GetByUUID(ctx context.Context, id uuid.UUID) (*device.Device, error) {
	row := db(ctx, s.pool).QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE uuid = $1`, id)
	return scanDevice(row)
}

func (s *DeviceStore) FindByFingerprint(ctx context.Context, fingerprint string) (*device.Device, error) {
	if fingerprint == "" {
		return nil, device.ErrNotFound
	}
	row := db(ctx, s.pool).QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE fingerprint = $1`, fingerprint)
	return scanDevice(row)
}

func (s *DeviceStore) FindByAdvertisingID(ctx context.Context, platform, browser, engine, advertisingID string) (*device.Device, error) {
	if advertisingID == "" {
		return nil, device.ErrNotFound
	}
	row := db(ctx, s.pool).QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE platform = $1 AND browser = $2 AND browser_engine = $3 AND advertising_id = $4`,
		platform, browser, engine, advertisingID)
	return scanDevice(row)
}

func (s *DeviceStore) FindByDeviceID(ctx context.Context, platform, browser, engine, deviceID string) (*device.Device, error) {
	if deviceID == "" {
		return nil, device.ErrNotFound
	}
	row := db(ctx, s.pool).QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE platform = $1 AND browser = $2 AND browser_engine = $3 AND device_id = $4`,
		platform, browser, engine, deviceID)
	return scanDevice(row)
}

func (s *DeviceStore) Save(ctx context.Context, d *device.Device) error {
	risk, err := json.Marshal(d.Risk)
	if err != nil {
		return err
	}
	_, err = db(ctx, s.pool).Exec(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		ON CONFLICT (uuid) DO UPDATE SET
			status = EXCLUDED.status,
			grade = EXCLUDED.grade,
			fingerprint = EXCLUDED.fingerprint,
			advertising_id = EXCLUDED.advertising_id,
			device_id = EXCLUDED.device_id,
			risk_score = EXCLUDED.risk_score,
			risk = EXCLUDED.risk,
			verified_at = EXCLUDED.verified_at,
			hijacked_at = EXCLUDED.hijacked_at,
			updated_at = EXCLUDED.updated_at`,
		d.UUID, d.Status, d.Browser, d.BrowserFamily, d.BrowserVersion, d.BrowserEngine,
		d.Platform, d.PlatformFamily, d.PlatformVersion, d.DeviceType, d.DeviceFamily, d.DeviceModel,
		d.Grade, d.Source, d.Fingerprint, d.AdvertisingID, d.DeviceID, d.RiskScore, risk,
		nullTime(d.VerifiedAt), nullTime(d.HijackedAt), d.CreatedAt, d.UpdatedAt)
	return err
}

func (s *DeviceStore) DeleteOrphaned(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db(ctx, s.pool).Exec(ctx, `
		DELETE FROM devices d
		WHERE (d.hijacked_at IS NOT NULL AND d.hijacked_at < $1)
		   OR (d.created_at < $1 AND NOT EXISTS (
			SELECT 1 FROM device_sessions s
			WHERE s.device_uuid = d.uuid AND s.finished_at IS NULL))`,
		cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanDevice(row pgx.Row) (*device.Device, error) {
	var (
		d          device.Device
		risk       []byte
		verifiedAt *time.Time
		hijackedAt *time.Time
	)
	err := row.Scan(
		&d.UUID, &d.Status, &d.Browser, &d.BrowserFamily, &d.BrowserVersion, &d.BrowserEngine,
		&d.Platform, &d.PlatformFamily, &d.PlatformVersion, &d.DeviceType, &d.DeviceFamily, &d.DeviceModel,
		&d.Grade, &d.Source, &d.Fingerprint, &d.AdvertisingID, &d.DeviceID, &d.RiskScore, &risk,
		&verifiedAt, &hijackedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, device.ErrNotFound
		}
		return nil, err
	}
	if len(risk) > 0 {
		if err := json.Unmarshal(risk, &d.Risk); err != nil {
			return nil, err
		}
	}
	d.VerifiedAt = timeOrZero(verifiedAt)
	d.HijackedAt = timeOrZero(hijackedAt)
	return &d, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
