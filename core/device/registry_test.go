package device_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicekit/core/device"
	"github.com/dmitrymomot/devicekit/pkg/useragent"
)

func chromeAgent() useragent.Info {
	return useragent.Info{
		Source:        "Mozilla/5.0 test",
		Browser:       "Chrome",
		BrowserEngine: "Blink",
		Platform:      "Windows",
		DeviceType:    useragent.DeviceTypeDesktop,
	}
}

func newTestRegistry(t *testing.T, cfg device.Config) (*device.Registry, *device.MemoryStore) {
	t.Helper()
	store := device.NewMemoryStore()
	return device.NewRegistry(store, cfg, nil), store
}

func TestRegistry_Match(t *testing.T) {
	ctx := context.Background()

	t.Run("fingerprint beats platform identifiers", func(t *testing.T) {
		reg, store := newTestRegistry(t, device.Config{})

		byFP := &device.Device{UUID: uuid.New(), Fingerprint: "v1:abc", Platform: "Windows", Browser: "Chrome", BrowserEngine: "Blink"}
		byAdID := &device.Device{UUID: uuid.New(), AdvertisingID: "ad-1", Platform: "Windows", Browser: "Chrome", BrowserEngine: "Blink"}
		require.NoError(t, store.Save(ctx, byFP))
		require.NoError(t, store.Save(ctx, byAdID))

		got, err := reg.Match(ctx, device.Signals{
			Fingerprint:   "v1:abc",
			AdvertisingID: "ad-1",
			Platform:      "Windows",
			Browser:       "Chrome",
			BrowserEngine: "Blink",
		})
		require.NoError(t, err)
		assert.Equal(t, byFP.UUID, got.UUID)
	})

	t.Run("empty signals never match", func(t *testing.T) {
		reg, store := newTestRegistry(t, device.Config{})

		// A stored device with empty identity fields must not be matchable
		// by another empty-signal lookup.
		require.NoError(t, store.Save(ctx, &device.Device{UUID: uuid.New()}))

		_, err := reg.Match(ctx, device.Signals{Platform: "Windows", Browser: "Chrome", BrowserEngine: "Blink"})
		assert.ErrorIs(t, err, device.ErrNotFound)
	})

	t.Run("identifier tuple requires full equality", func(t *testing.T) {
		reg, store := newTestRegistry(t, device.Config{})

		d := &device.Device{UUID: uuid.New(), DeviceID: "dev-1", Platform: "Windows", Browser: "Chrome", BrowserEngine: "Blink"}
		require.NoError(t, store.Save(ctx, d))

		_, err := reg.Match(ctx, device.Signals{
			DeviceID: "dev-1", Platform: "macOS", Browser: "Chrome", BrowserEngine: "Blink",
		})
		assert.ErrorIs(t, err, device.ErrNotFound)

		got, err := reg.Match(ctx, device.Signals{
			DeviceID: "dev-1", Platform: "Windows", Browser: "Chrome", BrowserEngine: "Blink",
		})
		require.NoError(t, err)
		assert.Equal(t, d.UUID, got.UUID)
	})
}

func TestRegistry_CreateOrGet(t *testing.T) {
	ctx := context.Background()

	t.Run("creates unverified device", func(t *testing.T) {
		reg, _ := newTestRegistry(t, device.Config{})

		d, err := reg.CreateOrGet(ctx, device.DetectedInfo{Agent: chromeAgent(), Fingerprint: "v1:abc"})
		require.NoError(t, err)
		assert.Equal(t, device.StatusUnverified, d.Status)
		assert.Equal(t, "Chrome", d.Browser)
	})

	t.Run("returns existing on repeated detection", func(t *testing.T) {
		reg, _ := newTestRegistry(t, device.Config{})

		info := device.DetectedInfo{Agent: chromeAgent(), Fingerprint: "v1:abc"}
		first, err := reg.CreateOrGet(ctx, info)
		require.NoError(t, err)
		second, err := reg.CreateOrGet(ctx, info)
		require.NoError(t, err)
		assert.Equal(t, first.UUID, second.UUID)
	})

	t.Run("bot rejected by default", func(t *testing.T) {
		reg, _ := newTestRegistry(t, device.Config{})

		agent := chromeAgent()
		agent.Bot = true
		_, err := reg.CreateOrGet(ctx, device.DetectedInfo{Agent: agent})
		assert.ErrorIs(t, err, device.ErrRejected)
	})

	t.Run("bot allowed when configured", func(t *testing.T) {
		reg, _ := newTestRegistry(t, device.Config{AllowBotDevices: true})

		agent := chromeAgent()
		agent.Bot = true
		_, err := reg.CreateOrGet(ctx, device.DetectedInfo{Agent: agent})
		assert.NoError(t, err)
	})

	t.Run("unknown device rejected by default", func(t *testing.T) {
		reg, _ := newTestRegistry(t, device.Config{})

		_, err := reg.CreateOrGet(ctx, device.DetectedInfo{Agent: useragent.Info{}})
		assert.ErrorIs(t, err, device.ErrRejected)
	})

	t.Run("unknown device allowed when configured", func(t *testing.T) {
		reg, _ := newTestRegistry(t, device.Config{AllowUnknownDevices: true})

		_, err := reg.CreateOrGet(ctx, device.DetectedInfo{Agent: useragent.Info{}})
		assert.NoError(t, err)
	})
}

func TestRegistry_Lifecycle(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, device.Config{})

	d, err := reg.CreateOrGet(ctx, device.DetectedInfo{Agent: chromeAgent(), Fingerprint: "v1:abc"})
	require.NoError(t, err)

	t.Run("verify is idempotent", func(t *testing.T) {
		require.NoError(t, reg.Verify(ctx, d))
		verifiedAt := d.VerifiedAt
		require.False(t, verifiedAt.IsZero())

		require.NoError(t, reg.Verify(ctx, d))
		assert.Equal(t, verifiedAt, d.VerifiedAt)
	})

	t.Run("hijack is one-way", func(t *testing.T) {
		require.NoError(t, reg.FlagHijacked(ctx, d))
		assert.True(t, d.IsHijacked())

		err := reg.Verify(ctx, d)
		assert.ErrorIs(t, err, device.ErrHijacked)
		assert.True(t, d.IsHijacked())
	})
}

func TestRegistry_IsCurrent(t *testing.T) {
	reg, _ := newTestRegistry(t, device.Config{})
	d := &device.Device{UUID: uuid.New()}

	assert.True(t, reg.IsCurrent(d, d.UUID.String()))
	assert.False(t, reg.IsCurrent(d, uuid.NewString()))
	assert.False(t, reg.IsCurrent(d, ""))
	assert.False(t, reg.IsCurrent(d, "not-a-uuid"))
	assert.False(t, reg.IsCurrent(nil, d.UUID.String()))
}

func TestRegistry_PurgeOrphaned(t *testing.T) {
	ctx := context.Background()
	reg, store := newTestRegistry(t, device.Config{})

	old := &device.Device{UUID: uuid.New(), Fingerprint: "v1:old", CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &device.Device{UUID: uuid.New(), Fingerprint: "v1:new", CreatedAt: time.Now()}
	require.NoError(t, store.Save(ctx, old))
	require.NoError(t, store.Save(ctx, fresh))

	n, err := reg.PurgeOrphaned(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = store.GetByUUID(ctx, old.UUID)
	assert.ErrorIs(t, err, device.ErrNotFound)
	_, err = store.GetByUUID(ctx, fresh.UUID)
	assert.NoError(t, err)
}
