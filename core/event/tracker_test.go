package event_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicekit/core/event"
)

type failingStore struct {
	event.Store
}

func (failingStore) Insert(context.Context, *event.Event) error {
	return errors.New("insert failed")
}

func TestTracker_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("records against the store", func(t *testing.T) {
		store := event.NewMemoryStore()
		tracker := event.NewTracker(store, event.Config{Enabled: true}, nil)
		deviceUUID := uuid.New()

		tracker.Record(ctx, deviceUUID, uuid.Nil, event.TypePageView, "203.0.113.7", nil)

		n, err := store.CountByDevice(ctx, deviceUUID, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("disabled tracker records nothing", func(t *testing.T) {
		store := event.NewMemoryStore()
		tracker := event.NewTracker(store, event.Config{Enabled: false}, nil)
		deviceUUID := uuid.New()

		tracker.Record(ctx, deviceUUID, uuid.Nil, event.TypePageView, "", nil)

		n, err := store.CountByDevice(ctx, deviceUUID, time.Time{})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("store failures are swallowed", func(t *testing.T) {
		tracker := event.NewTracker(failingStore{}, event.Config{Enabled: true}, nil)
		assert.NotPanics(t, func() {
			tracker.Record(ctx, uuid.New(), uuid.Nil, event.TypeLogin, "", nil)
		})
	})
}

func TestTracker_Prune(t *testing.T) {
	ctx := context.Background()
	store := event.NewMemoryStore()
	tracker := event.NewTracker(store, event.Config{Enabled: true, RetentionDays: 30}, nil)

	old := &event.Event{UUID: uuid.New(), DeviceUUID: uuid.New(), Type: event.TypePageView,
		OccurredAt: time.Now().AddDate(0, 0, -31)}
	fresh := &event.Event{UUID: uuid.New(), DeviceUUID: old.DeviceUUID, Type: event.TypePageView,
		OccurredAt: time.Now()}
	require.NoError(t, store.Insert(ctx, old))
	require.NoError(t, store.Insert(ctx, fresh))

	n, err := tracker.Prune(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	remaining, err := store.CountByDevice(ctx, old.DeviceUUID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("CountByDevice filters by type and cutoff", func(t *testing.T) {
		store := event.NewMemoryStore()
		deviceUUID := uuid.New()

		insert := func(typ event.Type, at time.Time) {
			require.NoError(t, store.Insert(ctx, &event.Event{
				UUID: uuid.New(), DeviceUUID: deviceUUID, Type: typ, OccurredAt: at,
			}))
		}
		insert(event.TypeLogin, time.Now())
		insert(event.TypeLogin, time.Now().Add(-2*time.Hour))
		insert(event.TypePageView, time.Now())

		n, err := store.CountByDevice(ctx, deviceUUID, time.Now().Add(-time.Hour), event.TypeLogin)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = store.CountByDevice(ctx, deviceUUID, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, 3, n, "no types means all types")
	})

	t.Run("CountByUser goes through session binding", func(t *testing.T) {
		store := event.NewMemoryStore()
		userID := uuid.New()
		sessionUUID := uuid.New()
		store.BindSession(sessionUUID, userID)

		require.NoError(t, store.Insert(ctx, &event.Event{
			UUID: uuid.New(), DeviceUUID: uuid.New(), SessionUUID: sessionUUID,
			Type: event.TypeLogin, OccurredAt: time.Now(),
		}))

		n, err := store.CountByUser(ctx, userID, time.Time{}, event.TypeLogin)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = store.CountByUser(ctx, uuid.New(), time.Time{})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("DistinctFingerprints ignores empty metadata", func(t *testing.T) {
		store := event.NewMemoryStore()
		sessionUUID := uuid.New()

		for _, meta := range []event.Metadata{
			{"fingerprint": "v1:a"},
			{"fingerprint": "v1:a"},
			{"fingerprint": "v1:b"},
			nil,
		} {
			require.NoError(t, store.Insert(ctx, &event.Event{
				UUID: uuid.New(), SessionUUID: sessionUUID,
				Type: event.TypePageView, Metadata: meta, OccurredAt: time.Now(),
			}))
		}

		n, err := store.DistinctFingerprints(ctx, sessionUUID, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestMetadata(t *testing.T) {
	meta := event.Metadata{
		"route":  "/dashboard",
		"count":  float64(3), // JSON numbers decode as float64
		"secure": true,
	}

	assert.Equal(t, "/dashboard", meta.String("route"))
	assert.Equal(t, 3, meta.Int("count"))
	assert.True(t, meta.Bool("secure"))

	assert.Empty(t, meta.String("missing"))
	assert.Zero(t, meta.Int("missing"))
	assert.False(t, meta.Bool("missing"))
}
