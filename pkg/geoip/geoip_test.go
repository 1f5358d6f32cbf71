package geoip_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicekit/pkg/geoip"
)

func TestLocation_IsZero(t *testing.T) {
	assert.True(t, geoip.Location{}.IsZero())
	assert.False(t, geoip.Location{Country: "DE"}.IsZero())
	assert.False(t, geoip.Location{Latitude: 52.52}.IsZero())
}

func TestStatic(t *testing.T) {
	want := geoip.Location{Country: "DE", City: "Berlin"}
	loc, err := geoip.Static(want).Locate(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, want, loc)
}

func TestFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("passes through a healthy locator", func(t *testing.T) {
		want := geoip.Location{Country: "DE"}
		loc, err := geoip.Fallback(geoip.Static(want), time.Second).Locate(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.Equal(t, want, loc)
	})

	t.Run("degrades lookup failures to the zero location", func(t *testing.T) {
		failing := geoip.LocatorFunc(func(context.Context, string) (geoip.Location, error) {
			return geoip.Location{}, errors.New("provider down")
		})
		loc, err := geoip.Fallback(failing, time.Second).Locate(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, loc.IsZero())
	})

	t.Run("slow providers are cut off", func(t *testing.T) {
		slow := geoip.LocatorFunc(func(ctx context.Context, _ string) (geoip.Location, error) {
			select {
			case <-ctx.Done():
				return geoip.Location{}, ctx.Err()
			case <-time.After(5 * time.Second):
				return geoip.Location{Country: "DE"}, nil
			}
		})

		start := time.Now()
		loc, err := geoip.Fallback(slow, 50*time.Millisecond).Locate(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, loc.IsZero())
		assert.Less(t, time.Since(start), time.Second)
	})
}
