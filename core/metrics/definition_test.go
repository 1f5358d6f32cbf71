package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicekit/core/metrics"
)

func floatPtr(f float64) *float64 { return &f }

func TestRegistry_Register(t *testing.T) {
	t.Run("rejects empty name", func(t *testing.T) {
		err := metrics.NewRegistry().Register(metrics.Definition{Type: metrics.TypeCounter})
		var invalid metrics.InvalidMetricError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		err := metrics.NewRegistry().Register(metrics.Definition{Name: "m", Type: "timer"})
		assert.Error(t, err)
	})

	t.Run("required dimensions must be allowed", func(t *testing.T) {
		err := metrics.NewRegistry().Register(metrics.Definition{
			Name:               "m",
			Type:               metrics.TypeCounter,
			AllowedDimensions:  []string{"route"},
			RequiredDimensions: []string{"method"},
		})
		assert.Error(t, err)
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		registry := metrics.NewRegistry()
		def := metrics.Definition{Name: "m", Type: metrics.TypeCounter}
		require.NoError(t, registry.Register(def))
		assert.ErrorIs(t, registry.Register(def), metrics.ErrAlreadyRegistered)
	})
}

func TestRegistry_Validate(t *testing.T) {
	registry := metrics.NewRegistry()
	registry.MustRegister(metrics.Definition{
		Name:               "device_risk_score",
		Type:               metrics.TypeGauge,
		AllowedDimensions:  []string{"platform", "browser"},
		RequiredDimensions: []string{"platform"},
		Min:                floatPtr(0),
		Max:                floatPtr(100),
		Unit:               metrics.UnitScore,
	})

	valid := map[string]string{"platform": "macos"}

	t.Run("passes a conforming sample", func(t *testing.T) {
		def, err := registry.Validate("device_risk_score", metrics.TypeGauge, 42, valid)
		require.NoError(t, err)
		assert.Equal(t, metrics.TypeGauge, def.Type)
	})

	t.Run("empty type defers to the registered one", func(t *testing.T) {
		_, err := registry.Validate("device_risk_score", "", 42, valid)
		assert.NoError(t, err)
	})

	t.Run("unregistered name", func(t *testing.T) {
		_, err := registry.Validate("nope", metrics.TypeGauge, 1, nil)
		assert.ErrorIs(t, err, metrics.ErrNotRegistered)
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := registry.Validate("device_risk_score", metrics.TypeCounter, 1, valid)
		assert.Error(t, err)
	})

	t.Run("disallowed dimension", func(t *testing.T) {
		_, err := registry.Validate("device_risk_score", metrics.TypeGauge, 1,
			map[string]string{"platform": "macos", "country": "DE"})
		assert.Error(t, err)
	})

	t.Run("missing required dimension", func(t *testing.T) {
		_, err := registry.Validate("device_risk_score", metrics.TypeGauge, 1,
			map[string]string{"browser": "chrome"})
		assert.Error(t, err)
	})

	t.Run("value bounds", func(t *testing.T) {
		_, err := registry.Validate("device_risk_score", metrics.TypeGauge, -1, valid)
		assert.Error(t, err)

		_, err = registry.Validate("device_risk_score", metrics.TypeGauge, 101, valid)
		assert.Error(t, err)

		_, err = registry.Validate("device_risk_score", metrics.TypeGauge, 100, valid)
		assert.NoError(t, err)
	})
}

func TestDefinition_Buckets(t *testing.T) {
	assert.Equal(t, metrics.DefaultBuckets[metrics.UnitScore],
		metrics.Definition{Unit: metrics.UnitScore}.Buckets())

	// Unknown units fall back to millisecond boundaries.
	assert.Equal(t, metrics.DefaultBuckets[metrics.UnitMilliseconds],
		metrics.Definition{}.Buckets())
}
