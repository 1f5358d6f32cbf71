package healthcheck_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/devicekit/core/healthcheck"
)

func TestLiveness(t *testing.T) {
	w := httptest.NewRecorder()
	healthcheck.Liveness()(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ALIVE", w.Body.String())
}

func TestReadiness(t *testing.T) {
	pass := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("connection refused") }

	t.Run("all probes pass", func(t *testing.T) {
		w := httptest.NewRecorder()
		healthcheck.Readiness(nil, pass, pass)(w, httptest.NewRequest("GET", "/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "READY", w.Body.String())
	})

	t.Run("failing probe returns 503", func(t *testing.T) {
		w := httptest.NewRecorder()
		healthcheck.Readiness(nil, pass, fail)(w, httptest.NewRequest("GET", "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("no probes is ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		healthcheck.Readiness(nil)(w, httptest.NewRequest("GET", "/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
