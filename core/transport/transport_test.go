package transport_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicekit/core/cookie"
	"github.com/dmitrymomot/devicekit/core/transport"
)

const testSecret = "transport-secret-32-characters!!"

type fakeBag struct {
	values map[string]string
}

func newFakeBag() *fakeBag { return &fakeBag{values: make(map[string]string)} }

func (b *fakeBag) Get(name string) (string, bool) {
	v, ok := b.values[name]
	return v, ok
}
func (b *fakeBag) Set(name, value string) { b.values[name] = value }
func (b *fakeBag) Delete(name string)     { delete(b.values, name) }

func isUUID(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil
}

func deviceKind(hierarchy ...transport.Carrier) transport.Kind {
	return transport.Kind{
		Name:            "device_id",
		Parameter:       "device_id",
		AltParameter:    "X-Device-ID",
		Hierarchy:       hierarchy,
		ResponseCarrier: transport.CarrierCookie,
		Valid:           isUUID,
	}
}

func newManager(t *testing.T) *cookie.Manager {
	t.Helper()
	m, err := cookie.New([]string{testSecret})
	require.NoError(t, err)
	return m
}

func TestParseHierarchy(t *testing.T) {
	t.Run("ordered list", func(t *testing.T) {
		h, err := transport.ParseHierarchy("cookie, header,session")
		require.NoError(t, err)
		assert.Equal(t, []transport.Carrier{
			transport.CarrierCookie, transport.CarrierHeader, transport.CarrierSession,
		}, h)
	})

	t.Run("unknown carrier", func(t *testing.T) {
		_, err := transport.ParseHierarchy("cookie,carrier-pigeon")
		assert.ErrorIs(t, err, transport.ErrUnknownCarrier)
	})
}

func TestTransport_Resolve(t *testing.T) {
	id := uuid.NewString()

	t.Run("header carrier", func(t *testing.T) {
		tr := transport.New(deviceKind(transport.CarrierHeader), newManager(t))
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("device_id", id)

		got, ok := tr.Resolve(r, nil)
		require.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("session carrier", func(t *testing.T) {
		tr := transport.New(deviceKind(transport.CarrierSession), newManager(t))
		bag := newFakeBag()
		bag.Set("device_id", id)

		got, ok := tr.Resolve(httptest.NewRequest("GET", "/", nil), bag)
		require.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("request carrier reads query", func(t *testing.T) {
		tr := transport.New(deviceKind(transport.CarrierRequest), newManager(t))
		r := httptest.NewRequest("GET", "/?device_id="+id, nil)

		got, ok := tr.Resolve(r, nil)
		require.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("plain cookie", func(t *testing.T) {
		m := newManager(t)
		tr := transport.New(deviceKind(transport.CarrierCookie), m)

		r := httptest.NewRequest("GET", "/", nil)
		r.AddCookie(&http.Cookie{Name: "device_id", Value: id})

		got, ok := tr.Resolve(r, nil)
		require.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("encrypted cookie with integrity prefix", func(t *testing.T) {
		m := newManager(t)
		tr := transport.New(deviceKind(transport.CarrierCookie), m)

		sealed, err := m.Encrypt("device_id|" + id)
		require.NoError(t, err)

		r := httptest.NewRequest("GET", "/", nil)
		r.AddCookie(&http.Cookie{Name: "device_id", Value: sealed})

		got, ok := tr.Resolve(r, nil)
		require.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("cookie encrypted for another parameter rejected", func(t *testing.T) {
		m := newManager(t)
		tr := transport.New(deviceKind(transport.CarrierCookie), m)

		sealed, err := m.Encrypt("session_id|" + id)
		require.NoError(t, err)

		r := httptest.NewRequest("GET", "/", nil)
		r.AddCookie(&http.Cookie{Name: "device_id", Value: sealed})

		_, ok := tr.Resolve(r, nil)
		assert.False(t, ok)
	})

	t.Run("corrupted cookie degrades to not found", func(t *testing.T) {
		tr := transport.New(deviceKind(transport.CarrierCookie), newManager(t))

		r := httptest.NewRequest("GET", "/", nil)
		r.AddCookie(&http.Cookie{Name: "device_id", Value: "garbage-not-uuid-not-ciphertext"})

		_, ok := tr.Resolve(r, nil)
		assert.False(t, ok)
	})

	t.Run("hierarchy order wins", func(t *testing.T) {
		m := newManager(t)
		tr := transport.New(deviceKind(transport.CarrierCookie, transport.CarrierHeader), m)

		cookieID := uuid.NewString()
		headerID := uuid.NewString()

		r := httptest.NewRequest("GET", "/", nil)
		r.AddCookie(&http.Cookie{Name: "device_id", Value: cookieID})
		r.Header.Set("device_id", headerID)

		got, ok := tr.Resolve(r, nil)
		require.True(t, ok)
		assert.Equal(t, cookieID, got)
	})

	t.Run("alt parameter only after primary misses everywhere", func(t *testing.T) {
		tr := transport.New(deviceKind(transport.CarrierHeader), newManager(t))

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Device-ID", id)

		got, ok := tr.Resolve(r, nil)
		require.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("propagated value short-circuits", func(t *testing.T) {
		tr := transport.New(deviceKind(transport.CarrierHeader), newManager(t))

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("device_id", uuid.NewString())
		r = transport.Propagate(r, "device_id", id)

		got, ok := tr.Resolve(r, nil)
		require.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("invalid values skipped", func(t *testing.T) {
		tr := transport.New(deviceKind(transport.CarrierHeader), newManager(t))

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("device_id", "not-a-uuid")

		_, ok := tr.Resolve(r, nil)
		assert.False(t, ok)
	})
}

func TestTransport_WriteAndClear(t *testing.T) {
	id := uuid.NewString()

	t.Run("cookie write is encrypted and durable", func(t *testing.T) {
		m := newManager(t)
		tr := transport.New(deviceKind(transport.CarrierCookie), m)

		w := httptest.NewRecorder()
		require.NoError(t, tr.Write(w, nil, id))

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.True(t, cookies[0].HttpOnly)
		assert.Greater(t, cookies[0].MaxAge, 0)
		assert.NotContains(t, cookies[0].Value, id)

		// Round trip through resolution.
		r := httptest.NewRequest("GET", "/", nil)
		r.AddCookie(cookies[0])
		got, ok := tr.Resolve(r, nil)
		require.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("cookie round trip without a validator", func(t *testing.T) {
		m := newManager(t)
		kind := deviceKind(transport.CarrierCookie)
		kind.Valid = nil
		tr := transport.New(kind, m)

		w := httptest.NewRecorder()
		require.NoError(t, tr.Write(w, nil, id))
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)

		// The sealed value must unwrap to the id, not be returned verbatim.
		r := httptest.NewRequest("GET", "/", nil)
		r.AddCookie(cookies[0])
		got, ok := tr.Resolve(r, nil)
		require.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("header write", func(t *testing.T) {
		kind := deviceKind(transport.CarrierHeader)
		kind.ResponseCarrier = transport.CarrierHeader
		tr := transport.New(kind, newManager(t))

		w := httptest.NewRecorder()
		require.NoError(t, tr.Write(w, nil, id))
		assert.Equal(t, id, w.Header().Get("device_id"))
	})

	t.Run("session write and clear", func(t *testing.T) {
		kind := deviceKind(transport.CarrierSession)
		kind.ResponseCarrier = transport.CarrierSession
		tr := transport.New(kind, newManager(t))
		bag := newFakeBag()

		w := httptest.NewRecorder()
		require.NoError(t, tr.Write(w, bag, id))
		got, ok := bag.Get("device_id")
		require.True(t, ok)
		assert.Equal(t, id, got)

		tr.Clear(w, bag)
		_, ok = bag.Get("device_id")
		assert.False(t, ok)
	})

	t.Run("cookie clear expires", func(t *testing.T) {
		tr := transport.New(deviceKind(transport.CarrierCookie), newManager(t))

		w := httptest.NewRecorder()
		tr.Clear(w, nil)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, -1, cookies[0].MaxAge)
	})
}

func TestPropagate(t *testing.T) {
	t.Run("copy on write isolates earlier requests", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r1 := transport.Propagate(r, "device_id", "a")
		r2 := transport.Propagate(r1, "session_id", "b")

		_, ok := transport.Propagated(r1.Context(), "session_id")
		assert.False(t, ok)

		v, ok := transport.Propagated(r2.Context(), "device_id")
		require.True(t, ok)
		assert.Equal(t, "a", v)
	})
}

func TestKind_ValidDefaults(t *testing.T) {
	kind := transport.Kind{
		Name:      "fp",
		Parameter: "fp",
		Hierarchy: []transport.Carrier{transport.CarrierHeader},
	}
	tr := transport.New(kind, nil)

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("fp", strings.Repeat("a", 10))

	v, ok := tr.Resolve(r, nil)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("a", 10), v)
}
