package transport

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrymomot/devicekit/core/cookie"
)

// Kind describes one identifier kind (device id, session id, client
// fingerprint): its parameter names, resolution hierarchy, and the single
// carrier used when writing the identifier back to the client.
type Kind struct {
	// Name identifies the kind in propagation and logs, e.g. "device_id".
	Name string

	// Parameter is the primary field name across all carriers.
	Parameter string

	// AltParameter is the fallback field name, tried across the whole
	// hierarchy only after the primary name misses everywhere.
	AltParameter string

	// Hierarchy is the ordered carrier list tried during resolution.
	Hierarchy []Carrier

	// ResponseCarrier is the single carrier used by Write and Clear.
	ResponseCarrier Carrier

	// Valid reports whether a carrier value is a well-formed identifier.
	// Cookie values are unsealed before validation. Nil means any non-empty
	// value is accepted.
	Valid func(string) bool
}

func (k Kind) valid(v string) bool {
	if v == "" {
		return false
	}
	if k.Valid == nil {
		return true
	}
	return k.Valid(v)
}

// SessionBag is the server-side session key/value store for the current
// visitor, used by the session carrier.
type SessionBag interface {
	Get(name string) (string, bool)
	Set(name, value string)
	Delete(name string)
}

// Transport resolves and persists identifiers of a single kind.
// Cookie values may be plain or AES-GCM encrypted with a named-value
// integrity prefix; any decode failure degrades to "not found".
type Transport struct {
	kind     Kind
	cookies  *cookie.Manager
	httpOnly bool
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPOnly controls the HttpOnly flag on identifier cookies.
// Defaults to true.
func WithHTTPOnly(httpOnly bool) Option {
	return func(t *Transport) { t.httpOnly = httpOnly }
}

// New creates a transport for the given kind. The cookie manager supplies
// encryption for the cookie carrier.
func New(kind Kind, cookies *cookie.Manager, opts ...Option) *Transport {
	t := &Transport{kind: kind, cookies: cookies, httpOnly: true}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Kind returns the kind descriptor this transport serves.
func (t *Transport) Kind() Kind { return t.kind }

// Resolve locates the identifier for the current request.
//
// Resolution order: a value propagated earlier in the same request pipeline
// short-circuits; then each carrier in the hierarchy with the primary
// parameter name; then the hierarchy again with the alternative name.
// The first well-formed value wins. Never returns an error: corrupted or
// undecryptable values are treated as absent.
func (t *Transport) Resolve(r *http.Request, bag SessionBag) (string, bool) {
	if v, ok := Propagated(r.Context(), t.kind.Name); ok {
		return v, true
	}

	for _, param := range []string{t.kind.Parameter, t.kind.AltParameter} {
		if param == "" {
			continue
		}
		for _, carrier := range t.kind.Hierarchy {
			if v, ok := t.read(r, bag, carrier, param); ok {
				return v, true
			}
		}
	}
	return "", false
}

func (t *Transport) read(r *http.Request, bag SessionBag, carrier Carrier, param string) (string, bool) {
	switch carrier {
	case CarrierCookie:
		return t.readCookie(r, param)
	case CarrierHeader:
		if v := r.Header.Get(param); t.kind.valid(v) {
			return v, true
		}
	case CarrierSession:
		if bag == nil {
			return "", false
		}
		if v, ok := bag.Get(param); ok && t.kind.valid(v) {
			return v, true
		}
	case CarrierRequest:
		if v := requestParam(r, param); t.kind.valid(v) {
			return v, true
		}
	}
	return "", false
}

// readCookie attempts decrypt-and-strip-prefix first, then a plain parse.
// Both failing means "not found"; a corrupted cookie must never fail the
// request. Decryption goes first because Write always seals: with a nil
// Valid a raw check would accept the ciphertext itself as the identifier.
func (t *Transport) readCookie(r *http.Request, param string) (string, bool) {
	if t.cookies == nil {
		return "", false
	}
	raw, err := t.cookies.Get(r, param)
	if err != nil || raw == "" {
		return "", false
	}

	if plain, err := t.cookies.Decrypt(raw); err == nil {
		// Named-value integrity prefix binds the ciphertext to this
		// parameter, preventing cookie-swap across identifier kinds.
		name, value, ok := strings.Cut(plain, "|")
		if ok && name == param && t.kind.valid(value) {
			return value, true
		}
		// A sealed value for another kind or failing validation stays
		// rejected rather than falling through as a plain value.
		return "", false
	}

	if t.kind.valid(raw) {
		return raw, true
	}
	return "", false
}

// Write attaches the identifier to the outgoing response via the configured
// response carrier. Cookie writes are encrypted, non-expiring, and HttpOnly
// per the transport's security configuration.
func (t *Transport) Write(w http.ResponseWriter, bag SessionBag, id string) error {
	switch t.kind.ResponseCarrier {
	case CarrierCookie:
		sealed, err := t.cookies.Encrypt(t.kind.Parameter + "|" + id)
		if err != nil {
			return err
		}
		return t.cookies.Set(w, t.kind.Parameter, sealed,
			cookie.WithForever(),
			cookie.WithHTTPOnly(t.httpOnly),
		)
	case CarrierHeader:
		w.Header().Set(t.kind.Parameter, id)
	case CarrierSession:
		if bag != nil {
			bag.Set(t.kind.Parameter, id)
		}
	}
	// The request carrier has no response representation.
	return nil
}

// Clear removes the identifier from its response carrier. No-op for header
// and request carriers.
func (t *Transport) Clear(w http.ResponseWriter, bag SessionBag) {
	switch t.kind.ResponseCarrier {
	case CarrierCookie:
		t.cookies.Delete(w, t.kind.Parameter)
	case CarrierSession:
		if bag != nil {
			bag.Delete(t.kind.Parameter)
		}
	}
}

// requestParam reads a request parameter from the query string or form body.
func requestParam(r *http.Request, name string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	if r.Form == nil {
		// ParseForm is idempotent and tolerant of non-form bodies.
		_ = r.ParseForm()
	}
	return r.PostFormValue(name)
}

type propagatedKey struct{}

type propagatedValues map[string]string

// Propagate merges the identifier into the request's in-memory parameter bag
// under the request carrier, so downstream consumers in the same pipeline see
// it without their own hierarchy lookup. Returns the request to use for the
// rest of the pipeline.
func Propagate(r *http.Request, kindName, id string) *http.Request {
	values, _ := r.Context().Value(propagatedKey{}).(propagatedValues)
	if values == nil {
		values = make(propagatedValues)
	} else {
		// Copy-on-write keeps earlier request references stable.
		clone := make(propagatedValues, len(values)+1)
		for k, v := range values {
			clone[k] = v
		}
		values = clone
	}
	values[kindName] = id
	return r.WithContext(context.WithValue(r.Context(), propagatedKey{}, values))
}

// Propagated returns a value previously merged with Propagate.
func Propagated(ctx context.Context, kindName string) (string, bool) {
	values, _ := ctx.Value(propagatedKey{}).(propagatedValues)
	v, ok := values[kindName]
	return v, ok
}
