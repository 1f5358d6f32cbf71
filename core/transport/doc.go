// Package transport resolves opaque identifiers (device id, session id,
// client fingerprint) against a configurable ordered hierarchy of carriers:
// cookie, header, server-side session, and request parameters.
//
// One generic Transport serves every identifier kind; the Kind descriptor
// carries the parameter names, hierarchy, and response carrier, so adding a
// new identifier kind is configuration, not code:
//
//	deviceID := transport.New(transport.Kind{
//		Name:            "device_id",
//		Parameter:       "X-Device-Id",
//		AltParameter:    "device_uuid",
//		Hierarchy:       []transport.Carrier{transport.CarrierCookie, transport.CarrierHeader},
//		ResponseCarrier: transport.CarrierCookie,
//		Valid:           func(v string) bool { _, err := uuid.Parse(v); return err == nil },
//	}, cookieManager)
//
//	id, ok := deviceID.Resolve(r, sessionBag)
//
// Cookie values may be AES-256-GCM encrypted with a named-value prefix that
// binds the ciphertext to its parameter name. All decode and decryption
// failures are swallowed and surface as "not found": a corrupted cookie
// degrades to an unknown device rather than failing the request.
package transport
