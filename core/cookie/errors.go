package cookie

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSecret is returned when no non-empty secret is provided.
	ErrNoSecret = errors.New("cookie: no secret provided")
	// ErrSecretTooShort is returned when a secret is shorter than 32 bytes.
	ErrSecretTooShort = errors.New("cookie: secret too short")
	// ErrCookieNotFound is returned when the named cookie is absent.
	ErrCookieNotFound = errors.New("cookie: not found")
	// ErrInvalidFormat is returned for malformed signed or encrypted values.
	ErrInvalidFormat = errors.New("cookie: invalid format")
	// ErrInvalidSignature is returned when HMAC verification fails.
	ErrInvalidSignature = errors.New("cookie: invalid signature")
	// ErrDecryptionFailed is returned when no secret can open the ciphertext.
	ErrDecryptionFailed = errors.New("cookie: decryption failed")
)

// ErrCookieTooLarge is returned when the serialized cookie exceeds the 4KB
// browser limit.
type ErrCookieTooLarge struct {
	Name string
	Size int
}

func (e ErrCookieTooLarge) Error() string {
	return fmt.Sprintf("cookie: %q is %d bytes, exceeds %d byte limit", e.Name, e.Size, MaxCookieSize)
}
