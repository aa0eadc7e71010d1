package security

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key purposes derived from the session secret.
const (
	PurposeCookieEnvelope = "sleep-better/cookie-envelope/v1"
)

const derivedKeySize = 32

// DeriveKey expands secret into a purpose-bound 256-bit key so a single
// SESSION_SECRET can serve several independent uses.
func DeriveKey(secret, purpose string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("empty secret")
	}

	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	key := make([]byte, derivedKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
