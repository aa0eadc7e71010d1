package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEnvelopeExpired = errors.New("envelope expired")
	ErrEnvelopeInvalid = errors.New("envelope invalid")
)

const envelopeIssuer = "sleep-better"

type envelopeClaims struct {
	Value string `json:"v"`
	jwt.RegisteredClaims
}

// Envelope seals a value together with its expiry into a signed compact
// token, so cookie values cannot be forged and expire on the server clock
// as well as in the browser.
type Envelope struct {
	key []byte
	now func() time.Time
}

// NewEnvelope creates an Envelope signing with key. A nil clock means time.Now.
func NewEnvelope(key []byte, now func() time.Time) *Envelope {
	if now == nil {
		now = time.Now
	}
	return &Envelope{key: key, now: now}
}

// Seal binds value to name and expiresAt.
func (e *Envelope) Seal(name, value string, expiresAt time.Time) (string, error) {
	claims := envelopeClaims{
		Value: value,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    envelopeIssuer,
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(e.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.key)
	if err != nil {
		return "", fmt.Errorf("sign envelope: %w", err)
	}
	return signed, nil
}

// Open verifies a sealed value for name and returns it with its expiry.
func (e *Envelope) Open(name, sealed string) (string, time.Time, error) {
	claims := &envelopeClaims{}
	_, err := jwt.ParseWithClaims(sealed, claims,
		func(*jwt.Token) (interface{}, error) { return e.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(e.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(envelopeIssuer),
		jwt.WithSubject(name),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", time.Time{}, ErrEnvelopeExpired
		}
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrEnvelopeInvalid, err)
	}

	return claims.Value, claims.ExpiresAt.Time, nil
}
