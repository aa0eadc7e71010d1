package security

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"
	"errors"
)

var ErrInvalidToken = errors.New("invalid CSRF token")

// TokenManager handles CSRF token generation and comparison.
// Tokens are double-submitted: once in a cookie and once in the form or a
// header, and the two must match.
type TokenManager struct{}

// NewTokenManager creates a new CSRF token manager.
func NewTokenManager() *TokenManager {
	return &TokenManager{}
}

// Generate creates a random CSRF token as a 64-character hex string.
func (tm *TokenManager) Generate() (string, error) {
	randomBytes := make([]byte, 32)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(randomBytes), nil
}

// Verify compares the cookie token with the submitted one in constant time.
func (tm *TokenManager) Verify(cookieToken, submitted string) error {
	if cookieToken == "" || submitted == "" {
		return ErrInvalidToken
	}
	if !hmac.Equal([]byte(cookieToken), []byte(submitted)) {
		return ErrInvalidToken
	}
	return nil
}
