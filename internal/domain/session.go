package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrKeyNotFound        = errors.New("key not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidInput       = errors.New("invalid input")
)

// Persisted keys shared by the session store and the route guard.
const (
	TokenKey    = "token"
	UsernameKey = "username"
)

// DefaultSessionTTL is how long a persisted session survives after login.
const DefaultSessionTTL = 24 * time.Hour

// User is the in-memory view of a session. The token is never kept here.
type User struct {
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the user record is past its expiry at now.
// A zero ExpiresAt never expires.
func (u User) Expired(now time.Time) bool {
	return !u.ExpiresAt.IsZero() && !now.Before(u.ExpiresAt)
}

// Credentials are issued by the external auth service on login or registration.
type Credentials struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// SessionEventType names a session state transition
type SessionEventType string

const (
	SessionInitialized SessionEventType = "initialized"
	SessionLogin       SessionEventType = "login"
	SessionLogout      SessionEventType = "logout"
)

// SessionEvent is delivered to session subscribers after every transition.
// SessionID is a digest of the token, never the token itself.
type SessionEvent struct {
	Type          SessionEventType `json:"type"`
	Username      string           `json:"username,omitempty"`
	SessionID     string           `json:"session_id,omitempty"`
	Authenticated bool             `json:"authenticated"`
	Timestamp     int64            `json:"timestamp"`
}

// KVEntry is a value read back from a KVStore together with its expiry.
type KVEntry struct {
	Value     string
	ExpiresAt time.Time
}

// KVStore is the persistence primitive behind sessions: string values by key,
// each written with a time-to-live after which reads report ErrKeyNotFound.
type KVStore interface {
	Get(ctx context.Context, key string) (KVEntry, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SessionRotator is implemented by stores that namespace a visitor's keys
// under an identifier the browser holds. Rotate moves the visitor to a fresh
// namespace and discards the keys of the old one.
type SessionRotator interface {
	Rotate(ctx context.Context) error
}

// Pinger is implemented by server-side stores that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionEventPublisher fans session events out to other processes.
type SessionEventPublisher interface {
	PublishSessionEvent(ctx context.Context, ev SessionEvent) error
}
