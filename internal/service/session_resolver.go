package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"sleep-better/internal/domain"
	"sleep-better/internal/observability"
)

// Resolution is what the persisted store says about the current visitor.
type Resolution struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// Authenticated reports token presence. This is the only check the route
// guard performs; the token is not validated here.
func (r Resolution) Authenticated() bool {
	return r.Token != ""
}

// HasUser reports whether both token and username are present.
func (r Resolution) HasUser() bool {
	return r.Token != "" && r.Username != ""
}

// SessionID returns a stable digest of the token for logs and events.
func (r Resolution) SessionID() string {
	return TokenDigest(r.Token)
}

// ResolveSession reads the persisted token and username. Storage failures
// resolve to an anonymous visitor and are only logged.
func ResolveSession(ctx context.Context, store domain.KVStore) Resolution {
	if store == nil {
		return Resolution{}
	}

	token, ok := readKey(ctx, store, domain.TokenKey)
	if !ok || token.Value == "" {
		return Resolution{}
	}

	res := Resolution{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
	}

	username, ok := readKey(ctx, store, domain.UsernameKey)
	if ok && username.Value != "" {
		res.Username = username.Value
		res.ExpiresAt = earliest(res.ExpiresAt, username.ExpiresAt)
	}

	return res
}

func readKey(ctx context.Context, store domain.KVStore, key string) (domain.KVEntry, bool) {
	entry, err := store.Get(ctx, key)
	if err == nil {
		return entry, true
	}
	if !errors.Is(err, domain.ErrKeyNotFound) {
		observability.SessionStorageErrors.WithLabelValues("get").Inc()
		slog.Warn("session storage read failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	return domain.KVEntry{}, false
}

func earliest(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	default:
		return a
	}
}

// TokenDigest returns a short hex SHA-256 digest of token, or "" for an empty token.
func TokenDigest(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:12])
}
