// Package cookie stores session values in signed browser cookies.
package cookie

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"sleep-better/internal/domain"
	"sleep-better/internal/security"
)

// Options control the attributes of written cookies.
type Options struct {
	Path   string
	Domain string
	Secure bool
}

// Sealer signs and verifies cookie values.
type Sealer interface {
	Seal(name, value string, expiresAt time.Time) (string, error)
	Open(name, sealed string) (string, time.Time, error)
}

type pending struct {
	entry   domain.KVEntry
	deleted bool
}

// KVStore is scoped to a single request: it reads the request cookies and
// writes Set-Cookie headers on the response. Writes are also kept in an
// overlay so later reads in the same request see them.
type KVStore struct {
	r      *http.Request
	w      http.ResponseWriter
	sealer Sealer
	opts   Options
	now    func() time.Time

	mu      sync.Mutex
	pending map[string]pending
}

// NewKVStore creates a cookie store for one request/response pair.
func NewKVStore(r *http.Request, w http.ResponseWriter, sealer Sealer, opts Options, now func() time.Time) *KVStore {
	if now == nil {
		now = time.Now
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	return &KVStore{
		r:       r,
		w:       w,
		sealer:  sealer,
		opts:    opts,
		now:     now,
		pending: make(map[string]pending),
	}
}

var _ domain.KVStore = (*KVStore)(nil)

// Get returns the value of cookie key. Missing, tampered and expired
// cookies all read as ErrKeyNotFound.
func (s *KVStore) Get(_ context.Context, key string) (domain.KVEntry, error) {
	s.mu.Lock()
	p, ok := s.pending[key]
	s.mu.Unlock()
	if ok {
		if p.deleted || !s.now().Before(p.entry.ExpiresAt) {
			return domain.KVEntry{}, domain.ErrKeyNotFound
		}
		return p.entry, nil
	}

	c, err := s.r.Cookie(key)
	if err != nil || c.Value == "" {
		return domain.KVEntry{}, domain.ErrKeyNotFound
	}

	value, expiresAt, err := s.sealer.Open(key, c.Value)
	if err != nil {
		if !errors.Is(err, security.ErrEnvelopeExpired) {
			slog.Debug("rejected session cookie",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		return domain.KVEntry{}, domain.ErrKeyNotFound
	}
	return domain.KVEntry{Value: value, ExpiresAt: expiresAt}, nil
}

// Set writes a cookie living for ttl. A non-positive ttl falls back to the
// default session lifetime since signed values always carry an expiry.
func (s *KVStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = domain.DefaultSessionTTL
	}
	expiresAt := s.now().Add(ttl)

	sealed, err := s.sealer.Seal(key, value, expiresAt)
	if err != nil {
		return err
	}

	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    sealed,
		Path:     s.opts.Path,
		Domain:   s.opts.Domain,
		Expires:  expiresAt.UTC(),
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	s.mu.Lock()
	s.pending[key] = pending{entry: domain.KVEntry{Value: value, ExpiresAt: expiresAt}}
	s.mu.Unlock()
	return nil
}

// Delete expires the cookie in the browser.
func (s *KVStore) Delete(_ context.Context, key string) error {
	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     s.opts.Path,
		Domain:   s.opts.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	s.mu.Lock()
	s.pending[key] = pending{deleted: true}
	s.mu.Unlock()
	return nil
}
