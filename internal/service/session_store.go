package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sleep-better/internal/domain"
	"sleep-better/internal/observability"
)

// SessionStore owns "who is logged in" for one page load. It is the only
// writer of the persisted session keys; readers go through CurrentUser or
// subscribe to transitions.
type SessionStore struct {
	store     domain.KVStore
	navigator Navigator
	ttl       time.Duration
	now       func() time.Time

	mu          sync.RWMutex
	user        *domain.User
	ready       bool
	subscribers map[uint64]func(domain.SessionEvent)
	nextSubID   uint64
}

// SessionStoreOption configures a SessionStore
type SessionStoreOption func(*SessionStore)

// WithTTL overrides the persisted session lifetime.
func WithTTL(ttl time.Duration) SessionStoreOption {
	return func(s *SessionStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionStore creates a session store over a persisted KV store.
func NewSessionStore(store domain.KVStore, navigator Navigator, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		store:       store,
		navigator:   navigator,
		ttl:         domain.DefaultSessionTTL,
		now:         time.Now,
		subscribers: make(map[uint64]func(domain.SessionEvent)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize rehydrates in-memory state from the persisted store and marks
// the store ready. It never fails and makes no network calls.
func (s *SessionStore) Initialize(ctx context.Context) {
	res := ResolveSession(ctx, s.store)

	s.mu.Lock()
	s.user = nil
	if res.HasUser() {
		s.user = &domain.User{
			Username:  res.Username,
			ExpiresAt: res.ExpiresAt,
		}
	}
	s.ready = true
	s.mu.Unlock()

	s.notify(domain.SessionEvent{
		Type:          domain.SessionInitialized,
		Username:      res.Username,
		SessionID:     res.SessionID(),
		Authenticated: res.HasUser(),
	})
}

// Ready reports whether Initialize has completed.
func (s *SessionStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Login persists the credentials for the configured TTL, updates in-memory
// state and navigates home. A persistence failure is logged only: the user
// stays logged in for this page load but not across a reload.
func (s *SessionStore) Login(ctx context.Context, token, username string) {
	if token == "" || username == "" {
		slog.Warn("login ignored: empty token or username",
			slog.Bool("has_token", token != ""),
			slog.Bool("has_username", username != ""))
		return
	}

	// a namespace issued before authentication must not carry the session
	if r, ok := s.store.(domain.SessionRotator); ok {
		if err := r.Rotate(ctx); err != nil {
			observability.SessionStorageErrors.WithLabelValues("rotate").Inc()
			slog.Warn("failed to rotate session namespace",
				slog.String("username", username),
				slog.String("error", err.Error()))
		}
	}

	expiresAt := s.now().Add(s.ttl)

	if err := s.store.Set(ctx, domain.TokenKey, token, s.ttl); err != nil {
		observability.SessionStorageErrors.WithLabelValues("set").Inc()
		slog.Warn("failed to persist session token",
			slog.String("username", username),
			slog.String("error", err.Error()))
	}
	if err := s.store.Set(ctx, domain.UsernameKey, username, s.ttl); err != nil {
		observability.SessionStorageErrors.WithLabelValues("set").Inc()
		slog.Warn("failed to persist session username",
			slog.String("username", username),
			slog.String("error", err.Error()))
	}

	s.mu.Lock()
	s.user = &domain.User{Username: username, ExpiresAt: expiresAt}
	s.mu.Unlock()

	s.navigate(domain.RouteHome)
	s.notify(domain.SessionEvent{
		Type:          domain.SessionLogin,
		Username:      username,
		SessionID:     TokenDigest(token),
		Authenticated: true,
	})
}

// Logout removes the persisted session, clears in-memory state and navigates
// to the login page. Calling it without a session only navigates.
func (s *SessionStore) Logout(ctx context.Context) {
	res := ResolveSession(ctx, s.store)

	for _, key := range []string{domain.TokenKey, domain.UsernameKey} {
		if err := s.store.Delete(ctx, key); err != nil {
			observability.SessionStorageErrors.WithLabelValues("delete").Inc()
			slog.Warn("failed to remove persisted session key",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}

	s.mu.Lock()
	username := ""
	if s.user != nil {
		username = s.user.Username
	}
	s.user = nil
	s.mu.Unlock()

	if username == "" {
		username = res.Username
	}

	s.navigate(domain.RouteLogin)
	s.notify(domain.SessionEvent{
		Type:      domain.SessionLogout,
		Username:  username,
		SessionID: res.SessionID(),
	})
}

// CurrentUser returns the in-memory user. A user whose expiry has passed on
// the local clock is reported as absent.
func (s *SessionStore) CurrentUser() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil || s.user.Expired(s.now()) {
		return domain.User{}, false
	}
	return *s.user, true
}

// Token re-reads the persisted token right before it is used to authorize a
// backend call, so an expired or removed token is never sent.
func (s *SessionStore) Token(ctx context.Context) (string, bool) {
	res := ResolveSession(ctx, s.store)
	return res.Token, res.Authenticated()
}

// Subscribe registers fn for session events and returns a function that
// removes the subscription.
func (s *SessionStore) Subscribe(fn func(domain.SessionEvent)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *SessionStore) navigate(path string) {
	if s.navigator != nil {
		s.navigator.Navigate(path)
	}
}

func (s *SessionStore) notify(ev domain.SessionEvent) {
	ev.Timestamp = s.now().Unix()

	s.mu.RLock()
	subs := make([]func(domain.SessionEvent), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
