package middleware

import (
	"context"
	"net/http"
	"time"

	"sleep-better/internal/domain"
	"sleep-better/internal/observability"
	"sleep-better/internal/service"
)

type contextKey string

const (
	KVStoreKey      contextKey = "kv_store"
	SessionStoreKey contextKey = "session_store"
	NavigatorKey    contextKey = "navigator"
	CSRFTokenKey    contextKey = "csrf_token"
)

// SessionListener observes session events of a request.
type SessionListener func(ctx context.Context, ev domain.SessionEvent)

// SessionConfig configures the per-request session store.
type SessionConfig struct {
	TTL       time.Duration
	Clock     func() time.Time
	Listeners []SessionListener
}

// Session builds and initializes a SessionStore for every request. The
// store and its navigator are available to handlers through the context.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			kv, _ := GetKVStore(ctx)
			nav := service.NewRecordingNavigator()
			store := service.NewSessionStore(kv, nav,
				service.WithTTL(cfg.TTL),
				service.WithClock(cfg.Clock))

			for _, l := range cfg.Listeners {
				store.Subscribe(func(ev domain.SessionEvent) {
					l(ctx, ev)
				})
			}

			store.Initialize(ctx)

			if user, ok := store.CurrentUser(); ok {
				ctx = observability.WithUser(ctx, user.Username, service.ResolveSession(ctx, kv).SessionID())
			}
			ctx = context.WithValue(ctx, SessionStoreKey, store)
			ctx = context.WithValue(ctx, NavigatorKey, nav)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetSessionStore(ctx context.Context) (*service.SessionStore, bool) {
	store, ok := ctx.Value(SessionStoreKey).(*service.SessionStore)
	return store, ok
}

func GetNavigator(ctx context.Context) (*service.RecordingNavigator, bool) {
	nav, ok := ctx.Value(NavigatorKey).(*service.RecordingNavigator)
	return nav, ok
}

// WithSessionStore is used by tests to inject a prepared store.
func WithSessionStore(ctx context.Context, store *service.SessionStore, nav *service.RecordingNavigator) context.Context {
	ctx = context.WithValue(ctx, SessionStoreKey, store)
	return context.WithValue(ctx, NavigatorKey, nav)
}

// CountSessionEvents records every session event in the metrics.
func CountSessionEvents(_ context.Context, ev domain.SessionEvent) {
	observability.SessionEventsTotal.WithLabelValues(string(ev.Type)).Inc()
}

// LogSessionEvents logs login and logout transitions.
func LogSessionEvents(ctx context.Context, ev domain.SessionEvent) {
	if ev.Type == domain.SessionInitialized {
		return
	}
	observability.FromContext(ctx).Info("session "+string(ev.Type),
		"username", ev.Username,
		"session_id", ev.SessionID)
}

// PublishSessionEvents forwards login and logout transitions to publisher.
// Publish failures are logged only.
func PublishSessionEvents(publisher domain.SessionEventPublisher) SessionListener {
	return func(ctx context.Context, ev domain.SessionEvent) {
		if ev.Type == domain.SessionInitialized {
			return
		}
		if err := publisher.PublishSessionEvent(ctx, ev); err != nil {
			observability.FromContext(ctx).Warn("failed to publish session event",
				"type", string(ev.Type),
				"error", err.Error())
		}
	}
}

// RequireSession rejects API requests without a persisted session token.
func RequireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store, ok := GetSessionStore(r.Context())
			if !ok {
				http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
				return
			}
			if _, ok := store.Token(r.Context()); !ok {
				http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
