package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"sleep-better/internal/domain"
	"sleep-better/internal/repository"
	"sleep-better/internal/repository/cookie"
)

// VisitorCookieName holds the namespace of a visitor's server-side session keys.
const VisitorCookieName = "sid"

const visitorCookieMaxAge = 400 * 24 * time.Hour

// StoreFactory builds the persisted session store for one request.
type StoreFactory func(w http.ResponseWriter, r *http.Request) domain.KVStore

// CookieStores persists sessions in signed browser cookies.
func CookieStores(sealer cookie.Sealer, opts cookie.Options, now func() time.Time) StoreFactory {
	return func(w http.ResponseWriter, r *http.Request) domain.KVStore {
		return cookie.NewKVStore(r, w, sealer, opts, now)
	}
}

// ServerStores persists sessions in a shared backend, namespaced per visitor
// by a random id kept in the sid cookie. The id is replaced on login.
func ServerStores(backend domain.KVStore, secure bool) StoreFactory {
	return func(w http.ResponseWriter, r *http.Request) domain.KVStore {
		return &visitorStore{
			ScopedStore: repository.NewScopedStore(backend, visitorID(w, r, secure)),
			w:           w,
			secure:      secure,
		}
	}
}

// visitorStore is the request's view of one visitor's namespace.
type visitorStore struct {
	*repository.ScopedStore
	w      http.ResponseWriter
	secure bool
}

var _ domain.SessionRotator = (*visitorStore)(nil)

// Rotate issues a new visitor id and drops the session keys held under the
// old one, so an id known before login never identifies the signed-in user.
func (s *visitorStore) Rotate(ctx context.Context) error {
	var errs []error
	for _, key := range []string{domain.TokenKey, domain.UsernameKey} {
		if err := s.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}

	id := uuid.NewString()
	setVisitorCookie(s.w, id, s.secure)
	s.Rescope(id)

	return errors.Join(errs...)
}

func visitorID(w http.ResponseWriter, r *http.Request, secure bool) string {
	if c, err := r.Cookie(VisitorCookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	setVisitorCookie(w, id, secure)
	return id
}

func setVisitorCookie(w http.ResponseWriter, id string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(visitorCookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Persistence attaches the request's persisted session store to the context.
func Persistence(factory StoreFactory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithKVStore(r.Context(), factory(w, r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetKVStore returns the request's persisted session store.
func GetKVStore(ctx context.Context) (domain.KVStore, bool) {
	store, ok := ctx.Value(KVStoreKey).(domain.KVStore)
	return store, ok
}

// WithKVStore attaches a persisted session store to ctx.
func WithKVStore(ctx context.Context, store domain.KVStore) context.Context {
	return context.WithValue(ctx, KVStoreKey, store)
}
