package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sleep-better/internal/domain"
	"sleep-better/internal/middleware"
	"sleep-better/internal/service"
	"sleep-better/internal/testutil"
	"sleep-better/internal/web"
)

const testCSRFToken = "csrf-test-token"

// fixture stands in for the middleware chain: every request gets a fresh
// session store initialized from the shared KV store.
type fixture struct {
	clock   *testutil.Clock
	kv      *testutil.MockKVStore
	backend *testutil.MockBackend
	pages   *web.Renderer
	nav     *service.RecordingNavigator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pages, err := web.NewRenderer()
	require.NoError(t, err)

	clock := testutil.NewClock()
	kv := testutil.NewMockKVStore()
	kv.Now = clock.Now

	return &fixture{
		clock:   clock,
		kv:      kv,
		backend: testutil.NewMockBackend(),
		pages:   pages,
	}
}

func (f *fixture) signIn(token, username string) {
	expiresAt := f.clock.Now().Add(domain.DefaultSessionTTL)
	f.kv.Put(domain.TokenKey, token, expiresAt)
	f.kv.Put(domain.UsernameKey, username, expiresAt)
}

func (f *fixture) wrap(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.WithKVStore(r.Context(), f.kv)

		f.nav = service.NewRecordingNavigator()
		store := service.NewSessionStore(f.kv, f.nav, service.WithClock(f.clock.Now))
		store.Initialize(ctx)

		ctx = middleware.WithSessionStore(ctx, store, f.nav)
		ctx = context.WithValue(ctx, middleware.CSRFTokenKey, testCSRFToken)
		h(w, r.WithContext(ctx))
	})
}

func (f *fixture) serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.wrap(h).ServeHTTP(w, req)
	return w
}

func (f *fixture) advance(d time.Duration) {
	f.clock.Advance(d)
}
