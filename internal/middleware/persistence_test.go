package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sleep-better/internal/domain"
	"sleep-better/internal/repository/cookie"
	"sleep-better/internal/repository/memory"
	"sleep-better/internal/security"
	"sleep-better/internal/testutil"
)

// sessionApp wires persistence, guard and session the way the server does,
// with a login and logout endpoint that report the navigation target.
func sessionApp(factory StoreFactory, clock *testutil.Clock) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/do-login", func(w http.ResponseWriter, r *http.Request) {
		store, _ := GetSessionStore(r.Context())
		nav, _ := GetNavigator(r.Context())
		store.Login(r.Context(), "abc", "bob")
		target, _ := nav.Target()
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
	mux.HandleFunc("/do-logout", func(w http.ResponseWriter, r *http.Request) {
		store, _ := GetSessionStore(r.Context())
		nav, _ := GetNavigator(r.Context())
		store.Logout(r.Context())
		target, _ := nav.Target()
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		store, _ := GetSessionStore(r.Context())
		if user, ok := store.CurrentUser(); ok {
			_, _ = w.Write([]byte("hello " + user.Username))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	})

	var handler http.Handler = mux
	handler = Session(SessionConfig{Clock: clock.Now})(handler)
	handler = RouteGuard(RouteGuardConfig{Exclusions: []string{"/do-login", "/do-logout"}})(handler)
	return Persistence(factory)(handler)
}

func cookieFactory(t *testing.T, clock *testutil.Clock) StoreFactory {
	t.Helper()
	key, err := security.DeriveKey("test-session-secret", security.PurposeCookieEnvelope)
	require.NoError(t, err)
	return CookieStores(security.NewEnvelope(key, clock.Now), cookie.Options{}, clock.Now)
}

func serverFactory(clock *testutil.Clock) StoreFactory {
	return ServerStores(memory.NewKVStore(clock.Now), false)
}

func TestSessionFlow(t *testing.T) {
	backends := map[string]func(t *testing.T, clock *testutil.Clock) StoreFactory{
		"cookie": cookieFactory,
		"server": func(_ *testing.T, clock *testutil.Clock) StoreFactory { return serverFactory(clock) },
	}

	for name, newFactory := range backends {
		t.Run(name, func(t *testing.T) {
			clock := testutil.NewClock()
			app := sessionApp(newFactory(t, clock), clock)

			jar := map[string]string{}
			do := func(method, path string) *httptest.ResponseRecorder {
				req := httptest.NewRequest(method, path, nil)
				for k, v := range jar {
					req.AddCookie(&http.Cookie{Name: k, Value: v})
				}
				w := httptest.NewRecorder()
				app.ServeHTTP(w, req)
				for _, c := range w.Result().Cookies() {
					if c.MaxAge < 0 {
						delete(jar, c.Name)
						continue
					}
					jar[c.Name] = c.Value
				}
				return w
			}

			// anonymous
			testutil.AssertRedirect(t, do(http.MethodGet, "/dashboard"), http.StatusTemporaryRedirect, "/login")
			testutil.AssertStatusCode(t, do(http.MethodGet, "/login"), http.StatusOK)

			// login navigates home and survives a reload
			testutil.AssertRedirect(t, do(http.MethodPost, "/do-login"), http.StatusSeeOther, "/")
			w := do(http.MethodGet, "/dashboard")
			testutil.AssertStatusCode(t, w, http.StatusOK)
			assert.Equal(t, "hello bob", w.Body.String())
			testutil.AssertRedirect(t, do(http.MethodGet, "/register"), http.StatusTemporaryRedirect, "/")

			// logout navigates to login, twice without error
			testutil.AssertRedirect(t, do(http.MethodPost, "/do-logout"), http.StatusSeeOther, "/login")
			testutil.AssertRedirect(t, do(http.MethodPost, "/do-logout"), http.StatusSeeOther, "/login")
			testutil.AssertRedirect(t, do(http.MethodGet, "/dashboard"), http.StatusTemporaryRedirect, "/login")
			testutil.AssertStatusCode(t, do(http.MethodGet, "/login"), http.StatusOK)
		})
	}
}

func TestSessionFlow_ExpiryBoundary(t *testing.T) {
	backends := map[string]func(clock *testutil.Clock) StoreFactory{
		"cookie": func(clock *testutil.Clock) StoreFactory { return cookieFactory(t, clock) },
		"server": serverFactory,
	}

	for name, newFactory := range backends {
		t.Run(name, func(t *testing.T) {
			clock := testutil.NewClock()
			app := sessionApp(newFactory(clock), clock)

			login := httptest.NewRecorder()
			app.ServeHTTP(login, httptest.NewRequest(http.MethodPost, "/do-login", nil))

			clock.Advance(domain.DefaultSessionTTL - time.Second)
			w := httptest.NewRecorder()
			app.ServeHTTP(w, testutil.CarryCookies(httptest.NewRequest(http.MethodGet, "/", nil), login))
			assert.Equal(t, "hello bob", w.Body.String())

			clock.Advance(2 * time.Second)
			w = httptest.NewRecorder()
			app.ServeHTTP(w, testutil.CarryCookies(httptest.NewRequest(http.MethodGet, "/", nil), login))
			testutil.AssertRedirect(t, w, http.StatusTemporaryRedirect, "/login")
		})
	}
}

func TestServerStores_VisitorCookie(t *testing.T) {
	backend := memory.NewKVStore(nil)
	factory := ServerStores(backend, true)

	t.Run("issued when missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		factory(w, httptest.NewRequest(http.MethodGet, "/", nil))

		c := testutil.AssertCookie(t, w, VisitorCookieName)
		require.NotNil(t, c)
		_, err := uuid.Parse(c.Value)
		assert.NoError(t, err)
		assert.True(t, c.Secure)
		assert.True(t, c.HttpOnly)
	})

	t.Run("reused when valid", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: VisitorCookieName, Value: id})
		w := httptest.NewRecorder()

		store := factory(w, req)
		require.NoError(t, store.Set(req.Context(), domain.TokenKey, "tok", time.Hour))

		assert.Empty(t, w.Result().Cookies())
		entry, err := backend.Get(req.Context(), id+":"+domain.TokenKey)
		require.NoError(t, err)
		assert.Equal(t, "tok", entry.Value)
	})

	t.Run("replaced when forged", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: VisitorCookieName, Value: "../admin"})
		w := httptest.NewRecorder()

		factory(w, req)

		c := testutil.AssertCookie(t, w, VisitorCookieName)
		require.NotNil(t, c)
		assert.NotEqual(t, "../admin", c.Value)
	})
}

func TestServerStores_VisitorsAreIsolated(t *testing.T) {
	clock := testutil.NewClock()
	app := sessionApp(serverFactory(clock), clock)

	login := httptest.NewRecorder()
	app.ServeHTTP(login, httptest.NewRequest(http.MethodPost, "/do-login", nil))

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	testutil.AssertRedirect(t, w, http.StatusTemporaryRedirect, "/login")
}

func TestServerStores_LoginRotatesVisitorID(t *testing.T) {
	clock := testutil.NewClock()
	backend := memory.NewKVStore(clock.Now)
	app := sessionApp(ServerStores(backend, false), clock)
	ctx := context.Background()

	planted := uuid.NewString()
	require.NoError(t, backend.Set(ctx, planted+":"+domain.UsernameKey, "stale", time.Hour))

	withSID := func(req *http.Request, id string) *http.Request {
		req.AddCookie(&http.Cookie{Name: VisitorCookieName, Value: id})
		return req
	}

	login := httptest.NewRecorder()
	app.ServeHTTP(login, withSID(httptest.NewRequest(http.MethodPost, "/do-login", nil), planted))
	testutil.AssertRedirect(t, login, http.StatusSeeOther, "/")

	c := testutil.AssertCookie(t, login, VisitorCookieName)
	require.NotNil(t, c)
	assert.NotEqual(t, planted, c.Value)
	_, err := uuid.Parse(c.Value)
	require.NoError(t, err)

	// the pre-login id stays anonymous
	w := httptest.NewRecorder()
	app.ServeHTTP(w, withSID(httptest.NewRequest(http.MethodGet, "/dashboard", nil), planted))
	testutil.AssertRedirect(t, w, http.StatusTemporaryRedirect, "/login")

	_, err = backend.Get(ctx, planted+":"+domain.UsernameKey)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	w = httptest.NewRecorder()
	app.ServeHTTP(w, withSID(httptest.NewRequest(http.MethodGet, "/dashboard", nil), c.Value))
	testutil.AssertStatusCode(t, w, http.StatusOK)
	assert.Equal(t, "hello bob", w.Body.String())
}

func TestVisitorStore_RotateReportsDeleteFailure(t *testing.T) {
	kv := testutil.NewMockKVStore()
	kv.DeleteFunc = func(context.Context, string) error { return testutil.ErrMockStorage }

	w := httptest.NewRecorder()
	store := ServerStores(kv, false)(w, httptest.NewRequest(http.MethodGet, "/", nil))
	first := testutil.AssertCookie(t, w, VisitorCookieName)
	require.NotNil(t, first)

	rotator, ok := store.(domain.SessionRotator)
	require.True(t, ok)
	assert.ErrorIs(t, rotator.Rotate(context.Background()), testutil.ErrMockStorage)

	// the id still changes
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.NotEqual(t, first.Value, cookies[1].Value)
}
