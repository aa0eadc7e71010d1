package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"sleep-better/internal/auth"
	"sleep-better/internal/domain"
	"sleep-better/internal/security"
)

const (
	stateCookieName = "oauth_state"
	nonceCookieName = "oauth_nonce"
	ssoCookiePath   = "/api/auth/sso"
	ssoCookieMaxAge = 10 * time.Minute
)

// SSOProvider runs the OpenID Connect authorization code flow.
type SSOProvider interface {
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code, nonce string) (auth.Identity, error)
}

// SSOHandler signs users in through an external identity provider. The
// provider's access token becomes the session token.
type SSOHandler struct {
	provider SSOProvider
	tokens   *security.TokenManager
	secure   bool
}

// NewSSOHandler creates a new SSO handler. A nil provider disables both
// endpoints.
func NewSSOHandler(provider SSOProvider, tokens *security.TokenManager, secure bool) *SSOHandler {
	return &SSOHandler{
		provider: provider,
		tokens:   tokens,
		secure:   secure,
	}
}

// Login redirects to the identity provider.
func (h *SSOHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		writeJSONError(w, http.StatusNotFound, "Single sign-on is not configured")
		return
	}

	state, err := h.tokens.Generate()
	if err != nil {
		logFailure(r, "sso state", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	nonce, err := h.tokens.Generate()
	if err != nil {
		logFailure(r, "sso nonce", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.setCookie(w, stateCookieName, state, int(ssoCookieMaxAge/time.Second))
	h.setCookie(w, nonceCookieName, nonce, int(ssoCookieMaxAge/time.Second))
	http.Redirect(w, r, h.provider.AuthCodeURL(state, nonce), http.StatusFound)
}

// Callback completes the sign-in and starts the session.
func (h *SSOHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		writeJSONError(w, http.StatusNotFound, "Single sign-on is not configured")
		return
	}

	q := r.URL.Query()
	if err := h.tokens.Verify(cookieValue(r, stateCookieName), q.Get("state")); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid sign-in state")
		return
	}
	nonce := cookieValue(r, nonceCookieName)

	h.setCookie(w, stateCookieName, "", -1)
	h.setCookie(w, nonceCookieName, "", -1)

	if reason := q.Get("error"); reason != "" {
		writeJSONError(w, http.StatusUnauthorized, "Sign-in was not completed: "+reason)
		return
	}

	identity, err := h.provider.Exchange(r.Context(), q.Get("code"), nonce)
	if err != nil {
		logFailure(r, "sso exchange", err)
		if errors.Is(err, auth.ErrMissingCode) {
			writeJSONError(w, http.StatusBadRequest, "Authorization code is required")
			return
		}
		writeJSONError(w, http.StatusUnauthorized, "Sign-in failed")
		return
	}

	store, ok := requireSessionStore(w, r)
	if !ok {
		return
	}
	store.Login(r.Context(), identity.AccessToken, identity.Username)
	followNavigation(w, r, domain.RouteHome)
}

func (h *SSOHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     ssoCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func cookieValue(r *http.Request, name string) string {
	if c, err := r.Cookie(name); err == nil {
		return c.Value
	}
	return ""
}
