package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"sleep-better/internal/security"
)

const (
	CSRFCookieName = "csrf_token"
	CSRFFieldName  = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRF implements the double-submit cookie pattern for the HTML forms.
//
// Every response carries a csrf_token cookie (issued on first visit) and the
// token is exposed to templates through GetCSRFToken. Unsafe requests must
// echo it back in the csrf_token form field or the X-CSRF-Token header.
//
// The JSON API, health, metrics and websocket paths are exempt.
func CSRF(tm *security.TokenManager, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExemptPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			cookieToken := ""
			if c, err := r.Cookie(CSRFCookieName); err == nil {
				cookieToken = c.Value
			}

			if !isSafeMethod(r.Method) {
				if err := tm.Verify(cookieToken, extractCSRFToken(r)); err != nil {
					logCSRFFailure(r, cookieToken == "")
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
			}

			if cookieToken == "" {
				token, err := tm.Generate()
				if err != nil {
					slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				cookieToken = token
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), CSRFTokenKey, cookieToken)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCSRFToken returns the token to embed in forms.
func GetCSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(CSRFTokenKey).(string)
	return token
}

// isSafeMethod returns true if the HTTP method is idempotent and cacheable.
func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}

// isExemptPath returns true if the request path should skip CSRF validation.
func isExemptPath(path string) bool {
	exemptPaths := []string{
		"/api/",
		"/health",
		"/metrics",
		"/ws/",
	}

	for _, exemptPath := range exemptPaths {
		if strings.HasPrefix(path, exemptPath) {
			return true
		}
	}
	return false
}

// extractCSRFToken checks the form field first, then the header.
func extractCSRFToken(r *http.Request) string {
	if token := r.FormValue(CSRFFieldName); token != "" {
		return token
	}
	return r.Header.Get(CSRFHeaderName)
}

func logCSRFFailure(r *http.Request, missingCookie bool) {
	slog.Warn("CSRF validation failed",
		slog.Bool("missing_cookie", missingCookie),
		slog.String("method", r.Method),
		slog.String("path", r.RequestURI),
		slog.String("remote_addr", r.RemoteAddr),
	)
}
