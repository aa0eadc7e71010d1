package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"sleep-better/internal/observability"
	"sleep-better/internal/service"
)

// DefaultGuardExclusions are path prefixes the route guard never evaluates.
var DefaultGuardExclusions = []string{"/api", "/static", "/health", "/metrics", "/favicon.ico"}

// RouteGuardConfig configures the route guard
type RouteGuardConfig struct {
	// Exclusions are matched on segment boundaries: "/api" excludes "/api"
	// and "/api/x" but not "/apidocs".
	Exclusions []string
}

// RouteGuard redirects anonymous visitors away from protected pages and
// signed-in visitors away from the login and register pages. Session
// presence is token presence in the persisted store; the token is not
// validated. Redirects of unsafe methods use 303.
func RouteGuard(cfg RouteGuardConfig) func(http.Handler) http.Handler {
	exclusions := cfg.Exclusions
	if exclusions == nil {
		exclusions = DefaultGuardExclusions
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExcluded(r.URL.Path, exclusions) {
				next.ServeHTTP(w, r)
				return
			}

			kv, _ := GetKVStore(r.Context())
			res := service.ResolveSession(r.Context(), kv)
			decision := service.EvaluateRoute(r.URL.Path, res.Authenticated())

			observability.RouteGuardDecisions.WithLabelValues(decision.Label()).Inc()

			if decision.Allowed() {
				next.ServeHTTP(w, r)
				return
			}

			slog.Debug("route guard redirect",
				slog.String("path", r.URL.Path),
				slog.String("location", decision.Location),
				slog.Bool("authenticated", res.Authenticated()))

			http.Redirect(w, r, decision.Location, guardRedirectStatus(r.Method))
		})
	}
}

// guardRedirectStatus keeps navigations as 307 and turns form submissions
// into a GET of the target so their bodies are not replayed there.
func guardRedirectStatus(method string) int {
	if method == http.MethodGet || method == http.MethodHead {
		return http.StatusTemporaryRedirect
	}
	return http.StatusSeeOther
}

func isExcluded(path string, exclusions []string) bool {
	for _, prefix := range exclusions {
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
