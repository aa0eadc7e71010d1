package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"sleep-better/internal/observability"
)

// RequestContext copies chi's request id into the logging context so that
// observability.FromContext tags every line of a request. It must run after
// chi's RequestID middleware.
func RequestContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := chimiddleware.GetReqID(r.Context()); id != "" {
				r = r.WithContext(observability.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
