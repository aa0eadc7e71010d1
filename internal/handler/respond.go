package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"sleep-better/internal/backend"
	"sleep-better/internal/domain"
	"sleep-better/internal/middleware"
	"sleep-better/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// failure maps a service or backend error to a status and a message that is
// safe to show the user.
func failure(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password"
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized, "Your session was not accepted. Please log out and sign in again."
	case errors.Is(err, domain.ErrUsernameExists):
		return http.StatusConflict, "Username already exists"
	case errors.Is(err, domain.ErrInvalidSurvey), errors.Is(err, domain.ErrInvalidInput):
		if msg := backend.Message(err); msg != "" {
			return http.StatusBadRequest, msg
		}
		var se *domain.SurveyError
		if errors.As(err, &se) {
			return http.StatusBadRequest, se.Error()
		}
		return http.StatusBadRequest, "Invalid input"
	default:
		return http.StatusBadGateway, "The service is unavailable. Please try again later."
	}
}

func logFailure(r *http.Request, op string, err error) {
	level := slog.LevelWarn
	if status, _ := failure(err); status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, op+" failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
}

// sessionToken re-reads the persisted token right before a backend call.
func sessionToken(r *http.Request) (string, bool) {
	store, ok := middleware.GetSessionStore(r.Context())
	if !ok {
		return "", false
	}
	return store.Token(r.Context())
}

func currentUser(r *http.Request) (domain.User, bool) {
	store, ok := middleware.GetSessionStore(r.Context())
	if !ok {
		return domain.User{}, false
	}
	return store.CurrentUser()
}

// followNavigation turns the navigation recorded by the session store into a
// 303 redirect, falling back to fallback.
func followNavigation(w http.ResponseWriter, r *http.Request, fallback string) {
	target := fallback
	if nav, ok := middleware.GetNavigator(r.Context()); ok {
		if t, ok := nav.Target(); ok {
			target = t
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func requireSessionStore(w http.ResponseWriter, r *http.Request) (*service.SessionStore, bool) {
	store, ok := middleware.GetSessionStore(r.Context())
	if !ok {
		slog.Error("session store missing from request context", slog.String("path", r.URL.Path))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return store, ok
}
