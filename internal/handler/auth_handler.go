package handler

import (
	"net/http"
	"strings"

	"sleep-better/internal/domain"
	"sleep-better/internal/service"
	"sleep-better/internal/web"
)

// AuthHandler handles the login, registration and logout forms
type AuthHandler struct {
	authService *service.AuthService
	pages       *web.Renderer
	ssoEnabled  bool
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *service.AuthService, pages *web.Renderer, ssoEnabled bool) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		pages:       pages,
		ssoEnabled:  ssoEnabled,
	}
}

func (h *AuthHandler) render(w http.ResponseWriter, r *http.Request, status int, page, title, errMsg string, content web.AuthContent) {
	data := pageData(r, title, content)
	data.SSOEnabled = h.ssoEnabled
	data.Error = errMsg
	h.pages.Render(w, status, page, data)
}

// LoginPage renders the login form
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, web.PageLogin, "Login", "", web.AuthContent{})
}

// Login authenticates against the backend and starts the session
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, web.PageLogin, "Login", "Invalid form submission", web.AuthContent{})
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))

	creds, err := h.authService.Login(r.Context(), username, r.PostForm.Get("password"))
	if err != nil {
		logFailure(r, "login", err)
		status, msg := failure(err)
		h.render(w, r, status, web.PageLogin, "Login", msg, web.AuthContent{Username: username})
		return
	}

	h.signIn(w, r, creds)
}

// RegisterPage renders the registration form
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, web.PageRegister, "Register", "", web.AuthContent{})
}

// Register creates the account and signs it in
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, web.PageRegister, "Register", "Invalid form submission", web.AuthContent{})
		return
	}
	content := web.AuthContent{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
	}

	creds, err := h.authService.Register(r.Context(), content.Username, content.Email, r.PostForm.Get("password"))
	if err != nil {
		logFailure(r, "register", err)
		status, msg := failure(err)
		if status == http.StatusBadRequest && msg == "Invalid input" {
			msg = "Username must be 3-50 letters, digits or underscores, with a valid email and a password of at least 8 characters"
		}
		h.render(w, r, status, web.PageRegister, "Register", msg, content)
		return
	}

	h.signIn(w, r, creds)
}

// Logout ends the session and returns to the login page
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	store, ok := requireSessionStore(w, r)
	if !ok {
		return
	}
	store.Logout(r.Context())
	followNavigation(w, r, domain.RouteLogin)
}

func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, creds *domain.Credentials) {
	store, ok := requireSessionStore(w, r)
	if !ok {
		return
	}
	store.Login(r.Context(), creds.Token, creds.Username)
	followNavigation(w, r, domain.RouteHome)
}
