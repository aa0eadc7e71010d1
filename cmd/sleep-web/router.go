package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sleep-better/api"
	"sleep-better/internal/config"
	"sleep-better/internal/handler"
	"sleep-better/internal/middleware"
	"sleep-better/internal/security"
	"sleep-better/internal/web"
)

// routes holds everything the router wires together.
type routes struct {
	cfg       *config.Config
	sessions  middleware.StoreFactory
	listeners []middleware.SessionListener
	clock     func() time.Time
	tokens    *security.TokenManager

	pages *handler.PageHandler
	auth  *handler.AuthHandler
	api   *handler.APIHandler
	sso   *handler.SSOHandler
	chat  *handler.ChatHandler
	ready http.HandlerFunc

	authLimiter *middleware.RateLimiter
	chatLimiter *middleware.RateLimiter
}

func newRouter(rt routes) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestContext())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics())

	// The guard sees every path, including unknown ones; its exclusions keep
	// health, metrics and assets out of it.
	r.Use(middleware.CSRF(rt.tokens, rt.cfg.CookieSecure))
	r.Use(middleware.Persistence(rt.sessions))
	r.Use(middleware.RouteGuard(middleware.RouteGuardConfig{Exclusions: rt.cfg.GuardExclusions}))
	r.Use(middleware.Session(middleware.SessionConfig{
		TTL:       rt.cfg.SessionTTL,
		Clock:     rt.clock,
		Listeners: rt.listeners,
	}))

	r.Get("/health", handler.Health)
	r.Get("/health/ready", rt.ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/static/*", web.Static())

	r.Get("/", rt.pages.Home)
	r.Post("/", rt.pages.Predict)
	r.Get("/dashboard", rt.pages.Dashboard)
	r.Get("/diet", rt.pages.Diet)

	r.Get("/login", rt.auth.LoginPage)
	r.Get("/register", rt.auth.RegisterPage)
	r.Post("/logout", rt.auth.Logout)
	r.Group(func(r chi.Router) {
		r.Use(rt.authLimiter.Middleware())
		r.Post("/login", rt.auth.Login)
		r.Post("/register", rt.auth.Register)
	})

	r.Get("/ws/chat", rt.chat.HandleConnection)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(rt.cfg.AllowedOrigins))
		r.Use(middleware.OpenAPIValidator(middleware.DefaultOpenAPIValidatorConfig(api.Spec, rt.cfg.OpenAPIValidation)))

		r.Get("/session", rt.api.Session)
		r.Get("/chat/options", rt.api.ChatOptions)
		r.Get("/auth/sso/login", rt.sso.Login)
		r.Get("/auth/sso/callback", rt.sso.Callback)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession())
			r.Post("/predict", rt.api.Predict)
			r.Get("/stats", rt.api.Stats)
			r.With(rt.chatLimiter.Middleware()).Post("/chat", rt.api.Chat)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	return r
}
