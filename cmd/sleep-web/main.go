package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sleep-better/internal/auth"
	"sleep-better/internal/backend"
	"sleep-better/internal/config"
	"sleep-better/internal/domain"
	"sleep-better/internal/handler"
	"sleep-better/internal/messaging"
	"sleep-better/internal/middleware"
	"sleep-better/internal/observability"
	"sleep-better/internal/repository/cookie"
	"sleep-better/internal/repository/memory"
	"sleep-better/internal/repository/postgres"
	redisrepo "sleep-better/internal/repository/redis"
	"sleep-better/internal/security"
	"sleep-better/internal/service"
	"sleep-better/internal/web"
	"sleep-better/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting sleep-better web",
		slog.String("environment", cfg.Environment),
		slog.String("session_backend", cfg.SessionBackend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backendClient := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	checks := map[string]domain.Pinger{"backend": backendClient}

	sessions, err := newSessionBackend(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up session storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer sessions.close()
	if sessions.pinger != nil {
		checks["session_store"] = sessions.pinger
	}

	hub := websocket.NewHub()
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("hub error", slog.String("error", err.Error()))
		}
	}()
	slog.Info("websocket hub started")

	listeners := []middleware.SessionListener{
		middleware.CountSessionEvents,
		middleware.LogSessionEvents,
		disconnectOnLogout(hub),
	}

	if cfg.RabbitMQURL != "" {
		rmqCtx, rmqCancel := context.WithTimeout(ctx, 60*time.Second)
		rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
		rmqCancel()
		if err != nil {
			slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer rmq.Close()

		checks["rabbitmq"] = rmq
		listeners = append(listeners, middleware.PublishSessionEvents(rmq))

		// Logouts on other replicas close this replica's sockets too.
		consumer := messaging.NewSessionEventConsumer(rmq, func(ctx context.Context, ev domain.SessionEvent) {
			disconnectOnLogout(hub)(ctx, ev)
		})
		if _, err := consumer.Start(ctx); err != nil {
			slog.Error("failed to start session event consumer", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("session events enabled")
	}

	var ssoProvider handler.SSOProvider
	if cfg.SSOEnabled() {
		provider, err := auth.NewProvider(ctx, auth.Config{
			Issuer:       cfg.OIDCIssuer,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
		})
		if err != nil {
			slog.Error("failed to set up single sign-on", slog.String("error", err.Error()))
			os.Exit(1)
		}
		ssoProvider = provider
		slog.Info("single sign-on enabled", slog.String("issuer", cfg.OIDCIssuer))
	}

	pages, err := web.NewRenderer()
	if err != nil {
		slog.Error("failed to parse page templates", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tokens := security.NewTokenManager()
	chatService := service.NewChatService(backendClient)

	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)
	defer authLimiter.Stop()
	chatLimiter := middleware.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateBurst)
	defer chatLimiter.Stop()

	router := newRouter(routes{
		cfg:       cfg,
		sessions:  sessions.factory,
		listeners: listeners,
		clock:     time.Now,
		tokens:    tokens,

		pages: handler.NewPageHandler(pages, backendClient),
		auth:  handler.NewAuthHandler(service.NewAuthService(backendClient), pages, cfg.SSOEnabled()),
		api:   handler.NewAPIHandler(backendClient, chatService),
		sso:   handler.NewSSOHandler(ssoProvider, tokens, cfg.CookieSecure),
		chat:  handler.NewChatHandler(hub, chatService, cfg.AllowedOrigins),
		ready: handler.Ready(checks),

		authLimiter: authLimiter,
		chatLimiter: chatLimiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("sleep-better web listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	cancel()

	slog.Info("server stopped gracefully")
}

// disconnectOnLogout closes the chat sockets of a session once it logs out.
func disconnectOnLogout(hub *websocket.Hub) middleware.SessionListener {
	return func(_ context.Context, ev domain.SessionEvent) {
		if ev.Type == domain.SessionLogout {
			hub.DisconnectSession(ev.SessionID)
		}
	}
}

// sessionBackend is the configured persistence for session keys.
type sessionBackend struct {
	factory middleware.StoreFactory
	pinger  domain.Pinger
	close   func()
}

func newSessionBackend(ctx context.Context, cfg *config.Config) (*sessionBackend, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		client, err := config.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		slog.Info("connected to redis")

		store := redisrepo.NewKVStore(client)
		return &sessionBackend{
			factory: middleware.ServerStores(store, cfg.CookieSecure),
			pinger:  store,
			close:   func() { client.Close() },
		}, nil

	case config.SessionBackendPostgres:
		db, err := config.NewPostgresConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgresql: %w", err)
		}
		slog.Info("connected to postgresql")

		if cfg.DBEnsureSchema {
			if err := postgres.EnsureSchema(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
		}

		store, err := postgres.NewKVStore(db)
		if err != nil {
			db.Close()
			return nil, err
		}

		go startSessionCleanup(ctx, store, cfg.SessionCleanupInterval, func() {
			observability.RecordDBStats(db.Stats())
		})

		return &sessionBackend{
			factory: middleware.ServerStores(store, cfg.CookieSecure),
			pinger:  store,
			close: func() {
				store.Close()
				db.Close()
			},
		}, nil

	case config.SessionBackendMemory:
		store := memory.NewKVStore(nil)
		go startSessionCleanup(ctx, store, cfg.SessionCleanupInterval, nil)

		return &sessionBackend{
			factory: middleware.ServerStores(store, cfg.CookieSecure),
			pinger:  store,
			close:   func() {},
		}, nil

	default:
		key, err := security.DeriveKey(cfg.SessionSecret, security.PurposeCookieEnvelope)
		if err != nil {
			return nil, err
		}
		opts := cookie.Options{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure}

		return &sessionBackend{
			factory: middleware.CookieStores(security.NewEnvelope(key, time.Now), opts, time.Now),
			close:   func() {},
		}, nil
	}
}

type expiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// startSessionCleanup periodically deletes expired session keys
func startSessionCleanup(ctx context.Context, store expiredDeleter, interval time.Duration, afterRun func()) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping session cleanup task")
			return
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			count, err := store.DeleteExpired(cleanupCtx)
			if err != nil {
				slog.Error("session cleanup failed", slog.String("error", err.Error()))
			} else {
				slog.Info("session cleanup completed",
					slog.Int64("keys_deleted", count))
			}
			cancel()

			if afterRun != nil {
				afterRun()
			}
		}
	}
}
