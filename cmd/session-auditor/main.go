package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"sleep-better/internal/config"
	"sleep-better/internal/domain"
	"sleep-better/internal/messaging"
	"sleep-better/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.RabbitMQURL == "" {
		slog.Error("RABBITMQ_URL is required")
		os.Exit(1)
	}

	slog.Info("starting session auditor")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 60*time.Second)
	rmq, err := messaging.NewRabbitMQWithRetry(connectCtx, cfg.RabbitMQURL)
	connectCancel()
	if err != nil {
		slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rmq.Close()

	tally := newAuditTally()
	done, err := messaging.NewSessionEventConsumer(rmq, tally.record).Start(ctx)
	if err != nil {
		slog.Error("failed to start consuming", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("session auditor is ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-done:
		slog.Warn("session event stream closed")
	}

	slog.Info("shutting down session auditor")
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}

	attrs := []any{}
	for typ, n := range tally.snapshot() {
		attrs = append(attrs, slog.Int(string(typ), n))
	}
	slog.Info("session auditor stopped", attrs...)
}

// auditTally logs every session transition and counts them by type.
type auditTally struct {
	mu     sync.Mutex
	counts map[domain.SessionEventType]int
}

func newAuditTally() *auditTally {
	return &auditTally{counts: make(map[domain.SessionEventType]int)}
}

func (a *auditTally) record(ctx context.Context, ev domain.SessionEvent) {
	a.mu.Lock()
	a.counts[ev.Type]++
	a.mu.Unlock()

	observability.SessionEventsTotal.WithLabelValues(string(ev.Type)).Inc()
	observability.FromContext(ctx).Info("session event",
		slog.String("type", string(ev.Type)),
		slog.String("username", ev.Username),
		slog.String("session_id", ev.SessionID),
		slog.Bool("authenticated", ev.Authenticated),
		slog.Time("at", time.Unix(ev.Timestamp, 0).UTC()),
	)
}

func (a *auditTally) snapshot() map[domain.SessionEventType]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[domain.SessionEventType]int, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}
