// Package messaging fans session events out over RabbitMQ.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"sleep-better/internal/domain"
)

// SessionEventsExchange is the fanout exchange every session event is published to.
const SessionEventsExchange = "session.events"

var ErrClosed = errors.New("rabbitmq connection closed")

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	// amqp channels must not be used for publishing concurrently
	mu sync.Mutex
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		channel: ch,
	}

	if err := rmq.Setup(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

// NewRabbitMQWithRetry dials until it succeeds or ctx is done, doubling the
// wait between attempts up to 10 seconds.
func NewRabbitMQWithRetry(ctx context.Context, url string) (*RabbitMQ, error) {
	delay := 500 * time.Millisecond
	const maxDelay = 10 * time.Second

	for attempt := 1; ; attempt++ {
		rmq, err := NewRabbitMQ(url)
		if err == nil {
			return rmq, nil
		}

		slog.Warn("rabbitmq not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("giving up on rabbitmq after %d attempts: %w", attempt, errors.Join(ctx.Err(), err))
		case <-time.After(delay):
		}

		delay = min(delay*2, maxDelay)
	}
}

func (r *RabbitMQ) Setup() error {
	if err := r.channel.ExchangeDeclare(
		SessionEventsExchange, // name
		"fanout",              // type
		true,                  // durable
		false,                 // auto-deleted
		false,                 // internal
		false,                 // no-wait
		nil,                   // arguments
	); err != nil {
		return fmt.Errorf("failed to declare session events exchange: %w", err)
	}

	slog.Info("rabbitmq setup completed successfully")
	return nil
}

// PublishSessionEvent publishes ev as JSON to the session events exchange.
func (r *RabbitMQ) PublishSessionEvent(ctx context.Context, ev domain.SessionEvent) error {
	body, err := encodeSessionEvent(ev)
	if err != nil {
		return err
	}

	if r.IsClosed() {
		return ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.channel.PublishWithContext(
		ctx,
		SessionEventsExchange,
		string(ev.Type),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Unix(ev.Timestamp, 0),
			Type:         string(ev.Type),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish session event: %w", err)
	}

	slog.Debug("published session event",
		slog.String("type", string(ev.Type)),
		slog.String("session_id", ev.SessionID))
	return nil
}

// Ping reports whether the connection is still open.
func (r *RabbitMQ) Ping(context.Context) error {
	if r.IsClosed() {
		return ErrClosed
	}
	return nil
}

func (r *RabbitMQ) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func encodeSessionEvent(ev domain.SessionEvent) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session event: %w", err)
	}
	return body, nil
}

func decodeSessionEvent(body []byte) (domain.SessionEvent, error) {
	var ev domain.SessionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("failed to unmarshal session event: %w", err)
	}
	if ev.Type == "" {
		return ev, errors.New("session event without type")
	}
	return ev, nil
}
