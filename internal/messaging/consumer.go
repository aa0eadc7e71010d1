package messaging

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"sleep-better/internal/domain"
)

// SessionEventHandler processes one session event received from the exchange.
type SessionEventHandler func(ctx context.Context, ev domain.SessionEvent)

// SessionEventConsumer receives every session event through a private,
// auto-deleted queue bound to the fanout exchange.
type SessionEventConsumer struct {
	rmq     *RabbitMQ
	handler SessionEventHandler
}

func NewSessionEventConsumer(rmq *RabbitMQ, handler SessionEventHandler) *SessionEventConsumer {
	return &SessionEventConsumer{
		rmq:     rmq,
		handler: handler,
	}
}

// Start binds the queue and dispatches deliveries until ctx is done or the
// channel closes. It returns once consuming has started.
func (c *SessionEventConsumer) Start(ctx context.Context) (<-chan struct{}, error) {
	queue, err := c.rmq.channel.QueueDeclare(
		"",    // auto-generated name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare session events queue: %w", err)
	}

	if err := c.rmq.channel.QueueBind(
		queue.Name,            // queue name
		"",                    // routing key
		SessionEventsExchange, // exchange
		false,
		nil,
	); err != nil {
		return nil, fmt.Errorf("failed to bind session events queue: %w", err)
	}

	msgs, err := c.rmq.channel.Consume(
		queue.Name, // queue
		"",         // consumer
		true,       // auto-ack
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	slog.Info("started consuming session events",
		slog.String("queue", queue.Name),
		slog.String("exchange", SessionEventsExchange))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.dispatch(ctx, msgs)
	}()
	return done, nil
}

func (c *SessionEventConsumer) dispatch(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping session event consumer")
			return
		case msg, ok := <-msgs:
			if !ok {
				slog.Warn("session event channel closed")
				return
			}

			ev, err := decodeSessionEvent(msg.Body)
			if err != nil {
				slog.Error("dropping malformed session event",
					slog.String("error", err.Error()),
					slog.Int("body_size", len(msg.Body)))
				continue
			}

			c.handler(ctx, ev)
		}
	}
}
