//go:build integration

package messaging_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"sleep-better/internal/domain"
	"sleep-better/internal/messaging"
)

// setupRabbitMQ starts a RabbitMQ container and returns its connection URL
func setupRabbitMQ(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.12-alpine",
		ExposedPorts: []string{"5672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("Server startup complete"),
			wait.ForListeningPort("5672/tcp"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start RabbitMQ container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func TestSessionEvents_FanOutToEveryConsumer(t *testing.T) {
	url := setupRabbitMQ(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	publisher, err := messaging.NewRabbitMQWithRetry(ctx, url)
	require.NoError(t, err)
	defer publisher.Close()

	received := make([]chan domain.SessionEvent, 2)
	for i := range received {
		ch := make(chan domain.SessionEvent, 4)
		received[i] = ch

		rmq, err := messaging.NewRabbitMQ(url)
		require.NoError(t, err)
		defer rmq.Close()

		consumer := messaging.NewSessionEventConsumer(rmq, func(_ context.Context, ev domain.SessionEvent) {
			ch <- ev
		})
		_, err = consumer.Start(ctx)
		require.NoError(t, err)
	}

	ev := domain.SessionEvent{
		Type:      domain.SessionLogout,
		Username:  "bob",
		SessionID: "a1b2c3",
		Timestamp: time.Now().Unix(),
	}
	require.NoError(t, publisher.PublishSessionEvent(ctx, ev))
	require.NoError(t, publisher.Ping(ctx))

	for i, ch := range received {
		select {
		case got := <-ch:
			assert.Equal(t, ev, got, "consumer %d", i)
		case <-ctx.Done():
			t.Fatalf("consumer %d did not receive the event", i)
		}
	}
}
