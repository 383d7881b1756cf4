package testhelpers

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

// TestBroker is a throwaway RabbitMQ node
type TestBroker struct {
	Container *rabbitmq.RabbitMQContainer
	URL       string
}

// NewTestBroker starts a RabbitMQ container; it is terminated through t.Cleanup.
func NewTestBroker(t *testing.T) *TestBroker {
	t.Helper()
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
		rabbitmq.WithAdminPassword("password"),
	)
	if err != nil {
		t.Fatalf("failed to start rabbitmq container: %s", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(context.Background()); termErr != nil {
			t.Logf("failed to terminate rabbitmq container: %s", termErr)
		}
	})

	url, err := container.AmqpURL(ctx)
	if err != nil {
		t.Fatalf("failed to get amqp url: %s", err)
	}

	return &TestBroker{Container: container, URL: url}
}

// Dial opens a connection closed through t.Cleanup
func (b *TestBroker) Dial(t *testing.T) *amqp.Connection {
	t.Helper()
	conn, err := amqp.Dial(b.URL)
	if err != nil {
		t.Fatalf("failed to dial rabbitmq: %s", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
