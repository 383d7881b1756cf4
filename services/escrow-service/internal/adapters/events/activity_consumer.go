package events

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	pkgevents "github.com/floroz/poetchain/pkg/events"
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/escrow"
)

// ActivityQueue is the durable queue feeding the activity read model
const ActivityQueue = "escrow_activity"

// ActivityRecorder stores decoded activity
type ActivityRecorder interface {
	Record(ctx context.Context, a *escrow.Activity) error
}

// ActivityConsumer consumes every escrow event and feeds the activity read model
type ActivityConsumer struct {
	conn     *amqp.Connection
	recorder ActivityRecorder
	logger   *slog.Logger
}

// NewActivityConsumer creates a new activity consumer
func NewActivityConsumer(conn *amqp.Connection, recorder ActivityRecorder, logger *slog.Logger) *ActivityConsumer {
	return &ActivityConsumer{
		conn:     conn,
		recorder: recorder,
		logger:   logger,
	}
}

// Run starts the consumer loop
func (c *ActivityConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := c.setupRabbitMQ(ch); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}

	msgs, err := ch.Consume(
		ActivityQueue, // queue
		"",            // consumer tag
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for messages...", "queue", ActivityQueue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks recorded events, drops undecodable ones and requeues on store failures
func (c *ActivityConsumer) handle(ctx context.Context, d amqp.Delivery) {
	activity, err := escrow.DecodeActivity(d.MessageId, d.Body)
	if err != nil {
		c.logger.Error("Failed to decode event", "error", err, "routing_key", d.RoutingKey)
		// If we can't parse it, we probably can't process it ever.
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to Nack message", "error", nackErr)
		}
		return
	}

	if err := c.recorder.Record(ctx, activity); err != nil {
		c.logger.Error("Failed to record activity", "error", err, "auction_id", activity.AuctionID)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("Failed to Nack message (requeue)", "error", nackErr)
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error("Failed to Ack message", "error", ackErr)
	}
	c.logger.Debug("Recorded activity", "auction_id", activity.AuctionID, "routing_key", d.RoutingKey)
}

func (c *ActivityConsumer) setupRabbitMQ(ch *amqp.Channel) error {
	if err := pkgevents.DeclareExchange(ch, pkgevents.ExchangeAuctionEvents); err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		ActivityQueue, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return err
	}

	return ch.QueueBind(
		q.Name,                          // queue name
		"#",                             // routing key
		pkgevents.ExchangeAuctionEvents, // exchange
		false,
		nil,
	)
}
