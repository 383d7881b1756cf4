package events

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeAuctionEvents is the topic exchange all escrow events are published to
const ExchangeAuctionEvents = "auction.events"

// RabbitMQPublisher implements EventPublisher
type RabbitMQPublisher struct {
	channel     *amqp.Channel
	contentType string
}

// DeclareExchange makes sure the topic exchange exists
func DeclareExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(
		name,    // name
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
}

// NewRabbitMQPublisher opens a channel on conn and declares the exchange
func NewRabbitMQPublisher(conn *amqp.Connection, exchange, contentType string) (*RabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &RabbitMQPublisher{
		channel:     ch,
		contentType: contentType,
	}, nil
}

// Close closes the channel
func (p *RabbitMQPublisher) Close() error {
	return p.channel.Close()
}

// Publish publishes a persistent message to the broker
func (p *RabbitMQPublisher) Publish(ctx context.Context, exchange, routingKey string, msg Message) error {
	return p.channel.PublishWithContext(ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  p.contentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Timestamp:    msg.Timestamp,
			Headers:      amqp.Table{"aggregate_id": msg.AggregateID},
			Body:         msg.Body,
		},
	)
}
