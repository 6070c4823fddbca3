// Package rabbitmq publishes MakerAdmin domain events to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// Routing keys of published events.
const (
	RoutingMemberRegistered     = "member.registered"
	RoutingSpanGranted          = "span.granted"
	RoutingTransactionCompleted = "transaction.completed"
)

// PublishMessage publishes message as persistent JSON.
func PublishMessage(ch *amqp.Channel, exchange string, routingKey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Publisher sends events to one exchange. amqp channels are not safe for concurrent
// publishing, so calls are serialized.
type Publisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

// NewPublisher returns a Publisher writing to exchange over ch.
func NewPublisher(ch *amqp.Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// Publish sends message under routingKey.
func (p *Publisher) Publish(ctx context.Context, routingKey string, message any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishMessage(p.ch, p.exchange, routingKey, message)
}

// Close closes the underlying channel.
func (p *Publisher) Close() error {
	return p.ch.Close()
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

// Publish implements the publisher contract and does nothing.
func (NopPublisher) Publish(context.Context, string, any) error { return nil }
