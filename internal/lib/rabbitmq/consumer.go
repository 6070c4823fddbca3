package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/makerspace/makeradmin/internal/lib/sl"
)

// Handler processes one delivery. A returned error nacks the delivery; it is requeued once
// and dropped when it fails again.
type Handler func(ctx context.Context, routingKey string, body []byte) error

// ErrDeliveriesClosed is returned by Consume when the broker closes the channel.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Consume handles deliveries from queueName with up to workers concurrent handlers. It
// blocks until ctx is cancelled and waits for running handlers before returning.
func Consume(ctx context.Context, ch *amqp.Channel, queueName string, workers int, handler Handler, log *slog.Logger) error {
	const op = "rabbitmq.Consume"
	if workers < 1 {
		workers = 1
	}
	if err := ch.Qos(workers, 0, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log = log.With(sl.Op(op), slog.String("queue", queueName))

	sem := make(chan struct{}, workers)
	defer func() {
		for i := 0; i < workers; i++ {
			sem <- struct{}{}
		}
	}()
	for {
		select {
		case d, ok := <-delivery:
			if !ok {
				return fmt.Errorf("%s: %w", op, ErrDeliveriesClosed)
			}
			sem <- struct{}{}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				handleDelivery(ctx, d, handler, log)
			}(d)
		case <-ctx.Done():
			return nil
		}
	}
}

// acknowledger is the part of amqp.Delivery used to settle it.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler, log *slog.Logger) {
	settle(ctx, d, d.RoutingKey, d.Body, d.Redelivered, handler, log)
}

func settle(ctx context.Context, a acknowledger, routingKey string, body []byte, redelivered bool, handler Handler, log *slog.Logger) {
	if err := handler(ctx, routingKey, body); err != nil {
		log.Warn("failed to handle message", slog.String("routing_key", routingKey),
			slog.Bool("redelivered", redelivered), sl.Err(err))
		if nackErr := a.Nack(false, !redelivered); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if ackErr := a.Ack(false); ackErr != nil {
		log.Error("failed to ack message", sl.Err(ackErr))
	}
}
